package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"sanctuary/internal/platform/config"
	"sanctuary/internal/platform/httpserver"
	"sanctuary/internal/platform/kafka"
	"sanctuary/internal/platform/postgres"
	"sanctuary/internal/platform/redis"

	"github.com/twmb/franz-go/pkg/kgo"
)

// infra holds the optional backend connections. Nil fields are unconfigured.
type infra struct {
	db    *sql.DB
	redis *redis.Client
	kafka *kgo.Client
}

func usesBackend(cfg *config.Config, backend string) bool {
	return cfg.Storage.Vaults == backend || cfg.Storage.Attestations == backend || cfg.Storage.Audit == backend
}

func openInfra(ctx context.Context, cfg *config.Config, log *slog.Logger) (*infra, error) {
	in := &infra{}

	if usesBackend(cfg, config.BackendPostgres) {
		db, err := postgres.Open(ctx, postgres.Config{
			Driver:          cfg.Database.Driver,
			URL:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		in.db = db
		if cfg.Database.Migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				in.Close(log)
				return nil, err
			}
		}
		log.Info("postgres connected")
	}

	if usesBackend(cfg, config.BackendRedis) {
		rc, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			in.Close(log)
			return nil, err
		}
		in.redis = rc
		log.Info("redis connected", "key_prefix", rc.KeyPrefix())
	}

	if len(cfg.Kafka.Brokers) > 0 {
		kcfg := kafka.Config{
			Brokers:           cfg.Kafka.Brokers,
			ClientID:          cfg.Kafka.ClientID,
			Topic:             cfg.Kafka.AuditTopic,
			Partitions:        cfg.Kafka.Partitions,
			ReplicationFactor: cfg.Kafka.ReplicationFactor,
		}
		client, err := kafka.NewProducer(kcfg)
		if err != nil {
			in.Close(log)
			return nil, err
		}
		in.kafka = client
		if err := kafka.EnsureTopic(ctx, client, kcfg); err != nil {
			in.Close(log)
			return nil, fmt.Errorf("kafka audit topic: %w", err)
		}
		log.Info("kafka audit sink enabled", "topic", cfg.Kafka.AuditTopic)
	}

	return in, nil
}

func (in *infra) healthChecks() map[string]httpserver.HealthCheck {
	checks := map[string]httpserver.HealthCheck{}
	if in.db != nil {
		checks["postgres"] = in.db.PingContext
	}
	if in.redis != nil {
		checks["redis"] = in.redis.Health
	}
	if in.kafka != nil {
		checks["kafka"] = in.kafka.Ping
	}
	return checks
}

func (in *infra) Close(log *slog.Logger) {
	if in.kafka != nil {
		in.kafka.Close()
	}
	if in.redis != nil {
		if err := in.redis.Close(); err != nil {
			log.Error("redis close failed", "error", err)
		}
	}
	if in.db != nil {
		if err := in.db.Close(); err != nil {
			log.Error("postgres close failed", "error", err)
		}
	}
}
