package main

import (
	"log/slog"

	oraclehandler "sanctuary/internal/oracle/handler"
	oraclemetrics "sanctuary/internal/oracle/metrics"
	oracleservice "sanctuary/internal/oracle/service"
	"sanctuary/internal/platform/config"
	"sanctuary/internal/platform/metrics"
	"sanctuary/internal/platform/postgres"
	"sanctuary/internal/vault/handler"
	"sanctuary/internal/vault/ledger"
	vaultmetrics "sanctuary/internal/vault/metrics"
	"sanctuary/internal/vault/service"
	attestationstore "sanctuary/internal/vault/store/attestation"
	vaultstore "sanctuary/internal/vault/store/vault"
	audit "sanctuary/pkg/platform/audit"
	"sanctuary/pkg/platform/audit/publisher"
	kafkasink "sanctuary/pkg/platform/audit/publishers/kafka"
	auditmemory "sanctuary/pkg/platform/audit/store/memory"
	auditpostgres "sanctuary/pkg/platform/audit/store/postgres"
	"sanctuary/pkg/platform/circuit"
)

type app struct {
	vault  *handler.Handler
	dev    *handler.DevHandler
	oracle *oraclehandler.Handler
	audit  *publisher.Publisher
}

func buildApp(cfg *config.Config, in *infra, m *metrics.Metrics, log *slog.Logger) (*app, error) {
	var vaults service.VaultStore
	switch cfg.Storage.Vaults {
	case config.BackendPostgres:
		vaults = vaultstore.NewPostgres(in.db)
	default:
		vaults = vaultstore.NewInMemory()
	}

	var attestations service.AttestationStore
	switch cfg.Storage.Attestations {
	case config.BackendPostgres:
		attestations = attestationstore.NewPostgres(in.db)
	case config.BackendRedis:
		attestations = attestationstore.NewRedis(in.redis.Client, attestationstore.WithKeyPrefix(in.redis.KeyPrefix()))
	default:
		attestations = attestationstore.NewInMemoryStore()
	}

	var auditStore audit.Store
	switch cfg.Storage.Audit {
	case config.BackendPostgres:
		auditStore = auditpostgres.New(in.db)
	default:
		auditStore = auditmemory.NewInMemoryStore()
	}

	auditMetrics := publisher.NewMetrics(m.Registry)
	pubOpts := []publisher.Option{
		publisher.WithLogger(log),
		publisher.WithMetrics(auditMetrics),
		publisher.WithAsyncBuffer(cfg.Vault.AuditBuffer),
	}
	if in.kafka != nil {
		breaker := circuit.New("audit-kafka")
		pubOpts = append(pubOpts, publisher.WithSink(
			kafkasink.New(in.kafka, cfg.Kafka.AuditTopic,
				kafkasink.WithLogger(log),
				kafkasink.WithBreaker(breaker),
				kafkasink.WithStateObserver(auditMetrics.SetCircuitBreakerState),
			),
		))
	}
	auditPublisher := publisher.NewPublisher(auditStore, pubOpts...)

	opts := []service.Option{
		service.WithLogger(log),
		service.WithAuditPublisher(auditPublisher),
		service.WithMetrics(vaultmetrics.New(m.Registry)),
		service.WithLedger(ledger.NewInMemory()),
		service.WithChainID(cfg.Vault.ChainID),
		service.WithDefaultWindow(cfg.Vault.ValidityWindow),
	}
	// The transaction only spans both writes when vault and audit share postgres
	// and audit is written synchronously.
	if in.db != nil && cfg.Storage.Vaults == config.BackendPostgres &&
		cfg.Storage.Audit == config.BackendPostgres && cfg.Vault.AuditBuffer == 0 {
		opts = append(opts, service.WithTransactor(postgres.NewTransactor(in.db)))
	}
	vaultService := service.New(vaults, attestations, opts...)

	a := &app{
		vault: handler.New(vaultService, log),
		audit: auditPublisher,
	}

	if cfg.Vault.DevDeposits {
		a.dev = handler.NewDevHandler(vaultService, log)
		log.Warn("dev ledger deposits enabled")
	}

	if cfg.Oracle.Enabled {
		verifier := oracleservice.New(vaultService, cfg.Oracle.PrincipalAddress(),
			oracleservice.WithLogger(log),
			oracleservice.WithMetrics(oraclemetrics.New(m.Registry)),
			oracleservice.WithConcurrency(cfg.Oracle.Concurrency),
		)
		a.oracle = oraclehandler.New(verifier, log)
		log.Info("oracle verifier enabled", "principal", cfg.Oracle.PrincipalAddress().Hex())
	}

	return a, nil
}
