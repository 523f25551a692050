// Package config loads server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config is the full server configuration.
type Config struct {
	Server   Server      `envPrefix:"SANCTUARY_"`
	Log      Log         `envPrefix:"LOG_"`
	Auth     Auth        `envPrefix:"JWT_"`
	Vault    Vault       `envPrefix:"VAULT_"`
	Storage  Storage     `envPrefix:"STORAGE_"`
	Database Database    `envPrefix:"DATABASE_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`
	Kafka    Kafka       `envPrefix:"KAFKA_"`
	Oracle   Oracle      `envPrefix:"ORACLE_"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

type Log struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

type Auth struct {
	SigningKey string        `env:"SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	Issuer     string        `env:"ISSUER" envDefault:"sanctuary"`
	Audience   string        `env:"AUDIENCE" envDefault:"sanctuary-api"`
	TokenTTL   time.Duration `env:"TOKEN_TTL" envDefault:"1h"`
}

type Vault struct {
	ChainID        uint64        `env:"CHAIN_ID" envDefault:"1"`
	ValidityWindow time.Duration `env:"VALIDITY_WINDOW" envDefault:"5m"`
	// AuditBuffer > 0 publishes audit events asynchronously.
	AuditBuffer int `env:"AUDIT_BUFFER" envDefault:"0"`
	// DevDeposits mounts the in-memory ledger funding routes.
	DevDeposits bool `env:"DEV_DEPOSITS" envDefault:"false"`
}

// Storage selects a backend per store.
type Storage struct {
	Vaults       string `env:"VAULTS" envDefault:"memory"`
	Attestations string `env:"ATTESTATIONS" envDefault:"memory"`
	Audit        string `env:"AUDIT" envDefault:"memory"`
}

type Database struct {
	Driver          string        `env:"DRIVER" envDefault:"postgres"`
	URL             string        `env:"URL"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"5m"`
	Migrate         bool          `env:"MIGRATE" envDefault:"true"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL          string        `env:"URL"`
	PoolSize     int           `env:"POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`
	KeyPrefix    string        `env:"KEY_PREFIX" envDefault:"sanctuary:"`
}

// Kafka enables the audit sink when Brokers is set.
type Kafka struct {
	Brokers           []string `env:"BROKERS" envSeparator:","`
	ClientID          string   `env:"CLIENT_ID" envDefault:"sanctuary"`
	AuditTopic        string   `env:"AUDIT_TOPIC" envDefault:"sanctuary.audit"`
	Partitions        int32    `env:"PARTITIONS" envDefault:"3"`
	ReplicationFactor int16    `env:"REPLICATION_FACTOR" envDefault:"1"`
}

// Oracle enables the in-process verifier, which attests as Principal.
type Oracle struct {
	Enabled     bool   `env:"ENABLED" envDefault:"false"`
	Principal   string `env:"PRINCIPAL"`
	Concurrency int    `env:"CONCURRENCY" envDefault:"8"`
}

// PrincipalAddress returns the parsed oracle principal.
func (o Oracle) PrincipalAddress() common.Address {
	return common.HexToAddress(o.Principal)
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	return LoadWith(env.Options{})
}

// LoadWith parses with explicit options; tests pass Environment.
func LoadWith(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Vault.ValidityWindow <= 0 || c.Vault.ValidityWindow > 24*time.Hour {
		errs = append(errs, errors.New("VAULT_VALIDITY_WINDOW must be in (0, 24h]"))
	}
	if c.Vault.ChainID == 0 {
		errs = append(errs, errors.New("VAULT_CHAIN_ID must be non-zero"))
	}
	if strings.TrimSpace(c.Auth.SigningKey) == "" {
		errs = append(errs, errors.New("JWT_SIGNING_KEY is required"))
	}

	if c.Database.Driver != "postgres" && c.Database.Driver != "pgx" {
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER: unknown driver %q", c.Database.Driver))
	}

	switch c.Storage.Vaults {
	case BackendMemory:
	case BackendPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for postgres vault storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_VAULTS: unknown backend %q", c.Storage.Vaults))
	}

	switch c.Storage.Attestations {
	case BackendMemory:
	case BackendPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for postgres attestation storage"))
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for redis attestation storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_ATTESTATIONS: unknown backend %q", c.Storage.Attestations))
	}

	switch c.Storage.Audit {
	case BackendMemory:
	case BackendPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for postgres audit storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_AUDIT: unknown backend %q", c.Storage.Audit))
	}

	if c.Oracle.Enabled {
		if !common.IsHexAddress(c.Oracle.Principal) || c.Oracle.PrincipalAddress() == (common.Address{}) {
			errs = append(errs, errors.New("ORACLE_PRINCIPAL must be a non-zero address when the oracle is enabled"))
		}
	}

	return errors.Join(errs...)
}
