// Package config loads the sync engine's runtime configuration from
// environment variables (with an optional .env file for local development).
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// DatabaseConfig controls the entity_state/membership Postgres connection.
type DatabaseConfig struct {
	DSN             string `env:"DB_URL"`
	MaxOpenConns    int    `env:"DB_MAX_OPEN_CONNS,default=10"`
	MaxIdleConns    int    `env:"DB_MAX_IDLE_CONNS,default=5"`
	MigrateOnStart  bool   `env:"DB_MIGRATE_ON_START,default=true"`
}

// RedisConfig holds the Redis URL for the distributed token cache. It is
// decoded but not read when a token cache is chosen: the connectors' token
// managers always use the single-process in-memory cache.
type RedisConfig struct {
	URL string `env:"REDIS_URL"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level      string `env:"LOG_LEVEL,default=info"`
	Format     string `env:"LOG_FORMAT,default=text"`
	Output     string `env:"LOG_OUTPUT,default=stdout"`
	FilePrefix string `env:"LOG_FILE_PREFIX,default=syncengine"`
}

// SecurityConfig controls credential-at-rest encryption.
type SecurityConfig struct {
	// EncryptionKey is either the master key itself, whose string bytes are
	// used as given (no base64 or hex decoding is applied), or, when
	// EncryptionKeyIsPassphrase is set, a passphrase stretched via PBKDF2
	// into a 32-byte key.
	EncryptionKey             string `env:"CREDENTIAL_ENCRYPTION_KEY"`
	EncryptionKeyIsPassphrase bool   `env:"CREDENTIAL_ENCRYPTION_KEY_IS_PASSPHRASE,default=false"`
	EncryptionKeySalt         string `env:"CREDENTIAL_ENCRYPTION_KEY_SALT"`
}

// OrchestratorConfig controls the bounded worker pool and stream buffering
// described in spec.md §5 (CONCURRENCY & RESOURCE MODEL).
type OrchestratorConfig struct {
	MaxWorkers   int `env:"MAX_WORKERS,default=16"`
	StreamBuffer int `env:"STREAM_BUFFER,default=256"`
}

// TokenConfig controls the token manager's refresh and HTTP behavior
// (spec.md §4.7).
type TokenConfig struct {
	RefreshSkewSeconds int     `env:"TOKEN_REFRESH_SKEW_S,default=60"`
	HTTPRatePerSecond  float64 `env:"HTTP_RATE_LIMIT_PER_SEC,default=10"`
	HTTPBurst          int     `env:"HTTP_RATE_LIMIT_BURST,default=20"`
	HTTPMaxRetries     int     `env:"HTTP_MAX_RETRIES,default=5"`
}

// SchedulerConfig controls the periodic sync-trigger cron (SPEC_FULL §2,
// "Scheduler glue").
type SchedulerConfig struct {
	CronSpec string `env:"SCHEDULER_CRON_SPEC,default=*/5 * * * *"`
	Enabled  bool   `env:"SCHEDULER_ENABLED,default=false"`
}

// Config is the top-level sync engine configuration.
type Config struct {
	Database     DatabaseConfig
	Redis        RedisConfig
	Logging      LoggingConfig
	Security     SecurityConfig
	Orchestrator OrchestratorConfig
	Token        TokenConfig
	Scheduler    SchedulerConfig
}

// Load loads an optional .env file (local development convenience) and then
// decodes environment variables, falling back to each field's `default=` tag.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil {
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}

	if cfg.Orchestrator.MaxWorkers <= 0 {
		cfg.Orchestrator.MaxWorkers = 16
	}
	if cfg.Orchestrator.StreamBuffer <= 0 {
		cfg.Orchestrator.StreamBuffer = 256
	}

	return cfg, nil
}
