// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the runtime configuration. CLI flags override these values.
type Config struct {
	DBDriver    string `env:"STRIDE_DB_DRIVER" envDefault:"sqlite"`
	DBPath      string `env:"STRIDE_DB_PATH" envDefault:"stride.db"`
	DatabaseURL string `env:"DATABASE_URL"`

	// CatalogDir holds .cue and .yaml template files merged over the
	// built-in catalog.
	CatalogDir string `env:"STRIDE_CATALOG_DIR"`

	// Users restricts who may create and join challenges. Empty allows
	// every non-empty user id.
	Users []string `env:"STRIDE_USERS" envSeparator:","`

	NotifyRate  float64 `env:"STRIDE_NOTIFY_RATE" envDefault:"20"`
	NotifyBurst int     `env:"STRIDE_NOTIFY_BURST" envDefault:"40"`

	// SweepInterval enables the active expiry sweeper. Zero disables it.
	SweepInterval time.Duration `env:"STRIDE_SWEEP_INTERVAL" envDefault:"0s"`

	MetricsAddr    string `env:"STRIDE_METRICS_ADDR"`
	FCMCredentials string `env:"STRIDE_FCM_CREDENTIALS"`
	OTelEndpoint   string `env:"STRIDE_OTEL_ENDPOINT"`
	ServiceName    string `env:"STRIDE_SERVICE_NAME" envDefault:"stride"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads the optional dotenv files, then the environment. Variables
// already set in the environment win over dotenv values. A missing dotenv
// file is not an error.
//
// Load does not call Validate: callers apply their overrides first.
func Load(dotenv ...string) (Config, error) {
	if len(dotenv) == 0 {
		dotenv = []string{".env"}
	}
	for _, path := range dotenv {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			return errors.New("config: STRIDE_DB_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown STRIDE_DB_DRIVER %q (want sqlite, postgres or memory)", c.DBDriver)
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("config: STRIDE_SWEEP_INTERVAL must not be negative, got %s", c.SweepInterval)
	}
	if c.NotifyBurst < 0 {
		return fmt.Errorf("config: STRIDE_NOTIFY_BURST must not be negative, got %d", c.NotifyBurst)
	}
	return nil
}
