package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// Environment variables read by Load.
const (
	EnvDatabaseURL        = "LENDING_DATABASE_URL"
	EnvReplicaDatabaseURL = "LENDING_REPLICA_DATABASE_URL"
	EnvDBAdapter          = "LENDING_DB_ADAPTER"
	EnvLoanPeriod         = "LENDING_LOAN_PERIOD"
	EnvSweepInterval      = "LENDING_SWEEP_INTERVAL"
	EnvLogLevel           = "LENDING_LOG_LEVEL"
	EnvJWTSecret          = "LENDING_JWT_SECRET"
	EnvOTelEndpoint       = "LENDING_OTEL_ENDPOINT"
)

// Supported values of LENDING_DB_ADAPTER.
const (
	AdapterPGX  = "pgx"
	AdapterSQL  = "sql"
	AdapterSQLX = "sqlx"
)

const defaultSweepInterval = time.Hour

// ErrInvalidConfig is returned by Load for malformed settings.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the settings of the lending application.
type Config struct {
	DatabaseURL        string
	ReplicaDatabaseURL string
	DBAdapter          string
	LoanPeriod         time.Duration
	SweepInterval      time.Duration
	LogLevel           slog.Level
	JWTSecret          string
	OTelEndpoint       string
}

// LoadFromEnv reads the configuration from the process environment.
func LoadFromEnv() (Config, error) {
	return Load(os.Getenv)
}

// Load reads the configuration through getenv and applies defaults.
// A missing database URL is allowed: the CLI then runs against the in-memory engine.
func Load(getenv func(string) string) (Config, error) {
	cfg := Config{
		DatabaseURL:        strings.TrimSpace(getenv(EnvDatabaseURL)),
		ReplicaDatabaseURL: strings.TrimSpace(getenv(EnvReplicaDatabaseURL)),
		DBAdapter:          AdapterPGX,
		LoanPeriod:         lending.DefaultLoanPeriod,
		SweepInterval:      defaultSweepInterval,
		LogLevel:           slog.LevelInfo,
		JWTSecret:          getenv(EnvJWTSecret),
		OTelEndpoint:       strings.TrimSpace(getenv(EnvOTelEndpoint)),
	}

	var errs []error

	if adapter := strings.ToLower(strings.TrimSpace(getenv(EnvDBAdapter))); adapter != "" {
		switch adapter {
		case AdapterPGX, AdapterSQL, AdapterSQLX:
			cfg.DBAdapter = adapter
		default:
			errs = append(errs, fmt.Errorf("%s: unsupported adapter %q", EnvDBAdapter, adapter))
		}
	}

	if period, err := parsePositiveDuration(getenv, EnvLoanPeriod, cfg.LoanPeriod); err != nil {
		errs = append(errs, err)
	} else {
		cfg.LoanPeriod = period
	}

	if interval, err := parsePositiveDuration(getenv, EnvSweepInterval, cfg.SweepInterval); err != nil {
		errs = append(errs, err)
	} else {
		cfg.SweepInterval = interval
	}

	if level := strings.TrimSpace(getenv(EnvLogLevel)); level != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvLogLevel, err))
		}
	}

	if cfg.ReplicaDatabaseURL != "" && cfg.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("%s requires %s", EnvReplicaDatabaseURL, EnvDatabaseURL))
	}

	if len(errs) > 0 {
		return Config{}, errors.Join(ErrInvalidConfig, errors.Join(errs...))
	}

	return cfg, nil
}

// UsesPostgres reports whether a database URL is configured.
func (c Config) UsesPostgres() bool {
	return c.DatabaseURL != ""
}

func parsePositiveDuration(getenv func(string) string, key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}

	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %s", key, d)
	}

	return d, nil
}
