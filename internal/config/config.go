// Package config loads and validates fluxotrace configuration from
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/petrijr/fluxotrace/internal/persistence"
)

// ErrInvalid is wrapped by every validation and parse error.
var ErrInvalid = errors.New("config: invalid")

// Config holds all fluxotrace configuration.
type Config struct {
	// Logging.
	LogLevel string // debug, info, warn or error.

	// History store settings.
	StoreBackend persistence.Backend
	StoreDSN     string // File path for SQLite, connection URL otherwise.
	StorePrefix  string // Redis key prefix or MongoDB database name.
	StoreTimeout time.Duration

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string
}

// Load reads configuration from environment variables with defaults.
func Load() (Config, error) {
	var errs []error

	insecure, err := envBool("FLUXOTRACE_OTEL_INSECURE", false)
	errs = append(errs, err)
	timeout, err := envDuration("FLUXOTRACE_STORE_TIMEOUT", 30*time.Second)
	errs = append(errs, err)

	cfg := Config{
		LogLevel:     strings.ToLower(envStr("FLUXOTRACE_LOG_LEVEL", "info")),
		StoreBackend: persistence.Backend(strings.ToLower(envStr("FLUXOTRACE_STORE", string(persistence.BackendSQLite)))),
		StoreDSN:     envStr("FLUXOTRACE_STORE_DSN", ""),
		StorePrefix:  envStr("FLUXOTRACE_STORE_PREFIX", ""),
		StoreTimeout: timeout,
		OTELEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure: insecure,
		ServiceName:  envStr("OTEL_SERVICE_NAME", "fluxotrace"),
	}
	if cfg.StoreBackend == persistence.BackendSQLite && cfg.StoreDSN == "" {
		cfg.StoreDSN = "fluxotrace.db"
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: FLUXOTRACE_LOG_LEVEL=%q is not one of debug, info, warn, error", ErrInvalid, c.LogLevel)
	}

	switch c.StoreBackend {
	case persistence.BackendMemory, persistence.BackendSQLite:
	case persistence.BackendPostgres, persistence.BackendRedis, persistence.BackendMongo:
		if c.StoreDSN == "" {
			return fmt.Errorf("%w: FLUXOTRACE_STORE_DSN is required for the %s store", ErrInvalid, c.StoreBackend)
		}
	default:
		return fmt.Errorf("%w: FLUXOTRACE_STORE=%q is not a known store", ErrInvalid, c.StoreBackend)
	}

	if c.StoreTimeout <= 0 {
		return fmt.Errorf("%w: FLUXOTRACE_STORE_TIMEOUT must be positive", ErrInvalid)
	}
	return nil
}

// StoreOptions returns the options for persistence.Open.
func (c Config) StoreOptions() persistence.Options {
	return persistence.Options{
		Backend: c.StoreBackend,
		DSN:     c.StoreDSN,
		Prefix:  c.StorePrefix,
	}
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%w: %s=%q is not a valid boolean", ErrInvalid, key, v)
	}
	return b, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%w: %s=%q is not a valid duration", ErrInvalid, key, v)
	}
	return d, nil
}
