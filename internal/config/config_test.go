package config

import (
	"errors"
	"testing"
	"time"

	"github.com/petrijr/fluxotrace/internal/persistence"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"FLUXOTRACE_LOG_LEVEL", "FLUXOTRACE_STORE", "FLUXOTRACE_STORE_DSN",
		"FLUXOTRACE_STORE_PREFIX", "FLUXOTRACE_STORE_TIMEOUT", "FLUXOTRACE_OTEL_INSECURE",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_SERVICE_NAME",
	} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected log level info, got %q", cfg.LogLevel)
	}
	if cfg.StoreBackend != persistence.BackendSQLite || cfg.StoreDSN != "fluxotrace.db" {
		t.Fatalf("expected sqlite store at fluxotrace.db, got %s %q", cfg.StoreBackend, cfg.StoreDSN)
	}
	if cfg.StoreTimeout != 30*time.Second {
		t.Fatalf("expected 30s store timeout, got %s", cfg.StoreTimeout)
	}
	if cfg.ServiceName != "fluxotrace" || cfg.OTELEndpoint != "" || cfg.OTELInsecure {
		t.Fatalf("unexpected OTEL settings: %+v", cfg)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FLUXOTRACE_LOG_LEVEL", "DEBUG")
	t.Setenv("FLUXOTRACE_STORE", "redis")
	t.Setenv("FLUXOTRACE_STORE_DSN", "redis://localhost:6379/2")
	t.Setenv("FLUXOTRACE_STORE_PREFIX", "traces:")
	t.Setenv("FLUXOTRACE_STORE_TIMEOUT", "5s")
	t.Setenv("FLUXOTRACE_OTEL_INSECURE", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected debug, got %q", cfg.LogLevel)
	}
	opts := cfg.StoreOptions()
	if opts.Backend != persistence.BackendRedis || opts.DSN != "redis://localhost:6379/2" || opts.Prefix != "traces:" {
		t.Fatalf("unexpected store options: %+v", opts)
	}
	if cfg.StoreTimeout != 5*time.Second || !cfg.OTELInsecure || cfg.OTELEndpoint != "localhost:4318" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"bad bool":        {"FLUXOTRACE_OTEL_INSECURE": "maybe"},
		"bad duration":    {"FLUXOTRACE_STORE_TIMEOUT": "soon"},
		"bad level":       {"FLUXOTRACE_LOG_LEVEL": "loud"},
		"unknown store":   {"FLUXOTRACE_STORE": "cassandra"},
		"postgres no dsn": {"FLUXOTRACE_STORE": "postgres", "FLUXOTRACE_STORE_DSN": ""},
		"zero timeout":    {"FLUXOTRACE_STORE_TIMEOUT": "0s"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestEnvBoolInvalidMessage(t *testing.T) {
	t.Setenv("TEST_BOOL_BAD", "maybe")
	_, err := envBool("TEST_BOOL_BAD", false)
	if err == nil {
		t.Fatal("expected error for non-boolean value, got nil")
	}
	if got := err.Error(); got != `config: invalid: TEST_BOOL_BAD="maybe" is not a valid boolean` {
		t.Fatalf("unexpected error message: %s", got)
	}
}

func TestMemoryStoreNeedsNoDSN(t *testing.T) {
	cfg := Config{LogLevel: "info", StoreBackend: persistence.BackendMemory, StoreTimeout: time.Second}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
