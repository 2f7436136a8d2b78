// Package testutil starts throwaway database containers for backend tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startupTimeout is generous because CI runners pull images cold.
const startupTimeout = 3 * time.Minute

// run starts image and returns its host:port endpoint. The container is
// terminated when t finishes. Tests are skipped in -short mode and when no
// container provider is reachable.
func run(t *testing.T, image string, opts ...testcontainers.ContainerCustomizer) string {
	t.Helper()

	if testing.Short() {
		t.Skipf("skipping %s container test in short mode", image)
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	c, err := testcontainers.Run(ctx, image, opts...)
	testcontainers.CleanupContainer(t, c)
	if err != nil {
		t.Fatalf("start %s: %v", image, err)
	}

	endpoint, err := c.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("endpoint for %s: %v", image, err)
	}
	return endpoint
}

// PostgresDSN starts PostgreSQL and returns a pgx connection URL.
func PostgresDSN(t *testing.T) string {
	t.Helper()

	endpoint := run(t, "postgres:16",
		testcontainers.WithExposedPorts("5432/tcp"),
		testcontainers.WithEnv(map[string]string{
			"POSTGRES_USER":     "fluxotrace",
			"POSTGRES_PASSWORD": "fluxotrace",
			"POSTGRES_DB":       "fluxotrace_test",
		}),
		testcontainers.WithWaitStrategy(
			wait.ForAll(
				wait.ForListeningPort("5432/tcp"),
				wait.ForLog("ready to accept connections"),
				// Log readiness fires once during init; probe SQL for the real server.
				wait.ForSQL("5432/tcp", "pgx", func(host string, port nat.Port) string {
					return fmt.Sprintf("postgres://fluxotrace:fluxotrace@%s:%s/fluxotrace_test?sslmode=disable", host, port.Port())
				}).WithQuery("SELECT 1"),
			).WithDeadline(2*time.Minute),
		),
	)
	return fmt.Sprintf("postgres://fluxotrace:fluxotrace@%s/fluxotrace_test?sslmode=disable", endpoint)
}

// RedisAddr starts Redis and returns its host:port address.
func RedisAddr(t *testing.T) string {
	t.Helper()

	return run(t, "redis:7",
		testcontainers.WithExposedPorts("6379/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("6379/tcp"),
			wait.ForLog("Ready to accept connections"),
		),
	)
}

// MongoURI starts MongoDB and returns a connection URI.
func MongoURI(t *testing.T) string {
	t.Helper()

	endpoint := run(t, "mongo:7",
		testcontainers.WithExposedPorts("27017/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("27017/tcp"),
			wait.ForLog("mongod startup complete"),
		),
	)
	return "mongodb://" + endpoint
}
