package fluxotrace

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/petrijr/fluxotrace/internal/engine"
	"github.com/petrijr/fluxotrace/internal/persistence"
	"github.com/petrijr/fluxotrace/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	RawEvent             = api.RawEvent
	EventKind            = api.EventKind
	Timeline             = api.Timeline
	Step                 = api.Step
	Attempt              = api.Attempt
	StepKind             = api.StepKind
	StepState            = api.StepState
	RunStatus            = api.RunStatus
	Cancellation         = api.Cancellation
	Diagnostic           = api.Diagnostic
	DiagnosticCode       = api.DiagnosticCode
	Builder              = api.Builder
	Observer             = api.Observer
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver

	// EventStore holds raw run histories keyed by run id.
	EventStore = persistence.EventStore
)

// Re-export common observer helpers.

var (
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver
)

// Re-export run status values for convenience.

const (
	RunScheduled = api.RunScheduled
	RunRunning   = api.RunRunning
	RunCompleted = api.RunCompleted
	RunFailed    = api.RunFailed
	RunCancelled = api.RunCancelled
)

// NewBuilder returns an empty timeline builder.
func NewBuilder() Builder {
	return engine.NewBuilder()
}

// NewBuilderWithObserver returns an empty timeline builder reporting to obs.
func NewBuilderWithObserver(obs Observer) Builder {
	return engine.NewBuilderWithConfig(engine.Config{Observer: obs})
}

// Build folds events into a timeline in one pass.
func Build(events []RawEvent) (*Timeline, []Diagnostic) {
	return engine.BuildTimeline(events, nil)
}

// SortEvents returns a copy of events in the order the builder folds them:
// by createdAt, ties broken by position in the slice.
func SortEvents(events []RawEvent) []RawEvent {
	return engine.SortEvents(events)
}

// DecodeEvents reads a JSON run history.
func DecodeEvents(r io.Reader) ([]RawEvent, error) {
	return api.DecodeEvents(r)
}

// NewInMemoryEventStore returns a non-durable EventStore, mostly for tests.
func NewInMemoryEventStore() EventStore {
	return persistence.NewInMemoryEventStore()
}

// Store constructors.
// These wrap the internal/persistence package so external callers
// never need to import internal packages.

// NewSQLiteEventStore returns an EventStore persisting histories in SQLite.
// The schema is created if missing.
func NewSQLiteEventStore(db *sql.DB) (EventStore, error) {
	store, err := persistence.NewSQLiteEventStore(db)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewPostgresEventStore returns an EventStore persisting histories in
// PostgreSQL. The schema is created if missing.
func NewPostgresEventStore(db *sql.DB) (EventStore, error) {
	store, err := persistence.NewPostgresEventStore(db)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewRedisEventStore returns an EventStore keeping histories in Redis under
// prefix ("fluxotrace:" if empty).
func NewRedisEventStore(client *redis.Client, prefix string) EventStore {
	return persistence.NewRedisEventStore(client, prefix)
}

// NewMongoEventStore returns an EventStore keeping histories in the given
// MongoDB database ("fluxotrace" if empty).
func NewMongoEventStore(ctx context.Context, client *mongo.Client, database string) (EventStore, error) {
	store, err := persistence.NewMongoEventStore(ctx, client, database, "")
	if err != nil {
		return nil, err
	}
	return store, nil
}

// BuildFromStore loads a run's history from store and folds it.
func BuildFromStore(ctx context.Context, store EventStore, runID string) (*Timeline, []Diagnostic, error) {
	events, err := store.ListEvents(ctx, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	tl, diags := Build(events)
	return tl, diags, nil
}
