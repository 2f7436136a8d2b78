package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/petrijr/fluxotrace/pkg/api"
)

// ErrRunNotFound is returned when a store holds no events for a run.
var ErrRunNotFound = errors.New("run not found")

// EventStore is an append-only store of raw run history events.
//
// Implementations are safe for concurrent use. Events are returned in the
// order they were appended; ordering by createdAt is the builder's job.
type EventStore interface {
	// AppendEvents adds events to a run's history. Events whose id already
	// exists in the run are skipped.
	AppendEvents(ctx context.Context, runID string, events ...api.RawEvent) error
	// ListEvents returns a run's history in append order, or
	// ErrRunNotFound if the run has no events.
	ListEvents(ctx context.Context, runID string) ([]api.RawEvent, error)
	// ListRuns returns the ids of all runs with at least one event, sorted.
	ListRuns(ctx context.Context) ([]string, error)
}

// eventKey returns the key used to deduplicate ev within a run. Events
// without an id are kept under a random key and never deduplicated; the
// builder reports them as malformed when they are replayed.
func eventKey(ev api.RawEvent) string {
	if ev.ID != "" {
		return "id:" + ev.ID
	}
	return "anon:" + uuid.NewString()
}
