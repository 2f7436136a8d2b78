package persistence

import (
	"context"
	"slices"
	"sync"

	"github.com/petrijr/fluxotrace/pkg/api"
)

// InMemoryEventStore is a simple, goroutine-safe EventStore backed by maps.
type InMemoryEventStore struct {
	mu   sync.RWMutex
	runs map[string]*memoryRun
}

type memoryRun struct {
	events []api.RawEvent
	keys   map[string]struct{}
}

// Ensure InMemoryEventStore implements the interface.
var _ EventStore = (*InMemoryEventStore)(nil)

// NewInMemoryEventStore creates a new InMemoryEventStore.
func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{
		runs: make(map[string]*memoryRun),
	}
}

func (s *InMemoryEventStore) AppendEvents(ctx context.Context, runID string, events ...api.RawEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		run = &memoryRun{keys: make(map[string]struct{})}
		s.runs[runID] = run
	}
	for _, ev := range events {
		key := eventKey(ev)
		if _, dup := run.keys[key]; dup {
			continue
		}
		run.keys[key] = struct{}{}
		run.events = append(run.events, ev)
	}
	if len(run.events) == 0 {
		delete(s.runs, runID)
	}
	return nil
}

func (s *InMemoryEventStore) ListEvents(ctx context.Context, runID string) ([]api.RawEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	return slices.Clone(run.events), nil
}

func (s *InMemoryEventStore) ListRuns(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.runs))
	for id := range s.runs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}
