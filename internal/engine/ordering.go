package engine

import (
	"slices"

	"github.com/petrijr/fluxotrace/pkg/api"
)

// Entry is an accepted history event together with its arrival position.
type Entry struct {
	Event   api.RawEvent
	Arrival uint64
}

// Before reports whether e is folded before o: earlier createdAt first,
// ties broken by arrival order. Every ordering decision in the builder goes
// through this method.
func (e Entry) Before(o Entry) bool {
	if !e.Event.CreatedAt.Equal(o.Event.CreatedAt) {
		return e.Event.CreatedAt.Before(o.Event.CreatedAt)
	}
	return e.Arrival < o.Arrival
}

func compareEntries(a, b Entry) int {
	switch {
	case a.Before(b):
		return -1
	case b.Before(a):
		return 1
	default:
		return 0
	}
}

// SortEvents returns a copy of events in fold order, treating the slice
// index as the arrival position.
func SortEvents(events []api.RawEvent) []api.RawEvent {
	entries := make([]Entry, len(events))
	for i, ev := range events {
		entries[i] = Entry{Event: ev, Arrival: uint64(i)}
	}
	slices.SortFunc(entries, compareEntries)

	out := make([]api.RawEvent, len(entries))
	for i, e := range entries {
		out[i] = e.Event
	}
	return out
}

// insertPosition returns the index at which e keeps log sorted.
func insertPosition(log []Entry, e Entry) int {
	idx, _ := slices.BinarySearchFunc(log, e, compareEntries)
	return idx
}
