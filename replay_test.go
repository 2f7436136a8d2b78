package fluxotrace

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/fluxotrace/pkg/api"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func ev(kind api.EventKind, group string, attempt, sec int) RawEvent {
	return RawEvent{
		ID:        fmt.Sprintf("%s-%s-%d", kind, group, sec),
		GroupID:   group,
		StepName:  group,
		Kind:      kind,
		Attempt:   attempt,
		CreatedAt: t0.Add(time.Duration(sec) * time.Second),
	}
}

// parallelHistory has two interleaved steps, one retried, and arrives
// partly out of order.
func parallelHistory() []RawEvent {
	return []RawEvent{
		{ID: "fs", Kind: api.EventFunctionStarted, CreatedAt: t0},
		ev(api.EventStepScheduled, "A", 0, 1),
		ev(api.EventStepScheduled, "B", 0, 1),
		ev(api.EventStepStarted, "B", 0, 2),
		ev(api.EventStepStarted, "A", 0, 2),
		ev(api.EventStepErrored, "A", 0, 4),
		ev(api.EventStepCompleted, "B", 0, 3),
		ev(api.EventStepStarted, "A", 1, 5),
		{ID: "unknown", Kind: "StepTeleported", CreatedAt: t0.Add(5 * time.Second)},
		ev(api.EventStepCompleted, "A", 1, 6),
		{ID: "fc", Kind: api.EventFunctionCompleted, CreatedAt: t0.Add(7 * time.Second)},
	}
}

func TestFrame(t *testing.T) {
	events := parallelHistory()

	empty := Frame(events, 0)
	require.Empty(t, empty.Steps)
	require.Equal(t, RunScheduled, empty.Status)

	mid := Frame(events, 4)
	require.Len(t, mid.Steps, 2)
	require.Equal(t, RunRunning, mid.Status)

	full, _ := Build(events)
	require.Equal(t, full, Frame(events, len(events)))
	require.Equal(t, full, Frame(events, len(events)+10))
	require.Equal(t, empty, Frame(events, -3))
}

func TestReplayer_NextMatchesFrame(t *testing.T) {
	events := parallelHistory()
	r := NewReplayer(events)
	require.Equal(t, 0, r.Frame())
	require.Equal(t, len(events), r.Len())

	for r.Next() {
		if diff := cmp.Diff(Frame(events, r.Frame()), r.Timeline()); diff != "" {
			t.Fatalf("frame %d differs (-frame +replayer):\n%s", r.Frame(), diff)
		}
	}
	require.Equal(t, len(events), r.Frame())
	require.False(t, r.Next())
	require.Equal(t, RunCompleted, r.Timeline().Status)
}

func TestReplayer_SeekBackwardsRebuilds(t *testing.T) {
	events := parallelHistory()
	r := NewReplayer(events)

	r.Seek(len(events))
	require.Equal(t, RunCompleted, r.Timeline().Status)

	r.Seek(3)
	require.Equal(t, 3, r.Frame())
	require.Equal(t, Frame(events, 3), r.Timeline())

	r.Seek(7)
	require.Equal(t, Frame(events, 7), r.Timeline())

	r.Seek(-1)
	require.Equal(t, 0, r.Frame())
	require.Empty(t, r.Timeline().Steps)
}

func TestReplayer_CopiesInput(t *testing.T) {
	events := parallelHistory()
	r := NewReplayer(events)
	events[1].GroupID = "mutated"

	r.Seek(len(events))
	_, ok := r.Timeline().StepByGroupID("A")
	require.True(t, ok)
}

func TestReplayer_ObserverAndDiagnostics(t *testing.T) {
	metrics := &BasicMetrics{}
	events := append(parallelHistory(), RawEvent{ID: "bad", Kind: api.EventStepStarted, CreatedAt: t0.Add(8 * time.Second)})
	r := NewReplayerWithObserver(events, metrics)
	r.Seek(len(events))

	diags := r.Diagnostics()
	require.Len(t, diags, 1)
	require.Equal(t, api.DiagMalformedEvent, diags[0].Code)

	snap := metrics.Snapshot()
	require.Equal(t, int64(1), snap.EventsUnknown)
	require.Equal(t, int64(1), snap.Diagnostics)
}

func TestVerifyIncremental(t *testing.T) {
	require.NoError(t, VerifyIncremental(context.Background(), parallelHistory()))
	require.NoError(t, VerifyIncremental(context.Background(), nil))
}

func TestVerifyIncremental_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := VerifyIncremental(ctx, parallelHistory())
	require.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestBuildFromStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryEventStore()
	require.NoError(t, store.AppendEvents(ctx, "run-1", parallelHistory()...))

	tl, diags, err := BuildFromStore(ctx, store, "run-1")
	require.NoError(t, err)
	require.Empty(t, diags)
	require.Equal(t, RunCompleted, tl.Status)
	require.Len(t, tl.Steps, 2)

	_, _, err = BuildFromStore(ctx, store, "missing")
	require.Error(t, err)
}

func TestSortEvents(t *testing.T) {
	sorted := SortEvents(parallelHistory())
	for i := 1; i < len(sorted); i++ {
		require.False(t, sorted[i].CreatedAt.Before(sorted[i-1].CreatedAt))
	}
	// Equal timestamps keep their input order.
	require.Equal(t, "StepScheduled-A-1", sorted[1].ID)
	require.Equal(t, "StepScheduled-B-1", sorted[2].ID)
}
