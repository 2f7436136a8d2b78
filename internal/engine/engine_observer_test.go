package engine

import (
	"sync"
	"testing"

	"github.com/petrijr/fluxotrace/pkg/api"
)

// fakeObserver records all calls from the builder so we can assert on them.
type fakeObserver struct {
	mu sync.Mutex

	applied     []string
	ignored     map[api.IgnoreReason]int
	diagnostics []api.Diagnostic
	transitions []transition
	rebuilds    []int
}

type transition struct {
	GroupID string
	From    api.StepState
	To      api.StepState
}

func newFakeObserver() *fakeObserver {
	return &fakeObserver{ignored: map[api.IgnoreReason]int{}}
}

func (o *fakeObserver) OnEventApplied(ev api.RawEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.applied = append(o.applied, ev.ID)
}

func (o *fakeObserver) OnEventIgnored(ev api.RawEvent, reason api.IgnoreReason) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ignored[reason]++
}

func (o *fakeObserver) OnDiagnostic(d api.Diagnostic) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.diagnostics = append(o.diagnostics, d)
}

func (o *fakeObserver) OnStepTransition(groupID, stepName string, from, to api.StepState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, transition{GroupID: groupID, From: from, To: to})
}

func (o *fakeObserver) OnRebuild(events int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rebuilds = append(o.rebuilds, events)
}

func TestObserverReceivesTransitions(t *testing.T) {
	obs := newFakeObserver()
	b := NewBuilderWithConfig(Config{Observer: obs})
	b.AppendAll(happyPath())

	want := []transition{
		{GroupID: "A", From: "", To: api.StateScheduled},
		{GroupID: "A", From: api.StateScheduled, To: api.StateRunning},
		{GroupID: "A", From: api.StateRunning, To: api.StateCompleted},
	}
	if len(obs.transitions) != len(want) {
		t.Fatalf("expected %d transitions, got %d: %+v", len(want), len(obs.transitions), obs.transitions)
	}
	for i := range want {
		if obs.transitions[i] != want[i] {
			t.Fatalf("transition %d: want %+v, got %+v", i, want[i], obs.transitions[i])
		}
	}
	if len(obs.applied) != 3 {
		t.Fatalf("expected 3 applied events, got %d", len(obs.applied))
	}
	if len(obs.rebuilds) != 0 {
		t.Fatalf("in-order history must not rebuild, got %v", obs.rebuilds)
	}
}

func TestObserverIgnoredEvents(t *testing.T) {
	obs := newFakeObserver()
	b := NewBuilderWithConfig(Config{Observer: obs})

	ev := happyPath()[0]
	b.Append(ev)
	b.Append(ev)
	b.Append(api.RawEvent{ID: "f", Kind: "FutureKind", CreatedAt: at(1)})

	if obs.ignored[api.IgnoreDuplicate] != 1 {
		t.Fatalf("expected 1 duplicate, got %d", obs.ignored[api.IgnoreDuplicate])
	}
	if obs.ignored[api.IgnoreUnknownKind] != 1 {
		t.Fatalf("expected 1 unknown kind, got %d", obs.ignored[api.IgnoreUnknownKind])
	}
	if len(obs.diagnostics) != 0 {
		t.Fatalf("ignored events must not produce diagnostics, got %v", obs.diagnostics)
	}
}

func TestObserverRebuildOnlyReportsNewEvent(t *testing.T) {
	obs := newFakeObserver()
	b := NewBuilderWithConfig(Config{Observer: obs})

	b.Append(stepEvent(api.EventStepScheduled, "A", 0, 1))
	b.Append(stepEvent(api.EventStepStarted, "A", 0, 3))
	obs.transitions = nil

	b.Append(stepEvent(api.EventStepScheduled, "B", 0, 2))

	if len(obs.rebuilds) != 1 || obs.rebuilds[0] != 3 {
		t.Fatalf("expected one rebuild of 3 events, got %v", obs.rebuilds)
	}
	want := []transition{{GroupID: "B", From: "", To: api.StateScheduled}}
	if len(obs.transitions) != 1 || obs.transitions[0] != want[0] {
		t.Fatalf("expected only the late step transition, got %+v", obs.transitions)
	}
	if got := b.Snapshot().Steps; got[0].Name != "A" || got[1].Name != "B" {
		t.Fatalf("unexpected step order: %s, %s", got[0].Name, got[1].Name)
	}
}

func TestObserverDiagnostics(t *testing.T) {
	obs := newFakeObserver()
	b := NewBuilderWithConfig(Config{Observer: obs})

	b.Append(sleeping("X", 1, at(60)))
	b.Append(stepEvent(api.EventStepStarted, "X", 0, 2))
	b.Append(stepEvent(api.EventStepSleeping, "Y", 0, 3))

	if len(obs.diagnostics) != 2 {
		t.Fatalf("expected 2 diagnostics, got %v", obs.diagnostics)
	}
	if obs.diagnostics[0].Code != api.DiagKindConflict {
		t.Fatalf("expected kind conflict first, got %s", obs.diagnostics[0].Code)
	}
	if obs.diagnostics[1].Code != api.DiagMalformedEvent {
		t.Fatalf("expected malformed event second, got %s", obs.diagnostics[1].Code)
	}
	if obs.diagnostics[0].EventID == "" {
		t.Fatalf("fold diagnostics must carry the event id")
	}
}

func TestBasicMetricsCountsBuilderActivity(t *testing.T) {
	m := &api.BasicMetrics{}
	b := NewBuilderWithConfig(Config{Observer: m})
	b.AppendAll(oneRetry())
	b.Append(oneRetry()[0])

	snap := m.Snapshot()
	if snap.EventsApplied != 6 {
		t.Fatalf("expected 6 applied events, got %d", snap.EventsApplied)
	}
	if snap.Duplicates != 1 {
		t.Fatalf("expected 1 duplicate, got %d", snap.Duplicates)
	}
	if snap.StepsCreated != 1 || snap.StepsCompleted != 1 {
		t.Fatalf("unexpected step counters: %+v", snap)
	}
}
