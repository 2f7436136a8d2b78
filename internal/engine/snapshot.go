package engine

import (
	"time"

	"github.com/petrijr/fluxotrace/pkg/api"
)

// project copies the ledger into an immutable Timeline.
func (b *Builder) project() *api.Timeline {
	steps := b.led.Steps()
	t := &api.Timeline{
		Steps: make([]api.Step, len(steps)),
	}
	for i, s := range steps {
		t.Steps[i] = s.Clone()
	}

	if b.run.cancellation != nil {
		c := *b.run.cancellation
		t.Cancellation = &c
	}
	t.Status = deriveStatus(t.Steps, b.run)

	switch {
	case b.run.startedAt != nil:
		t.StartedAt = cloneTime(b.run.startedAt)
	case b.run.scheduledAt != nil:
		t.StartedAt = cloneTime(b.run.scheduledAt)
	default:
		t.StartedAt = cloneTime(b.run.firstEventAt)
	}

	if t.Status.IsTerminal() {
		switch {
		case b.run.cancellation != nil:
			at := b.run.cancellation.At
			t.EndedAt = &at
		case b.run.endedAt != nil:
			t.EndedAt = cloneTime(b.run.endedAt)
		default:
			t.EndedAt = latestStepUpdate(t.Steps)
		}
	}
	return t
}

// deriveStatus computes the run status. Cancellation wins over failure,
// failure over completion.
func deriveStatus(steps []api.Step, run runState) api.RunStatus {
	if run.cancellation != nil {
		return api.RunCancelled
	}

	allDone := len(steps) > 0
	started := run.startedAt != nil
	for _, s := range steps {
		switch s.State {
		case api.StateCancelled:
			return api.RunCancelled
		case api.StateFailed:
			return api.RunFailed
		case api.StateCompleted, api.StateTimedOut:
		default:
			allDone = false
		}
		if s.State != api.StateScheduled || hasStartedAttempt(s) {
			started = true
		}
	}

	if run.finished != "" {
		return run.finished
	}
	if allDone {
		return api.RunCompleted
	}
	if !started {
		return api.RunScheduled
	}
	return api.RunRunning
}

// hasStartedAttempt reports whether any try of s began executing. A step
// waiting for its retry is scheduled again but the run is not.
func hasStartedAttempt(s api.Step) bool {
	for _, a := range s.Attempts {
		if a.StartedAt != nil {
			return true
		}
	}
	return false
}

func latestStepUpdate(steps []api.Step) *time.Time {
	var latest *time.Time
	for _, s := range steps {
		if latest == nil || s.LastUpdatedAt.After(*latest) {
			at := s.LastUpdatedAt
			latest = &at
		}
	}
	return latest
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
