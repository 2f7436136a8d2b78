package engine

import (
	"fmt"
	"time"

	"github.com/petrijr/fluxotrace/internal/ledger"
	"github.com/petrijr/fluxotrace/pkg/api"
)

// fold applies one entry to the ledger. Entries must be folded in log order.
func (b *Builder) fold(e Entry, notify bool) {
	b.current = e
	b.notify = notify
	ev := e.Event

	if b.run.cancellation != nil {
		b.report(api.Diagnostic{
			Code:    api.DiagAfterCancellation,
			GroupID: ev.GroupID,
			Message: fmt.Sprintf("%s ignored: run was cancelled at %s", ev.Kind, b.run.cancellation.At.Format(time.RFC3339Nano)),
		})
		return
	}

	if b.run.firstEventAt == nil {
		at := ev.CreatedAt
		b.run.firstEventAt = &at
	}

	switch ev.Kind {
	case api.EventFunctionScheduled:
		if b.run.scheduledAt == nil {
			at := ev.CreatedAt
			b.run.scheduledAt = &at
		}
	case api.EventFunctionStarted:
		if b.run.startedAt == nil {
			at := ev.CreatedAt
			b.run.startedAt = &at
		}
	case api.EventFunctionCompleted:
		b.finishRun(ev, api.RunCompleted)
	case api.EventFunctionFailed:
		b.finishRun(ev, api.RunFailed)
	case api.EventFunctionCancelled:
		b.cancelRun(ev)
	case api.EventStepScheduled, api.EventStepStarted, api.EventStepCompleted,
		api.EventStepFailed, api.EventStepErrored, api.EventStepSleeping,
		api.EventStepWaitingForEvent, api.EventStepWaitResult, api.EventStepInvoking:
		b.applyStepEvent(ev)
	}
}

func (b *Builder) finishRun(ev api.RawEvent, status api.RunStatus) {
	if b.run.finished != "" {
		return
	}
	at := ev.CreatedAt
	b.run.finished = status
	b.run.endedAt = &at
}

func (b *Builder) cancelRun(ev api.RawEvent) {
	c := &api.Cancellation{At: ev.CreatedAt, EventID: ev.ID}
	if details, ok := ev.CancelDetails(); ok {
		c.EventID = derefOr(details.EventID, ev.ID)
		c.Expression = derefOr(details.Expression, "")
		c.UserID = derefOr(details.UserID, "")
	}
	b.run.cancellation = c

	for _, s := range b.led.Steps() {
		if s.IsTerminal() {
			continue
		}
		prev := s.State
		if a, ok := s.PendingAttempt(); ok {
			b.led.ApplyAttemptEvent(s, a.Number, ledger.Patch{
				At:      ev.CreatedAt,
				End:     true,
				Outcome: api.OutcomeCancelled,
				EventID: ev.ID,
			})
		}
		s.State = api.StateCancelled
		if ev.CreatedAt.After(s.LastUpdatedAt) {
			s.LastUpdatedAt = ev.CreatedAt
		}
		b.transition(s, prev)
	}
}

func (b *Builder) applyStepEvent(ev api.RawEvent) {
	if ev.Kind == api.EventStepWaitResult {
		if _, ok := b.led.Lookup(ev.GroupID); !ok {
			b.report(api.Diagnostic{
				Code:    api.DiagUnknownStep,
				GroupID: ev.GroupID,
				Message: "wait result for a step that was never seen",
			})
			return
		}
	}

	step, ok := b.led.GetOrCreate(ev, ev.Kind.ImpliedStepKind())
	if !ok {
		return
	}
	prev := step.State

	if step.IsTerminal() {
		b.report(api.Diagnostic{
			Code:    api.DiagTerminalStep,
			GroupID: ev.GroupID,
			Message: fmt.Sprintf("%s ignored: step %q is already %s", ev.Kind, step.Name, step.State),
		})
		return
	}

	latest := true
	if a, ok := step.LatestAttempt(); ok && ev.Attempt < a.Number && !resolvesPending(step, ev.Kind) {
		latest = false
		b.report(api.Diagnostic{
			Code:    api.DiagStaleAttempt,
			GroupID: ev.GroupID,
			Message: fmt.Sprintf("%s for attempt %d after attempt %d; step state unchanged", ev.Kind, ev.Attempt, a.Number),
		})
	}

	patch := ledger.Patch{At: ev.CreatedAt, URL: ev.URL, EventID: ev.ID}

	switch ev.Kind {
	case api.EventStepScheduled:
		if a, ok := step.Attempt(ev.Attempt); ok && a.StartedAt != nil {
			b.report(api.Diagnostic{
				Code:    api.DiagOrderingAnomaly,
				GroupID: ev.GroupID,
				Message: fmt.Sprintf("attempt %d scheduled after it started", ev.Attempt),
			})
			b.led.ApplyAttemptEvent(step, ev.Attempt, patch)
			break
		}
		patch.Schedule = true
		b.led.ApplyAttemptEvent(step, ev.Attempt, patch)
		if latest {
			step.State = api.StateScheduled
		}

	case api.EventStepStarted:
		patch.Start = true
		b.led.ApplyAttemptEvent(step, ev.Attempt, patch)
		if latest {
			step.State = api.StateRunning
		}

	case api.EventStepErrored:
		patch.End = true
		patch.Outcome = api.OutcomeErrored
		b.led.ApplyAttemptEvent(step, ev.Attempt, patch)
		if latest {
			next := b.led.ApplyAttemptEvent(step, ev.Attempt+1, ledger.Patch{At: ev.CreatedAt, EventID: ev.ID})
			if next.StartedAt == nil {
				step.State = api.StateScheduled
			}
		}

	case api.EventStepFailed:
		patch.End = true
		patch.Outcome = api.OutcomeFailed
		b.led.ApplyAttemptEvent(step, b.resolvingAttempt(step, ev), patch)
		if latest {
			step.State = api.StateFailed
			if step.Kind == api.StepKindInvoke && step.Invoke != nil {
				at := ev.CreatedAt
				step.Invoke.ResolvedAt = &at
			}
		}

	case api.EventStepCompleted:
		if !latest {
			patch.End = true
			patch.Outcome = api.OutcomeCompleted
			b.led.ApplyAttemptEvent(step, ev.Attempt, patch)
			break
		}
		b.completeStep(step, ev, patch)

	case api.EventStepSleeping:
		patch.Start = true
		b.led.ApplyAttemptEvent(step, ev.Attempt, patch)
		until, _ := ev.SleepUntil()
		step.Sleep = &api.SleepDetails{Until: until}
		if latest {
			step.State = api.StateSleeping
		}

	case api.EventStepWaitingForEvent:
		patch.Start = true
		b.led.ApplyAttemptEvent(step, ev.Attempt, patch)
		w, _ := ev.WaitForEventDetails()
		step.Wait = &api.WaitDetails{
			EventName:  w.EventName,
			Expression: derefOr(w.Expression, ""),
			TimeoutAt:  w.Timeout,
		}
		if latest {
			step.State = api.StateWaiting
		}

	case api.EventStepInvoking:
		patch.Start = true
		b.led.ApplyAttemptEvent(step, ev.Attempt, patch)
		inv, _ := ev.InvokeDetails()
		step.Invoke = &api.InvokeDetails{
			FunctionID:    inv.FunctionID,
			CorrelationID: inv.CorrelationID,
			TimeoutAt:     inv.Timeout,
		}
		if latest {
			step.State = api.StateWaiting
		}

	case api.EventStepWaitResult:
		switch step.Kind {
		case api.StepKindSleep, api.StepKindWaitForEvent:
			b.completeStep(step, ev, patch)
		default:
			b.report(api.Diagnostic{
				Code:    api.DiagKindConflict,
				GroupID: ev.GroupID,
				Message: fmt.Sprintf("wait result for a %s step", step.Kind),
			})
			return
		}
	}

	if ev.CreatedAt.After(step.LastUpdatedAt) {
		step.LastUpdatedAt = ev.CreatedAt
	}
	b.transition(step, prev)
}

// completeStep resolves step from a StepCompleted or StepWaitResult event.
func (b *Builder) completeStep(step *api.Step, ev api.RawEvent, patch ledger.Patch) {
	patch.End = true
	patch.Outcome = api.OutcomeCompleted
	b.led.ApplyAttemptEvent(step, b.resolvingAttempt(step, ev), patch)
	at := ev.CreatedAt

	switch step.Kind {
	case api.StepKindRun, api.StepKindSleep:
		step.State = api.StateCompleted

	case api.StepKindWaitForEvent:
		step.State = api.StateCompleted
		if step.Wait == nil {
			step.Wait = &api.WaitDetails{}
		}
		step.Wait.ResolvedAt = &at
		if res, ok := ev.WaitResultDetails(); ok {
			step.Wait.MatchedEventID = derefOr(res.EventID, "")
			step.Wait.TimedOut = res.Timeout
			if res.Timeout {
				step.State = api.StateTimedOut
			}
		}

	case api.StepKindInvoke:
		step.State = api.StateCompleted
		if step.Invoke == nil {
			step.Invoke = &api.InvokeDetails{}
		}
		step.Invoke.ResolvedAt = &at
		if res, ok := ev.InvokeResultDetails(); ok {
			step.Invoke.ResultRunID = derefOr(res.RunID, "")
			step.Invoke.TimedOut = res.Timeout
			if res.Timeout {
				step.State = api.StateTimedOut
			}
		}
	}
}

// resolvingAttempt picks the attempt a resolving event closes. Sleep, wait
// and invoke resolutions are emitted by the server and may carry attempt 0
// regardless of which attempt is pending.
func (b *Builder) resolvingAttempt(step *api.Step, ev api.RawEvent) int {
	if step.Kind != api.StepKindRun {
		if a, ok := step.PendingAttempt(); ok {
			return a.Number
		}
	}
	return ev.Attempt
}

// resolvesPending reports whether an event of kind closes whatever attempt
// of step is pending rather than the attempt it names.
func resolvesPending(step *api.Step, kind api.EventKind) bool {
	if step.Kind == api.StepKindRun {
		return false
	}
	switch kind {
	case api.EventStepCompleted, api.EventStepFailed, api.EventStepWaitResult:
		return true
	default:
		return false
	}
}

func (b *Builder) transition(step *api.Step, from api.StepState) {
	if step.State == from || !b.notify {
		return
	}
	b.observer.OnStepTransition(step.GroupID, step.Name, from, step.State)
}

func derefOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
