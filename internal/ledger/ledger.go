// Package ledger correlates history events into per-step attempt records.
//
// A Ledger is the mutable state behind a timeline builder. It is not safe
// for concurrent use.
package ledger

import (
	"fmt"
	"slices"
	"time"

	"github.com/petrijr/fluxotrace/pkg/api"
)

// ReportFunc receives data-integrity diagnostics.
type ReportFunc func(d api.Diagnostic)

// Ledger maps correlation ids to steps and keeps first-seen order.
type Ledger struct {
	steps  map[string]*api.Step
	order  []*api.Step
	byName map[string][]string
	report ReportFunc

	// provisional holds steps created by kind-neutral events, keyed by
	// primary group id. Their kind is a run default until a kind-defining
	// event fixes it.
	provisional map[string]struct{}
}

// New creates an empty Ledger. report may be nil.
func New(report ReportFunc) *Ledger {
	if report == nil {
		report = func(api.Diagnostic) {}
	}
	return &Ledger{
		steps:       make(map[string]*api.Step),
		byName:      make(map[string][]string),
		report:      report,
		provisional: make(map[string]struct{}),
	}
}

// Lookup returns the step correlated by groupID.
func (l *Ledger) Lookup(groupID string) (*api.Step, bool) {
	s, ok := l.steps[groupID]
	return s, ok
}

// Steps returns the steps in first-seen order. The returned pointers are
// owned by the ledger.
func (l *Ledger) Steps() []*api.Step {
	return l.order
}

// Len returns the number of distinct steps.
func (l *Ledger) Len() int {
	return len(l.order)
}

// GroupIDsForName returns every group id that has represented stepName.
func (l *Ledger) GroupIDsForName(stepName string) []string {
	return slices.Clone(l.byName[stepName])
}

// GetOrCreate returns the step for ev.GroupID, creating it on first sight.
//
// kind is the step kind implied by the event. The empty kind accepts any
// existing step and creates a provisional run step; the first non-empty
// kind applied to a provisional step becomes its kind. When kind conflicts
// with a step whose kind is already fixed, nothing is created, a
// kind_conflict diagnostic is reported and ok is false.
//
// An unseen group id is merged into an existing step when the event is a
// retry (attempt > 0) of a non-terminal step with the same name and a
// compatible kind whose latest attempt immediately precedes or equals ev.Attempt.
func (l *Ledger) GetOrCreate(ev api.RawEvent, kind api.StepKind) (step *api.Step, ok bool) {
	if s, found := l.steps[ev.GroupID]; found {
		if !l.adopt(s, kind) && kind != "" && s.Kind != kind {
			l.report(api.Diagnostic{
				Code:    api.DiagKindConflict,
				EventID: ev.ID,
				GroupID: ev.GroupID,
				Message: fmt.Sprintf("%s implies a %s step but the step was first seen as %s", ev.Kind, kind, s.Kind),
			})
			return nil, false
		}
		if s.Name == "" && ev.StepName != "" {
			s.Name = ev.StepName
			l.byName[ev.StepName] = append(l.byName[ev.StepName], s.GroupID)
		}
		return s, true
	}

	if s := l.retryTarget(ev, kind); s != nil {
		l.adopt(s, kind)
		l.steps[ev.GroupID] = s
		s.GroupIDs = append(s.GroupIDs, ev.GroupID)
		l.byName[ev.StepName] = append(l.byName[ev.StepName], ev.GroupID)
		return s, true
	}

	if kind == "" {
		kind = api.StepKindRun
		l.provisional[ev.GroupID] = struct{}{}
	}
	s := &api.Step{
		GroupID:       ev.GroupID,
		GroupIDs:      []string{ev.GroupID},
		Name:          ev.StepName,
		Kind:          kind,
		FirstSeenAt:   ev.CreatedAt,
		LastUpdatedAt: ev.CreatedAt,
	}
	l.steps[ev.GroupID] = s
	l.order = append(l.order, s)
	if ev.StepName != "" {
		l.byName[ev.StepName] = append(l.byName[ev.StepName], ev.GroupID)
	}
	return s, true
}

// IsProvisional reports whether step's kind has not been fixed yet.
func (l *Ledger) IsProvisional(step *api.Step) bool {
	_, ok := l.provisional[step.GroupID]
	return ok
}

// adopt fixes the kind of a provisional step. It reports whether step was
// provisional and kind was non-empty.
func (l *Ledger) adopt(step *api.Step, kind api.StepKind) bool {
	if kind == "" || !l.IsProvisional(step) {
		return false
	}
	step.Kind = kind
	delete(l.provisional, step.GroupID)
	return true
}

func (l *Ledger) retryTarget(ev api.RawEvent, kind api.StepKind) *api.Step {
	if ev.Attempt == 0 || ev.StepName == "" {
		return nil
	}
	ids := l.byName[ev.StepName]
	for i := len(ids) - 1; i >= 0; i-- {
		s := l.steps[ids[i]]
		if s.IsTerminal() || (kind != "" && s.Kind != kind && !l.IsProvisional(s)) {
			continue
		}
		latest, ok := s.LatestAttempt()
		if !ok {
			continue
		}
		if latest.Number == ev.Attempt || latest.Number == ev.Attempt-1 {
			return s
		}
	}
	return nil
}

// Patch describes the change one event makes to an attempt.
type Patch struct {
	// At is the event time.
	At time.Time
	// Schedule records At as the attempt's scheduled time.
	Schedule bool
	// Start records At as the attempt start if no start is known yet.
	Start bool
	// End records At as the attempt end.
	End bool
	// Outcome replaces a pending outcome. The empty outcome leaves it as is.
	Outcome api.AttemptOutcome
	// URL replaces the attempt URL when non-empty.
	URL string
	// EventID is used for diagnostics only.
	EventID string
}

// ApplyAttemptEvent upserts attempt number of step and applies patch.
//
// Attempts are ordered by number, not by arrival. Creating attempt N while
// an earlier attempt is still pending forces the earlier attempt to errored
// and reports an ordering_anomaly. Creating an attempt older than a pending
// one reports a stale_attempt and never leaves the older attempt pending.
// A terminal attempt outcome is never changed.
func (l *Ledger) ApplyAttemptEvent(step *api.Step, number int, patch Patch) *api.Attempt {
	a, ok := step.Attempt(number)
	if !ok {
		a = l.insertAttempt(step, number, patch)
	}

	if patch.Schedule {
		a.ScheduledAt = patch.At
	}
	if patch.Start && a.StartedAt == nil {
		at := patch.At
		a.StartedAt = &at
	}
	if patch.End {
		at := patch.At
		a.EndedAt = &at
	}
	if patch.Outcome != "" && a.Outcome == api.OutcomePending {
		a.Outcome = patch.Outcome
	}
	if patch.URL != "" {
		a.URL = patch.URL
	}
	if patch.At.After(step.LastUpdatedAt) {
		step.LastUpdatedAt = patch.At
	}
	return a
}

func (l *Ledger) insertAttempt(step *api.Step, number int, patch Patch) *api.Attempt {
	outcome := api.OutcomePending

	for i := range step.Attempts {
		prev := &step.Attempts[i]
		if prev.Outcome != api.OutcomePending {
			continue
		}
		if prev.Number < number {
			at := patch.At
			prev.Outcome = api.OutcomeErrored
			if prev.EndedAt == nil {
				prev.EndedAt = &at
			}
			l.report(api.Diagnostic{
				Code:    api.DiagOrderingAnomaly,
				EventID: patch.EventID,
				GroupID: step.GroupID,
				Message: fmt.Sprintf("attempt %d arrived while attempt %d was pending; marked attempt %d errored", number, prev.Number, prev.Number),
			})
		} else {
			outcome = api.OutcomeErrored
			l.report(api.Diagnostic{
				Code:    api.DiagStaleAttempt,
				EventID: patch.EventID,
				GroupID: step.GroupID,
				Message: fmt.Sprintf("attempt %d arrived after attempt %d was scheduled", number, prev.Number),
			})
		}
	}

	idx, _ := slices.BinarySearchFunc(step.Attempts, number, func(a api.Attempt, n int) int {
		return a.Number - n
	})
	step.Attempts = slices.Insert(step.Attempts, idx, api.Attempt{
		Number:      number,
		ScheduledAt: patch.At,
		Outcome:     outcome,
	})
	return &step.Attempts[idx]
}

// Report records a diagnostic through the ledger's report function.
func (l *Ledger) Report(d api.Diagnostic) {
	l.report(d)
}
