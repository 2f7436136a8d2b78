package api

import "time"

// StepKind classifies what a step does. It is fixed by the first event
// seen for the step.
type StepKind string

const (
	StepKindRun          StepKind = "run"
	StepKindSleep        StepKind = "sleep"
	StepKindWaitForEvent StepKind = "waitForEvent"
	StepKindInvoke       StepKind = "invoke"
)

// StepState is the derived lifecycle state of a step.
type StepState string

const (
	StateScheduled StepState = "scheduled"
	StateRunning   StepState = "running"
	StateSleeping  StepState = "sleeping"
	StateWaiting   StepState = "waiting"
	StateCompleted StepState = "completed"
	StateTimedOut  StepState = "timedOut"
	StateFailed    StepState = "failed"
	StateCancelled StepState = "cancelled"
)

// IsTerminal reports whether no further event may move a step out of s.
func (s StepState) IsTerminal() bool {
	switch s {
	case StateCompleted, StateTimedOut, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// AttemptOutcome is the result of a single execution try.
type AttemptOutcome string

const (
	OutcomePending   AttemptOutcome = "pending"
	OutcomeCompleted AttemptOutcome = "completed"
	OutcomeFailed    AttemptOutcome = "failed"
	OutcomeErrored   AttemptOutcome = "errored"
	OutcomeCancelled AttemptOutcome = "cancelled"
)

// RunStatus is the run-level status derived from all steps.
type RunStatus string

const (
	RunScheduled RunStatus = "scheduled"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// IsTerminal reports whether the run has finished.
func (s RunStatus) IsTerminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunCancelled
}

// Attempt is one execution try of a step.
type Attempt struct {
	Number      int            `json:"number" yaml:"number"`
	ScheduledAt time.Time      `json:"scheduledAt" yaml:"scheduledAt"`
	StartedAt   *time.Time     `json:"startedAt,omitempty" yaml:"startedAt,omitempty"`
	EndedAt     *time.Time     `json:"endedAt,omitempty" yaml:"endedAt,omitempty"`
	Outcome     AttemptOutcome `json:"outcome" yaml:"outcome"`
	URL         string         `json:"url,omitempty" yaml:"url,omitempty"`
}

// Duration returns how long the attempt ran, if both ends are known.
func (a Attempt) Duration() (time.Duration, bool) {
	if a.StartedAt == nil || a.EndedAt == nil {
		return 0, false
	}
	return a.EndedAt.Sub(*a.StartedAt), true
}

// SleepDetails holds the resolved data of a sleep step.
type SleepDetails struct {
	Until time.Time `json:"until" yaml:"until"`
}

// WaitDetails holds the definition and resolution of a wait-for-event step.
type WaitDetails struct {
	EventName      string     `json:"eventName" yaml:"eventName"`
	Expression     string     `json:"expression,omitempty" yaml:"expression,omitempty"`
	TimeoutAt      time.Time  `json:"timeoutAt" yaml:"timeoutAt"`
	MatchedEventID string     `json:"matchedEventID,omitempty" yaml:"matchedEventID,omitempty"`
	TimedOut       bool       `json:"timedOut" yaml:"timedOut"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty" yaml:"resolvedAt,omitempty"`
}

// InvokeDetails holds the definition and resolution of an invoke step.
type InvokeDetails struct {
	FunctionID    string     `json:"functionID" yaml:"functionID"`
	CorrelationID string     `json:"correlationID,omitempty" yaml:"correlationID,omitempty"`
	TimeoutAt     time.Time  `json:"timeoutAt" yaml:"timeoutAt"`
	ResultRunID   string     `json:"resultRunID,omitempty" yaml:"resultRunID,omitempty"`
	TimedOut      bool       `json:"timedOut" yaml:"timedOut"`
	ResolvedAt    *time.Time `json:"resolvedAt,omitempty" yaml:"resolvedAt,omitempty"`
}

// Step is one logical unit of work in a run, possibly retried.
type Step struct {
	// GroupID is the correlation id the step was first seen under.
	GroupID string `json:"groupID" yaml:"groupID"`
	// GroupIDs lists every correlation id merged into this step, GroupID first.
	GroupIDs []string `json:"groupIDs" yaml:"groupIDs"`

	Name     string    `json:"name" yaml:"name"`
	Kind     StepKind  `json:"kind" yaml:"kind"`
	State    StepState `json:"state" yaml:"state"`
	Attempts []Attempt `json:"attempts" yaml:"attempts"`

	Sleep  *SleepDetails  `json:"sleep,omitempty" yaml:"sleep,omitempty"`
	Wait   *WaitDetails   `json:"wait,omitempty" yaml:"wait,omitempty"`
	Invoke *InvokeDetails `json:"invoke,omitempty" yaml:"invoke,omitempty"`

	FirstSeenAt   time.Time `json:"firstSeenAt" yaml:"firstSeenAt"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt" yaml:"lastUpdatedAt"`
}

// IsTerminal reports whether the step reached a terminal state.
func (s *Step) IsTerminal() bool {
	return s.State.IsTerminal()
}

// LatestAttempt returns the attempt with the highest number.
func (s *Step) LatestAttempt() (*Attempt, bool) {
	if len(s.Attempts) == 0 {
		return nil, false
	}
	return &s.Attempts[len(s.Attempts)-1], true
}

// Attempt returns the attempt with the given number.
func (s *Step) Attempt(number int) (*Attempt, bool) {
	for i := range s.Attempts {
		if s.Attempts[i].Number == number {
			return &s.Attempts[i], true
		}
	}
	return nil, false
}

// PendingAttempt returns the single non-terminal attempt, if any.
func (s *Step) PendingAttempt() (*Attempt, bool) {
	for i := range s.Attempts {
		if s.Attempts[i].Outcome == OutcomePending {
			return &s.Attempts[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy of the step.
func (s *Step) Clone() Step {
	out := *s
	out.GroupIDs = append([]string(nil), s.GroupIDs...)
	out.Attempts = make([]Attempt, len(s.Attempts))
	for i, a := range s.Attempts {
		out.Attempts[i] = a
		out.Attempts[i].StartedAt = cloneTime(a.StartedAt)
		out.Attempts[i].EndedAt = cloneTime(a.EndedAt)
	}
	if s.Sleep != nil {
		v := *s.Sleep
		out.Sleep = &v
	}
	if s.Wait != nil {
		v := *s.Wait
		v.ResolvedAt = cloneTime(s.Wait.ResolvedAt)
		out.Wait = &v
	}
	if s.Invoke != nil {
		v := *s.Invoke
		v.ResolvedAt = cloneTime(s.Invoke.ResolvedAt)
		out.Invoke = &v
	}
	return out
}

// Cancellation records the FunctionCancelled event that ended a run.
type Cancellation struct {
	At         time.Time `json:"at" yaml:"at"`
	EventID    string    `json:"eventID,omitempty" yaml:"eventID,omitempty"`
	Expression string    `json:"expression,omitempty" yaml:"expression,omitempty"`
	UserID     string    `json:"userID,omitempty" yaml:"userID,omitempty"`
}

// Timeline is an immutable snapshot of a run's reconstructed history.
// Consumers must treat it as read-only; builders return a new value for
// every change.
type Timeline struct {
	Steps        []Step        `json:"steps" yaml:"steps"`
	Status       RunStatus     `json:"status" yaml:"status"`
	StartedAt    *time.Time    `json:"startedAt,omitempty" yaml:"startedAt,omitempty"`
	EndedAt      *time.Time    `json:"endedAt,omitempty" yaml:"endedAt,omitempty"`
	Cancellation *Cancellation `json:"cancellation,omitempty" yaml:"cancellation,omitempty"`
}

// StepByName returns the first step (in first-seen order) with the given name.
func (t *Timeline) StepByName(name string) (*Step, bool) {
	for i := range t.Steps {
		if t.Steps[i].Name == name {
			return &t.Steps[i], true
		}
	}
	return nil, false
}

// StepByGroupID returns the step correlated by groupID, including ids merged
// into a step after a retry.
func (t *Timeline) StepByGroupID(groupID string) (*Step, bool) {
	for i := range t.Steps {
		for _, id := range t.Steps[i].GroupIDs {
			if id == groupID {
				return &t.Steps[i], true
			}
		}
	}
	return nil, false
}

// Duration returns the run duration when both start and end are known.
func (t *Timeline) Duration() (time.Duration, bool) {
	if t.StartedAt == nil || t.EndedAt == nil {
		return 0, false
	}
	return t.EndedAt.Sub(*t.StartedAt), true
}

// IsTerminal reports whether the run has finished.
func (t *Timeline) IsTerminal() bool {
	return t.Status.IsTerminal()
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
