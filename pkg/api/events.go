package api

import (
	"errors"
	"fmt"
	"time"
)

// EventKind identifies a run history event.
type EventKind string

const (
	EventStepScheduled       EventKind = "StepScheduled"
	EventStepStarted         EventKind = "StepStarted"
	EventStepCompleted       EventKind = "StepCompleted"
	EventStepFailed          EventKind = "StepFailed"
	EventStepErrored         EventKind = "StepErrored"
	EventStepSleeping        EventKind = "StepSleeping"
	EventStepWaitingForEvent EventKind = "StepWaitingForEvent"
	EventStepWaitResult      EventKind = "StepWaitResult"
	EventStepInvoking        EventKind = "StepInvoking"

	// EventStepWaiting is the name older servers use for
	// EventStepWaitingForEvent. It is normalized on intake.
	EventStepWaiting EventKind = "StepWaiting"

	EventFunctionScheduled EventKind = "FunctionScheduled"
	EventFunctionStarted   EventKind = "FunctionStarted"
	EventFunctionCompleted EventKind = "FunctionCompleted"
	EventFunctionFailed    EventKind = "FunctionFailed"
	EventFunctionCancelled EventKind = "FunctionCancelled"
)

var knownKinds = map[EventKind]struct{}{
	EventStepScheduled:       {},
	EventStepStarted:         {},
	EventStepCompleted:       {},
	EventStepFailed:          {},
	EventStepErrored:         {},
	EventStepSleeping:        {},
	EventStepWaitingForEvent: {},
	EventStepWaitResult:      {},
	EventStepInvoking:        {},
	EventStepWaiting:         {},
	EventFunctionScheduled:   {},
	EventFunctionStarted:     {},
	EventFunctionCompleted:   {},
	EventFunctionFailed:      {},
	EventFunctionCancelled:   {},
}

// IsKnownEventKind reports whether kind belongs to the closed set of
// recognized history event kinds.
func IsKnownEventKind(kind EventKind) bool {
	_, ok := knownKinds[kind]
	return ok
}

// Normalize maps legacy aliases onto their canonical kind.
func (k EventKind) Normalize() EventKind {
	if k == EventStepWaiting {
		return EventStepWaitingForEvent
	}
	return k
}

// IsStepEvent reports whether events of this kind belong to a single step
// and therefore must carry a group id.
func (k EventKind) IsStepEvent() bool {
	switch k.Normalize() {
	case EventStepScheduled, EventStepStarted, EventStepCompleted, EventStepFailed,
		EventStepErrored, EventStepSleeping, EventStepWaitingForEvent,
		EventStepWaitResult, EventStepInvoking:
		return true
	default:
		return false
	}
}

// ImpliedStepKind returns the step kind that an event of this kind defines.
// Scheduling and the kinds that can resolve steps of several kinds
// (completions, failures, wait results) return the empty StepKind.
func (k EventKind) ImpliedStepKind() StepKind {
	switch k.Normalize() {
	case EventStepStarted, EventStepErrored:
		return StepKindRun
	case EventStepSleeping:
		return StepKindSleep
	case EventStepWaitingForEvent:
		return StepKindWaitForEvent
	case EventStepInvoking:
		return StepKindInvoke
	default:
		return ""
	}
}

// ErrMalformedEvent is returned by RawEvent.Validate when a required field
// for the event's kind is missing.
var ErrMalformedEvent = errors.New("malformed history event")

// SleepPayload is attached to StepSleeping events.
type SleepPayload struct {
	Until time.Time `json:"until"`
}

// WaitForEventPayload is attached to StepWaitingForEvent events.
type WaitForEventPayload struct {
	EventName  string    `json:"eventName"`
	Expression *string   `json:"expression,omitempty"`
	Timeout    time.Time `json:"timeout"`
}

// WaitResultPayload resolves a sleep or a wait. EventID is set when a
// matching event arrived; Timeout is set when the wait expired.
type WaitResultPayload struct {
	EventID *string `json:"eventID,omitempty"`
	Timeout bool    `json:"timeout"`
}

// CancelPayload describes what cancelled a run.
type CancelPayload struct {
	EventID    *string `json:"eventID,omitempty"`
	Expression *string `json:"expression,omitempty"`
	UserID     *string `json:"userID,omitempty"`
}

// InvokeFunctionPayload is attached to StepInvoking events.
type InvokeFunctionPayload struct {
	CorrelationID string    `json:"correlationID"`
	EventID       string    `json:"eventID"`
	FunctionID    string    `json:"functionID"`
	Timeout       time.Time `json:"timeout"`
}

// InvokeFunctionResultPayload resolves an invoke step.
type InvokeFunctionResultPayload struct {
	EventID *string `json:"eventID,omitempty"`
	RunID   *string `json:"runID,omitempty"`
	Timeout bool    `json:"timeout"`
}

// RawEvent is one entry of a run's history log, exactly as received.
//
// Kind is the discriminant; at most the payload matching Kind is expected
// to be set. Use the accessor methods rather than reading payload pointers
// directly.
type RawEvent struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"groupID,omitempty"`
	Kind      EventKind `json:"type"`
	Attempt   int       `json:"attempt"`
	StepName  string    `json:"stepName,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	URL       string    `json:"url,omitempty"`

	Sleep                *SleepPayload                `json:"sleep,omitempty"`
	WaitForEvent         *WaitForEventPayload         `json:"waitForEvent,omitempty"`
	WaitResult           *WaitResultPayload           `json:"waitResult,omitempty"`
	Cancel               *CancelPayload               `json:"cancel,omitempty"`
	InvokeFunction       *InvokeFunctionPayload       `json:"invokeFunction,omitempty"`
	InvokeFunctionResult *InvokeFunctionResultPayload `json:"invokeFunctionResult,omitempty"`
}

// SleepUntil returns the sleep deadline of a StepSleeping event.
func (e RawEvent) SleepUntil() (time.Time, bool) {
	if e.Sleep == nil || e.Sleep.Until.IsZero() {
		return time.Time{}, false
	}
	return e.Sleep.Until, true
}

// WaitForEventDetails returns the wait definition of a StepWaitingForEvent event.
func (e RawEvent) WaitForEventDetails() (WaitForEventPayload, bool) {
	if e.WaitForEvent == nil || e.WaitForEvent.EventName == "" {
		return WaitForEventPayload{}, false
	}
	return *e.WaitForEvent, true
}

// WaitResultDetails returns how a sleep or wait was resolved.
func (e RawEvent) WaitResultDetails() (WaitResultPayload, bool) {
	if e.WaitResult == nil {
		return WaitResultPayload{}, false
	}
	return *e.WaitResult, true
}

// CancelDetails returns the cancellation cause of a FunctionCancelled event.
func (e RawEvent) CancelDetails() (CancelPayload, bool) {
	if e.Cancel == nil {
		return CancelPayload{}, false
	}
	return *e.Cancel, true
}

// InvokeDetails returns the invoked function of a StepInvoking event.
func (e RawEvent) InvokeDetails() (InvokeFunctionPayload, bool) {
	if e.InvokeFunction == nil || e.InvokeFunction.FunctionID == "" {
		return InvokeFunctionPayload{}, false
	}
	return *e.InvokeFunction, true
}

// InvokeResultDetails returns how an invoke step was resolved.
func (e RawEvent) InvokeResultDetails() (InvokeFunctionResultPayload, bool) {
	if e.InvokeFunctionResult == nil {
		return InvokeFunctionResultPayload{}, false
	}
	return *e.InvokeFunctionResult, true
}

// Validate checks that the fields required by the event's kind are present.
// Unknown kinds are not validated; callers are expected to filter them with
// IsKnownEventKind first.
func (e RawEvent) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: missing id", ErrMalformedEvent)
	}
	if e.CreatedAt.IsZero() {
		return fmt.Errorf("%w: event %s: missing createdAt", ErrMalformedEvent, e.ID)
	}
	kind := e.Kind.Normalize()
	if kind.IsStepEvent() && e.GroupID == "" {
		return fmt.Errorf("%w: %s event %s: missing groupID", ErrMalformedEvent, kind, e.ID)
	}
	if e.Attempt < 0 {
		return fmt.Errorf("%w: %s event %s: negative attempt %d", ErrMalformedEvent, kind, e.ID, e.Attempt)
	}

	switch kind {
	case EventStepSleeping:
		if _, ok := e.SleepUntil(); !ok {
			return fmt.Errorf("%w: %s event %s: missing sleep.until", ErrMalformedEvent, kind, e.ID)
		}
	case EventStepWaitingForEvent:
		if _, ok := e.WaitForEventDetails(); !ok {
			return fmt.Errorf("%w: %s event %s: missing waitForEvent.eventName", ErrMalformedEvent, kind, e.ID)
		}
	case EventStepWaitResult:
		if _, ok := e.WaitResultDetails(); !ok {
			return fmt.Errorf("%w: %s event %s: missing waitResult", ErrMalformedEvent, kind, e.ID)
		}
	case EventStepInvoking:
		if _, ok := e.InvokeDetails(); !ok {
			return fmt.Errorf("%w: %s event %s: missing invokeFunction.functionID", ErrMalformedEvent, kind, e.ID)
		}
	}
	return nil
}
