package api

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// IgnoreReason explains why an event was dropped without touching the ledger.
type IgnoreReason string

const (
	// IgnoreUnknownKind marks events from newer servers the builder does not
	// understand. They are expected and not treated as anomalies.
	IgnoreUnknownKind IgnoreReason = "unknown_kind"
	// IgnoreDuplicate marks an event whose id was already applied.
	IgnoreDuplicate IgnoreReason = "duplicate"
)

// Observer receives callbacks from a timeline builder for logging and
// metrics.
//
// Callbacks run synchronously inside Append; implementations should be fast
// and must not call back into the builder.
type Observer interface {
	// OnEventApplied is called after an event was accepted into the history.
	OnEventApplied(ev RawEvent)

	// OnEventIgnored is called for events dropped before reaching the ledger.
	OnEventIgnored(ev RawEvent, reason IgnoreReason)

	// OnDiagnostic is called for every anomaly recorded while folding.
	OnDiagnostic(d Diagnostic)

	// OnStepTransition is called when a step changes state. from is empty
	// for newly created steps.
	OnStepTransition(groupID, stepName string, from, to StepState)

	// OnRebuild is called when a late event forced the builder to refold
	// its history from scratch. events is the size of the refolded history.
	OnRebuild(events int)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnEventApplied(ev RawEvent)                      {}
func (NoopObserver) OnEventIgnored(ev RawEvent, reason IgnoreReason) {}
func (NoopObserver) OnDiagnostic(d Diagnostic)                       {}
func (NoopObserver) OnStepTransition(groupID, stepName string, from, to StepState) {
}
func (NoopObserver) OnRebuild(events int) {}

// CompositeObserver fans out callbacks to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards callbacks to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnEventApplied(ev RawEvent) {
	for _, o := range c.observers {
		o.OnEventApplied(ev)
	}
}

func (c *CompositeObserver) OnEventIgnored(ev RawEvent, reason IgnoreReason) {
	for _, o := range c.observers {
		o.OnEventIgnored(ev, reason)
	}
}

func (c *CompositeObserver) OnDiagnostic(d Diagnostic) {
	for _, o := range c.observers {
		o.OnDiagnostic(d)
	}
}

func (c *CompositeObserver) OnStepTransition(groupID, stepName string, from, to StepState) {
	for _, o := range c.observers {
		o.OnStepTransition(groupID, stepName, from, to)
	}
}

func (c *CompositeObserver) OnRebuild(events int) {
	for _, o := range c.observers {
		o.OnRebuild(events)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs builder activity using
// the provided slog.Logger. If logger is nil, slog.Default() is used.
//
// Unknown event kinds are logged at info level, diagnostics at warn level,
// everything else at debug level.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnEventApplied(ev RawEvent) {
	o.Logger.Debug("event_applied",
		slog.String("event_id", ev.ID),
		slog.String("kind", string(ev.Kind)),
		slog.String("group_id", ev.GroupID),
		slog.Int("attempt", ev.Attempt),
	)
}

func (o *LoggingObserver) OnEventIgnored(ev RawEvent, reason IgnoreReason) {
	level := slog.LevelDebug
	if reason == IgnoreUnknownKind {
		level = slog.LevelInfo
	}
	o.Logger.Log(context.Background(), level, "event_ignored",
		slog.String("event_id", ev.ID),
		slog.String("kind", string(ev.Kind)),
		slog.String("reason", string(reason)),
	)
}

func (o *LoggingObserver) OnDiagnostic(d Diagnostic) {
	o.Logger.Warn("history_diagnostic",
		slog.String("code", string(d.Code)),
		slog.String("event_id", d.EventID),
		slog.String("group_id", d.GroupID),
		slog.String("message", d.Message),
	)
}

func (o *LoggingObserver) OnStepTransition(groupID, stepName string, from, to StepState) {
	o.Logger.Debug("step_transition",
		slog.String("group_id", groupID),
		slog.String("step", stepName),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
}

func (o *LoggingObserver) OnRebuild(events int) {
	o.Logger.Debug("history_rebuilt", slog.Int("events", events))
}

// BasicMetrics collects simple counters about builder activity.
// It implements Observer, and can be combined with LoggingObserver via
// NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	eventsApplied  atomic.Int64
	eventsUnknown  atomic.Int64
	duplicates     atomic.Int64
	diagnostics    atomic.Int64
	rebuilds       atomic.Int64
	stepsCreated   atomic.Int64
	stepsCompleted atomic.Int64
	stepsFailed    atomic.Int64
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	EventsApplied int64
	EventsUnknown int64
	Duplicates    int64
	Diagnostics   int64
	Rebuilds      int64

	StepsCreated   int64
	StepsCompleted int64
	StepsFailed    int64
}

func (m *BasicMetrics) OnEventApplied(ev RawEvent) {
	m.eventsApplied.Add(1)
}

func (m *BasicMetrics) OnEventIgnored(ev RawEvent, reason IgnoreReason) {
	switch reason {
	case IgnoreUnknownKind:
		m.eventsUnknown.Add(1)
	case IgnoreDuplicate:
		m.duplicates.Add(1)
	}
}

func (m *BasicMetrics) OnDiagnostic(d Diagnostic) {
	m.diagnostics.Add(1)
}

func (m *BasicMetrics) OnStepTransition(groupID, stepName string, from, to StepState) {
	if from == "" {
		m.stepsCreated.Add(1)
	}
	switch to {
	case StateCompleted, StateTimedOut:
		m.stepsCompleted.Add(1)
	case StateFailed:
		m.stepsFailed.Add(1)
	}
}

func (m *BasicMetrics) OnRebuild(events int) {
	m.rebuilds.Add(1)
}

// Snapshot returns a snapshot of the current metrics.
//
// Step counters count transitions, so a refold after a late event counts
// the refolded steps again.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	return BasicMetricsSnapshot{
		EventsApplied:  m.eventsApplied.Load(),
		EventsUnknown:  m.eventsUnknown.Load(),
		Duplicates:     m.duplicates.Load(),
		Diagnostics:    m.diagnostics.Load(),
		Rebuilds:       m.rebuilds.Load(),
		StepsCreated:   m.stepsCreated.Load(),
		StepsCompleted: m.stepsCompleted.Load(),
		StepsFailed:    m.stepsFailed.Load(),
	}
}
