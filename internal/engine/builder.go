package engine

import (
	"fmt"
	"slices"
	"time"

	"github.com/petrijr/fluxotrace/internal/ledger"
	"github.com/petrijr/fluxotrace/pkg/api"
)

// Config describes how to construct a Builder.
type Config struct {
	Observer api.Observer
}

// runState holds what function-level events contributed to the run.
type runState struct {
	scheduledAt  *time.Time
	startedAt    *time.Time
	firstEventAt *time.Time
	endedAt      *time.Time
	finished     api.RunStatus
	cancellation *api.Cancellation
}

type arrivalDiag struct {
	arrival uint64
	diag    api.Diagnostic
}

// Builder folds raw history events into a Timeline.
//
// Accepted events are kept in fold order. An event that sorts last is
// folded incrementally; an event that sorts earlier triggers a refold of
// the whole history, so the resulting timeline depends only on the set of
// events, not on their arrival order. Once a cancellation has been folded
// the run is frozen: every later arrival is rejected with an
// after_cancellation diagnostic, whatever its timestamp.
type Builder struct {
	observer api.Observer

	seen    map[string]struct{}
	log     []Entry
	arrival uint64

	intakeDiags []arrivalDiag
	foldDiags   []arrivalDiag

	led *ledger.Ledger
	run runState

	// current is the entry being folded; notify is false while refolding
	// entries the observer has already seen.
	current Entry
	notify  bool

	version     uint64
	snap        *api.Timeline
	snapVersion uint64
}

var _ api.Builder = (*Builder)(nil)

// NewBuilder returns an empty Builder without an observer.
func NewBuilder() *Builder {
	return NewBuilderWithConfig(Config{})
}

// NewBuilderWithConfig returns an empty Builder using cfg.
func NewBuilderWithConfig(cfg Config) *Builder {
	obs := cfg.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}
	b := &Builder{
		observer: obs,
		seen:     make(map[string]struct{}),
	}
	b.reset()
	return b
}

// BuildTimeline folds events in a fresh builder and returns its snapshot
// and diagnostics.
func BuildTimeline(events []api.RawEvent, obs api.Observer) (*api.Timeline, []api.Diagnostic) {
	b := NewBuilderWithConfig(Config{Observer: obs})
	b.AppendAll(events)
	return b.Snapshot(), b.DiagnosticRecords()
}

func (b *Builder) reset() {
	b.led = ledger.New(b.report)
	b.run = runState{}
	b.foldDiags = nil
}

// Append applies one event. It never fails; anomalies become diagnostics.
func (b *Builder) Append(ev api.RawEvent) {
	if !api.IsKnownEventKind(ev.Kind) {
		b.observer.OnEventIgnored(ev, api.IgnoreUnknownKind)
		return
	}
	ev.Kind = ev.Kind.Normalize()

	if ev.ID != "" {
		if _, dup := b.seen[ev.ID]; dup {
			b.observer.OnEventIgnored(ev, api.IgnoreDuplicate)
			return
		}
	}

	b.arrival++
	if err := ev.Validate(); err != nil {
		if ev.ID != "" {
			b.seen[ev.ID] = struct{}{}
		}
		d := api.Diagnostic{
			Code:    api.DiagMalformedEvent,
			EventID: ev.ID,
			GroupID: ev.GroupID,
			Message: err.Error(),
		}
		b.intakeDiags = append(b.intakeDiags, arrivalDiag{arrival: b.arrival, diag: d})
		b.observer.OnDiagnostic(d)
		return
	}
	b.seen[ev.ID] = struct{}{}

	if c := b.run.cancellation; c != nil {
		d := api.Diagnostic{
			Code:    api.DiagAfterCancellation,
			EventID: ev.ID,
			GroupID: ev.GroupID,
			Message: fmt.Sprintf("%s ignored: run was cancelled at %s", ev.Kind, c.At.Format(time.RFC3339Nano)),
		}
		b.intakeDiags = append(b.intakeDiags, arrivalDiag{arrival: b.arrival, diag: d})
		b.observer.OnDiagnostic(d)
		return
	}

	e := Entry{Event: ev, Arrival: b.arrival}
	idx := insertPosition(b.log, e)
	b.log = slices.Insert(b.log, idx, e)
	b.version++

	if idx == len(b.log)-1 {
		b.fold(e, true)
	} else {
		b.refold(e.Arrival)
	}
	b.observer.OnEventApplied(ev)
}

// AppendAll applies events in slice order.
func (b *Builder) AppendAll(events []api.RawEvent) {
	for _, ev := range events {
		b.Append(ev)
	}
}

func (b *Builder) refold(fresh uint64) {
	b.reset()
	for _, e := range b.log {
		b.fold(e, e.Arrival == fresh)
	}
	b.observer.OnRebuild(len(b.log))
}

func (b *Builder) report(d api.Diagnostic) {
	if d.EventID == "" {
		d.EventID = b.current.Event.ID
	}
	b.foldDiags = append(b.foldDiags, arrivalDiag{arrival: b.current.Arrival, diag: d})
	if b.notify {
		b.observer.OnDiagnostic(d)
	}
}

// Snapshot returns the current timeline. The same pointer is returned until
// the next accepted event.
func (b *Builder) Snapshot() *api.Timeline {
	if b.snap != nil && b.snapVersion == b.version {
		return b.snap
	}
	b.snap = b.project()
	b.snapVersion = b.version
	return b.snap
}

// DiagnosticRecords returns all diagnostics ordered by the arrival of the
// event that caused them.
func (b *Builder) DiagnosticRecords() []api.Diagnostic {
	all := make([]arrivalDiag, 0, len(b.intakeDiags)+len(b.foldDiags))
	all = append(all, b.intakeDiags...)
	all = append(all, b.foldDiags...)
	slices.SortStableFunc(all, func(a, c arrivalDiag) int {
		switch {
		case a.arrival < c.arrival:
			return -1
		case a.arrival > c.arrival:
			return 1
		default:
			return 0
		}
	})

	out := make([]api.Diagnostic, len(all))
	for i, d := range all {
		out[i] = d.diag
	}
	return out
}

// Diagnostics returns DiagnosticRecords rendered as strings.
func (b *Builder) Diagnostics() []string {
	recs := b.DiagnosticRecords()
	out := make([]string, len(recs))
	for i, d := range recs {
		out[i] = d.String()
	}
	return out
}

// Version returns a counter that increases with every accepted event.
func (b *Builder) Version() uint64 {
	return b.version
}

// Len returns the number of accepted events.
func (b *Builder) Len() int {
	return len(b.log)
}

// Events returns the accepted events in fold order.
func (b *Builder) Events() []api.RawEvent {
	out := make([]api.RawEvent, len(b.log))
	for i, e := range b.log {
		out[i] = e.Event
	}
	return out
}
