package api

// Builder folds a run's raw history into a Timeline.
//
// A Builder is owned by exactly one consumer (a view, a background task, a
// test) and is not safe for concurrent use. Timelines returned by Snapshot
// are independent copies and may be shared freely.
//
// Builders never fail on bad input: malformed, duplicate, or conflicting
// events are absorbed and reported through Diagnostics.
type Builder interface {
	// Append applies one event.
	Append(ev RawEvent)

	// AppendAll applies events in the given order. It is equivalent to
	// calling Append for each event.
	AppendAll(events []RawEvent)

	// Snapshot returns the current Timeline. While Version is unchanged the
	// same pointer is returned.
	Snapshot() *Timeline

	// Diagnostics returns human-readable anomaly records in arrival order.
	Diagnostics() []string

	// DiagnosticRecords returns the structured form of Diagnostics.
	DiagnosticRecords() []Diagnostic

	// Version increases every time an applied event changes the ledger.
	Version() uint64

	// Len returns the number of accepted events.
	Len() int
}
