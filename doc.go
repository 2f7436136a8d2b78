// Package fluxotrace reconstructs the timeline of a workflow run from its
// raw history log.
//
// A workflow engine records every run as an append-only list of events:
// steps being scheduled, started, retried, put to sleep, waiting for an
// event, invoking another function, and finally completing, failing or
// being cancelled. fluxotrace folds that list into a Timeline: the ordered
// steps of the run, every attempt of each step, and the run's overall
// status, start and end.
//
// # Core Concepts
//
//  1. RawEvent
//  2. Builder
//  3. Timeline
//  4. Replayer
//  5. EventStore
//
// # RawEvent
//
// A RawEvent is one history item exactly as the server sent it. Kind is the
// discriminant; the payload pointer matching the kind carries the details
// (sleep deadline, awaited event, wait result, cancellation cause, invoked
// function). Histories are usually decoded from JSON with DecodeEvents.
//
// # Builder
//
// A Builder ingests events one at a time or in batches, in whatever order
// they arrive. Events are folded by createdAt, ties broken by arrival, so a
// late event that belongs earlier in the history is placed where it belongs
// and the timeline is recomputed.
//
// Builders never fail. Malformed events, duplicates, impossible transitions
// and events after a cancellation are absorbed and recorded as Diagnostics.
// Event kinds the builder does not know are skipped silently so newer
// servers keep working with older consumers.
//
// A Builder belongs to a single owner and is not safe for concurrent use.
//
// # Timeline
//
// Snapshot returns an immutable Timeline. The same pointer is returned
// until another event is accepted, so callers can compare snapshots by
// identity to detect changes.
//
// # Replayer
//
// Replayer steps through a recorded history frame by frame, the way a run
// viewer scrubs a finished run. VerifyIncremental checks that every split
// of a history into two appends yields the same timeline as a single
// batch.
//
// # EventStore
//
// Recorded histories can be kept in an EventStore. The in-memory store is
// useful for tests; SQLite, PostgreSQL, Redis and MongoDB stores are used
// by the fluxotrace command and selected through its configuration.
//
// Example:
//
//	events, err := fluxotrace.DecodeEvents(f)
//	if err != nil {
//	    return err
//	}
//	b := fluxotrace.NewBuilder()
//	b.AppendAll(events)
//	tl := b.Snapshot()
//	fmt.Println(tl.Status, len(tl.Steps))
package fluxotrace
