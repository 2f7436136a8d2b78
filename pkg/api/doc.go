// Package api contains the core types used by the fluxotrace history
// reconstruction engine: the raw run history event model, the Timeline read
// model derived from it, diagnostics, and the Observer hooks.
//
// Most users interact with the higher-level fluxotrace package, which
// re-exports selected types and constructors from this package. The api
// package is intended for consumers that need the data types without the
// builder itself, such as stores, renderers and test harnesses.
//
// # Events
//
// A run's history is an append-only log of RawEvent values. Kind is the
// discriminant and selects which payload (sleep, waitForEvent, waitResult,
// cancel, invokeFunction, invokeFunctionResult) is meaningful. Unknown kinds
// are legal input: they come from newer servers and are skipped, never
// treated as errors.
//
// Events are ordered by CreatedAt, ties broken by the order in which they
// were received.
//
// # Timeline
//
// A Timeline is an immutable snapshot of the reconstructed run:
//
//   - Steps in first-seen order, each with its kind, state and attempts
//   - Run status, start and end
//   - The cancellation that ended the run, if any
//
// Timelines are plain data and safe to share across goroutines.
//
// # Diagnostics
//
// Reconstruction never fails. Malformed or inconsistent events are absorbed
// and recorded as Diagnostic values for debugging and telemetry.
//
// # Observability
//
// The Observer interface receives builder activity: applied and ignored
// events, diagnostics, step transitions and rebuilds. LoggingObserver,
// BasicMetrics and CompositeObserver are ready-made implementations.
package api
