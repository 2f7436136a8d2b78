package api

import "fmt"

// DiagnosticCode classifies a non-fatal anomaly found while reconstructing
// a timeline.
type DiagnosticCode string

const (
	DiagMalformedEvent    DiagnosticCode = "malformed_event"
	DiagOrderingAnomaly   DiagnosticCode = "ordering_anomaly"
	DiagKindConflict      DiagnosticCode = "kind_conflict"
	DiagAfterCancellation DiagnosticCode = "after_cancellation"
	DiagStaleAttempt      DiagnosticCode = "stale_attempt"
	DiagUnknownStep       DiagnosticCode = "unknown_step"
	DiagTerminalStep      DiagnosticCode = "terminal_step"
)

// Diagnostic is a non-fatal anomaly record. Diagnostics are meant for
// debugging and telemetry and are never surfaced as user-facing errors.
type Diagnostic struct {
	Code    DiagnosticCode `json:"code" yaml:"code"`
	EventID string         `json:"eventID,omitempty" yaml:"eventID,omitempty"`
	GroupID string         `json:"groupID,omitempty" yaml:"groupID,omitempty"`
	Message string         `json:"message" yaml:"message"`
}

func (d Diagnostic) String() string {
	switch {
	case d.EventID != "" && d.GroupID != "":
		return fmt.Sprintf("%s: event %s group %s: %s", d.Code, d.EventID, d.GroupID, d.Message)
	case d.EventID != "":
		return fmt.Sprintf("%s: event %s: %s", d.Code, d.EventID, d.Message)
	default:
		return fmt.Sprintf("%s: %s", d.Code, d.Message)
	}
}
