package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/fluxotrace/pkg/api"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func TestKeyValuesAligns(t *testing.T) {
	out := KeyValues("  ", KV("Status", "running"), KV("Started", "-"))
	require.Equal(t, "  Status:  running\n  Started: -\n", out)
}

func TestTimelineRendersSteps(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)
	tl := &api.Timeline{
		Status:    api.RunCancelled,
		StartedAt: &start,
		EndedAt:   &end,
		Cancellation: &api.Cancellation{
			At:     end,
			UserID: "user-7",
		},
		Steps: []api.Step{{
			GroupID: "g1",
			Name:    "charge",
			Kind:    api.StepKindRun,
			State:   api.StateCancelled,
			Attempts: []api.Attempt{
				{Number: 0, Outcome: api.OutcomeErrored},
				{Number: 1, Outcome: api.OutcomeCancelled},
			},
			LastUpdatedAt: end,
		}},
	}

	out := Timeline(tl)
	require.Contains(t, out, "Status:")
	require.Contains(t, out, "cancelled")
	require.Contains(t, out, "Duration:     1m30s")
	require.Contains(t, out, "Cancelled by: user user-7")
	require.Contains(t, out, "charge")
	require.Contains(t, out, "0:errored 1:cancelled")
	require.Contains(t, out, "12:01:30.000")
}

func TestTimelineWithoutSteps(t *testing.T) {
	out := Timeline(&api.Timeline{Status: api.RunScheduled})
	require.True(t, strings.HasSuffix(out, "no steps\n"), out)
	require.Contains(t, out, "Started: -")
}

func TestDiagnostics(t *testing.T) {
	out := Diagnostics([]api.Diagnostic{{Code: api.DiagUnknownStep, EventID: "e1", Message: "no such step"}})
	require.Equal(t, "! unknown_step: event e1: no such step\n", out)
}
