// Package ui renders timelines for the terminal.
package ui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"

	"github.com/petrijr/fluxotrace/pkg/api"
)

// Palette, tuned for dark terminals.
var (
	purple = lipgloss.Color("99")
	green  = lipgloss.Color("76")
	red    = lipgloss.Color("204")
	yellow = lipgloss.Color("214")
	dim    = lipgloss.Color("243")
	faint  = lipgloss.Color("238")
)

var (
	AccentStyle  = lipgloss.NewStyle().Foreground(purple)
	SuccessStyle = lipgloss.NewStyle().Foreground(green)
	ErrorStyle   = lipgloss.NewStyle().Foreground(red)
	WarnStyle    = lipgloss.NewStyle().Foreground(yellow)
	MutedStyle   = lipgloss.NewStyle().Foreground(dim)
	LabelStyle   = lipgloss.NewStyle().Foreground(dim)
)

// ConfigureColor enables colors only when stdout is a terminal and color
// was not disabled with the flag or NO_COLOR.
func ConfigureColor(noColor bool) {
	if noColor || os.Getenv("NO_COLOR") != "" || !stdoutIsTerminal() {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	lipgloss.SetColorProfile(termenv.ColorProfile())
}

func stdoutIsTerminal() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

func SuccessMsg(format string, a ...any) string {
	return SuccessStyle.Render("✓") + " " + fmt.Sprintf(format, a...)
}

func WarnMsg(format string, a ...any) string {
	return WarnStyle.Render("!") + " " + fmt.Sprintf(format, a...)
}

// Pair holds a key-value pair for KeyValues output.
type Pair struct {
	key   string
	value string
}

// KV creates a key-value pair.
func KV(key, value string) Pair {
	return Pair{key: key, value: value}
}

// KeyValues renders aligned "key:  value" lines with a trailing newline.
func KeyValues(indent string, pairs ...Pair) string {
	maxLen := 0
	for _, p := range pairs {
		maxLen = max(maxLen, len(p.key))
	}

	var sb strings.Builder
	for _, p := range pairs {
		label := fmt.Sprintf("%-*s", maxLen+1, p.key+":")
		sb.WriteString(indent + LabelStyle.Render(label) + " " + p.value + "\n")
	}
	return sb.String()
}

// Table renders a table with rounded borders.
func Table(headers []string, rows [][]string) string {
	headerStyle := lipgloss.NewStyle().
		Foreground(purple).
		Bold(true).
		Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(faint)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)

	return t.String()
}

// Status colors a run status.
func Status(s api.RunStatus) string {
	switch s {
	case api.RunCompleted:
		return SuccessStyle.Render(string(s))
	case api.RunFailed:
		return ErrorStyle.Render(string(s))
	case api.RunCancelled:
		return WarnStyle.Render(string(s))
	case api.RunScheduled:
		return MutedStyle.Render(string(s))
	default:
		return AccentStyle.Render(string(s))
	}
}

// State colors a step state.
func State(s api.StepState) string {
	switch s {
	case api.StateCompleted:
		return SuccessStyle.Render(string(s))
	case api.StateFailed:
		return ErrorStyle.Render(string(s))
	case api.StateCancelled, api.StateTimedOut:
		return WarnStyle.Render(string(s))
	case api.StateScheduled:
		return MutedStyle.Render(string(s))
	default:
		return AccentStyle.Render(string(s))
	}
}

// Timeline renders a run summary followed by a table of its steps.
func Timeline(tl *api.Timeline) string {
	pairs := []Pair{
		KV("Status", Status(tl.Status)),
		KV("Started", formatTime(tl.StartedAt)),
		KV("Ended", formatTime(tl.EndedAt)),
	}
	if d, ok := tl.Duration(); ok {
		pairs = append(pairs, KV("Duration", d.String()))
	}
	if c := tl.Cancellation; c != nil {
		pairs = append(pairs, KV("Cancelled by", cancelCause(c)))
	}

	var sb strings.Builder
	sb.WriteString(KeyValues("", pairs...))
	if len(tl.Steps) == 0 {
		sb.WriteString(MutedStyle.Render("no steps") + "\n")
		return sb.String()
	}

	rows := make([][]string, len(tl.Steps))
	for i, s := range tl.Steps {
		rows[i] = []string{
			fmt.Sprint(i + 1),
			s.Name,
			string(s.Kind),
			State(s.State),
			attemptSummary(s.Attempts),
			s.LastUpdatedAt.UTC().Format("15:04:05.000"),
		}
	}
	sb.WriteString(Table([]string{"#", "STEP", "KIND", "STATE", "ATTEMPTS", "UPDATED"}, rows))
	sb.WriteString("\n")
	return sb.String()
}

// Diagnostics renders one warning line per diagnostic.
func Diagnostics(diags []api.Diagnostic) string {
	var sb strings.Builder
	for _, d := range diags {
		sb.WriteString(WarnMsg("%s", d.String()) + "\n")
	}
	return sb.String()
}

func attemptSummary(attempts []api.Attempt) string {
	parts := make([]string, len(attempts))
	for i, a := range attempts {
		parts[i] = fmt.Sprintf("%d:%s", a.Number, a.Outcome)
	}
	return strings.Join(parts, " ")
}

func cancelCause(c *api.Cancellation) string {
	switch {
	case c.UserID != "":
		return "user " + c.UserID
	case c.EventID != "":
		return "event " + c.EventID
	case c.Expression != "":
		return "expression " + c.Expression
	default:
		return "unknown"
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339Nano)
}
