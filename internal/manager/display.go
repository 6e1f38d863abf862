package manager

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/hugo-lorenzo-mato/council/internal/events"
)

// Styling for the narrow CLI consumer contract: phase/command/diagnostic
// lines only, never raw model or command output, which stays out of the
// event stream entirely (§5).
var (
	styleCommand = lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4"))
	stylePhase   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED")).Bold(true)
	styleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	styleFailure = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	styleWarning = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	styleMuted   = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
)

// FormatLine renders one event as a single styled line for a plain
// terminal consumer. It is a convenience for cmd/council; embedders with
// their own rendering can ignore it and consume events directly.
func FormatLine(e events.Event) string {
	switch ev := e.(type) {
	case events.JobStartedEvent:
		return stylePhase.Render(fmt.Sprintf("job started: %s (%s)", ev.Target, ev.Mode))
	case events.PhaseStartedEvent:
		return stylePhase.Render(fmt.Sprintf("[%d/%d] %s", ev.StepCurrent, ev.StepTotal, ev.PhaseName))
	case events.PhaseNoteEvent:
		return styleMuted.Render(fmt.Sprintf("  %s: %s", ev.PhaseName, ev.Message))
	case events.ArtifactWrittenEvent:
		return styleMuted.Render(fmt.Sprintf("  wrote %s", ev.Path))
	case events.CommandStartedEvent:
		return styleCommand.Render(fmt.Sprintf("  $ %s", ev.DisplayCmd))
	case events.CommandFinishedEvent:
		return styleCommand.Render(fmt.Sprintf("  $ %s -> %s (%s)", ev.DisplayCmd, ev.Status, ev.Duration))
	case events.WarningEvent:
		return styleWarning.Render("warning: " + ev.Message)
	case events.ErrorEvent:
		return styleFailure.Render(fmt.Sprintf("error in %s: %s", ev.PhaseName, ev.Message))
	case events.JobFinishedEvent:
		if ev.Outcome == "success" {
			return styleSuccess.Render("done: " + ev.SummaryLine)
		}
		return styleFailure.Render(fmt.Sprintf("%s: %s", ev.Outcome, ev.SummaryLine))
	default:
		return e.EventType()
	}
}
