package events

import "time"

// Event type constants for sandboxed command lifecycle events.
const (
	TypeCommandStarted  = "command_started"
	TypeCommandFinished = "command_finished"
)

// CommandStartedEvent is emitted before the Verifier runs a sandboxed
// command. DisplayCmd is the argv joined for display only; it is never
// the argv actually executed.
type CommandStartedEvent struct {
	BaseEvent
	DisplayCmd string `json:"display_cmd"`
}

// NewCommandStartedEvent creates a command started event.
func NewCommandStartedEvent(jobID, displayCmd string) CommandStartedEvent {
	return CommandStartedEvent{
		BaseEvent:  NewBaseEvent(TypeCommandStarted, jobID),
		DisplayCmd: displayCmd,
	}
}

// CommandFinishedEvent is emitted after a sandboxed command exits or is
// killed for timeout. Raw command output never crosses this boundary.
type CommandFinishedEvent struct {
	BaseEvent
	DisplayCmd string        `json:"display_cmd"`
	Status     string        `json:"status"`
	Duration   time.Duration `json:"duration"`
	Truncated  bool          `json:"truncated"`
}

// NewCommandFinishedEvent creates a command finished event.
func NewCommandFinishedEvent(jobID, displayCmd, status string, duration time.Duration, truncated bool) CommandFinishedEvent {
	return CommandFinishedEvent{
		BaseEvent:  NewBaseEvent(TypeCommandFinished, jobID),
		DisplayCmd: displayCmd,
		Status:     status,
		Duration:   duration,
		Truncated:  truncated,
	}
}
