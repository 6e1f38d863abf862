package events

// Event type constants for job lifecycle events.
const (
	TypeJobStarted  = "job_started"
	TypeJobFinished = "job_finished"
)

// JobStartedEvent is emitted once, immediately after the Job Manager
// spawns the Runner.
type JobStartedEvent struct {
	BaseEvent
	Mode      string `json:"mode"`
	Target    string `json:"target"`
	HeadSHA   string `json:"head_sha"`
	RepoDirty bool   `json:"repo_dirty"`
}

// NewJobStartedEvent creates a job started event.
func NewJobStartedEvent(jobID, mode, target, headSHA string, repoDirty bool) JobStartedEvent {
	return JobStartedEvent{
		BaseEvent: NewBaseEvent(TypeJobStarted, jobID),
		Mode:      mode,
		Target:    target,
		HeadSHA:   headSHA,
		RepoDirty: repoDirty,
	}
}

// JobFinishedEvent is the terminal event for a job: exactly one is
// emitted per submitted job, regardless of how it ends.
type JobFinishedEvent struct {
	BaseEvent
	Outcome     string `json:"outcome"`
	SummaryLine string `json:"summary_line"`
}

// NewJobFinishedEvent creates the terminal job event.
func NewJobFinishedEvent(jobID, outcome, summaryLine string) JobFinishedEvent {
	return JobFinishedEvent{
		BaseEvent:   NewBaseEvent(TypeJobFinished, jobID),
		Outcome:     outcome,
		SummaryLine: summaryLine,
	}
}
