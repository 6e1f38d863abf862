package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/hugo-lorenzo-mato/council/internal/config"
	"github.com/hugo-lorenzo-mato/council/internal/core"
	"github.com/hugo-lorenzo-mato/council/internal/events"
	"github.com/hugo-lorenzo-mato/council/internal/jobdir"
)

// writeJSONArtifact marshals v and atomically writes it to path, then
// publishes an ArtifactWritten event. ArtifactWritten is a phase-boundary
// event (§4.4) and is always published via PublishPriority.
func (r *Runner) writeJSONArtifact(jc *jobCtx, kind, path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return core.ErrState("ARTIFACT_MARSHAL_FAILED", "marshaling "+kind).WithCause(err)
	}
	if err := config.AtomicWrite(path, data); err != nil {
		return core.ErrState("ARTIFACT_WRITE_FAILED", "writing "+kind).WithCause(err)
	}
	r.deps.Bus.PublishPriority(events.NewArtifactWrittenEvent(string(jc.job.ID), kind, path))
	return nil
}

// writeTextArtifact atomically writes raw text to path and publishes an
// ArtifactWritten event.
func (r *Runner) writeTextArtifact(jc *jobCtx, kind, path, text string) error {
	if err := config.AtomicWrite(path, []byte(text)); err != nil {
		return core.ErrState("ARTIFACT_WRITE_FAILED", "writing "+kind).WithCause(err)
	}
	r.deps.Bus.PublishPriority(events.NewArtifactWrittenEvent(string(jc.job.ID), kind, path))
	return nil
}

// summaryDoc is the content of summary.json: a terse, human-facing
// rollup of how the job ended.
type summaryDoc struct {
	JobID   core.JobID  `json:"job_id"`
	Mode    core.Mode   `json:"mode"`
	Outcome core.Outcome `json:"outcome"`
	Message string      `json:"message"`
}

func (r *Runner) writeSummary(jc *jobCtx, outcome core.Outcome, message string) error {
	return r.writeJSONArtifact(jc, "summary", jobdir.Summary(jc.jobDir), summaryDoc{
		JobID:   jc.job.ID,
		Mode:    jc.job.Mode,
		Outcome: outcome,
		Message: message,
	})
}

// note publishes a PhaseNote. Unlike phase-boundary events, notes use the
// regular (droppable) publish path: the bus coalesces bursts of them under
// backpressure rather than blocking the runner.
func (r *Runner) note(jc *jobCtx, phase core.Phase, message string) {
	r.deps.Bus.Publish(events.NewPhaseNoteEvent(string(jc.job.ID), string(phase), message))
}

func (r *Runner) warn(jc *jobCtx, message string) {
	r.deps.Bus.Publish(events.NewWarningEvent(string(jc.job.ID), message))
}

// debugLogger appends verbatim model replies to debug_raw.log (mode
// 0600) when debug.raw_log is enabled. It is never read by event
// consumers; it exists purely for offline troubleshooting.
type debugLogger struct {
	mu   sync.Mutex
	path string
}

func newDebugLogger(path string) *debugLogger {
	return &debugLogger{path: path}
}

func (d *debugLogger) Writef(format string, args ...interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, err := os.OpenFile(d.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.WriteString(fmt.Sprintf(format, args...))
}
