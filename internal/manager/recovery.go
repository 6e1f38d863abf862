package manager

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"github.com/hugo-lorenzo-mato/council/internal/config"
	"github.com/hugo-lorenzo-mato/council/internal/core"
	"github.com/hugo-lorenzo-mato/council/internal/jobdir"
)

// RecoverCrashed scans the cache root for jobs left with an unset outcome
// by a runner process that no longer exists, and marks them cancelled
// (§4.5). Called once at startup, before any job is accepted.
func (m *Manager) RecoverCrashed(ctx context.Context) error {
	dirs, err := jobdir.ListJobDirs(m.cacheRoot)
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		job, err := jobdir.ReadMetadata(dir)
		if err != nil {
			if m.logger != nil {
				m.logger.Warn("skipping unreadable job directory during crash recovery", "dir", dir, "error", err)
			}
			continue
		}
		if job.Outcome != core.OutcomeUnset {
			continue
		}
		if processIsRunner(job.RunnerPID) {
			continue
		}

		job.Finish(core.OutcomeCancelled)
		if err := jobdir.WriteMetadata(dir, job); err != nil {
			if m.logger != nil {
				m.logger.Error("writing recovered job metadata", "job_id", job.ID, "error", err)
			}
			continue
		}
		if err := writeCrashSummary(dir, job); err != nil && m.logger != nil {
			m.logger.Error("writing recovered job summary", "job_id", job.ID, "error", err)
		}
		if m.logger != nil {
			m.logger.Info("recovered crashed job", "job_id", job.ID, "runner_pid", job.RunnerPID)
		}
	}
	return nil
}

type crashSummary struct {
	JobID   core.JobID   `json:"job_id"`
	Mode    core.Mode    `json:"mode"`
	Outcome core.Outcome `json:"outcome"`
	Message string       `json:"message"`
}

func writeCrashSummary(dir string, job *core.Job) error {
	doc := crashSummary{
		JobID:   job.ID,
		Mode:    job.Mode,
		Outcome: job.Outcome,
		Message: core.ErrCrashed("runner process no longer present at startup recovery scan").Error(),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return config.AtomicWrite(jobdir.Summary(dir), data)
}

// processIsRunner reports whether pid both refers to a live process and
// looks like a council runner, not an unrelated process that happens to
// have reused the pid. The command-line check is best effort and Linux
// only; everywhere else liveness alone decides.
func processIsRunner(pid int) bool {
	if pid <= 0 {
		return false
	}
	if !processExists(pid) {
		return false
	}
	if runtime.GOOS != "linux" {
		return true
	}
	cmdline, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "cmdline"))
	if err != nil {
		// /proc unreadable (permissions, container boundary): fall back
		// to liveness only rather than falsely declaring a crash.
		return true
	}
	return strings.Contains(string(cmdline), runnerSignature())
}

// runnerSignature is a substring of this binary's own argv0, used to
// recognize a recorded runner pid as one of ours rather than an unrelated
// process that reused the same pid.
func runnerSignature() string {
	return filepath.Base(os.Args[0])
}

func processExists(pid int) bool {
	if runtime.GOOS == "windows" && pid == os.Getpid() {
		return true
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
