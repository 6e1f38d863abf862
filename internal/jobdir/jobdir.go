// Package jobdir names the on-disk layout of a single job's directory
// (§3): one directory per job under the configured cache root, holding
// its metadata, artifacts, and a sibling worktree/ or snapshot/ holding
// its isolation working root.
package jobdir

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/hugo-lorenzo-mato/council/internal/config"
	"github.com/hugo-lorenzo-mato/council/internal/core"
)

// Dir returns the job's directory path under cacheRoot.
func Dir(cacheRoot string, id core.JobID) string {
	return filepath.Join(cacheRoot, string(id))
}

// Metadata returns job_metadata.json's path.
func Metadata(jobDir string) string { return filepath.Join(jobDir, "job_metadata.json") }

// ContextBundle returns context_bundle.json's path.
func ContextBundle(jobDir string) string { return filepath.Join(jobDir, "context_bundle.json") }

// Critique returns critique.xml's path.
func Critique(jobDir string) string { return filepath.Join(jobDir, "critique.xml") }

// Plan returns plan.xml's path.
func Plan(jobDir string) string { return filepath.Join(jobDir, "plan.xml") }

// Patch returns implementation.patch's path.
func Patch(jobDir string) string { return filepath.Join(jobDir, "implementation.patch") }

// VerifyBaseline returns verify_baseline.json's path.
func VerifyBaseline(jobDir string) string { return filepath.Join(jobDir, "verify_baseline.json") }

// VerifyFinal returns verify_final.json's path.
func VerifyFinal(jobDir string) string { return filepath.Join(jobDir, "verify_final.json") }

// Summary returns summary.json's path.
func Summary(jobDir string) string { return filepath.Join(jobDir, "summary.json") }

// DebugLog returns debug_raw.log's path, written only when debug.raw_log
// is set, at file mode 0600.
func DebugLog(jobDir string) string { return filepath.Join(jobDir, "debug_raw.log") }

// Worktree returns the sibling worktree/ directory's path (fix mode).
func Worktree(jobDir string) string { return filepath.Join(jobDir, "worktree") }

// Snapshot returns the sibling snapshot/ directory's path (review mode).
func Snapshot(jobDir string) string { return filepath.Join(jobDir, "snapshot") }

// WriteMetadata atomically (re)writes job_metadata.json for job. Safe to
// call repeatedly as the job progresses: phase counters and, eventually,
// outcome/end time are updated in place.
func WriteMetadata(jobDir string, job *core.Job) error {
	if err := os.MkdirAll(jobDir, 0o750); err != nil {
		return core.ErrIsolation("JOBDIR_CREATE_FAILED", "creating job directory").WithCause(err)
	}
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return core.ErrState("JOB_METADATA_MARSHAL_FAILED", "marshaling job metadata").WithCause(err)
	}
	if err := config.AtomicWrite(Metadata(jobDir), data); err != nil {
		return core.ErrState("JOB_METADATA_WRITE_FAILED", "writing job metadata").WithCause(err)
	}
	return nil
}

// ReadMetadata reads and parses a job's job_metadata.json.
func ReadMetadata(jobDir string) (*core.Job, error) {
	data, err := os.ReadFile(Metadata(jobDir))
	if err != nil {
		return nil, err
	}
	var job core.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, core.ErrState("JOB_METADATA_CORRUPT", "parsing job metadata").WithCause(err)
	}
	return &job, nil
}

// ListJobDirs returns the job directories directly under cacheRoot, in no
// particular order; callers that need sorted-by-age order should sort the
// result (job ids are lexicographically sortable, see internal/jobid).
func ListJobDirs(cacheRoot string) ([]string, error) {
	entries, err := os.ReadDir(cacheRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(cacheRoot, e.Name()))
		}
	}
	return dirs, nil
}
