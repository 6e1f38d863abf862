package manager

import (
	"context"
	"os"
	"sort"
	"time"

	"github.com/hugo-lorenzo-mato/council/internal/core"
	"github.com/hugo-lorenzo-mato/council/internal/jobdir"
)

const (
	defaultMaxJobs     = 20
	defaultMaxAgeHours = 24
)

// pruneRetention keeps at most cfg.Retention.MaxJobs job directories, none
// older than cfg.Retention.MaxAgeHours, whichever bound is stricter (§4.5).
// The currently active job, if any, is never pruned. Job ids are
// timestamp-prefixed and therefore sort oldest-first lexicographically.
func (m *Manager) pruneRetention() error {
	return m.pruneRetentionCtx(context.Background())
}

func (m *Manager) pruneRetentionCtx(ctx context.Context) error {
	dirs, err := jobdir.ListJobDirs(m.cacheRoot)
	if err != nil {
		return err
	}
	sort.Strings(dirs)

	type entry struct {
		dir string
		job *core.Job
	}
	entries := make([]entry, 0, len(dirs))
	for _, d := range dirs {
		job, err := jobdir.ReadMetadata(d)
		if err != nil {
			continue
		}
		entries = append(entries, entry{dir: d, job: job})
	}

	activeID := m.ActiveJobID()
	maxJobs := m.cfg.Retention.MaxJobs
	if maxJobs <= 0 {
		maxJobs = defaultMaxJobs
	}
	maxAgeHours := m.cfg.Retention.MaxAgeHours
	if maxAgeHours <= 0 {
		maxAgeHours = defaultMaxAgeHours
	}
	cutoff := time.Now().Add(-time.Duration(maxAgeHours) * time.Hour)

	var kept []entry
	for _, e := range entries {
		if e.job.ID == activeID {
			kept = append(kept, e)
			continue
		}
		if e.job.StartedAt.Before(cutoff) {
			m.removeJob(ctx, e.dir, e.job)
			continue
		}
		kept = append(kept, e)
	}

	if excess := len(kept) - maxJobs; excess > 0 {
		var remaining []entry
		removed := 0
		for _, e := range kept {
			if removed < excess && e.job.ID != activeID {
				m.removeJob(ctx, e.dir, e.job)
				removed++
				continue
			}
			remaining = append(remaining, e)
		}
		kept = remaining
	}

	return nil
}

// removeJob deregisters a job's isolation resources, then removes its
// directory. Worktree removal goes through the WorktreeCreator port so the
// git-side administrative entry is cleaned up, not just the directory on
// disk; a plain os.RemoveAll would leave a dangling worktree registration.
func (m *Manager) removeJob(ctx context.Context, dir string, job *core.Job) {
	if job.Mode == core.ModeFix && m.deps.Worktrees != nil {
		wt := jobdir.Worktree(dir)
		if _, err := os.Stat(wt); err == nil {
			if err := m.deps.Worktrees.Remove(ctx, wt); err != nil && m.logger != nil {
				m.logger.Warn("removing worktree during retention prune", "job_id", job.ID, "error", err)
			}
		}
	}
	if err := os.RemoveAll(dir); err != nil && m.logger != nil {
		m.logger.Error("removing job directory during retention prune", "job_id", job.ID, "error", err)
	}
}
