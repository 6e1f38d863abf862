package manager

import (
	"context"
	"os"

	"github.com/hugo-lorenzo-mato/council/internal/core"
	"github.com/hugo-lorenzo-mato/council/internal/isolation"
	"github.com/hugo-lorenzo-mato/council/internal/jobdir"
	"github.com/hugo-lorenzo-mato/council/internal/parser"
)

// ApplyJob re-validates a finished fix-mode job's patch and applies it to
// the real repository root (§4.5, the Apply Gate). The patch is never
// applied on the strength of the worktree run alone: paths are
// re-validated against repoRoot, a dry run must succeed, and the working
// tree's dirty state must be unchanged between the dry run and the real
// apply, or the gate aborts rather than risk applying onto a tree the
// caller no longer believes they are looking at.
func (m *Manager) ApplyJob(ctx context.Context, id core.JobID, repoRoot string) error {
	job, err := m.Get(id)
	if err != nil {
		return err
	}
	if job.Mode != core.ModeFix {
		return core.ErrValidation("APPLY_WRONG_MODE", "only a fix-mode job produces a patch")
	}
	if job.Outcome != core.OutcomeSuccess {
		return core.ErrValidation("APPLY_JOB_NOT_SUCCESSFUL", "job did not finish successfully; refusing to apply its patch")
	}

	jobDir := jobdir.Dir(m.cacheRoot, id)
	raw, err := os.ReadFile(jobdir.Patch(jobDir))
	if err != nil {
		return core.ErrState("APPLY_PATCH_UNREADABLE", "reading implementation patch").WithCause(err)
	}
	patchText := string(raw)

	if !parser.LooksLikeApplyPatch(patchText) {
		return core.ErrPatch("APPLY_PATCH_MALFORMED", "persisted patch is missing the begin/end patch sentinels")
	}
	artifact, err := parser.ValidatePatchPaths(patchText, repoRoot)
	if err != nil {
		return core.ErrPatch("APPLY_PATCH_PATH_REJECTED", "patch touches a path outside the target repository").WithCause(err)
	}

	if m.deps.Patcher == nil {
		return core.ErrState("APPLY_NO_PATCHER", "no patch applier configured")
	}

	before, err := m.dirtySnapshot(ctx, repoRoot)
	if err != nil {
		return err
	}
	if err := m.deps.Patcher.DryRun(ctx, repoRoot, artifact.Raw); err != nil {
		return core.ErrPatch("APPLY_DRY_RUN_FAILED", "patch does not apply cleanly to the target repository").WithCause(err)
	}

	// Re-check the working tree right before the real apply: the dry run
	// only proves the patch applied cleanly a moment ago, not that nothing
	// changed in between.
	after, err := m.dirtySnapshot(ctx, repoRoot)
	if err != nil {
		return err
	}
	if !sameFileSet(before, after) {
		return core.ErrState("APPLY_STATE_CHANGED_DURING_CONFIRMATION", "working tree changed between dry run and apply")
	}

	if err := m.deps.Patcher.ApplyPatchInDir(ctx, repoRoot, artifact.Raw); err != nil {
		return core.ErrPatch("APPLY_FAILED", "applying patch to target repository").WithCause(err)
	}

	return nil
}

// dirtySnapshot captures the set of tracked files differing from HEAD,
// used as a before/after fingerprint of the working tree around the real
// apply call. It is not meant to catch every possible concurrent edit,
// only a second process touching tracked files while the gate runs.
func (m *Manager) dirtySnapshot(ctx context.Context, repoRoot string) (map[string]bool, error) {
	if m.deps.Git == nil {
		return nil, core.ErrState("APPLY_NO_GIT", "no git client configured")
	}
	probe := isolation.NewProbe(m.deps.Git)
	files, err := probe.Dirty(ctx)
	if err != nil {
		return nil, core.ErrIsolation("APPLY_DIRTY_PROBE_FAILED", "checking working tree state").WithCause(err)
	}
	set := make(map[string]bool, len(files))
	for _, f := range files {
		set[f] = true
	}
	return set, nil
}

func sameFileSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for f := range a {
		if !b[f] {
			return false
		}
	}
	return true
}
