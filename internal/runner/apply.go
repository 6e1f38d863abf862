package runner

import (
	"context"

	"github.com/hugo-lorenzo-mato/council/internal/core"
	"github.com/hugo-lorenzo-mato/council/internal/parser"
)

// runApplyToWorktree validates the implementer's patch paths against the
// worktree root and applies it. Paths are re-validated here rather than
// trusted from Implementation, since the worktree root is only known once
// isolation has prepared it.
func (r *Runner) runApplyToWorktree(ctx context.Context, jc *jobCtx) error {
	artifact, err := parser.ValidatePatchPaths(jc.patchRaw, jc.workingRoot)
	if err != nil {
		return core.ErrPatch("PATCH_PATH_REJECTED", "patch touches a path outside the worktree").WithCause(err)
	}

	if err := r.deps.Patcher.ApplyPatchInDir(ctx, jc.workingRoot, artifact.Raw); err != nil {
		return core.ErrPatch("PATCH_APPLY_FAILED", "applying patch to worktree").WithCause(err)
	}

	r.note(jc, core.PhaseApplyToWorktree, "patch applied to worktree")
	return nil
}
