package isolation

import (
	"context"
	"path/filepath"

	"github.com/hugo-lorenzo-mato/council/internal/core"
)

// WorktreeStrategy backs fix-mode jobs: a detached checkout under the job
// directory, pinned to rev, independent of the main working tree's dirty
// state. Cleanup both removes the directory and deregisters the worktree
// from the repository's worktree list.
type WorktreeStrategy struct {
	creator core.WorktreeCreator
}

// NewWorktreeStrategy returns a Strategy backed by creator.
func NewWorktreeStrategy(creator core.WorktreeCreator) *WorktreeStrategy {
	return &WorktreeStrategy{creator: creator}
}

var _ Strategy = (*WorktreeStrategy)(nil)

// Prepare creates a detached worktree named "worktree" under dir, checked
// out at rev.
func (w *WorktreeStrategy) Prepare(ctx context.Context, dir, rev string) (string, error) {
	if rev == "" {
		return "", core.ErrIsolation("WORKTREE_REV_REQUIRED", "a revision is required to create a worktree")
	}
	path, err := w.creator.CreateDetached(ctx, filepath.Base(dir), rev)
	if err != nil {
		return "", core.ErrIsolation("WORKTREE_CREATE_FAILED", "creating detached worktree").WithCause(err).
			WithDetail("rev", rev)
	}
	return path, nil
}

// Cleanup force-removes the worktree and deregisters it from git.
func (w *WorktreeStrategy) Cleanup(ctx context.Context, workingRoot string) error {
	if err := w.creator.Remove(ctx, workingRoot); err != nil {
		return core.ErrIsolation("WORKTREE_REMOVE_FAILED", "removing worktree").WithCause(err).
			WithDetail("path", workingRoot)
	}
	return nil
}
