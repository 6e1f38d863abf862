// Package isolation builds a working root for a job: a detached worktree
// for fix mode, or a read-only file snapshot for review mode. Neither
// strategy ever mutates the user's working tree; both are rooted at a
// revision captured once, at job start.
package isolation

import (
	"context"

	"github.com/hugo-lorenzo-mato/council/internal/core"
)

// DirtyToken is the sentinel resolved by Probe.Dirty to the list of
// tracked files differing from HEAD.
const DirtyToken = "@dirty"

// Strategy produces an absolute working root rooted at a revision, and a
// cleanup func that removes everything it created. Prepare must succeed
// even when the caller's own working tree is dirty.
type Strategy interface {
	// Prepare materializes the working root for job at dir, checked out
	// at rev, and returns its absolute path.
	Prepare(ctx context.Context, dir, rev string) (workingRoot string, err error)

	// Cleanup removes the working root and deregisters any backing
	// resources (e.g. a worktree entry).
	Cleanup(ctx context.Context, workingRoot string) error
}

// Probe answers dirty-state questions against HEAD, independent of
// which Strategy a job uses.
type Probe struct {
	git core.GitClient
}

// NewProbe returns a dirty-state probe backed by git.
func NewProbe(git core.GitClient) *Probe {
	return &Probe{git: git}
}

// Dirty enumerates tracked files differing from HEAD. Resolves the
// DirtyToken sentinel used elsewhere in configuration/targeting.
func (p *Probe) Dirty(ctx context.Context) ([]string, error) {
	return p.git.DiffNameOnly(ctx, "HEAD")
}

// IsDirty reports whether the repository has any tracked changes versus
// HEAD, optionally counting untracked files too.
func (p *Probe) IsDirty(ctx context.Context, includeUntracked bool) (bool, error) {
	tracked, err := p.Dirty(ctx)
	if err != nil {
		return false, core.ErrIsolation("DIRTY_PROBE_FAILED", "diffing against HEAD").WithCause(err)
	}
	if len(tracked) > 0 {
		return true, nil
	}
	if !includeUntracked {
		return false, nil
	}
	untracked, err := p.git.UntrackedFiles(ctx)
	if err != nil {
		return false, core.ErrIsolation("DIRTY_PROBE_FAILED", "listing untracked files").WithCause(err)
	}
	return len(untracked) > 0, nil
}

// ResolveDirtyToken resolves a target string that is exactly DirtyToken
// into the current set of tracked files differing from HEAD. Any other
// target is returned unchanged as a single-element slice.
func (p *Probe) ResolveDirtyToken(ctx context.Context, target string) ([]string, error) {
	if target != DirtyToken {
		return []string{target}, nil
	}
	return p.Dirty(ctx)
}
