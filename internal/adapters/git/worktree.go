package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/council/internal/core"
)

// Compile-time interface conformance check.
var _ core.WorktreeCreator = (*DetachedWorktreeCreator)(nil)

// resolvePath resolves symlinks and returns an absolute path.
// This is needed for cross-platform path comparison (e.g., macOS /var -> /private/var).
func resolvePath(path string) string {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		// If we can't resolve, return absolute path
		abs, err := filepath.Abs(path)
		if err != nil {
			return path
		}
		return abs
	}
	return resolved
}

func validateWorktreeName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return core.ErrValidation("WORKTREE_NAME_REQUIRED", "worktree name required")
	}
	if strings.Contains(trimmed, "..") || strings.ContainsAny(trimmed, "/\\") {
		return core.ErrValidation("WORKTREE_NAME_INVALID", "worktree name contains invalid path characters")
	}
	return nil
}

// WorktreeManager manages detached git worktrees used for fix-mode isolation.
type WorktreeManager struct {
	git     *Client
	baseDir string
	prefix  string
}

// NewWorktreeManager creates a new worktree manager.
func NewWorktreeManager(git *Client, baseDir string) *WorktreeManager {
	if baseDir == "" {
		baseDir = filepath.Join(git.RepoPath(), ".worktrees")
	}

	return &WorktreeManager{
		git:     git,
		baseDir: baseDir,
		prefix:  "quorum-",
	}
}

// Worktree represents a detached git worktree pinned to a commit.
type Worktree struct {
	Path      string
	Commit    string
	Detached  bool
	CreatedAt time.Time
}

// CreateFromCommit creates a detached worktree from a commit.
func (m *WorktreeManager) CreateFromCommit(ctx context.Context, name, commit string) (*Worktree, error) {
	if err := validateWorktreeName(name); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(m.baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating worktree directory: %w", err)
	}

	worktreePath := filepath.Join(m.baseDir, m.prefix+name)

	if _, err := os.Stat(worktreePath); err == nil {
		return nil, core.ErrValidation("WORKTREE_EXISTS",
			fmt.Sprintf("worktree %s already exists", name))
	}

	_, err := m.git.run(ctx, "worktree", "add", "--detach", worktreePath, commit)
	if err != nil {
		return nil, fmt.Errorf("creating detached worktree: %w", err)
	}

	return &Worktree{
		Path:      worktreePath,
		Commit:    commit,
		Detached:  true,
		CreatedAt: time.Now(),
	}, nil
}

// Remove removes a worktree this manager created.
func (m *WorktreeManager) Remove(ctx context.Context, path string, force bool) error {
	// Check if path is within our base directory (using resolved paths for cross-platform)
	resolvedPath := resolvePath(path)
	resolvedBase := resolvePath(m.baseDir)
	if !strings.HasPrefix(resolvedPath, resolvedBase) {
		return core.ErrValidation("INVALID_WORKTREE",
			"worktree is not managed by this manager")
	}

	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)

	_, err := m.git.run(ctx, args...)
	return err
}

// WithPrefix sets a custom prefix for worktree names.
func (m *WorktreeManager) WithPrefix(prefix string) *WorktreeManager {
	m.prefix = prefix
	return m
}

// =============================================================================
// DetachedWorktreeCreator - implements core.WorktreeCreator
// =============================================================================

// DetachedWorktreeCreator adapts WorktreeManager to core.WorktreeCreator: a
// detached checkout pinned to a commit, with no branch of its own. This is
// the isolation layer's sole entry point into git worktrees for fix-mode
// jobs.
type DetachedWorktreeCreator struct {
	manager *WorktreeManager
}

// NewDetachedWorktreeCreator creates a worktree creator rooted at baseDir.
func NewDetachedWorktreeCreator(git *Client, baseDir string) *DetachedWorktreeCreator {
	return &DetachedWorktreeCreator{manager: NewWorktreeManager(git, baseDir).WithPrefix("council-")}
}

// CreateDetached creates a detached worktree named name, checked out at commit.
func (d *DetachedWorktreeCreator) CreateDetached(ctx context.Context, name, commit string) (string, error) {
	wt, err := d.manager.CreateFromCommit(ctx, name, commit)
	if err != nil {
		return "", err
	}
	return wt.Path, nil
}

// Remove force-removes the worktree at path.
func (d *DetachedWorktreeCreator) Remove(ctx context.Context, path string) error {
	return d.manager.Remove(ctx, path, true)
}
