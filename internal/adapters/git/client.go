package git

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/council/internal/core"
)

// Compile-time interface conformance check.
var _ core.GitClient = (*Client)(nil)

// Client wraps git CLI operations, restricted to the subset core.GitClient
// names plus the worktree plumbing internal/adapters/git's
// DetachedWorktreeCreator needs.
type Client struct {
	repoPath string
	timeout  time.Duration
	gitPath  string
}

// NewClient creates a new git client.
func NewClient(repoPath string) (*Client, error) {
	// Resolve to absolute path
	absPath, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	gitPath, err := resolveGitBinaryPath(absPath)
	if err != nil {
		return nil, err
	}

	client := &Client{
		repoPath: absPath,
		timeout:  30 * time.Second,
		gitPath:  gitPath,
	}

	// Verify it's a git repository
	if err := client.verifyRepo(); err != nil {
		return nil, err
	}

	return client, nil
}

// verifyRepo checks if path is a git repository.
func (c *Client) verifyRepo() error {
	_, err := c.run(context.Background(), "rev-parse", "--git-dir")
	if err != nil {
		return core.ErrValidation("NOT_GIT_REPO", fmt.Sprintf("%s is not a git repository", c.repoPath))
	}
	return nil
}

// run executes a git command.
func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// Security note: exec.CommandContext does not invoke a shell, so arguments are
	// not subject to shell interpolation. We still validate the binary location
	// at construction time to prevent a tampered PATH from substituting git itself.
	cmd := exec.CommandContext(ctx, c.gitPath, args...)
	cmd.Dir = c.repoPath

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", core.ErrTimeout("git command timed out")
		}
		return "", fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), stderr.String(), err)
	}

	return strings.TrimSpace(stdout.String()), nil
}

// RepoRoot returns the repository root path (implements core.GitClient).
func (c *Client) RepoRoot(_ context.Context) (string, error) {
	return c.repoPath, nil
}

// RevParse resolves ref to a commit hash (implements core.GitClient).
func (c *Client) RevParse(ctx context.Context, ref string) (string, error) {
	return c.run(ctx, "rev-parse", ref)
}

// Show returns the byte content of a path as it existed at rev.
// Used by the snapshot isolation strategy to read files pinned to a
// revision without touching the working tree.
func (c *Client) Show(ctx context.Context, rev, path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// #nosec G204 -- rev and path are validated by callers (confined to repo root)
	cmd := exec.CommandContext(ctx, c.gitPath, "show", rev+":"+path)
	cmd.Dir = c.repoPath

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, core.ErrTimeout("git show timed out")
		}
		return nil, fmt.Errorf("git show %s:%s: %s: %w", rev, path, stderr.String(), err)
	}

	return stdout.Bytes(), nil
}

// DiffNameOnly returns the paths of tracked files that differ from rev.
func (c *Client) DiffNameOnly(ctx context.Context, rev string) ([]string, error) {
	output, err := c.run(ctx, "diff", "--name-only", rev)
	if err != nil {
		return nil, err
	}
	return splitNonEmptyLines(output), nil
}

// UntrackedFiles returns paths reported by git as untracked.
func (c *Client) UntrackedFiles(ctx context.Context) ([]string, error) {
	output, err := c.run(ctx, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, err
	}
	return splitNonEmptyLines(output), nil
}

// ListTree lists every regular file path under dir (relative to the repo
// root; an empty dir lists the whole tree) as recorded at rev.
func (c *Client) ListTree(ctx context.Context, rev, dir string) ([]string, error) {
	args := []string{"ls-tree", "--name-only", "-r", rev}
	if dir != "" {
		args = append(args, "--", dir)
	}
	output, err := c.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	return splitNonEmptyLines(output), nil
}

func splitNonEmptyLines(s string) []string {
	lines := make([]string, 0)
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// RepoPath returns the repository path. Used by WorktreeManager to derive
// a default worktree base directory.
func (c *Client) RepoPath() string {
	return c.repoPath
}

func resolveGitBinaryPath(repoAbs string) (string, error) {
	p, err := exec.LookPath("git")
	if err != nil {
		return "", fmt.Errorf("git not found in PATH: %w", err)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolving git path: %w", err)
	}

	real := abs
	if rr, err := filepath.EvalSymlinks(abs); err == nil {
		real = rr
	}

	info, err := os.Stat(real)
	if err != nil {
		return "", fmt.Errorf("stat git binary: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("git binary is not a regular file: %s", real)
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return "", fmt.Errorf("git binary is not executable: %s", real)
	}

	// Defensive: avoid executing a "git" that lives inside the repository itself.
	// This reduces risk if PATH is manipulated to include "." or repo directories.
	if isPathWithinDir(repoAbs, real) {
		return "", fmt.Errorf("refusing to execute git from within repository: %s", real)
	}

	return real, nil
}

func isPathWithinDir(root, path string) bool {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	pathAbs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(rootAbs, pathAbs)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}
