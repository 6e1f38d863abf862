// Package patch implements core.PatchApplier by shelling out to `git apply`
// against an explicit root, argv-only, the same way internal/adapters/git
// invokes the git binary.
package patch

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/council/internal/core"
)

// DefaultTimeout bounds a single apply or dry-run invocation.
const DefaultTimeout = 30 * time.Second

// Compile-time interface conformance check.
var _ core.PatchApplier = (*Applier)(nil)

// Applier applies unified diffs via the git binary found on PATH.
type Applier struct {
	gitPath string
	timeout time.Duration
}

// NewApplier returns an Applier. gitPath may be empty, in which case "git"
// is resolved from PATH at call time.
func NewApplier(gitPath string) *Applier {
	return &Applier{gitPath: gitPath, timeout: DefaultTimeout}
}

// WithTimeout overrides the per-call timeout.
func (a *Applier) WithTimeout(d time.Duration) *Applier {
	a.timeout = d
	return a
}

// DryRun validates that patchText would apply cleanly against rootAbs
// without mutating anything, via `git apply --check`.
func (a *Applier) DryRun(ctx context.Context, rootAbs, patchText string) error {
	return a.run(ctx, rootAbs, patchText, "--check")
}

// ApplyPatchInDir applies patchText against rootAbs via `git apply`.
func (a *Applier) ApplyPatchInDir(ctx context.Context, rootAbs, patchText string) error {
	return a.run(ctx, rootAbs, patchText, "--whitespace=nowarn")
}

func (a *Applier) run(ctx context.Context, rootAbs, patchText string, extraArg string) error {
	gitPath := a.gitPath
	if gitPath == "" {
		resolved, err := exec.LookPath("git")
		if err != nil {
			return core.ErrState("PATCH_GIT_NOT_FOUND", "git binary not found in PATH").WithCause(err)
		}
		gitPath = resolved
	}

	timeout := a.timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// #nosec G204 -- gitPath is resolved from PATH or explicit config, args are fixed flags, patch text flows over stdin.
	args := []string{"apply", "--unidiff-zero", extraArg, "-"}
	cmd := exec.CommandContext(cmdCtx, gitPath, args...)
	cmd.Dir = rootAbs
	cmd.Stdin = strings.NewReader(patchText)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if cmdCtx.Err() == context.DeadlineExceeded {
			return core.ErrTimeout("git apply timed out")
		}
		return fmt.Errorf("git apply %s: %s: %w", extraArg, strings.TrimSpace(stderr.String()), err)
	}
	return nil
}
