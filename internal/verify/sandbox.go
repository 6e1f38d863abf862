package verify

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/council/internal/config"
	"github.com/hugo-lorenzo-mato/council/internal/core"
	"github.com/hugo-lorenzo-mato/council/internal/logging"
)

// baseAllowedEnv is always forwarded to sandboxed commands, regardless of
// project-specific whitelisting.
var baseAllowedEnv = []string{"PATH", "HOME", "LANG", "USER"}

// DefaultOutputCapBytes bounds captured stdout/stderr per command.
const DefaultOutputCapBytes = 256 * 1024

// DefaultGracePeriod is how long a cancelled command is given to exit
// after SIGTERM before the sandbox escalates to SIGKILL.
const DefaultGracePeriod = 5 * time.Second

// Sandbox runs an ordered command list against a pinned working root:
// argv-only (never a shell string), environment allowlisted, output
// capped, and captured output redacted before it leaves the sandbox.
type Sandbox struct {
	// ExtraEnvAllowlist names additional environment variables (beyond
	// PATH/HOME/LANG/USER) to forward from the hosting process, e.g.
	// project-specific toolchain variables.
	ExtraEnvAllowlist []string

	// OutputCapBytes bounds captured stdout/stderr per command. Zero
	// selects DefaultOutputCapBytes.
	OutputCapBytes int

	// GracePeriod is how long a cancelled command gets between SIGTERM
	// and SIGKILL. Zero selects DefaultGracePeriod.
	GracePeriod time.Duration

	// LogDir, if set, receives one redacted log file per command,
	// recorded as CommandResult.RedactedLogPath.
	LogDir string

	sanitizer *logging.Sanitizer
}

// NewSandbox returns a Sandbox that redacts captured output with sanitizer.
// A nil sanitizer gets a default one.
func NewSandbox(sanitizer *logging.Sanitizer) *Sandbox {
	if sanitizer == nil {
		sanitizer = logging.NewSanitizer()
	}
	return &Sandbox{sanitizer: sanitizer}
}

// Run executes commands in order against workingRoot and returns their
// results. Execution stops at the first command whose context is
// cancelled; commands after a non-zero exit still run (the Verifier
// reports the full picture; gating on failure is the Runner's job).
func (s *Sandbox) Run(ctx context.Context, workingRoot string, commands []config.VerifyCommand) (*core.VerifyResult, error) {
	result := &core.VerifyResult{}

	for i, cmd := range commands {
		cr, err := s.runOne(ctx, workingRoot, cmd, i)
		if err != nil {
			return result, err
		}
		result.Commands = append(result.Commands, cr)
		if ctx.Err() != nil {
			break
		}
	}

	return result, nil
}

func (s *Sandbox) runOne(ctx context.Context, workingRoot string, vc config.VerifyCommand, index int) (core.CommandResult, error) {
	if len(vc.Argv) == 0 {
		return core.CommandResult{}, core.ErrVerify("VERIFY_EMPTY_ARGV", "verify command has empty argv").
			WithDetail("name", vc.Name)
	}

	timeout := time.Duration(vc.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// #nosec G204 -- argv comes from toolchain detection or explicit config, never a shell string
	execCmd := exec.CommandContext(cmdCtx, vc.Argv[0], vc.Argv[1:]...)
	execCmd.Dir = workingRoot
	execCmd.Env = s.buildEnv()
	configureProcAttr(execCmd)

	capBytes := s.OutputCapBytes
	if capBytes <= 0 {
		capBytes = DefaultOutputCapBytes
	}
	stdout := newCappedBuffer(capBytes)
	stderr := newCappedBuffer(capBytes)
	execCmd.Stdout = stdout
	execCmd.Stderr = stderr

	grace := s.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}

	start := time.Now()
	err := execCmd.Start()
	if err != nil {
		return core.CommandResult{}, core.ErrVerify("VERIFY_SPAWN_FAILED", "starting verify command").
			WithCause(err).WithDetail("name", vc.Name)
	}

	done := make(chan error, 1)
	go func() { done <- execCmd.Wait() }()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-cmdCtx.Done():
		terminateProcessGroup(execCmd, grace)
		waitErr = <-done
	}

	duration := time.Since(start)
	exitCode := 0
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else if cmdCtx.Err() == context.DeadlineExceeded {
			exitCode = -1
		} else {
			exitCode = -1
		}
	}

	truncated := stdout.Truncated() || stderr.Truncated()

	redactedLogPath := ""
	if s.LogDir != "" {
		path, writeErr := s.writeRedactedLog(vc, index, stdout.String(), stderr.String())
		if writeErr == nil {
			redactedLogPath = path
		}
	}

	return core.CommandResult{
		Command:         vc.Argv,
		ExitCode:        exitCode,
		Duration:        duration,
		Truncated:       truncated,
		RedactedLogPath: redactedLogPath,
	}, nil
}

// buildEnv constructs the allowlisted environment for a sandboxed command.
func (s *Sandbox) buildEnv() []string {
	allowed := make(map[string]bool, len(baseAllowedEnv)+len(s.ExtraEnvAllowlist))
	for _, name := range baseAllowedEnv {
		allowed[name] = true
	}
	for _, name := range s.ExtraEnvAllowlist {
		allowed[name] = true
	}

	var env []string
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		if allowed[parts[0]] {
			env = append(env, kv)
		}
	}
	return env
}

// writeRedactedLog writes sanitized stdout/stderr to LogDir and returns
// the file path.
func (s *Sandbox) writeRedactedLog(vc config.VerifyCommand, index int, stdout, stderr string) (string, error) {
	if err := os.MkdirAll(s.LogDir, 0o750); err != nil {
		return "", err
	}

	name := vc.Name
	if name == "" {
		name = "command"
	}
	path := filepath.Join(s.LogDir, fmt.Sprintf("%02d_%s.log", index, sanitizeFileName(name)))

	content := "$ " + strings.Join(vc.Argv, " ") + "\n\n--- stdout ---\n" + s.sanitizer.Sanitize(stdout) +
		"\n--- stderr ---\n" + s.sanitizer.Sanitize(stderr)

	if err := os.WriteFile(path, []byte(content), 0o640); err != nil {
		return "", err
	}
	return path, nil
}

func sanitizeFileName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
