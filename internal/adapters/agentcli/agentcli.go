// Package agentcli implements core.ModelCaller by shelling out to a
// configured CLI agent binary, argv-only, the same way
// internal/adapters/git invokes the git binary and internal/verify's
// Sandbox invokes toolchain commands.
package agentcli

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/council/internal/config"
	"github.com/hugo-lorenzo-mato/council/internal/core"
)

// DefaultTimeout is used when a role's configured timeout is zero.
const DefaultTimeout = 120 * time.Second

// Compile-time interface conformance check.
var _ core.ModelCaller = (*Caller)(nil)

// Caller invokes the CLI binary configured for each role (§6's agent
// contract), prepending the system prompt onto the piped stdin text ahead of
// the user prompt, and returning stdout verbatim as the reply text.
type Caller struct {
	agents config.Agents
}

// NewCaller returns a Caller backed by agents, the role-to-CLI mapping from
// configuration.
func NewCaller(agents config.Agents) *Caller {
	return &Caller{agents: agents}
}

// Call runs the CLI agent configured for role with systemText appended as a
// system prompt and userText piped over stdin.
func (c *Caller) Call(ctx context.Context, role, systemText, userText string) (string, error) {
	agent, ok := c.agents.RoleAgentFor(role)
	if !ok {
		return "", core.ErrValidation("MODEL_UNKNOWN_ROLE", "unrecognized model role: "+role)
	}
	if agent.Path == "" {
		return "", core.ErrState("MODEL_NO_PATH", "no CLI path configured for role: "+role)
	}

	timeout := time.Duration(agent.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := buildArgs(agent)

	// Multi-word paths (e.g. "gh copilot") split the same way the teacher's
	// BaseAdapter.ExecuteCommand does.
	parts := strings.Fields(agent.Path)
	bin, extra := parts[0], parts[1:]
	args = append(append([]string{}, extra...), args...)

	prompt := userText
	if systemText != "" {
		prompt = "[System Instructions]\n" + systemText + "\n\n[User Message]\n" + userText
	}

	// #nosec G204 -- bin and args come from configuration, never user input or a shell string
	cmd := exec.CommandContext(cmdCtx, bin, args...)
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if cmdCtx.Err() == context.DeadlineExceeded {
			return "", core.ErrTimeout(fmt.Sprintf("model call timed out for role %s", role))
		}
		return "", core.ErrModel("MODEL_CALL_FAILED", fmt.Sprintf("%s: %s", role, strings.TrimSpace(stderr.String()))).WithCause(err)
	}
	return stdout.String(), nil
}

// buildArgs constructs the print-mode, non-interactive CLI invocation
// shared by the CLI agents this module targets (claude, codex): print mode
// plus a model flag when configured. The system prompt travels with the
// piped prompt text rather than a flag, matching how the CLIs without a
// dedicated system-prompt flag are driven.
func buildArgs(agent config.RoleAgent) []string {
	args := []string{"--print"}
	if agent.Model != "" {
		args = append(args, "--model", agent.Model)
	}
	return args
}
