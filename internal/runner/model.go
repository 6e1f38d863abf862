package runner

import (
	"context"
	"time"

	"github.com/hugo-lorenzo-mato/council/internal/core"
)

// defaultRoleTimeout applies when a role has no configured timeout.
const defaultRoleTimeout = 120 * time.Second

// promptData is the template data shared by every role's user prompt and
// the shared constitution system prompt.
type promptData struct {
	Target         string
	Mode           string
	Dirty          bool
	BaselineVerify string
	Files          []core.ContextFile
	Critiques      string
	Plan           string
}

// callRole renders the constitution as the system prompt and name as the
// user prompt, then calls the model for role, bounded by that role's
// configured timeout. Raw replies are appended to the job's debug log
// when debug.raw_log is enabled, never surfaced in events.
func (r *Runner) callRole(ctx context.Context, jc *jobCtx, role, templateName string, data promptData) (string, error) {
	systemText, err := r.deps.Prompts.Render(r.cfg.PromptVersion, "constitution", data)
	if err != nil {
		return "", core.ErrModel("PROMPT_SYSTEM_RENDER_FAILED", "rendering system prompt").WithCause(err)
	}
	userText, err := r.deps.Prompts.Render(r.cfg.PromptVersion, templateName, data)
	if err != nil {
		return "", core.ErrModel("PROMPT_USER_RENDER_FAILED", "rendering "+templateName+" prompt").WithCause(err)
	}

	agent, ok := r.cfg.Agents.RoleAgentFor(role)
	timeout := defaultRoleTimeout
	if ok && agent.TimeoutSeconds > 0 {
		timeout = time.Duration(agent.TimeoutSeconds) * time.Second
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reply, err := r.deps.Models.Call(callCtx, role, systemText, userText)
	if jc.debugLog != nil {
		jc.debugLog.Writef("=== role %s ===\n%s\n", role, reply)
	}
	if err != nil {
		return "", core.ErrModel("MODEL_CALL_FAILED", "calling role "+role).WithCause(err)
	}
	return reply, nil
}

func baseData(jc *jobCtx) promptData {
	return promptData{
		Target: jc.job.Target,
		Mode:   string(jc.job.Mode),
		Dirty:  jc.job.DirtyStart,
	}
}
