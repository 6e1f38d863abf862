package runner

import (
	"context"
	"strings"

	"github.com/hugo-lorenzo-mato/council/internal/core"
	"github.com/hugo-lorenzo-mato/council/internal/jobdir"
	"github.com/hugo-lorenzo-mato/council/internal/parser"
)

// runImplementation calls the implementer role with the chair's plan and
// extracts the raw patch payload. The payload is sanity-checked for the
// apply-patch sentinel pair here; path validation happens later, once the
// worktree root is known, in runApplyToWorktree.
func (r *Runner) runImplementation(ctx context.Context, jc *jobCtx) error {
	data := baseData(jc)
	data.Plan = formatPlan(jc.plan)

	reply, err := r.callRole(ctx, jc, core.RoleImplementer, "implementer", data)
	if err != nil {
		return err
	}

	raw, ok := parser.ExtractPatch(reply)
	if !ok {
		return core.ErrParse("PATCH_PARSE_FAILED", "implementer reply had no <patch> block")
	}
	if !parser.LooksLikeApplyPatch(raw) {
		return core.ErrParse("PATCH_MALFORMED", "patch payload is missing the begin/end patch sentinels")
	}

	jc.patchRaw = raw
	return r.writeTextArtifact(jc, "implementation_patch", jobdir.Patch(jc.jobDir), raw)
}

func formatPlan(plan *core.Plan) string {
	if plan == nil {
		return ""
	}
	var b strings.Builder
	for _, edit := range plan.Edits {
		b.WriteString("- " + edit.Path + ": " + edit.Description + "\n")
	}
	return b.String()
}
