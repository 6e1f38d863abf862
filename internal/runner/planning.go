package runner

import (
	"context"

	"github.com/hugo-lorenzo-mato/council/internal/core"
	"github.com/hugo-lorenzo-mato/council/internal/jobdir"
	"github.com/hugo-lorenzo-mato/council/internal/parser"
)

// defaultMaxIterations applies when repair.max_iterations is unset: one
// attempt, no retry.
const defaultMaxIterations = 1

// runPlanning calls the chair role and parses its <plan> block. A parse
// failure (no well-formed, non-empty <plan>) is retried up to
// repair.max_iterations total attempts before the phase fails the job.
func (r *Runner) runPlanning(ctx context.Context, jc *jobCtx) error {
	maxAttempts := r.cfg.Repair.MaxIterations
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxIterations
	}

	data := baseData(jc)
	data.Critiques = jc.critiqueText

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			r.note(jc, core.PhasePlanning, "retrying planning after a parse failure")
		}

		reply, err := r.callRole(ctx, jc, core.RoleChair, "chair", data)
		if err != nil {
			return err
		}

		plan, ok := parser.ExtractPlan(reply)
		if !ok {
			lastErr = core.ErrParse("PLAN_PARSE_FAILED", "chair reply had no well-formed, non-empty <plan> block")
			continue
		}

		jc.plan = plan
		return r.writeTextArtifact(jc, "plan", jobdir.Plan(jc.jobDir), plan.Raw)
	}

	return lastErr
}
