package runner

import (
	"context"
	"strings"

	"github.com/hugo-lorenzo-mato/council/internal/config"
	"github.com/hugo-lorenzo-mato/council/internal/core"
	"github.com/hugo-lorenzo-mato/council/internal/discover"
	"github.com/hugo-lorenzo-mato/council/internal/events"
	"github.com/hugo-lorenzo-mato/council/internal/jobdir"
)

// runDiscovering builds the job's context bundle (§4.1) from whichever
// Source matches the job's isolation strategy, and persists it as
// context_bundle.json.
func (r *Runner) runDiscovering(ctx context.Context, jc *jobCtx) error {
	src := r.sourceFor(jc)

	rustManifest := src.HasFile(ctx, "Cargo.toml")
	builder := discover.NewBuilder(r.cfg.Limits)
	bundle, warnings := builder.Build(ctx, src, jc.job.Target, rustManifest)

	for _, w := range warnings {
		r.warn(jc, w.Message)
	}
	if len(bundle.Files) == 0 {
		return core.ErrContext("DISCOVER_EMPTY_BUNDLE", "context bundle is empty; target could not be read")
	}

	jc.bundle = bundle
	return r.writeJSONArtifact(jc, "context_bundle", jobdir.ContextBundle(jc.jobDir), bundle)
}

func (r *Runner) sourceFor(jc *jobCtx) discover.Source {
	if jc.job.Mode == core.ModeReview {
		return &discover.SnapshotSource{
			Git:          r.deps.Git,
			Strategy:     jc.snapshotStr,
			SnapshotRoot: jc.workingRoot,
			Rev:          jc.job.HeadRev,
		}
	}
	return &discover.WorktreeSource{WorkingRoot: jc.workingRoot}
}

// runBaselineVerify runs the verifier against the freshly created worktree
// before any patch is applied (fix mode only). Failure here is
// non-fatal: the job proceeds and the baseline result is surfaced to the
// critics and in the final summary.
func (r *Runner) runBaselineVerify(ctx context.Context, jc *jobCtx) error {
	commands := r.deps.Detector.Detect(jc.workingRoot, r.cfg.Verify.Commands)
	result, err := r.runVerify(ctx, jc, commands)
	if err != nil {
		return err
	}
	jc.baselineRes = result
	jc.baselineOK = result.Success()
	if !jc.baselineOK {
		r.warn(jc, "baseline verify failed before any patch was applied")
	}
	return r.writeJSONArtifact(jc, "verify_baseline", jobdir.VerifyBaseline(jc.jobDir), result)
}

// runFinalVerify re-runs the verifier after the patch has been applied to
// the worktree. Its result determines the job's final outcome.
func (r *Runner) runFinalVerify(ctx context.Context, jc *jobCtx) error {
	commands := r.deps.Detector.Detect(jc.workingRoot, r.cfg.Verify.Commands)
	result, err := r.runVerify(ctx, jc, commands)
	if err != nil {
		return err
	}
	if err := r.writeJSONArtifact(jc, "verify_final", jobdir.VerifyFinal(jc.jobDir), result); err != nil {
		return err
	}
	if !result.Success() {
		return core.ErrVerify("FINAL_VERIFY_FAILED", "verification failed after applying the patch")
	}
	return nil
}

// runVerify runs commands against the job's working root. The sandbox
// executes the whole list in one call, so CommandStarted/CommandFinished
// are published back-to-back per command once the list returns, in the
// order the commands ran.
func (r *Runner) runVerify(ctx context.Context, jc *jobCtx, commands []config.VerifyCommand) (*core.VerifyResult, error) {
	result, err := r.deps.Sandbox.Run(ctx, jc.workingRoot, commands)
	if err != nil {
		return nil, core.ErrVerify("VERIFY_RUN_FAILED", "running verification commands").WithCause(err)
	}

	for _, cr := range result.Commands {
		display := strings.Join(cr.Command, " ")
		r.deps.Bus.Publish(events.NewCommandStartedEvent(string(jc.job.ID), display))
		status := "ok"
		if cr.ExitCode != 0 {
			status = "failed"
		}
		r.deps.Bus.Publish(events.NewCommandFinishedEvent(string(jc.job.ID), display, status, cr.Duration, cr.Truncated))
	}

	return result, nil
}
