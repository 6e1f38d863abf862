// Package runner drives a job's phase state machine (§4.4): it assembles
// context, calls model roles, validates and applies patches, runs the
// verifier, persists artifacts, and publishes a bounded event stream. It
// never panics out to its caller: any unexpected error is converted to a
// terminal JobFinished{Failure} so the job manager's singleton invariant
// always holds.
package runner

import (
	"context"
	"fmt"
	"os"

	"github.com/hugo-lorenzo-mato/council/internal/config"
	"github.com/hugo-lorenzo-mato/council/internal/core"
	"github.com/hugo-lorenzo-mato/council/internal/events"
	"github.com/hugo-lorenzo-mato/council/internal/isolation"
	"github.com/hugo-lorenzo-mato/council/internal/jobdir"
	"github.com/hugo-lorenzo-mato/council/internal/logging"
	"github.com/hugo-lorenzo-mato/council/internal/prompts"
	"github.com/hugo-lorenzo-mato/council/internal/verify"
)

// Deps bundles the Runner's collaborators. All are narrow ports (§6); the
// Runner owns none of their lifecycles except the ones it creates itself
// (isolation strategies, per-job directories).
type Deps struct {
	Git       core.GitClient
	Worktrees core.WorktreeCreator
	Models    core.ModelCaller
	Patcher   core.PatchApplier
	Detector  *verify.Detector
	Sandbox   *verify.Sandbox
	Prompts   *prompts.Renderer
	Bus       *events.Bus
	Logger    *logging.Logger
}

// Runner executes one job at a time; the job manager is responsible for
// never invoking it concurrently for more than one job against the same
// repository.
type Runner struct {
	deps Deps
	cfg  config.Config
}

// New returns a Runner backed by deps and cfg.
func New(deps Deps, cfg config.Config) *Runner {
	return &Runner{deps: deps, cfg: cfg}
}

// jobCtx carries everything a single job run threads through its phases.
type jobCtx struct {
	job          *core.Job
	jobDir       string
	workingRoot  string
	strategy     isolation.Strategy
	snapshotStr  *isolation.SnapshotStrategy // non-nil only in review mode
	debugLog     *debugLogger
	bundle       *core.ContextBundle
	baselineOK   bool
	baselineRes  *core.VerifyResult
	critiqueText string
	plan         *core.Plan
	patchRaw     string
}

// Run drives job through its phase sequence. It writes job_metadata.json
// and every phase artifact under cacheRoot/<job-id>, publishes events on
// Bus, and guarantees exactly one JobFinished event is published no
// matter how the job ends (invariant 1, §8).
func (r *Runner) Run(ctx context.Context, job *core.Job, cacheRoot string) {
	jc := &jobCtx{job: job, jobDir: jobdir.Dir(cacheRoot, job.ID)}
	if r.cfg.Debug.RawLog {
		jc.debugLog = newDebugLogger(jobdir.DebugLog(jc.jobDir))
	}

	outcome, summary := r.runGuarded(ctx, jc)
	job.Finish(outcome)
	if err := jobdir.WriteMetadata(jc.jobDir, job); err != nil {
		r.logError(job, "writing final job metadata: "+err.Error())
	}

	r.deps.Bus.PublishPriority(events.NewJobFinishedEvent(string(job.ID), string(outcome), summary))
}

// runGuarded wraps runJob with panic recovery so an unexpected internal
// error always resolves to a terminal failure instead of crashing the
// job's worker lane.
func (r *Runner) runGuarded(ctx context.Context, jc *jobCtx) (outcome core.Outcome, summary string) {
	defer func() {
		if rec := recover(); rec != nil {
			msg := fmt.Sprintf("internal error: %v", rec)
			r.deps.Bus.Publish(events.NewErrorEvent(string(jc.job.ID), "", msg))
			outcome = core.OutcomeFailure
			summary = msg
		}
	}()
	return r.runJob(ctx, jc)
}

func (r *Runner) runJob(ctx context.Context, jc *jobCtx) (core.Outcome, string) {
	job := jc.job

	if err := os.MkdirAll(jc.jobDir, 0o750); err != nil {
		return r.fail(jc, "", "creating job directory: "+err.Error())
	}
	job.RunnerPID = os.Getpid()
	if err := jobdir.WriteMetadata(jc.jobDir, job); err != nil {
		return r.fail(jc, "", "writing initial job metadata: "+err.Error())
	}

	r.deps.Bus.Publish(events.NewJobStartedEvent(string(job.ID), string(job.Mode), job.Target, job.HeadRev, job.DirtyStart))

	strategy, snapshotStr := r.strategyFor(job)
	jc.strategy = strategy
	jc.snapshotStr = snapshotStr

	workingRoot, err := strategy.Prepare(ctx, jc.jobDir, job.HeadRev)
	if err != nil {
		return r.failPhase(jc, core.PhaseDiscovering, err)
	}
	jc.workingRoot = workingRoot

	sequence := core.SequenceForMode(job.Mode)
	job.PhaseTotal = len(sequence)

	for i, phase := range sequence {
		if phase == core.PhaseDone {
			break
		}
		if ctx.Err() != nil {
			if cerr := jc.strategy.Cleanup(ctx, jc.workingRoot); cerr != nil {
				r.logError(job, "cleanup on cancel: "+cerr.Error())
			}
			return core.OutcomeCancelled, "job cancelled"
		}

		job.PhaseCurrent = i + 1
		r.deps.Bus.PublishPriority(events.NewPhaseStartedEvent(string(job.ID), string(phase), job.PhaseCurrent, job.PhaseTotal, ""))
		if err := jobdir.WriteMetadata(jc.jobDir, job); err != nil {
			r.logError(job, "updating job metadata: "+err.Error())
		}

		if err := r.runPhase(ctx, jc, phase); err != nil {
			return r.failPhase(jc, phase, err)
		}
	}

	return r.finishSuccess(jc)
}

func (r *Runner) runPhase(ctx context.Context, jc *jobCtx, phase core.Phase) error {
	switch phase {
	case core.PhaseDiscovering:
		return r.runDiscovering(ctx, jc)
	case core.PhaseBaselineVerify:
		return r.runBaselineVerify(ctx, jc)
	case core.PhaseCriticism:
		return r.runCriticism(ctx, jc)
	case core.PhasePlanning:
		return r.runPlanning(ctx, jc)
	case core.PhaseImplementation:
		return r.runImplementation(ctx, jc)
	case core.PhaseApplyToWorktree:
		return r.runApplyToWorktree(ctx, jc)
	case core.PhaseFinalVerify:
		return r.runFinalVerify(ctx, jc)
	default:
		return core.ErrState("UNKNOWN_PHASE", "unknown phase "+string(phase))
	}
}

func (r *Runner) strategyFor(job *core.Job) (isolation.Strategy, *isolation.SnapshotStrategy) {
	if job.Mode == core.ModeReview {
		s := isolation.NewSnapshotStrategy(r.deps.Git)
		return s, s
	}
	return isolation.NewWorktreeStrategy(r.deps.Worktrees), nil
}

// finishSuccess determines the job's outcome once every phase has run
// without a fatal error. Fix-mode success additionally requires the
// final verify to have passed.
func (r *Runner) finishSuccess(jc *jobCtx) (core.Outcome, string) {
	if jc.job.Mode == core.ModeFix {
		baselineNote := ""
		if jc.baselineRes != nil && !jc.baselineRes.Success() {
			baselineNote = " (baseline was already failing)"
		}
		if err := r.writeSummary(jc, core.OutcomeSuccess, "patch applied and final verify passed"+baselineNote); err != nil {
			r.logError(jc.job, "writing summary: "+err.Error())
		}
		return core.OutcomeSuccess, "patch applied and final verify passed" + baselineNote
	}
	if err := r.writeSummary(jc, core.OutcomeSuccess, "review complete"); err != nil {
		r.logError(jc.job, "writing summary: "+err.Error())
	}
	return core.OutcomeSuccess, "review complete"
}

// failPhase converts a phase error into the job's terminal outcome,
// publishing Error/Warning events and persisting a summary, per the
// error-handling design (§7): Cancelled maps to OutcomeCancelled, every
// other category to OutcomeFailure.
func (r *Runner) failPhase(jc *jobCtx, phase core.Phase, err error) (core.Outcome, string) {
	msg := err.Error()
	r.deps.Bus.Publish(events.NewErrorEvent(string(jc.job.ID), string(phase), msg))

	outcome := core.OutcomeFailure
	if core.IsCategory(err, core.ErrCatCancelled) {
		outcome = core.OutcomeCancelled
	}
	if werr := r.writeSummary(jc, outcome, msg); werr != nil {
		r.logError(jc.job, "writing summary: "+werr.Error())
	}
	return outcome, msg
}

func (r *Runner) fail(jc *jobCtx, phase core.Phase, msg string) (core.Outcome, string) {
	return r.failPhase(jc, phase, core.ErrState("RUNNER_SETUP_FAILED", msg))
}

func (r *Runner) logError(job *core.Job, msg string) {
	if r.deps.Logger != nil {
		r.deps.Logger.Error("runner error", "job_id", job.ID, "message", msg)
	}
}
