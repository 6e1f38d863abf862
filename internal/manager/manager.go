// Package manager implements the singleton Job Manager (§4.5): it accepts
// at most one active job at a time, spawns the runner for it, bridges its
// event stream to a consumer sink, and owns retention, crash recovery and
// the Apply Gate.
package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hugo-lorenzo-mato/council/internal/config"
	"github.com/hugo-lorenzo-mato/council/internal/core"
	"github.com/hugo-lorenzo-mato/council/internal/events"
	"github.com/hugo-lorenzo-mato/council/internal/jobdir"
	"github.com/hugo-lorenzo-mato/council/internal/jobid"
	"github.com/hugo-lorenzo-mato/council/internal/logging"
	"github.com/hugo-lorenzo-mato/council/internal/runner"
)

// Sink receives every event the manager bridges from a job's bus. It is
// called synchronously from a bridging goroutine; callers that need to do
// slow work should buffer internally rather than block it for long.
type Sink func(events.Event)

// forwardedTypes are delivered through the manager's regular subscription,
// best-effort under the bus's own ring buffer: coalescable progress events
// that are fine to drop under backpressure. Phase-boundary events
// (PhaseStarted, ArtifactWritten, JobFinished) are deliberately excluded
// here; spec.md §5 requires those are never dropped, so they are bridged
// separately through priority subscriptions (priorityTypes, and JobFinished
// on its own channel so the manager can guarantee it clears active_job_id).
var forwardedTypes = []string{
	events.TypeJobStarted,
	events.TypePhaseNote,
	events.TypeCommandStarted,
	events.TypeCommandFinished,
	events.TypeWarning,
	events.TypeError,
}

// priorityTypes are phase-boundary events that must never be dropped by
// the bus's ring buffer. They are bridged through a blocking priority
// subscription distinct from JobFinished's, since they don't carry the
// job-completion side effects bridge's finished case does.
var priorityTypes = []string{
	events.TypePhaseStarted,
	events.TypeArtifactWritten,
}

// activeJob tracks the single job currently running.
type activeJob struct {
	id     core.JobID
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager is the singleton job manager. One Manager owns one cache root;
// at most one job runs under it at a time.
type Manager struct {
	mu        sync.Mutex
	active    *activeJob
	cacheRoot string
	cfg       config.Config
	deps      runner.Deps // Bus is overwritten per job before each Run
	logger    *logging.Logger
	sink      Sink

	watcher *fsnotify.Watcher // optional; nil when unavailable
}

// New constructs a Manager. deps.Bus is ignored (a fresh bus is created per
// job); every other field is reused across jobs. Submit runs crash
// recovery and retention once before returning.
func New(ctx context.Context, cacheRoot string, cfg config.Config, deps runner.Deps, sink Sink) (*Manager, error) {
	m := &Manager{
		cacheRoot: cacheRoot,
		cfg:       cfg,
		deps:      deps,
		logger:    deps.Logger,
		sink:      sink,
	}
	m.startWatcher()

	if err := m.RecoverCrashed(ctx); err != nil {
		return nil, err
	}
	if err := m.pruneRetentionCtx(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// startWatcher installs a best-effort fsnotify watch on the cache root, for
// long-lived embeddings that want to notice external tampering between
// scans. The watcher is entirely optional: any setup failure falls back
// silently to the plain directory scans RecoverCrashed and pruneRetention
// already do on their own schedule.
func (m *Manager) startWatcher() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return
	}
	if err := watcher.Add(m.cacheRoot); err != nil {
		watcher.Close()
		return
	}
	m.watcher = watcher
	go m.watchLoop()
}

func (m *Manager) watchLoop() {
	for {
		select {
		case _, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			// Best-effort signal only; RecoverCrashed and pruneRetention
			// remain the source of truth and are re-run on their own
			// triggers (startup, and after each job completes).
		case _, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close releases the cache-root watcher, if one was started.
func (m *Manager) Close() {
	if m.watcher != nil {
		m.watcher.Close()
	}
}

// ActiveJobID returns the currently running job's id, or "" if none.
func (m *Manager) ActiveJobID() core.JobID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return ""
	}
	return m.active.id
}

// Submit starts a new job if none is currently active. Rejection is a
// validation-category error (exit code 2 at the CLI boundary), naming the
// job already holding the slot.
func (m *Manager) Submit(ctx context.Context, mode core.Mode, target, repoRoot, headRev string, dirtyStart bool) (core.JobID, error) {
	if err := validateTarget(target, repoRoot); err != nil {
		return "", err
	}

	m.mu.Lock()
	if m.active != nil {
		active := m.active.id
		m.mu.Unlock()
		return "", core.ErrValidation("JOB_ALREADY_ACTIVE", fmt.Sprintf("job %s is already active; no queueing", active))
	}

	id := jobid.New(time.Now())
	job := core.New(id, mode, target, repoRoot, headRev, dirtyStart)

	jobCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.active = &activeJob{id: id, cancel: cancel, done: done}
	m.mu.Unlock()

	bus := events.New(200)
	finished := bus.SubscribePriority(events.TypeJobFinished)
	boundaries := bus.SubscribePriority(priorityTypes...)
	forwarded := bus.Subscribe(forwardedTypes...)

	go m.bridge(forwarded, boundaries, finished, id, done)
	go m.spawn(jobCtx, job, bus)

	return id, nil
}

// bridge forwards every event for one job's bus to the sink, and clears
// active_job_id exactly when the terminal JobFinished event passes
// through. It runs until that terminal event arrives. boundaries carries
// the never-drop phase-boundary events (PhaseStarted, ArtifactWritten)
// on their own priority channel, separate from the coalescable forwarded
// stream and from finished's job-completion handling.
func (m *Manager) bridge(forwarded, boundaries <-chan events.Event, finished <-chan events.Event, id core.JobID, done chan struct{}) {
	for {
		select {
		case e, ok := <-forwarded:
			if !ok {
				forwarded = nil
				continue
			}
			if m.sink != nil {
				m.sink(e)
			}
		case e, ok := <-boundaries:
			if !ok {
				boundaries = nil
				continue
			}
			if m.sink != nil {
				m.sink(e)
			}
		case e, ok := <-finished:
			if !ok {
				return
			}
			if m.sink != nil {
				m.sink(e)
			}
			m.clearActive(id)
			close(done)
			if err := m.pruneRetention(); err != nil && m.logger != nil {
				m.logger.Error("retention prune after job completion", "job_id", id, "error", err)
			}
			return
		}
	}
}

// spawn runs the job's Runner on its own goroutine, isolated by a guard
// that synthesizes a terminal JobFinished event if the spawn itself panics
// before the Runner's own recover() can take over — e.g. a panic while
// preparing its dependencies.
func (m *Manager) spawn(ctx context.Context, job *core.Job, bus *events.Bus) {
	defer func() {
		if rec := recover(); rec != nil {
			job.Finish(core.OutcomeFailure)
			bus.PublishPriority(events.NewJobFinishedEvent(string(job.ID), string(core.OutcomeFailure), fmt.Sprintf("job manager panic: %v", rec)))
		}
	}()

	deps := m.deps
	deps.Bus = bus
	r := runner.New(deps, m.cfg)
	r.Run(ctx, job, m.cacheRoot)
}

func (m *Manager) clearActive(id core.JobID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil && m.active.id == id {
		m.active = nil
	}
}

// Wait returns a channel that closes once the given job's terminal event
// has passed through the bridge and active_job_id has been cleared. If id
// is not (or no longer) the active job, it returns an already-closed
// channel: callers that raced a fast job to completion should fall back to
// Get for the persisted outcome.
func (m *Manager) Wait(id core.JobID) <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil && m.active.id == id {
		return m.active.done
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// Cancel requests cancellation of the active job, if its id matches.
// Cancellation is cooperative: the runner observes ctx.Err() between
// phases and the sandbox propagates it to any running command.
func (m *Manager) Cancel(id core.JobID) error {
	m.mu.Lock()
	active := m.active
	m.mu.Unlock()
	if active == nil || active.id != id {
		return core.ErrNotFound("job", string(id))
	}
	active.cancel()
	return nil
}

// JobSummary is the list/inspect view over a persisted job directory.
type JobSummary struct {
	ID      core.JobID   `json:"id"`
	Mode    core.Mode    `json:"mode"`
	Target  string       `json:"target"`
	Outcome core.Outcome `json:"outcome"`
}

// List returns a summary of every job directory under the cache root, in
// no particular order.
func (m *Manager) List() ([]JobSummary, error) {
	dirs, err := jobdir.ListJobDirs(m.cacheRoot)
	if err != nil {
		return nil, err
	}
	summaries := make([]JobSummary, 0, len(dirs))
	for _, dir := range dirs {
		job, err := jobdir.ReadMetadata(dir)
		if err != nil {
			continue
		}
		summaries = append(summaries, JobSummary{ID: job.ID, Mode: job.Mode, Target: job.Target, Outcome: job.Outcome})
	}
	return summaries, nil
}

// Get reads a single job's persisted metadata by id.
func (m *Manager) Get(id core.JobID) (*core.Job, error) {
	dir := jobdir.Dir(m.cacheRoot, id)
	job, err := jobdir.ReadMetadata(dir)
	if err != nil {
		return nil, core.ErrNotFound("job", string(id))
	}
	return job, nil
}
