package manager

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/council/internal/config"
	"github.com/hugo-lorenzo-mato/council/internal/core"
	"github.com/hugo-lorenzo-mato/council/internal/events"
	"github.com/hugo-lorenzo-mato/council/internal/jobdir"
	"github.com/hugo-lorenzo-mato/council/internal/logging"
	"github.com/hugo-lorenzo-mato/council/internal/prompts"
	"github.com/hugo-lorenzo-mato/council/internal/runner"
	"github.com/hugo-lorenzo-mato/council/internal/verify"
)

type fakeGit struct {
	files map[string][]byte
	dirty []string
}

func (f *fakeGit) RepoRoot(ctx context.Context) (string, error)             { return "/repo", nil }
func (f *fakeGit) RevParse(ctx context.Context, ref string) (string, error) { return "deadbeef", nil }
func (f *fakeGit) Show(ctx context.Context, rev, path string) ([]byte, error) {
	content, ok := f.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return content, nil
}
func (f *fakeGit) DiffNameOnly(ctx context.Context, rev string) ([]string, error) { return f.dirty, nil }
func (f *fakeGit) UntrackedFiles(ctx context.Context) ([]string, error)           { return nil, nil }
func (f *fakeGit) ListTree(ctx context.Context, rev, dir string) ([]string, error) {
	var out []string
	for path := range f.files {
		out = append(out, path)
	}
	return out, nil
}

// blockingModels blocks every Call until release is closed, signalling
// started exactly once. Used to hold a job "active" long enough for a
// second Submit to observe the singleton rejection.
type blockingModels struct {
	started chan struct{}
	release chan struct{}
	reply   string
}

func (m *blockingModels) Call(ctx context.Context, role, systemText, userText string) (string, error) {
	select {
	case m.started <- struct{}{}:
	default:
	}
	select {
	case <-m.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return m.reply, nil
}

const findingReply = `<finding severity="P1" title="bug" file="src/lib.rs" impact="crash" fix="add check"/>`

func newTestDeps(t *testing.T, models core.ModelCaller) runner.Deps {
	t.Helper()
	r, err := prompts.NewRenderer()
	require.NoError(t, err)
	return runner.Deps{
		Git:      &fakeGit{},
		Models:   models,
		Detector: verify.NewDetector(time.Minute),
		Sandbox:  verify.NewSandbox(nil),
		Prompts:  r,
		Logger:   logging.NewNop(),
	}
}

func writeTarget(t *testing.T, repoRoot, rel, content string) {
	t.Helper()
	full := filepath.Join(repoRoot, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o750))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o640))
}

func TestSubmit_RejectsInvalidTarget(t *testing.T) {
	t.Parallel()
	repoRoot := t.TempDir()
	writeTarget(t, repoRoot, "src/lib.rs", "fn ok() {}\n")

	cases := []struct {
		name   string
		target string
	}{
		{"absolute", "/etc/passwd"},
		{"traversal", "../evil.txt"},
		{"missing", "src/does_not_exist.rs"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cacheRoot := t.TempDir()
			deps := newTestDeps(t, &blockingModels{started: make(chan struct{}, 1), release: make(chan struct{})})
			m, err := New(context.Background(), cacheRoot, config.Config{PromptVersion: "v1"}, deps, nil)
			require.NoError(t, err)
			defer m.Close()

			_, err = m.Submit(context.Background(), core.ModeReview, tc.target, repoRoot, "deadbeef", false)
			require.Error(t, err)
			assert.True(t, core.IsCategory(err, core.ErrCatValidation))
		})
	}
}

func TestSubmit_RejectsWhileActive(t *testing.T) {
	t.Parallel()
	repoRoot := t.TempDir()
	writeTarget(t, repoRoot, "src/lib.rs", "fn ok() {}\n")
	cacheRoot := t.TempDir()

	models := &blockingModels{started: make(chan struct{}, 1), release: make(chan struct{})}
	deps := newTestDeps(t, models)
	m, err := New(context.Background(), cacheRoot, config.Config{PromptVersion: "v1"}, deps, nil)
	require.NoError(t, err)
	defer m.Close()

	firstID, err := m.Submit(context.Background(), core.ModeReview, "src/lib.rs", repoRoot, "deadbeef", false)
	require.NoError(t, err)

	select {
	case <-models.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first job never reached a model call")
	}

	_, err = m.Submit(context.Background(), core.ModeReview, "src/lib.rs", repoRoot, "deadbeef", false)
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatValidation))
	assert.Contains(t, err.Error(), string(firstID))

	close(models.release)
	<-m.Wait(firstID)
}

func TestManager_EventBridging_ClearsActiveOnFinish(t *testing.T) {
	t.Parallel()
	repoRoot := t.TempDir()
	writeTarget(t, repoRoot, "src/lib.rs", "fn ok() {}\n")
	cacheRoot := t.TempDir()

	var received []events.Event
	sink := func(e events.Event) { received = append(received, e) }

	models := &blockingModels{started: make(chan struct{}, 1), release: make(chan struct{}), reply: findingReply}
	close(models.release)
	deps := newTestDeps(t, models)
	deps.Git = &fakeGit{files: map[string][]byte{"src/lib.rs": []byte("fn ok() {}\n")}}
	m, err := New(context.Background(), cacheRoot, config.Config{PromptVersion: "v1"}, deps, sink)
	require.NoError(t, err)
	defer m.Close()

	id, err := m.Submit(context.Background(), core.ModeReview, "src/lib.rs", repoRoot, "deadbeef", false)
	require.NoError(t, err)

	select {
	case <-m.Wait(id):
	case <-time.After(5 * time.Second):
		t.Fatal("job never finished")
	}

	assert.Equal(t, core.JobID(""), m.ActiveJobID())

	job, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeSuccess, job.Outcome)

	require.NotEmpty(t, received)
	last := received[len(received)-1]
	assert.Equal(t, events.TypeJobFinished, last.EventType())
}

func TestRecoverCrashed_MarksUnsetOutcomeCancelled(t *testing.T) {
	t.Parallel()
	cacheRoot := t.TempDir()

	job := core.New(core.JobID("crashed-job"), core.ModeFix, "src/lib.rs", "/repo", "sha", false)
	job.RunnerPID = 999999999 // astronomically unlikely to be a live pid
	require.NoError(t, jobdir.WriteMetadata(jobdir.Dir(cacheRoot, job.ID), job))

	deps := newTestDeps(t, &blockingModels{started: make(chan struct{}, 1), release: make(chan struct{})})
	m, err := New(context.Background(), cacheRoot, config.Config{PromptVersion: "v1"}, deps, nil)
	require.NoError(t, err)
	defer m.Close()

	got, err := m.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeCancelled, got.Outcome)
}

func TestPruneRetention_EnforcesMaxJobs(t *testing.T) {
	t.Parallel()
	cacheRoot := t.TempDir()

	for i := 0; i < 5; i++ {
		job := core.New(core.JobID(timestampedID(i)), core.ModeReview, "x", "/repo", "sha", false)
		job.StartedAt = time.Now().Add(-time.Duration(5-i) * time.Hour)
		job.Finish(core.OutcomeSuccess)
		require.NoError(t, jobdir.WriteMetadata(jobdir.Dir(cacheRoot, job.ID), job))
	}

	deps := newTestDeps(t, &blockingModels{started: make(chan struct{}, 1), release: make(chan struct{})})
	cfg := config.Config{PromptVersion: "v1", Retention: config.Retention{MaxJobs: 2, MaxAgeHours: 48}}
	m, err := New(context.Background(), cacheRoot, cfg, deps, nil)
	require.NoError(t, err)
	defer m.Close()

	dirs, err := jobdir.ListJobDirs(cacheRoot)
	require.NoError(t, err)
	assert.Len(t, dirs, 2, "expected retention to prune down to max_jobs")
}

func timestampedID(i int) string {
	return time.Now().Add(time.Duration(i) * time.Millisecond).UTC().Format("20060102T150405.000000000Z") + "-aaaaaaaa"
}

type fakePatcher struct {
	dryRunErr error
	applyErr  error
	applied   bool
}

func (f *fakePatcher) ApplyPatchInDir(ctx context.Context, rootAbs, patchText string) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied = true
	return nil
}

func (f *fakePatcher) DryRun(ctx context.Context, rootAbs, patchText string) error {
	return f.dryRunErr
}

const patchText = `*** Begin Patch
*** Update File: src/lib.rs
@@
- old
+ new
*** End Patch
`

func TestApplyJob_Success(t *testing.T) {
	t.Parallel()
	repoRoot := t.TempDir()
	cacheRoot := t.TempDir()

	job := core.New(core.JobID("apply-ok"), core.ModeFix, "src/lib.rs", repoRoot, "sha", false)
	job.Finish(core.OutcomeSuccess)
	jobDir := jobdir.Dir(cacheRoot, job.ID)
	require.NoError(t, jobdir.WriteMetadata(jobDir, job))
	require.NoError(t, os.WriteFile(jobdir.Patch(jobDir), []byte(patchText), 0o640))

	patcher := &fakePatcher{}
	deps := newTestDeps(t, &blockingModels{started: make(chan struct{}, 1), release: make(chan struct{})})
	deps.Patcher = patcher
	deps.Git = &fakeGit{}

	m, err := New(context.Background(), cacheRoot, config.Config{PromptVersion: "v1"}, deps, nil)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.ApplyJob(context.Background(), job.ID, repoRoot))
	assert.True(t, patcher.applied)
}

func TestApplyJob_DryRunFailureAborts(t *testing.T) {
	t.Parallel()
	repoRoot := t.TempDir()
	cacheRoot := t.TempDir()

	job := core.New(core.JobID("apply-dryrun-fail"), core.ModeFix, "src/lib.rs", repoRoot, "sha", false)
	job.Finish(core.OutcomeSuccess)
	jobDir := jobdir.Dir(cacheRoot, job.ID)
	require.NoError(t, jobdir.WriteMetadata(jobDir, job))
	require.NoError(t, os.WriteFile(jobdir.Patch(jobDir), []byte(patchText), 0o640))

	patcher := &fakePatcher{dryRunErr: testErr("would not apply")}
	deps := newTestDeps(t, &blockingModels{started: make(chan struct{}, 1), release: make(chan struct{})})
	deps.Patcher = patcher
	deps.Git = &fakeGit{}

	m, err := New(context.Background(), cacheRoot, config.Config{PromptVersion: "v1"}, deps, nil)
	require.NoError(t, err)
	defer m.Close()

	err = m.ApplyJob(context.Background(), job.ID, repoRoot)
	require.Error(t, err)
	assert.False(t, patcher.applied)
}

func TestApplyJob_StateChangedDuringConfirmationAborts(t *testing.T) {
	t.Parallel()
	repoRoot := t.TempDir()
	cacheRoot := t.TempDir()

	job := core.New(core.JobID("apply-state-changed"), core.ModeFix, "src/lib.rs", repoRoot, "sha", false)
	job.Finish(core.OutcomeSuccess)
	jobDir := jobdir.Dir(cacheRoot, job.ID)
	require.NoError(t, jobdir.WriteMetadata(jobDir, job))
	require.NoError(t, os.WriteFile(jobdir.Patch(jobDir), []byte(patchText), 0o640))

	patcher := &fakePatcher{}
	git := &changingDirtyGit{results: [][]string{{}, {"unrelated.txt"}}}
	deps := newTestDeps(t, &blockingModels{started: make(chan struct{}, 1), release: make(chan struct{})})
	deps.Patcher = patcher
	deps.Git = git

	m, err := New(context.Background(), cacheRoot, config.Config{PromptVersion: "v1"}, deps, nil)
	require.NoError(t, err)
	defer m.Close()

	err = m.ApplyJob(context.Background(), job.ID, repoRoot)
	require.Error(t, err)
	assert.False(t, patcher.applied)
}

// changingDirtyGit returns a different DiffNameOnly result on each call, to
// simulate a concurrent mutation between the Apply Gate's two dirty-state
// snapshots.
type changingDirtyGit struct {
	fakeGit
	results [][]string
	call    int
}

func (g *changingDirtyGit) DiffNameOnly(ctx context.Context, rev string) ([]string, error) {
	r := g.results[g.call]
	if g.call < len(g.results)-1 {
		g.call++
	}
	return r, nil
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

func testErr(msg string) error { return simpleErr(msg) }
