// Package cli implements the council command-line entrypoint: a thin
// embedding over internal/manager demonstrating the external interface
// described in §6 — submit, apply, cancel, list — against a single shared
// Manager instance.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hugo-lorenzo-mato/council/internal/adapters/agentcli"
	gitadapter "github.com/hugo-lorenzo-mato/council/internal/adapters/git"
	"github.com/hugo-lorenzo-mato/council/internal/adapters/patch"
	"github.com/hugo-lorenzo-mato/council/internal/config"
	"github.com/hugo-lorenzo-mato/council/internal/core"
	"github.com/hugo-lorenzo-mato/council/internal/events"
	"github.com/hugo-lorenzo-mato/council/internal/logging"
	"github.com/hugo-lorenzo-mato/council/internal/manager"
	"github.com/hugo-lorenzo-mato/council/internal/prompts"
	"github.com/hugo-lorenzo-mato/council/internal/runner"
	"github.com/hugo-lorenzo-mato/council/internal/verify"
)

// Exit codes (§6): 0 success, 1 job failure, 2 rejected (singleton held or
// invalid input), 3 cancelled.
const (
	ExitSuccess   = 0
	ExitFailure   = 1
	ExitRejected  = 2
	ExitCancelled = 3
)

// Run parses args and executes the named subcommand, returning a process
// exit code. stdout/stderr are the process streams; Run never calls
// os.Exit itself, so it stays testable.
func Run(args []string) int {
	return run(args, os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage())
		return ExitRejected
	}

	sub, rest := args[0], args[1:]
	switch sub {
	case "run":
		return runJob(rest, stdout, stderr)
	case "apply":
		return applyJob(rest, stdout, stderr)
	case "cancel":
		return cancelJob(rest, stdout, stderr)
	case "list":
		return listJobs(rest, stdout, stderr)
	case "-h", "--help", "help":
		fmt.Fprintln(stdout, usage())
		return ExitSuccess
	default:
		fmt.Fprintf(stderr, "unknown subcommand %q\n%s\n", sub, usage())
		return ExitRejected
	}
}

func usage() string {
	return `council — multi-agent code-repair job runner

Usage:
  council run    --mode fix|review --target PATH [--repo DIR] [--config FILE] [--dirty]
  council apply  --job-id ID [--repo DIR] [--config FILE]
  council cancel --job-id ID [--repo DIR] [--config FILE]
  council list   [--repo DIR] [--config FILE]`
}

// loadConfig resolves configuration the same way for every subcommand.
func loadConfig(configFile, projectDir string) (config.Config, error) {
	loader := config.NewLoader()
	if configFile != "" {
		loader = loader.WithConfigFile(configFile)
	}
	if projectDir != "" {
		loader = loader.WithProjectDir(projectDir)
	}
	cfg, err := loader.Load()
	if err != nil {
		return config.Config{}, err
	}
	return *cfg, nil
}

// newManager wires a Manager backed by real adapters: an argv-only git
// client and worktree manager, a `git apply`-based patch applier, and a
// CLI-agent model caller resolved from cfg.Agents. Events are bridged to
// sink.
func newManager(ctx context.Context, cfg config.Config, repoRoot string, logger *logging.Logger, sink manager.Sink) (*manager.Manager, error) {
	gitClient, err := gitadapter.NewClient(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("opening git client: %w", err)
	}

	detector := verify.NewDetector(5 * time.Minute)
	sandbox := verify.NewSandbox(logger.Sanitizer())
	renderer, err := prompts.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("loading prompt assets: %w", err)
	}

	deps := runner.Deps{
		Git:       gitClient,
		Worktrees: gitadapter.NewDetachedWorktreeCreator(gitClient, filepath.Join(repoRoot, ".council", "worktrees")),
		Models:    agentcli.NewCaller(cfg.Agents),
		Patcher:   patch.NewApplier(""),
		Detector:  detector,
		Sandbox:   sandbox,
		Prompts:   renderer,
		Logger:    logger,
	}

	cacheRoot := cfg.CacheRoot
	if cacheRoot == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("resolving cache root: %w", err)
		}
		cacheRoot = filepath.Join(dir, "council_runs")
	}

	return manager.New(ctx, cacheRoot, cfg, deps, sink)
}

func runJob(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	mode := fs.String("mode", "fix", "job mode: fix or review")
	target := fs.String("target", "", "target file path, relative to --repo (or @dirty)")
	repo := fs.String("repo", "", "repository root (default: current directory)")
	configFile := fs.String("config", "", "explicit config file path")
	dirty := fs.Bool("dirty", false, "start from the repo's current dirty working tree instead of HEAD")
	if err := fs.Parse(args); err != nil {
		return ExitRejected
	}

	repoRoot, err := resolveRepoRoot(*repo)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitRejected
	}

	cfg, err := loadConfig(*configFile, repoRoot)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitRejected
	}

	logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: stderr})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	installSignalCancel(cancel)

	sink := func(e events.Event) {
		fmt.Fprintln(stdout, manager.FormatLine(e))
	}

	m, err := newManager(ctx, cfg, repoRoot, logger, sink)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitRejected
	}
	defer m.Close()

	headRev := ""
	if !*dirty {
		rev, err := gitRevParseHead(ctx, repoRoot)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return ExitRejected
		}
		headRev = rev
	}

	id, err := m.Submit(ctx, core.Mode(*mode), *target, repoRoot, headRev, *dirty)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitRejected
	}
	fmt.Fprintf(stdout, "job %s submitted\n", id)

	<-m.Wait(id)

	job, err := m.Get(id)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitFailure
	}

	switch job.Outcome {
	case core.OutcomeSuccess:
		return ExitSuccess
	case core.OutcomeCancelled:
		return ExitCancelled
	default:
		return ExitFailure
	}
}

func applyJob(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("apply", flag.ContinueOnError)
	fs.SetOutput(stderr)
	jobID := fs.String("job-id", "", "job id to apply")
	repo := fs.String("repo", "", "repository root (default: current directory)")
	configFile := fs.String("config", "", "explicit config file path")
	if err := fs.Parse(args); err != nil {
		return ExitRejected
	}
	if *jobID == "" {
		fmt.Fprintln(stderr, "--job-id is required")
		return ExitRejected
	}

	repoRoot, err := resolveRepoRoot(*repo)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitRejected
	}
	cfg, err := loadConfig(*configFile, repoRoot)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitRejected
	}
	logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: stderr})

	ctx := context.Background()
	m, err := newManager(ctx, cfg, repoRoot, logger, nil)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitRejected
	}
	defer m.Close()

	if err := m.ApplyJob(ctx, core.JobID(*jobID), repoRoot); err != nil {
		fmt.Fprintln(stderr, err)
		if core.IsCategory(err, core.ErrCatValidation) {
			return ExitRejected
		}
		return ExitFailure
	}
	fmt.Fprintf(stdout, "job %s applied to %s\n", *jobID, repoRoot)
	return ExitSuccess
}

func cancelJob(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("cancel", flag.ContinueOnError)
	fs.SetOutput(stderr)
	jobID := fs.String("job-id", "", "job id to cancel")
	repo := fs.String("repo", "", "repository root (default: current directory)")
	configFile := fs.String("config", "", "explicit config file path")
	if err := fs.Parse(args); err != nil {
		return ExitRejected
	}
	if *jobID == "" {
		fmt.Fprintln(stderr, "--job-id is required")
		return ExitRejected
	}

	repoRoot, err := resolveRepoRoot(*repo)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitRejected
	}
	cfg, err := loadConfig(*configFile, repoRoot)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitRejected
	}
	logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: stderr})

	ctx := context.Background()
	m, err := newManager(ctx, cfg, repoRoot, logger, nil)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitRejected
	}
	defer m.Close()

	if err := m.Cancel(core.JobID(*jobID)); err != nil {
		fmt.Fprintln(stderr, err)
		return ExitRejected
	}
	fmt.Fprintf(stdout, "cancellation requested for job %s\n", *jobID)
	return ExitSuccess
}

func listJobs(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(stderr)
	repo := fs.String("repo", "", "repository root (default: current directory)")
	configFile := fs.String("config", "", "explicit config file path")
	if err := fs.Parse(args); err != nil {
		return ExitRejected
	}

	repoRoot, err := resolveRepoRoot(*repo)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitRejected
	}
	cfg, err := loadConfig(*configFile, repoRoot)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitRejected
	}
	logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: stderr})

	ctx := context.Background()
	m, err := newManager(ctx, cfg, repoRoot, logger, nil)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitRejected
	}
	defer m.Close()

	summaries, err := m.List()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitFailure
	}
	for _, s := range summaries {
		fmt.Fprintf(stdout, "%s\t%s\t%s\t%s\n", s.ID, s.Mode, s.Outcome, s.Target)
	}
	return ExitSuccess
}

func resolveRepoRoot(repo string) (string, error) {
	if repo == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolving working directory: %w", err)
		}
		return wd, nil
	}
	abs, err := filepath.Abs(repo)
	if err != nil {
		return "", fmt.Errorf("resolving --repo: %w", err)
	}
	return abs, nil
}

// installSignalCancel cancels ctx's cancel func on SIGINT/SIGTERM, so an
// interactive `council run` invocation propagates a cancellation through
// the Manager's cooperative cancel path rather than killing the process
// mid-job.
func installSignalCancel(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
}

func gitRevParseHead(ctx context.Context, repoRoot string) (string, error) {
	gitClient, err := gitadapter.NewClient(repoRoot)
	if err != nil {
		return "", fmt.Errorf("opening git client: %w", err)
	}
	rev, err := gitClient.RevParse(ctx, "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolving HEAD: %w", err)
	}
	return rev, nil
}
