package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rancher/repo-sync/internal/git"
	gh "github.com/rancher/repo-sync/internal/github"
	"github.com/rancher/repo-sync/internal/orchestrator"
	"github.com/rancher/repo-sync/internal/release"
	"github.com/rancher/repo-sync/internal/runlog"
)

// Runner glues together the orchestrator, the releaser and supporting services.
type Runner struct {
	cfg       Config
	dir       string
	stdout    io.Writer
	ghFactory gh.Factory // nil selects the REST or dry-run factory from cfg
	now       func() time.Time

	// retryDelay is the base backoff between retried GitHub calls.
	retryDelay time.Duration
}

const githubAttempts = 3

// NewRunner constructs a Runner operating on the current working directory.
func NewRunner(cfg Config) (*Runner, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}
	return &Runner{cfg: cfg, dir: dir, stdout: os.Stdout, now: time.Now, retryDelay: 2 * time.Second}, nil
}

// NewRunnerWithDeps constructs a Runner with injected dependencies for testing.
func NewRunnerWithDeps(cfg Config, dir string, stdout io.Writer, ghFactory gh.Factory) *Runner {
	return &Runner{cfg: cfg, dir: dir, stdout: stdout, ghFactory: ghFactory, now: time.Now, retryDelay: 10 * time.Millisecond}
}

// RunSync executes one private-then-public synchronization in the working directory.
func RunSync(ctx context.Context, cfg Config) error {
	r, err := NewRunner(cfg)
	if err != nil {
		logStartupFailure(cfg.LogFile, time.Now(), err)
		return err
	}
	_, err = r.Sync(ctx)
	return err
}

// RunRelease executes the release flow in the working directory.
func RunRelease(ctx context.Context, cfg Config) error {
	r, err := NewRunner(cfg)
	if err != nil {
		logStartupFailure(cfg.LogFile, time.Now(), err)
		return err
	}
	_, err = r.Release(ctx)
	return err
}

// session holds the per-run resources. close must run on every exit path so
// the run log is flushed.
type session struct {
	log    *slog.Logger
	out    io.Writer
	runLog *runlog.Log
	repo   *git.Client
}

func (r *Runner) open() (*session, error) {
	logPath := r.cfg.LogFile
	if logPath == "" {
		logPath = runlog.DefaultFile
	}
	if !filepath.IsAbs(logPath) {
		logPath = filepath.Join(r.dir, logPath)
	}

	rl, err := runlog.Open(logPath, r.now())
	if err != nil {
		return nil, err
	}

	out := io.MultiWriter(r.stdout, rl)
	logger, err := NewLogger(r.cfg.LogLevel, r.cfg.LogFormat, out)
	if err != nil {
		_ = rl.Close()
		return nil, fmt.Errorf("create logger: %w", err)
	}

	var runner git.Runner = git.NewExecRunner(r.dir, logger, r.cfg.Verbose)
	if r.cfg.DryRun {
		runner = git.NewDryRunRunner(runner, logger)
	}

	return &session{
		log:    logger,
		out:    out,
		runLog: rl,
		repo:   git.NewClient(runner, r.dir, logger),
	}, nil
}

func (s *session) fail(err error) error {
	s.log.Error("run failed", "error", err)
	return err
}

func (s *session) close() {
	if err := s.runLog.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to close run log: %v\n", err)
	}
}

// Sync pushes to the private remote and publishes to the public one.
func (r *Runner) Sync(ctx context.Context) (orchestrator.Result, error) {
	s, err := r.open()
	if err != nil {
		return orchestrator.Result{}, err
	}
	defer s.close()

	s.log.Info("starting repo-sync run", "dry_run", r.cfg.DryRun, "public_mode", r.cfg.PublicMode, "log_file", s.runLog.Path())

	result, err := orchestrator.New(r.cfg.orchestratorConfig(), s.repo, s.log).Run(ctx)
	if err != nil {
		return result, s.fail(err)
	}

	r.report(s, runReport{Sync: &result})
	return result, nil
}

// ReleaseOutcome is everything a release run produced.
type ReleaseOutcome struct {
	Release    release.Result
	Sync       *orchestrator.Result
	ReleaseURL string
}

// Release writes release notes, commits them and optionally syncs and
// publishes a GitHub release.
func (r *Runner) Release(ctx context.Context) (ReleaseOutcome, error) {
	s, err := r.open()
	if err != nil {
		return ReleaseOutcome{}, err
	}
	defer s.close()

	s.log.Info("starting repo-sync release", "dry_run", r.cfg.DryRun, "bump", r.cfg.Release.Bump, "push", r.cfg.Release.Push)

	var outcome ReleaseOutcome
	releaser := release.New(r.cfg.releaseOptions(), s.repo, s.log)
	releaser.Now = r.now
	if outcome.Release, err = releaser.Run(ctx); err != nil {
		return outcome, s.fail(fmt.Errorf("release: %w", err))
	}

	if r.cfg.Release.Push {
		result, err := orchestrator.New(r.cfg.orchestratorConfig(), s.repo, s.log).Run(ctx)
		if err != nil {
			return outcome, s.fail(fmt.Errorf("sync after release: %w", err))
		}
		outcome.Sync = &result
	}

	if r.cfg.Release.GitHubRelease {
		if outcome.ReleaseURL, err = r.publishGitHubRelease(ctx, s, outcome); err != nil {
			return outcome, s.fail(fmt.Errorf("github release: %w", err))
		}
	}

	r.report(s, runReport{Sync: outcome.Sync, Release: &outcome})
	return outcome, nil
}

func (r *Runner) publishGitHubRelease(ctx context.Context, s *session, outcome ReleaseOutcome) (string, error) {
	tag := outcome.Release.Tag
	if tag == "" {
		tag = gh.TagForVersion(outcome.Release.Version)
	}
	if tag == "" {
		s.log.Warn("skipping github release: no version was bumped and no tag was created")
		return "", nil
	}

	remoteURL := strings.TrimSpace(r.cfg.PublicURL)
	if remoteURL == "" {
		url, found, err := s.repo.RemoteURL(ctx, r.cfg.PublicRemote)
		if err != nil {
			return "", err
		}
		if !found {
			return "", fmt.Errorf("%w: %s", git.ErrRemoteURLMissing, r.cfg.PublicRemote)
		}
		remoteURL = url
	}

	repo, err := gh.ParseRemoteURL(remoteURL)
	if err != nil {
		return "", err
	}

	client, err := r.githubFactory(s.log).New(ctx, r.cfg.Release.GitHubToken)
	if err != nil {
		return "", fmt.Errorf("initialize github client: %w", err)
	}

	var existing gh.Release
	err = r.retryGitHub(ctx, s, "get release", func() (err error) {
		existing, err = client.GetReleaseByTag(ctx, repo.Owner, repo.Name, tag)
		return err
	})
	if err == nil {
		s.log.Info("github release already exists", "repository", repo.FullName(), "tag", tag, "url", existing.URL)
		return existing.URL, nil
	}
	if !errors.Is(err, gh.ErrReleaseNotFound) {
		return "", err
	}

	target := r.cfg.PublicBranch
	if outcome.Sync != nil && outcome.Sync.PublicBranch != "" {
		target = outcome.Sync.PublicBranch
	}

	opts := gh.CreateReleaseOptions{
		TagName: tag,
		Target:  target,
		Name:    tag,
		Body:    outcome.Release.Body(),
	}
	var created gh.Release
	err = r.retryGitHub(ctx, s, "create release", func() (err error) {
		created, err = client.CreateRelease(ctx, repo.Owner, repo.Name, opts)
		return err
	})
	if err != nil {
		return "", err
	}

	s.log.Info("created github release", "repository", repo.FullName(), "tag", tag, "url", created.URL)
	return created.URL, nil
}

// retryGitHub runs call until it succeeds, fails with a non-retryable error or
// runs out of attempts. The delay grows linearly with each attempt.
func (r *Runner) retryGitHub(ctx context.Context, s *session, op string, call func() error) error {
	var err error
	for attempt := 1; attempt <= githubAttempts; attempt++ {
		if err = call(); err == nil || !gh.IsRetryable(err) || attempt == githubAttempts {
			return err
		}
		delay := time.Duration(attempt) * r.retryDelay
		s.log.Warn("retrying github call", "operation", op, "attempt", attempt, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

func (r *Runner) githubFactory(logger *slog.Logger) gh.Factory {
	if r.ghFactory != nil {
		return r.ghFactory
	}
	if r.cfg.DryRun {
		return gh.NewDryRunFactory(logger)
	}
	return gh.NewRESTFactory(r.cfg.Release.GitHubBaseURL, r.cfg.Release.GitHubUploadURL)
}
