package release

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rancher/repo-sync/internal/git"
)

// ErrDirtyWorktree is returned when the working tree has uncommitted changes
// and dirty releases are not allowed.
var ErrDirtyWorktree = errors.New("working tree not clean; commit or stash changes, or allow a dirty release")

const maxChangedFiles = 20

// Repository is the subset of *git.Client a release needs.
type Repository interface {
	IsInsideWorkTree(ctx context.Context) (bool, error)
	TopLevel(ctx context.Context) (string, error)
	IsUnbornHead(ctx context.Context) (bool, error)
	CurrentBranch(ctx context.Context) (string, error)
	IsClean(ctx context.Context) (bool, error)

	LastTagOrRoot(ctx context.Context) (string, error)
	CommitsSince(ctx context.Context, since string) ([]git.Commit, error)
	ChangedFilesSince(ctx context.Context, since string, limit int) ([]string, error)
	ShortStatSince(ctx context.Context, since string) (string, error)

	Add(ctx context.Context, paths ...string) error
	HasStagedChanges(ctx context.Context) (bool, error)
	Commit(ctx context.Context, message string) error
	Tag(ctx context.Context, name string) error
}

var _ Repository = (*git.Client)(nil)

// Options control a release run.
type Options struct {
	Bump         BumpKind
	Tag          bool
	Since        string
	AllowDirty   bool
	SectionTitle string

	Summarize        bool
	Provider         ProviderOptions
	SummaryMaxTokens int
}

// Result describes what a release run produced.
type Result struct {
	Since         string
	Unborn        bool
	Branch        string
	Notes         []string
	Summary       []string
	ChangelogPath string
	ReadmePath    string

	PreviousVersion string
	Version         string

	Committed     bool
	CommitMessage string
	Tag           string
}

// Body renders the summary and notes as a markdown release body.
func (r Result) Body() string {
	var lines []string
	if len(r.Summary) > 0 {
		lines = append(lines, "### Summary")
		lines = append(lines, r.Summary...)
		lines = append(lines, "")
	}
	lines = append(lines, r.Notes...)
	return strings.Join(lines, "\n")
}

// Releaser writes release notes and records them as a release commit.
type Releaser struct {
	opts Options
	repo Repository
	log  *slog.Logger

	// Now returns the release date. Defaults to time.Now.
	Now func() time.Time
	// Getenv resolves summary provider settings. Defaults to os.Getenv.
	Getenv func(string) string
	// HTTPClient is used for summary requests when set.
	HTTPClient *http.Client
}

// New returns a Releaser operating on repo.
func New(opts Options, repo Repository, logger *slog.Logger) *Releaser {
	return &Releaser{opts: opts, repo: repo, log: logger, Now: time.Now, Getenv: os.Getenv}
}

// Run generates notes for the commits since the last release, updates the
// changelog, README and package version, and commits the result when anything
// changed.
func (r *Releaser) Run(ctx context.Context) (Result, error) {
	inside, err := r.repo.IsInsideWorkTree(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("detect repository: %w", err)
	}
	if !inside {
		return Result{}, git.ErrNotRepository
	}

	if !r.opts.AllowDirty {
		clean, err := r.repo.IsClean(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("check working tree: %w", err)
		}
		if !clean {
			return Result{}, ErrDirtyWorktree
		}
	}

	root, err := r.repo.TopLevel(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("resolve repository root: %w", err)
	}
	unborn, err := r.repo.IsUnbornHead(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("inspect HEAD: %w", err)
	}
	branch, err := r.repo.CurrentBranch(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("resolve current branch: %w", err)
	}

	today := r.now().Format("2006-01-02")
	result := Result{Unborn: unborn, Branch: branch, Since: strings.TrimSpace(r.opts.Since)}

	prompt := PromptInput{Repository: filepath.Base(root), Branch: branch}
	if unborn {
		result.Notes = InitialNotes()
	} else {
		if result.Since == "" {
			if result.Since, err = r.repo.LastTagOrRoot(ctx); err != nil {
				return result, fmt.Errorf("find release range start: %w", err)
			}
		}
		if prompt.Commits, err = r.repo.CommitsSince(ctx, result.Since); err != nil {
			return result, fmt.Errorf("list commits since %s: %w", result.Since, err)
		}
		if prompt.Files, err = r.repo.ChangedFilesSince(ctx, result.Since, maxChangedFiles); err != nil {
			return result, fmt.Errorf("list changed files: %w", err)
		}
		if prompt.ShortStat, err = r.repo.ShortStatSince(ctx, result.Since); err != nil {
			return result, fmt.Errorf("summarize diff: %w", err)
		}
		result.Notes = BuildNotes(prompt.Commits)
	}
	prompt.Since = result.Since

	if r.opts.Summarize {
		result.Summary = r.summarize(ctx, prompt)
	}

	if result.ChangelogPath, result.ReadmePath, err = DocPaths(root); err != nil {
		return result, fmt.Errorf("resolve docs: %w", err)
	}
	title := strings.TrimSpace(r.opts.SectionTitle)
	if title == "" {
		title = today
	}
	if err := PrependChangelog(result.ChangelogPath, title, result.Notes, result.Summary); err != nil {
		return result, err
	}
	if err := UpdateReadmeLatest(result.ReadmePath, result.Notes, result.Summary); err != nil {
		return result, err
	}

	pkgPath := filepath.Join(root, PackageFile)
	if err := r.bump(pkgPath, &result); err != nil {
		return result, err
	}

	toStage := []string{result.ChangelogPath, result.ReadmePath}
	if result.Version != "" {
		toStage = append(toStage, pkgPath)
	}
	if err := r.repo.Add(ctx, toStage...); err != nil {
		return result, fmt.Errorf("stage release files: %w", err)
	}
	if err := r.repo.Add(ctx); err != nil {
		return result, fmt.Errorf("stage remaining changes: %w", err)
	}

	result.CommitMessage = commitMessage(today, result.Version, len(result.Summary) > 0)
	staged, err := r.repo.HasStagedChanges(ctx)
	if err != nil {
		return result, fmt.Errorf("inspect staged changes: %w", err)
	}
	if !staged {
		r.info("no changes after generating release notes; nothing committed")
		return result, nil
	}
	if err := r.repo.Commit(ctx, result.CommitMessage); err != nil {
		return result, fmt.Errorf("commit release: %w", err)
	}
	result.Committed = true
	r.info("committed release", "message", result.CommitMessage)

	if r.opts.Tag && result.Version != "" {
		tag := "v" + result.Version
		if err := r.repo.Tag(ctx, tag); err != nil {
			return result, fmt.Errorf("tag release: %w", err)
		}
		result.Tag = tag
		r.info("tagged release", "tag", tag)
	}

	return result, nil
}

func (r *Releaser) bump(pkgPath string, result *Result) error {
	if r.opts.Bump == "" || r.opts.Bump == BumpNone {
		return nil
	}

	current, exists, err := ReadPackageVersion(pkgPath)
	switch {
	case errors.Is(err, ErrNoVersion):
		r.warn("package.json has no version; skipping bump", "path", pkgPath)
		return nil
	case err != nil:
		return err
	case !exists:
		return nil
	}

	next, err := BumpVersion(current, r.opts.Bump)
	if err != nil {
		return err
	}
	if next == current {
		return nil
	}
	if err := WritePackageVersion(pkgPath, next); err != nil {
		return err
	}

	result.PreviousVersion = current
	result.Version = next
	r.info("bumped package version", "from", current, "to", next)
	return nil
}

// summarize never fails the release; errors are logged and the summary is
// left out.
func (r *Releaser) summarize(ctx context.Context, in PromptInput) []string {
	getenv := r.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	provider := ResolveProvider(r.opts.Provider, getenv)

	summarizer := NewSummarizer(provider, r.opts.SummaryMaxTokens)
	if r.HTTPClient != nil {
		summarizer.HTTPClient = r.HTTPClient
	}

	lines, err := summarizer.Summarize(ctx, in)
	if err != nil {
		r.warn("summary generation skipped", "error", err, "model", provider.Model, "base_url", provider.BaseURL)
		return nil
	}
	return lines
}

func commitMessage(date, version string, summarized bool) string {
	msg := "chore(release): " + date
	if version != "" {
		msg += ", bump version to " + version
	}
	if summarized {
		msg += " [summary]"
	}
	return msg
}

func (r *Releaser) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *Releaser) info(msg string, args ...any) {
	if r.log != nil {
		r.log.Info(msg, args...)
	}
}

func (r *Releaser) warn(msg string, args ...any) {
	if r.log != nil {
		r.log.Warn(msg, args...)
	}
}
