package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rancher/repo-sync/internal/git"
)

// Repository is the subset of *git.Client the orchestrator drives.
type Repository interface {
	IsInsideWorkTree(ctx context.Context) (bool, error)
	TopLevel(ctx context.Context) (string, error)
	IsUnbornHead(ctx context.Context) (bool, error)
	CurrentBranch(ctx context.Context) (string, error)
	LastCommitMessage(ctx context.Context, fallback string) (string, error)
	HeadCommit(ctx context.Context) (string, error)
	AuthorIdentity(ctx context.Context) (git.Identity, error)

	EnsureRemote(ctx context.Context, name, url string) (git.Remote, error)

	CommitFromHeadTree(ctx context.Context, message string, author *git.Identity) (git.SynthesizedCommit, error)
	CommitFromWorkingTree(ctx context.Context, message, repoRoot string, author *git.Identity) (git.SynthesizedCommit, error)

	PushFullHistory(ctx context.Context, remote, branch string) error
	PushSnapshot(ctx context.Context, remote, branch, commit string) error
	FetchBranch(ctx context.Context, remote git.Remote, branch string) (string, bool, error)
	CherryPickOnto(ctx context.Context, remote, branch, base, commit string) (string, error)
}

var _ Repository = (*git.Client)(nil)

const (
	publicMessagePrefix    = "Public version: "
	fallbackSnapshotLabel  = "snapshot"
	initialSnapshotMessage = publicMessagePrefix + "initial snapshot"
)

// Orchestrator runs one private-then-public synchronization.
type Orchestrator struct {
	cfg  Config
	repo Repository
	log  *slog.Logger
}

// Result captures the outcome of a single run.
type Result struct {
	Branch        string
	PublicBranch  string
	PrivateRemote git.Remote
	PublicRemote  git.Remote

	LocalUnborn   bool
	PrivatePushed bool
	Strategy      Strategy

	// PublicCommit is the commit the public branch was (or, in a dry run,
	// would have been) moved to.
	PublicCommit  string
	PublicMessage string
	DryRun        bool
}

// New returns a configured Orchestrator instance.
func New(cfg Config, repo Repository, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{cfg: cfg, repo: repo, log: logger}
}

// Run pushes the full local history to the private remote and then publishes
// to the public remote according to the decided Strategy. A failure at any step
// stops the run; nothing already pushed is rolled back.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	if o.repo == nil {
		return Result{}, fmt.Errorf("repository is required")
	}

	mode, err := ParsePublicMode(string(o.cfg.PublicMode))
	if err != nil {
		return Result{}, err
	}

	inside, err := o.repo.IsInsideWorkTree(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("detect repository: %w", err)
	}
	if !inside {
		return Result{}, git.ErrNotRepository
	}

	root, err := o.repo.TopLevel(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("resolve repository root: %w", err)
	}

	unborn, err := o.repo.IsUnbornHead(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("inspect HEAD: %w", err)
	}

	branch := strings.TrimSpace(o.cfg.Branch)
	if branch == "" {
		if branch, err = o.repo.CurrentBranch(ctx); err != nil {
			return Result{}, fmt.Errorf("resolve current branch: %w", err)
		}
	}
	publicBranch := strings.TrimSpace(o.cfg.PublicBranch)
	if publicBranch == "" {
		publicBranch = git.DefaultBranch
	}

	result := Result{Branch: branch, PublicBranch: publicBranch, LocalUnborn: unborn, DryRun: o.cfg.DryRun}

	if result.PrivateRemote, err = o.repo.EnsureRemote(ctx, o.cfg.PrivateRemote, o.cfg.PrivateURL); err != nil {
		return result, fmt.Errorf("resolve private remote: %w", err)
	}
	if result.PublicRemote, err = o.repo.EnsureRemote(ctx, o.cfg.PublicRemote, o.cfg.PublicURL); err != nil {
		return result, fmt.Errorf("resolve public remote: %w", err)
	}

	o.info("starting sync",
		"branch", branch,
		"private_remote", result.PrivateRemote.Name,
		"public_remote", result.PublicRemote.Name,
		"public_branch", publicBranch,
		"public_mode", string(mode),
		"unborn", unborn,
		"dry_run", o.cfg.DryRun,
	)

	if unborn {
		o.info("skipping private push: repository has no commits yet")
	} else {
		if err := o.repo.PushFullHistory(ctx, result.PrivateRemote.Name, branch); err != nil {
			return result, fmt.Errorf("push to private remote: %w", err)
		}
		result.PrivatePushed = true
	}

	state := State{LocalUnborn: unborn, Mode: mode}
	var publicTip string
	if !unborn && mode == ModeCherryPick {
		ref, found, err := o.repo.FetchBranch(ctx, result.PublicRemote, publicBranch)
		if err != nil {
			return result, fmt.Errorf("fetch public branch: %w", err)
		}
		state.PublicBranchExists = found
		publicTip = ref
		if !found {
			o.info("public branch not found, initializing from HEAD", "remote", result.PublicRemote.Name, "branch", publicBranch)
		}
	}

	result.Strategy = Decide(state)
	o.info("publishing to public remote", "strategy", string(result.Strategy))

	if result.Strategy == StrategyCherryPick {
		return o.publishCherryPick(ctx, result, publicTip)
	}
	return o.publishSnapshot(ctx, result, mode, root)
}

func (o *Orchestrator) publishCherryPick(ctx context.Context, result Result, base string) (Result, error) {
	head, err := o.repo.HeadCommit(ctx)
	if err != nil {
		return result, fmt.Errorf("resolve HEAD: %w", err)
	}
	msg, err := o.repo.LastCommitMessage(ctx, "")
	if err != nil {
		return result, fmt.Errorf("read last commit message: %w", err)
	}

	pushed, err := o.repo.CherryPickOnto(ctx, result.PublicRemote.Name, result.PublicBranch, base, head)
	if err != nil {
		return result, fmt.Errorf("cherry-pick onto public branch: %w", err)
	}

	result.PublicCommit = pushed
	result.PublicMessage = msg
	o.info("public branch updated", "commit", pushed, "strategy", string(result.Strategy))
	return result, nil
}

func (o *Orchestrator) publishSnapshot(ctx context.Context, result Result, mode PublicMode, root string) (Result, error) {
	msg, err := o.publicMessage(ctx, result.Strategy, mode)
	if err != nil {
		return result, err
	}

	var author *git.Identity
	if o.cfg.PreserveAuthor {
		id, err := o.repo.AuthorIdentity(ctx)
		if err != nil {
			return result, fmt.Errorf("resolve author identity: %w", err)
		}
		author = &id
	}

	var commit git.SynthesizedCommit
	if result.Strategy == StrategyInitFromWorkingTree {
		commit, err = o.repo.CommitFromWorkingTree(ctx, msg, root, author)
	} else {
		commit, err = o.repo.CommitFromHeadTree(ctx, msg, author)
	}
	if err != nil {
		return result, fmt.Errorf("synthesize public commit: %w", err)
	}

	if err := o.repo.PushSnapshot(ctx, result.PublicRemote.Name, result.PublicBranch, commit.CommitID); err != nil {
		return result, fmt.Errorf("push snapshot to public remote: %w", err)
	}

	result.PublicCommit = commit.CommitID
	result.PublicMessage = msg
	o.info("public branch replaced", "commit", commit.CommitID, "tree", commit.TreeID, "strategy", string(result.Strategy))
	return result, nil
}

// publicMessage picks the message for a synthesized commit. An explicit
// override always wins.
func (o *Orchestrator) publicMessage(ctx context.Context, strategy Strategy, mode PublicMode) (string, error) {
	if msg := strings.TrimSpace(o.cfg.PublicMessage); msg != "" {
		return msg, nil
	}

	if strategy == StrategyInitFromWorkingTree {
		if mode == ModeCherryPick {
			return initialSnapshotMessage, nil
		}
		return publicMessagePrefix + fallbackSnapshotLabel, nil
	}

	last, err := o.repo.LastCommitMessage(ctx, fallbackSnapshotLabel)
	if err != nil {
		return "", fmt.Errorf("read last commit message: %w", err)
	}
	return publicMessagePrefix + last, nil
}

func (o *Orchestrator) info(msg string, args ...any) {
	if o.log != nil {
		o.log.Info(msg, args...)
	}
}
