package orchestrator_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rancher/repo-sync/internal/git"
	"github.com/rancher/repo-sync/internal/orchestrator"
)

type fakeRepository struct {
	calls []string

	notRepo     bool
	unborn      bool
	branch      string
	lastMessage string
	head        string
	identity    git.Identity

	remotes     map[string]string
	publicFound bool

	privatePushErr error
	fetchErr       error
	cherryPickErr  error
	snapshotErr    error

	synthesized []fakeCommit
	snapshots   []string
}

type fakeCommit struct {
	kind    string
	message string
	root    string
	author  *git.Identity
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		branch:      "main",
		lastMessage: "feat: add widget",
		head:        "1111111111111111111111111111111111111111",
		identity:    git.Identity{Name: "Jane Doe", Email: "jane@example.com"},
		remotes: map[string]string{
			"private": "git@private.example.com:me/repo.git",
			"public":  "git@github.com:me/repo.git",
		},
	}
}

func (f *fakeRepository) record(call string) { f.calls = append(f.calls, call) }

func (f *fakeRepository) IsInsideWorkTree(context.Context) (bool, error) {
	f.record("inspect")
	return !f.notRepo, nil
}

func (f *fakeRepository) TopLevel(context.Context) (string, error) { return "/work/repo", nil }

func (f *fakeRepository) IsUnbornHead(context.Context) (bool, error) { return f.unborn, nil }

func (f *fakeRepository) CurrentBranch(context.Context) (string, error) { return f.branch, nil }

func (f *fakeRepository) LastCommitMessage(_ context.Context, fallback string) (string, error) {
	if f.unborn || f.lastMessage == "" {
		return fallback, nil
	}
	return f.lastMessage, nil
}

func (f *fakeRepository) HeadCommit(context.Context) (string, error) { return f.head, nil }

func (f *fakeRepository) AuthorIdentity(context.Context) (git.Identity, error) {
	return f.identity, nil
}

func (f *fakeRepository) EnsureRemote(_ context.Context, name, url string) (git.Remote, error) {
	f.record("ensure-remote " + name)
	if existing, ok := f.remotes[name]; ok {
		return git.Remote{Name: name, URL: existing}, nil
	}
	if url == "" {
		return git.Remote{}, fmt.Errorf("%w: %q", git.ErrRemoteNotFound, name)
	}
	f.remotes[name] = url
	return git.Remote{Name: name, URL: url}, nil
}

func (f *fakeRepository) CommitFromHeadTree(_ context.Context, message string, author *git.Identity) (git.SynthesizedCommit, error) {
	f.record("commit-from-head")
	f.synthesized = append(f.synthesized, fakeCommit{kind: "head", message: message, author: author})
	return git.SynthesizedCommit{TreeID: "tree-head", CommitID: "snap-head", Message: message, Author: author}, nil
}

func (f *fakeRepository) CommitFromWorkingTree(_ context.Context, message, root string, author *git.Identity) (git.SynthesizedCommit, error) {
	f.record("commit-from-working-tree")
	f.synthesized = append(f.synthesized, fakeCommit{kind: "working-tree", message: message, root: root, author: author})
	return git.SynthesizedCommit{TreeID: "tree-wt", CommitID: "snap-wt", Message: message, Author: author}, nil
}

func (f *fakeRepository) PushFullHistory(_ context.Context, remote, branch string) error {
	f.record(fmt.Sprintf("push-private %s %s", remote, branch))
	return f.privatePushErr
}

func (f *fakeRepository) PushSnapshot(_ context.Context, remote, branch, commit string) error {
	f.record(fmt.Sprintf("push-snapshot %s %s %s", remote, branch, commit))
	if f.snapshotErr != nil {
		return f.snapshotErr
	}
	f.snapshots = append(f.snapshots, commit)
	return nil
}

func (f *fakeRepository) FetchBranch(_ context.Context, remote git.Remote, branch string) (string, bool, error) {
	f.record(fmt.Sprintf("fetch %s %s", remote.Name, branch))
	if f.fetchErr != nil {
		return "", false, f.fetchErr
	}
	if !f.publicFound {
		return "", false, nil
	}
	return fmt.Sprintf("refs/remotes/%s/%s", remote.Name, branch), true, nil
}

func (f *fakeRepository) CherryPickOnto(_ context.Context, remote, branch, base, commit string) (string, error) {
	f.record(fmt.Sprintf("cherry-pick %s %s %s %s", remote, branch, base, commit))
	if f.cherryPickErr != nil {
		return "", f.cherryPickErr
	}
	return "2222222222222222222222222222222222222222", nil
}

var _ = Describe("Orchestrator", func() {
	var (
		ctx  context.Context
		cfg  orchestrator.Config
		repo *fakeRepository
	)

	BeforeEach(func() {
		ctx = context.Background()
		cfg = orchestrator.Config{
			PrivateRemote: "private",
			PublicRemote:  "public",
			PublicMode:    orchestrator.ModeCherryPick,
		}
		repo = newFakeRepository()
	})

	It("fails before touching any remote outside a repository", func() {
		repo.notRepo = true

		_, err := orchestrator.New(cfg, repo, nil).Run(ctx)
		Expect(err).To(MatchError(git.ErrNotRepository))
		Expect(repo.calls).To(Equal([]string{"inspect"}))
	})

	It("rejects an unknown public mode", func() {
		cfg.PublicMode = "mirror"

		_, err := orchestrator.New(cfg, repo, nil).Run(ctx)
		Expect(err).To(HaveOccurred())
		Expect(repo.calls).To(BeEmpty())
	})

	It("fails when a remote is missing and no URL is supplied", func() {
		delete(repo.remotes, "public")

		_, err := orchestrator.New(cfg, repo, nil).Run(ctx)
		Expect(errors.Is(err, git.ErrRemoteNotFound)).To(BeTrue())
		Expect(repo.calls).NotTo(ContainElement(HavePrefix("push-private")))
	})

	It("creates a missing remote from the supplied URL", func() {
		delete(repo.remotes, "public")
		cfg.PublicURL = "https://github.com/me/repo.git"
		repo.publicFound = true

		result, err := orchestrator.New(cfg, repo, nil).Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.PublicRemote).To(Equal(git.Remote{Name: "public", URL: "https://github.com/me/repo.git"}))
	})

	It("cherry-picks HEAD onto an existing public branch after the private push", func() {
		repo.publicFound = true

		result, err := orchestrator.New(cfg, repo, nil).Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Strategy).To(Equal(orchestrator.StrategyCherryPick))
		Expect(result.PrivatePushed).To(BeTrue())
		Expect(result.PublicCommit).To(Equal("2222222222222222222222222222222222222222"))
		Expect(result.PublicMessage).To(Equal("feat: add widget"))
		Expect(repo.calls).To(Equal([]string{
			"inspect",
			"ensure-remote private",
			"ensure-remote public",
			"push-private private main",
			"fetch public main",
			"cherry-pick public main refs/remotes/public/main " + repo.head,
		}))
		Expect(repo.synthesized).To(BeEmpty())
	})

	It("ignores the public message override when cherry-picking", func() {
		repo.publicFound = true
		cfg.PublicMessage = "Release"

		result, err := orchestrator.New(cfg, repo, nil).Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.PublicMessage).To(Equal("feat: add widget"))
	})

	It("initializes a missing public branch from HEAD", func() {
		result, err := orchestrator.New(cfg, repo, nil).Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Strategy).To(Equal(orchestrator.StrategyInitFromHead))
		Expect(result.PublicCommit).To(Equal("snap-head"))
		Expect(repo.synthesized).To(HaveLen(1))
		Expect(repo.synthesized[0].message).To(Equal("Public version: feat: add widget"))
		Expect(repo.synthesized[0].author).To(BeNil())
		Expect(repo.calls).To(ContainElement("push-snapshot public main snap-head"))
		Expect(repo.calls).NotTo(ContainElement(HavePrefix("cherry-pick")))
	})

	It("replaces the public branch in snapshot mode without fetching it", func() {
		cfg.PublicMode = orchestrator.ModeSnapshot
		cfg.PublicBranch = "release"
		cfg.PublicMessage = "Release 1.0"

		result, err := orchestrator.New(cfg, repo, nil).Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Strategy).To(Equal(orchestrator.StrategySnapshot))
		Expect(result.PublicBranch).To(Equal("release"))
		Expect(result.PublicMessage).To(Equal("Release 1.0"))
		Expect(repo.calls).NotTo(ContainElement(HavePrefix("fetch")))
		Expect(repo.calls[len(repo.calls)-1]).To(Equal("push-snapshot public release snap-head"))
	})

	It("publishes the working tree of an unborn repository and skips the private push", func() {
		repo.unborn = true

		result, err := orchestrator.New(cfg, repo, nil).Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Strategy).To(Equal(orchestrator.StrategyInitFromWorkingTree))
		Expect(result.PrivatePushed).To(BeFalse())
		Expect(result.LocalUnborn).To(BeTrue())
		Expect(repo.synthesized).To(HaveLen(1))
		Expect(repo.synthesized[0].kind).To(Equal("working-tree"))
		Expect(repo.synthesized[0].root).To(Equal("/work/repo"))
		Expect(repo.synthesized[0].message).To(Equal("Public version: initial snapshot"))
		Expect(repo.calls).NotTo(ContainElement(HavePrefix("push-private")))
		Expect(repo.calls).NotTo(ContainElement(HavePrefix("fetch")))
	})

	It("labels an unborn snapshot-mode publication as a snapshot", func() {
		repo.unborn = true
		cfg.PublicMode = orchestrator.ModeSnapshot

		_, err := orchestrator.New(cfg, repo, nil).Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.synthesized[0].message).To(Equal("Public version: snapshot"))
	})

	It("applies the HEAD author when preserving authorship", func() {
		cfg.PublicMode = orchestrator.ModeSnapshot
		cfg.PreserveAuthor = true

		_, err := orchestrator.New(cfg, repo, nil).Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.synthesized[0].author).To(Equal(&git.Identity{Name: "Jane Doe", Email: "jane@example.com"}))
	})

	It("stops before any public step when the private push fails", func() {
		repo.publicFound = true
		repo.privatePushErr = errors.New("rejected: non-fast-forward")

		result, err := orchestrator.New(cfg, repo, nil).Run(ctx)
		Expect(err).To(MatchError(ContainSubstring("push to private remote")))
		Expect(result.PrivatePushed).To(BeFalse())
		Expect(repo.calls[len(repo.calls)-1]).To(Equal("push-private private main"))
	})

	It("fails instead of re-initializing when the public fetch errors", func() {
		repo.fetchErr = errors.New("could not read from remote repository")

		_, err := orchestrator.New(cfg, repo, nil).Run(ctx)
		Expect(err).To(MatchError(ContainSubstring("fetch public branch")))
		Expect(repo.snapshots).To(BeEmpty())
	})

	It("surfaces cherry-pick conflicts with the original git error", func() {
		repo.publicFound = true
		gitErr := &git.GitError{Label: "cherry-pick 1111111", Args: []string{"cherry-pick", repo.head}, ExitCode: 1, Stderr: "CONFLICT (content)"}
		repo.cherryPickErr = gitErr

		result, err := orchestrator.New(cfg, repo, nil).Run(ctx)
		Expect(err).To(HaveOccurred())

		var asGitErr *git.GitError
		Expect(errors.As(err, &asGitErr)).To(BeTrue())
		Expect(asGitErr).To(BeIdenticalTo(gitErr))
		Expect(result.PrivatePushed).To(BeTrue())
		Expect(result.PublicCommit).To(BeEmpty())
	})

	It("uses the configured branch instead of the current one", func() {
		cfg.Branch = "develop"
		repo.publicFound = true

		result, err := orchestrator.New(cfg, repo, nil).Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Branch).To(Equal("develop"))
		Expect(repo.calls).To(ContainElement("push-private private develop"))
		Expect(repo.calls).To(ContainElement("fetch public main"))
	})

	It("records dry-run runs", func() {
		cfg.DryRun = true
		repo.publicFound = true

		result, err := orchestrator.New(cfg, repo, nil).Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.DryRun).To(BeTrue())
	})
})
