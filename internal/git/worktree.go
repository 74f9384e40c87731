package git

import (
	"context"
	"fmt"
	"os"
)

// Worktree is a detached, disposable checkout of the repository.
type Worktree struct {
	Path       string
	DetachedAt string

	client *Client
}

// AddWorktree creates a detached worktree at ref in a fresh temporary directory.
// The caller must call Remove on every exit path.
func (c *Client) AddWorktree(ctx context.Context, ref string) (*Worktree, error) {
	base, err := c.tempBase()
	if err != nil {
		return nil, fmt.Errorf("create temp base: %w", err)
	}
	dir, err := os.MkdirTemp(base, "public_sync_")
	if err != nil {
		return nil, fmt.Errorf("create worktree directory: %w", err)
	}

	if _, err := c.must(ctx, "add temporary worktree", "worktree", "add", "--detach", dir, ref); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	return &Worktree{Path: dir, DetachedAt: ref, client: c}, nil
}

func (w *Worktree) must(ctx context.Context, label string, args ...string) (string, error) {
	return MustRun(ctx, w.client.runner, label, Command{Args: append([]string{"-C", w.Path}, args...), Dir: w.client.dir})
}

// CherryPick replays commit on top of the worktree's HEAD. Merge commits are
// replayed against their first parent.
func (w *Worktree) CherryPick(ctx context.Context, commit string) error {
	isMerge, err := w.client.IsMergeCommit(ctx, commit)
	if err != nil {
		return fmt.Errorf("check if merge commit: %w", err)
	}

	args := []string{"cherry-pick"}
	if isMerge {
		args = append(args, "-m", "1")
	}
	args = append(args, commit)

	if _, err := w.must(ctx, fmt.Sprintf("cherry-pick %s", shortID(commit)), args...); err != nil {
		return err
	}
	return nil
}

// AbortCherryPick abandons an in-progress cherry-pick. It is a no-op when none
// is in progress.
func (w *Worktree) AbortCherryPick(ctx context.Context) error {
	_, err := w.must(ctx, "abort cherry-pick", "cherry-pick", "--abort")
	if err == nil || isNoCherryPickInProgress(err) {
		return nil
	}
	return err
}

// Head returns the commit the worktree's HEAD points at.
func (w *Worktree) Head(ctx context.Context) (string, error) {
	return w.must(ctx, "resolve worktree HEAD", "rev-parse", "HEAD")
}

// Remove deletes the worktree. If git cannot remove it, the directory is deleted
// from the filesystem and stale metadata is pruned.
func (w *Worktree) Remove(ctx context.Context) error {
	if w == nil {
		return nil
	}
	_, gitErr := w.client.must(ctx, "remove temporary worktree", "worktree", "remove", "--force", w.Path)
	if gitErr != nil {
		if err := os.RemoveAll(w.Path); err != nil {
			return fmt.Errorf("remove worktree directory %s: %w (after %v)", w.Path, err, gitErr)
		}
		_, _ = w.client.run(ctx, "worktree", "prune")
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 7 {
		return id[:7]
	}
	return id
}
