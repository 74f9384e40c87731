package git

import (
	"context"
	"fmt"
)

// PushFullHistory pushes branch to the same-named branch on remote. No force: a
// non-fast-forward rejection is returned as an error.
func (c *Client) PushFullHistory(ctx context.Context, remote, branch string) error {
	c.info("pushing full history", "branch", branch, "remote", remote)
	_, err := c.must(ctx, fmt.Sprintf("push %s to %s", branch, remote), "push", remote, fmt.Sprintf("%s:%s", branch, branch))
	return err
}

// PushSnapshot force-updates remote's branch to commit, discarding whatever
// history was there.
func (c *Client) PushSnapshot(ctx context.Context, remote, branch, commit string) error {
	c.info("force-pushing snapshot commit", "commit", shortID(commit), "remote", remote, "branch", branch)
	// Some git versions require a fully qualified destination ref here.
	_, err := c.must(ctx, fmt.Sprintf("force-push snapshot to %s/%s", remote, branch),
		"push", remote, fmt.Sprintf("%s:refs/heads/%s", commit, branch), "--force")
	return err
}

// FetchBranch fetches remote's branch into refs/remotes/<remote>/<branch> and
// returns that ref. found is false when the remote has no such branch. The
// remote's URL is used as the fetch source when known, so a remote that a dry
// run never added can still be read.
func (c *Client) FetchBranch(ctx context.Context, remote Remote, branch string) (ref string, found bool, err error) {
	source := remote.URL
	if source == "" {
		source = remote.Name
	}
	ref = fmt.Sprintf("refs/remotes/%s/%s", remote.Name, branch)
	refspec := fmt.Sprintf("+refs/heads/%s:%s", branch, ref)
	if _, err := c.must(ctx, fmt.Sprintf("fetch %s/%s", remote.Name, branch), "fetch", source, refspec); err != nil {
		if isMissingRemoteRef(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return ref, true, nil
}

// CherryPickOnto replays commit on top of base inside a temporary detached
// worktree and pushes the result to remote's branch as a regular, non-forced
// update. The caller's working tree and index are never touched. It returns the
// id of the pushed commit.
func (c *Client) CherryPickOnto(ctx context.Context, remote, branch, base, commit string) (pushed string, err error) {
	wt, err := c.AddWorktree(ctx, base)
	if err != nil {
		return "", err
	}
	defer func() {
		if rmErr := wt.Remove(ctx); rmErr != nil {
			c.warn("failed to remove temporary worktree", "path", wt.Path, "error", rmErr)
		}
	}()

	if err := wt.CherryPick(ctx, commit); err != nil {
		if abortErr := wt.AbortCherryPick(ctx); abortErr != nil {
			c.warn("failed to abort cherry-pick after error", "abort_error", abortErr, "commit", commit)
		}
		return "", err
	}

	head, err := wt.Head(ctx)
	if err != nil {
		return "", err
	}

	if _, err := wt.must(ctx, fmt.Sprintf("push cherry-picked commit to %s/%s", remote, branch),
		"push", remote, fmt.Sprintf("HEAD:refs/heads/%s", branch)); err != nil {
		return "", err
	}

	c.info("pushed one cherry-picked commit", "commit", shortID(head), "remote", remote, "branch", branch)
	return head, nil
}
