package git

import (
	"context"
	"fmt"
	"strings"
)

// DefaultBranch is used when the current branch cannot be resolved.
const DefaultBranch = "main"

// Remote is a named git remote.
type Remote struct {
	Name string
	URL  string
}

// IsInsideWorkTree reports whether git confirms the client directory is inside a
// working tree.
func (c *Client) IsInsideWorkTree(ctx context.Context) (bool, error) {
	res, err := c.run(ctx, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		return false, err
	}
	if !res.Success() {
		return false, nil
	}
	return strings.EqualFold(strings.TrimSpace(res.Stdout), "true"), nil
}

// TopLevel returns the absolute path of the working tree root.
func (c *Client) TopLevel(ctx context.Context) (string, error) {
	return c.must(ctx, "resolve repository root", "rev-parse", "--show-toplevel")
}

// IsUnbornHead reports whether HEAD has no commit yet.
func (c *Client) IsUnbornHead(ctx context.Context) (bool, error) {
	res, err := c.run(ctx, "rev-parse", "--verify", "--quiet", "HEAD")
	if err != nil {
		return false, err
	}
	return !res.Success(), nil
}

// CurrentBranch returns the short symbolic name of HEAD. It works on an unborn
// HEAD and falls back to DefaultBranch when HEAD is detached.
func (c *Client) CurrentBranch(ctx context.Context) (string, error) {
	res, err := c.run(ctx, "symbolic-ref", "--short", "HEAD")
	if err != nil {
		return "", err
	}
	if name := strings.TrimSpace(res.Stdout); res.Success() && name != "" {
		return name, nil
	}
	return DefaultBranch, nil
}

// LastCommitMessage returns the full message of HEAD, or fallback when HEAD is
// unborn or the message is empty.
func (c *Client) LastCommitMessage(ctx context.Context, fallback string) (string, error) {
	res, err := c.run(ctx, "log", "-1", "--pretty=%B")
	if err != nil {
		return "", err
	}
	if msg := strings.TrimSpace(res.Stdout); res.Success() && msg != "" {
		return msg, nil
	}
	return fallback, nil
}

// HeadCommit returns the full object id HEAD points at.
func (c *Client) HeadCommit(ctx context.Context) (string, error) {
	return c.must(ctx, "resolve HEAD commit", "rev-parse", "HEAD")
}

// IsMergeCommit reports whether rev has more than one parent.
func (c *Client) IsMergeCommit(ctx context.Context, rev string) (bool, error) {
	out, err := c.must(ctx, "inspect commit parents", "rev-list", "--parents", "-n", "1", rev)
	if err != nil {
		return false, err
	}
	// "<commit> <parent1> [<parent2> ...]"
	return len(strings.Fields(out)) > 2, nil
}

// Remotes lists configured remote names.
func (c *Client) Remotes(ctx context.Context) ([]string, error) {
	out, err := c.must(ctx, "list remotes", "remote")
	if err != nil {
		return nil, err
	}
	return strings.Fields(out), nil
}

// RemoteExists reports whether a remote called name is configured.
func (c *Client) RemoteExists(ctx context.Context, name string) (bool, error) {
	remotes, err := c.Remotes(ctx)
	if err != nil {
		return false, err
	}
	for _, r := range remotes {
		if r == name {
			return true, nil
		}
	}
	return false, nil
}

// RemoteURL returns the URL of the named remote. The boolean is false when the
// remote is missing or has no URL.
func (c *Client) RemoteURL(ctx context.Context, name string) (string, bool, error) {
	res, err := c.run(ctx, "remote", "get-url", name)
	if err != nil {
		return "", false, err
	}
	url := strings.TrimSpace(res.Stdout)
	if !res.Success() || url == "" {
		return "", false, nil
	}
	return url, true, nil
}

// AddRemote configures a new remote.
func (c *Client) AddRemote(ctx context.Context, name, url string) error {
	_, err := c.must(ctx, fmt.Sprintf("add remote %s", name), "remote", "add", name, url)
	return err
}

// EnsureRemote makes sure the named remote exists, creating it from url when it
// is missing, and returns it with its resolved URL.
func (c *Client) EnsureRemote(ctx context.Context, name, url string) (Remote, error) {
	exists, err := c.RemoteExists(ctx, name)
	if err != nil {
		return Remote{}, err
	}
	if !exists {
		if strings.TrimSpace(url) == "" {
			return Remote{}, fmt.Errorf("%w: %q", ErrRemoteNotFound, name)
		}
		if err := c.AddRemote(ctx, name, url); err != nil {
			return Remote{}, err
		}
		c.info("added remote", "remote", name, "url", url)
	}

	resolved, ok, err := c.RemoteURL(ctx, name)
	if err != nil {
		return Remote{}, err
	}
	if !ok {
		if !exists && url != "" {
			// Dry-run runners skip "remote add"; report the URL we would have used.
			return Remote{Name: name, URL: url}, nil
		}
		return Remote{}, fmt.Errorf("%w: %q", ErrRemoteURLMissing, name)
	}
	return Remote{Name: name, URL: resolved}, nil
}
