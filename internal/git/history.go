package git

import (
	"context"
	"fmt"
	"strings"
)

// Commit is a single entry of the history used to build release notes.
type Commit struct {
	ShortID string
	ID      string
	Subject string
	Author  string
}

// LastTagOrRoot returns the most recent reachable tag, or the root commit when
// the history has no tags.
func (c *Client) LastTagOrRoot(ctx context.Context) (string, error) {
	res, err := c.run(ctx, "describe", "--tags", "--abbrev=0")
	if err != nil {
		return "", err
	}
	if tag := strings.TrimSpace(res.Stdout); res.Success() && tag != "" {
		return tag, nil
	}
	out, err := c.must(ctx, "find root commit", "rev-list", "--max-parents=0", "HEAD")
	if err != nil {
		return "", err
	}
	// Multiple roots are possible after unrelated merges; the last listed is the oldest.
	roots := strings.Fields(out)
	if len(roots) == 0 {
		return "", fmt.Errorf("no root commit found")
	}
	return roots[len(roots)-1], nil
}

// CommitsSince lists non-merge commits in since..HEAD, newest first.
func (c *Client) CommitsSince(ctx context.Context, since string) ([]Commit, error) {
	res, err := c.run(ctx, "log", fmt.Sprintf("%s..HEAD", since), "--no-merges", "--pretty=format:%h%x1f%s%x1f%an%x1f%H")
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		return nil, nil
	}

	var commits []Commit
	for _, line := range strings.Split(res.Stdout, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\x1f")
		if len(fields) != 4 {
			continue
		}
		commits = append(commits, Commit{
			ShortID: fields[0],
			Subject: strings.TrimSpace(fields[1]),
			Author:  strings.TrimSpace(fields[2]),
			ID:      fields[3],
		})
	}
	return commits, nil
}

// ChangedFilesSince lists up to limit paths changed in since..HEAD.
func (c *Client) ChangedFilesSince(ctx context.Context, since string, limit int) ([]string, error) {
	res, err := c.run(ctx, "diff", "--name-only", fmt.Sprintf("%s..HEAD", since))
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		return nil, nil
	}
	var files []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}

// ShortStatSince returns git's one-line diffstat for since..HEAD.
func (c *Client) ShortStatSince(ctx context.Context, since string) (string, error) {
	res, err := c.run(ctx, "diff", "--shortstat", fmt.Sprintf("%s..HEAD", since))
	if err != nil {
		return "", err
	}
	if !res.Success() {
		return "", nil
	}
	return strings.TrimSpace(res.Stdout), nil
}

// IsClean reports whether the working tree has no staged, unstaged or untracked changes.
func (c *Client) IsClean(ctx context.Context) (bool, error) {
	out, err := c.must(ctx, "read working tree status", "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out == "", nil
}

// Add stages paths. With no paths it stages everything.
func (c *Client) Add(ctx context.Context, paths ...string) error {
	args := []string{"add"}
	if len(paths) == 0 {
		args = append(args, "-A")
	} else {
		args = append(args, "--")
		args = append(args, paths...)
	}
	_, err := c.must(ctx, "stage changes", args...)
	return err
}

// HasStagedChanges reports whether the index differs from HEAD.
func (c *Client) HasStagedChanges(ctx context.Context) (bool, error) {
	res, err := c.run(ctx, "diff", "--cached", "--quiet")
	if err != nil {
		return false, err
	}
	switch res.ExitCode {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, &GitError{Label: "compare index", Args: []string{"diff", "--cached", "--quiet"}, ExitCode: res.ExitCode, Stdout: res.Stdout, Stderr: res.Stderr}
	}
}

// Commit records the index as a new commit on the current branch.
func (c *Client) Commit(ctx context.Context, message string) error {
	_, err := c.must(ctx, "commit", "commit", "-m", message)
	return err
}

// Tag creates a lightweight tag at HEAD.
func (c *Client) Tag(ctx context.Context, name string) error {
	_, err := c.must(ctx, fmt.Sprintf("tag %s", name), "tag", name)
	return err
}
