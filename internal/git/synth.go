package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	placeholderName  = "Public Snapshot"
	placeholderEmail = "noreply@example.com"
)

// Identity is a name/email pair applied to both author and committer of a
// synthesized commit.
type Identity struct {
	Name  string
	Email string
}

func (i Identity) env() map[string]string {
	return map[string]string{
		"GIT_AUTHOR_NAME":     i.Name,
		"GIT_AUTHOR_EMAIL":    i.Email,
		"GIT_COMMITTER_NAME":  i.Name,
		"GIT_COMMITTER_EMAIL": i.Email,
	}
}

// SynthesizedCommit is a parentless commit built for publication.
type SynthesizedCommit struct {
	TreeID   string
	CommitID string
	Message  string
	Author   *Identity
}

// AuthorIdentity resolves the identity to preserve on synthesized commits: the
// author of HEAD when there is one, then the local user config, then fixed
// placeholders.
func (c *Client) AuthorIdentity(ctx context.Context) (Identity, error) {
	var id Identity

	res, err := c.run(ctx, "log", "-1", "--pretty=%an%n%ae")
	if err != nil {
		return Identity{}, err
	}
	if res.Success() {
		lines := strings.SplitN(strings.TrimSpace(res.Stdout), "\n", 2)
		id.Name = strings.TrimSpace(lines[0])
		if len(lines) == 2 {
			id.Email = strings.TrimSpace(lines[1])
		}
	}

	if id.Name == "" {
		if id.Name, err = c.configValue(ctx, "user.name"); err != nil {
			return Identity{}, err
		}
	}
	if id.Email == "" {
		if id.Email, err = c.configValue(ctx, "user.email"); err != nil {
			return Identity{}, err
		}
	}

	if id.Name == "" {
		id.Name = placeholderName
	}
	if id.Email == "" {
		id.Email = placeholderEmail
	}
	return id, nil
}

func (c *Client) configValue(ctx context.Context, key string) (string, error) {
	res, err := c.run(ctx, "-c", "user.useConfigOnly=true", "config", "--get", key)
	if err != nil {
		return "", err
	}
	if !res.Success() {
		return "", nil
	}
	return strings.TrimSpace(res.Stdout), nil
}

// CommitTree creates a commit object for tree with no parents. When author is
// set it overrides both author and committer.
func (c *Client) CommitTree(ctx context.Context, tree, message string, author *Identity) (SynthesizedCommit, error) {
	var env []string
	if author != nil {
		env = Environ(author.env())
	}
	commit, err := c.mustEnv(ctx, "create root commit", env, "commit-tree", tree, "-m", message)
	if err != nil {
		return SynthesizedCommit{}, err
	}
	return SynthesizedCommit{TreeID: tree, CommitID: commit, Message: message, Author: author}, nil
}

// CommitFromHeadTree builds a root commit from the tree HEAD points at.
func (c *Client) CommitFromHeadTree(ctx context.Context, message string, author *Identity) (SynthesizedCommit, error) {
	tree, err := c.must(ctx, "resolve HEAD tree", "rev-parse", "HEAD^{tree}")
	if err != nil {
		return SynthesizedCommit{}, err
	}
	return c.CommitTree(ctx, tree, message, author)
}

// CommitFromWorkingTree builds a root commit from everything currently in the
// working tree, untracked files included. Staging happens in a throwaway index
// so the repository's real index is never touched.
func (c *Client) CommitFromWorkingTree(ctx context.Context, message, repoRoot string, author *Identity) (SynthesizedCommit, error) {
	base, err := c.tempBase()
	if err != nil {
		return SynthesizedCommit{}, fmt.Errorf("create temp base: %w", err)
	}
	indexDir, err := os.MkdirTemp(base, "public_index_")
	if err != nil {
		return SynthesizedCommit{}, fmt.Errorf("create temporary index: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(indexDir); err != nil {
			c.warn("failed to remove temporary index", "path", indexDir, "error", err)
		}
	}()

	// git refuses a zero-length index file, so point at a path that does not exist yet.
	env := Environ(map[string]string{
		"GIT_INDEX_FILE": filepath.Join(indexDir, "index"),
		"GIT_WORK_TREE":  repoRoot,
	})

	if _, err := MustRun(ctx, c.runner, "stage working tree into temporary index", Command{
		Args: []string{"add", "-A"},
		Dir:  repoRoot,
		Env:  env,
	}); err != nil {
		return SynthesizedCommit{}, err
	}

	tree, err := MustRun(ctx, c.runner, "write tree from temporary index", Command{
		Args: []string{"write-tree"},
		Dir:  repoRoot,
		Env:  env,
	})
	if err != nil {
		return SynthesizedCommit{}, err
	}

	return c.CommitTree(ctx, tree, message, author)
}
