package git

import (
	"context"
	"log/slog"
	"os"
)

// Client is the repository handle used by the sync orchestrator and the release
// tooling. It answers read-only questions about the repository, synthesizes
// root commits and publishes to remotes, all through a Runner.
type Client struct {
	runner Runner
	dir    string
	log    *slog.Logger

	// TempDir is the directory under which temporary worktrees and index files
	// are created. When empty, os.TempDir() is used.
	TempDir string
}

// NewClient returns a Client that runs git in dir.
func NewClient(runner Runner, dir string, logger *slog.Logger) *Client {
	return &Client{runner: runner, dir: dir, log: logger}
}

// Dir returns the directory commands run in.
func (c *Client) Dir() string {
	return c.dir
}

func (c *Client) tempBase() (string, error) {
	base := c.TempDir
	if base == "" {
		return os.TempDir(), nil
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", err
	}
	return base, nil
}

func (c *Client) run(ctx context.Context, args ...string) (Result, error) {
	return c.runner.Run(ctx, Command{Args: args, Dir: c.dir})
}

func (c *Client) must(ctx context.Context, label string, args ...string) (string, error) {
	return MustRun(ctx, c.runner, label, Command{Args: args, Dir: c.dir})
}

func (c *Client) mustEnv(ctx context.Context, label string, env []string, args ...string) (string, error) {
	return MustRun(ctx, c.runner, label, Command{Args: args, Dir: c.dir, Env: env})
}

func (c *Client) warn(msg string, args ...any) {
	if c.log != nil {
		c.log.Warn(msg, args...)
	}
}

func (c *Client) info(msg string, args ...any) {
	if c.log != nil {
		c.log.Info(msg, args...)
	}
}
