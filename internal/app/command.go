package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/rancher/repo-sync/internal/runlog"
)

// NewCommand returns the repo-sync command tree: the root action syncs and the
// release subcommand cuts a release.
func NewCommand(version string) *cli.Command {
	return &cli.Command{
		Name:    "repo-sync",
		Version: version,
		Usage:   "Push a branch to a private remote and publish it to a public one",
		Flags:   SyncFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := ConfigFromCommand(cmd)
			if err != nil {
				return startupFailure(cmd, err)
			}
			return RunSync(ctx, cfg)
		},
		Commands: []*cli.Command{
			{
				Name:  "release",
				Usage: "Write release notes, bump the version and optionally publish",
				Flags: ReleaseFlags(),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := ReleaseConfigFromCommand(cmd)
					if err != nil {
						return startupFailure(cmd, err)
					}
					return RunRelease(ctx, cfg)
				},
			},
		},
	}
}

func startupFailure(cmd *cli.Command, err error) error {
	logStartupFailure(strings.TrimSpace(cmd.String("log-file")), time.Now(), err)
	return err
}

// logStartupFailure records an error raised before a run could open its own
// log, such as an invalid flag or config file.
func logStartupFailure(path string, now time.Time, err error) {
	if path == "" {
		path = runlog.DefaultFile
	}
	rl, openErr := runlog.Open(path, now)
	if openErr != nil {
		fmt.Fprintf(os.Stderr, "failed to record error in run log: %v\n", openErr)
		return
	}
	defer func() {
		if closeErr := rl.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "failed to close run log: %v\n", closeErr)
		}
	}()

	logger := slog.New(slog.NewTextHandler(rl, nil)).With("component", "repo-sync")
	logger.Error("run failed", "error", err)
}
