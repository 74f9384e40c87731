package git

import (
	"context"
	"log/slog"
	"strings"
)

// NewDryRunRunner wraps inner so that commands which change a remote or the
// repository configuration are logged and reported as successful without being
// executed. Everything else, including work inside temporary worktrees, runs
// for real.
func NewDryRunRunner(inner Runner, logger *slog.Logger) Runner {
	return &dryRunRunner{inner: inner, log: logger}
}

type dryRunRunner struct {
	inner Runner
	log   *slog.Logger
}

func (r *dryRunRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	if isMutatingCommand(cmd.Args) {
		if r.log != nil {
			r.log.Info("dry run: skipping git "+strings.Join(cmd.Args, " "), "dry_run", true)
		}
		return Result{}, nil
	}
	return r.inner.Run(ctx, cmd)
}

func isMutatingCommand(args []string) bool {
	primary, rest := primaryGitCommand(args)
	switch primary {
	case "push":
		return true
	case "remote":
		return len(rest) > 0 && rest[0] == "add"
	default:
		return false
	}
}

// primaryGitCommand returns the git subcommand in args, skipping global options,
// together with the arguments that follow it.
func primaryGitCommand(args []string) (string, []string) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			if i+1 < len(args) {
				return args[i+1], args[i+2:]
			}
			return "", nil
		}
		if strings.HasPrefix(arg, "-") {
			switch arg {
			case "-C", "--git-dir", "-c":
				i++
			}
			continue
		}
		return arg, args[i+1:]
	}
	return "", nil
}
