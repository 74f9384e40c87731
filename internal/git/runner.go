package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
)

// Command is a single git invocation. Args never include the git binary itself.
type Command struct {
	Args []string

	// Dir is the working directory. Empty means the runner's default.
	Dir string

	// Env, when non-nil, fully replaces the child environment.
	Env []string
}

// Result captures what a git invocation produced.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Success reports whether the command exited zero.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Runner executes git commands. A non-zero exit is reported through Result, not
// through the error return, which is reserved for commands that could not be
// started or were interrupted.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner shells out to the system git binary.
type ExecRunner struct {
	// Git is the git binary to execute. Defaults to "git" when empty.
	Git string

	// Dir is the default working directory for commands that do not set one.
	Dir string

	// Verbose echoes every invocation and its captured output to Log.
	Verbose bool

	Log *slog.Logger
}

// NewExecRunner returns a Runner backed by the git binary, rooted at dir.
func NewExecRunner(dir string, logger *slog.Logger, verbose bool) *ExecRunner {
	return &ExecRunner{Dir: dir, Log: logger, Verbose: verbose}
}

func (e *ExecRunner) gitBinary() string {
	if e.Git == "" {
		return "git"
	}
	return e.Git
}

func (e *ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	if e.Verbose && e.Log != nil {
		e.Log.Info("$ git " + strings.Join(c.Args, " "))
	}

	cmd := exec.CommandContext(ctx, e.gitBinary(), c.Args...)
	cmd.Dir = c.Dir
	if cmd.Dir == "" {
		cmd.Dir = e.Dir
	}
	if c.Env != nil {
		cmd.Env = c.Env
	}
	setProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("start git %s: %w", strings.Join(c.Args, " "), err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var waitErr error
	select {
	case <-ctx.Done():
		terminateProcessGroup(cmd)
		<-done
		return Result{ExitCode: -1, Stdout: stdout.String(), Stderr: stderr.String()}, ctx.Err()
	case waitErr = <-done:
	}

	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return Result{ExitCode: -1}, fmt.Errorf("wait git %s: %w", strings.Join(c.Args, " "), waitErr)
		}
		res.ExitCode = exitErr.ExitCode()
	}

	if e.Verbose && e.Log != nil {
		if out := strings.TrimSpace(res.Stdout); out != "" {
			e.Log.Info("stdout:\n" + out)
		}
		if out := strings.TrimSpace(res.Stderr); out != "" {
			e.Log.Info("stderr:\n" + out)
		}
	}

	return res, nil
}

// MustRun runs cmd and treats a non-zero exit as a *GitError carrying label and
// the captured output. On success it returns stdout with surrounding whitespace
// trimmed.
func MustRun(ctx context.Context, r Runner, label string, cmd Command) (string, error) {
	res, err := r.Run(ctx, cmd)
	if err != nil {
		return "", fmt.Errorf("%s: %w", label, err)
	}
	if !res.Success() {
		return "", &GitError{
			Label:    label,
			Args:     cmd.Args,
			ExitCode: res.ExitCode,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
		}
	}
	return strings.TrimSpace(res.Stdout), nil
}

// Environ returns the current process environment with overrides applied. Keys
// present in overrides replace any inherited value.
func Environ(overrides map[string]string) []string {
	base := os.Environ()
	env := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := overrides[key]; ok {
			continue
		}
		env = append(env, kv)
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}
	return env
}
