package git

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotRepository is returned when the working directory is not inside a git work tree.
	ErrNotRepository = errors.New("not inside a git repository")

	// ErrRemoteNotFound is returned when a named remote does not exist and no URL was supplied.
	ErrRemoteNotFound = errors.New("remote not found")

	// ErrRemoteURLMissing is returned when a remote exists but has no URL configured.
	ErrRemoteURLMissing = errors.New("remote has no url")
)

// GitError wraps a git invocation that exited non-zero.
type GitError struct {
	// Label describes the operation in progress, e.g. "push full history".
	Label    string
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *GitError) Error() string {
	if e == nil {
		return ""
	}
	label := e.Label
	if label == "" {
		label = "command failed"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: git %s (exit %d)", label, strings.Join(e.Args, " "), e.ExitCode)
	if out := strings.TrimSpace(e.Stdout); out != "" {
		fmt.Fprintf(&b, "\nstdout:\n%s", out)
	}
	if out := strings.TrimSpace(e.Stderr); out != "" {
		fmt.Fprintf(&b, "\nstderr:\n%s", out)
	}
	return b.String()
}

func (e *GitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Output returns stdout and stderr combined, for matching on git's messages.
func (e *GitError) Output() string {
	if e == nil {
		return ""
	}
	return e.Stdout + "\n" + e.Stderr
}

func isMissingRemoteRef(err error) bool {
	var gitErr *GitError
	if !errors.As(err, &gitErr) {
		return false
	}
	out := gitErr.Output()
	return strings.Contains(out, "couldn't find remote ref")
}

func isNoCherryPickInProgress(err error) bool {
	var gitErr *GitError
	if !errors.As(err, &gitErr) {
		return false
	}
	out := strings.ToLower(gitErr.Output())
	return strings.Contains(out, "no cherry-pick") || strings.Contains(out, "no cherry pick")
}
