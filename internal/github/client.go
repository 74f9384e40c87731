package gh

import (
	"context"
	"errors"
)

// Release is a published GitHub release.
type Release struct {
	ID      int64
	TagName string
	Name    string
	URL     string
	Draft   bool
}

// CreateReleaseOptions defines the metadata of a new release.
type CreateReleaseOptions struct {
	TagName    string
	Target     string
	Name       string
	Body       string
	Draft      bool
	Prerelease bool
}

// Client exposes the GitHub operations required to publish a release.
type Client interface {
	GetReleaseByTag(ctx context.Context, owner, repo, tag string) (Release, error)
	CreateRelease(ctx context.Context, owner, repo string, input CreateReleaseOptions) (Release, error)
}

// Factory builds concrete GitHub clients (e.g., REST-backed) for the release publisher.
type Factory interface {
	New(ctx context.Context, token string) (Client, error)
}

// ErrReleaseNotFound indicates no release exists for the requested tag.
var ErrReleaseNotFound = errors.New("github: release not found")

// retryableError marks an error that may succeed if the operation is retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	if e == nil || e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// IsRetryable reports whether the supplied error resulted from a retryable GitHub
// API failure (for example, a transient network problem or rate-limited request).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var target *retryableError
	return errors.As(err, &target)
}
