package gh

import (
	"context"
	"fmt"
	"log/slog"
)

// NewDryRunFactory returns a Factory whose clients report what they would
// publish without calling GitHub.
func NewDryRunFactory(logger *slog.Logger) Factory {
	return dryRunFactory{log: logger}
}

type dryRunFactory struct {
	log *slog.Logger
}

func (f dryRunFactory) New(ctx context.Context, token string) (Client, error) {
	return dryRunClient{log: f.log}, nil
}

type dryRunClient struct {
	log *slog.Logger
}

func (dryRunClient) GetReleaseByTag(ctx context.Context, owner, repo, tag string) (Release, error) {
	return Release{}, ErrReleaseNotFound
}

func (c dryRunClient) CreateRelease(ctx context.Context, owner, repo string, input CreateReleaseOptions) (Release, error) {
	if c.log != nil {
		c.log.Info("dry run: skipping github release", "owner", owner, "repo", repo, "tag", input.TagName, "target", input.Target)
	}
	return Release{
		TagName: input.TagName,
		Name:    input.Name,
		URL:     fmt.Sprintf("https://github.com/%s/%s/releases/tag/%s", owner, repo, input.TagName),
	}, nil
}
