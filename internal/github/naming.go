package gh

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// scp-like syntax: [user@]host:path
var scpLikeURL = regexp.MustCompile(`^(?:[A-Za-z0-9._-]+@)?([A-Za-z0-9.-]+):(.+)$`)

// Repository identifies a repository on a GitHub host.
type Repository struct {
	Host  string
	Owner string
	Name  string
}

// FullName returns "owner/name".
func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// ParseRemoteURL extracts host, owner and repository name from a git remote
// URL. HTTPS, SSH and scp-like forms are accepted.
func ParseRemoteURL(raw string) (Repository, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Repository{}, fmt.Errorf("remote url cannot be empty")
	}

	var host, path string
	if strings.Contains(raw, "://") {
		parsed, err := url.Parse(raw)
		if err != nil {
			return Repository{}, fmt.Errorf("parse remote url: %w", err)
		}
		host, path = parsed.Hostname(), parsed.Path
	} else if m := scpLikeURL.FindStringSubmatch(raw); m != nil {
		host, path = m[1], m[2]
	} else {
		return Repository{}, fmt.Errorf("unsupported remote url %q", raw)
	}

	path = strings.Trim(path, "/")
	path = strings.TrimSuffix(path, ".git")
	segments := strings.Split(path, "/")
	if host == "" || len(segments) < 2 {
		return Repository{}, fmt.Errorf("remote url %q does not name an owner and repository", raw)
	}

	owner := segments[len(segments)-2]
	name := segments[len(segments)-1]
	if owner == "" || name == "" {
		return Repository{}, fmt.Errorf("remote url %q does not name an owner and repository", raw)
	}
	return Repository{Host: strings.ToLower(host), Owner: owner, Name: name}, nil
}

// TagForVersion returns the release tag for a version, adding the "v" prefix
// when it is missing.
func TagForVersion(version string) string {
	version = strings.TrimSpace(version)
	if version == "" || strings.HasPrefix(version, "v") {
		return version
	}
	return "v" + version
}
