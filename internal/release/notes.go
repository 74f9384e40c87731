// Package release builds release notes from git history, writes them into the
// changelog and README, bumps package versions and optionally asks an
// OpenAI-compatible model for a short summary.
package release

import (
	"fmt"
	"regexp"

	"github.com/rancher/repo-sync/internal/git"
)

const (
	// OtherBucket collects commits without a recognised conventional prefix.
	OtherBucket = "Other"

	noChangesNote      = "No changes."
	initialReleaseNote = "Initial release."
)

type bucket struct {
	name    string
	pattern *regexp.Regexp
}

func conventional(name, prefix string) bucket {
	return bucket{name: name, pattern: regexp.MustCompile(`(?i)^` + prefix + `(\(.+\))?:`)}
}

// Buckets in the order they appear in the notes. A commit lands in the first
// bucket whose prefix matches its subject.
var buckets = []bucket{
	conventional("Features", "feat"),
	conventional("Fixes", "fix"),
	conventional("Docs", "docs"),
	conventional("Performance", "perf"),
	conventional("Refactors", "refactor"),
	conventional("Build", "build"),
	conventional("CI", "ci"),
	conventional("Tests", "test"),
	conventional("Chores", "chore"),
}

// BucketFor returns the bucket name a commit subject falls into.
func BucketFor(subject string) string {
	for _, b := range buckets {
		if b.pattern.MatchString(subject) {
			return b.name
		}
	}
	return OtherBucket
}

// Bucketize groups commits into note lines by bucket. Empty buckets are
// omitted.
func Bucketize(commits []git.Commit) map[string][]string {
	grouped := make(map[string][]string)
	for _, c := range commits {
		name := BucketFor(c.Subject)
		grouped[name] = append(grouped[name], noteLine(c))
	}
	return grouped
}

// BuildNotes renders commits as markdown sections, one "### <bucket>" heading
// per non-empty bucket separated by blank lines.
func BuildNotes(commits []git.Commit) []string {
	if len(commits) == 0 {
		return []string{noChangesNote}
	}

	grouped := Bucketize(commits)
	var lines []string
	for _, name := range bucketOrder() {
		items := grouped[name]
		if len(items) == 0 {
			continue
		}
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, "### "+name)
		lines = append(lines, items...)
	}
	return lines
}

// InitialNotes are the notes for a repository without commits.
func InitialNotes() []string {
	return []string{initialReleaseNote}
}

func bucketOrder() []string {
	order := make([]string, 0, len(buckets)+1)
	for _, b := range buckets {
		order = append(order, b.name)
	}
	return append(order, OtherBucket)
}

func noteLine(c git.Commit) string {
	return fmt.Sprintf("- %s (%s, %s)", c.Subject, c.Author, c.ShortID)
}
