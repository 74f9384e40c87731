package release

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	changelogHeader = "# Changelog"
	latestStart     = "<!-- LATEST-CHANGES-START -->"
	latestEnd       = "<!-- LATEST-CHANGES-END -->"
)

var (
	changelogNames = []string{"CHANGELOG.md", "Changelog.md", "changelog.md"}
	readmeNames    = []string{"README.md", "Readme.md", "readme.md"}
)

// ResolveExisting returns the first candidate that exists in dir, then any
// entry in dir matching a candidate case-insensitively, and finally the first
// candidate as the path to create.
func ResolveExisting(dir string, candidates ...string) (string, error) {
	if len(candidates) == 0 {
		return "", fmt.Errorf("no candidate file names")
	}

	for _, name := range candidates {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("list %s: %w", dir, err)
	}
	for _, name := range candidates {
		for _, e := range entries {
			if strings.EqualFold(e.Name(), name) {
				return filepath.Join(dir, e.Name()), nil
			}
		}
	}

	return filepath.Join(dir, candidates[0]), nil
}

// DocPaths resolves the changelog and README in dir.
func DocPaths(dir string) (changelog, readme string, err error) {
	if changelog, err = ResolveExisting(dir, changelogNames...); err != nil {
		return "", "", err
	}
	if readme, err = ResolveExisting(dir, readmeNames...); err != nil {
		return "", "", err
	}
	return changelog, readme, nil
}

// PrependChangelog inserts a "## <title>" section with notes (and an optional
// summary block) directly below the "# Changelog" header, adding the header
// when the file lacks one.
func PrependChangelog(path, title string, notes, summary []string) error {
	existing, err := readOptional(path)
	if err != nil {
		return err
	}

	rest := strings.TrimSpace(existing)
	if strings.HasPrefix(rest, changelogHeader) {
		rest = strings.TrimSpace(strings.TrimPrefix(rest, changelogHeader))
	}

	pieces := []string{changelogHeader, "", "## " + title, ""}
	if len(summary) > 0 {
		pieces = append(pieces, summary...)
		pieces = append(pieces, "")
	}
	pieces = append(pieces, notes...)
	pieces = append(pieces, "")
	if rest != "" {
		pieces = append(pieces, rest, "")
	}

	return writeFile(path, strings.Join(pieces, "\n"))
}

// UpdateReadmeLatest replaces the latest-changes block of the README, or
// appends a "## Latest changes" section holding a new block.
func UpdateReadmeLatest(path string, notes, summary []string) error {
	existing, err := readOptional(path)
	if err != nil {
		return err
	}

	var body []string
	if len(summary) > 0 {
		body = append(body, "### Summary")
		body = append(body, summary...)
		body = append(body, "")
	}
	body = append(body, notes...)
	block := latestStart + "\n" + strings.Join(body, "\n") + "\n" + latestEnd + "\n"

	updated := existing + "\n## Latest changes\n\n" + block
	if start := strings.Index(existing, latestStart); start >= 0 {
		if end := strings.Index(existing[start:], latestEnd); end >= 0 {
			updated = existing[:start] + block + existing[start+end+len(latestEnd):]
		}
	}

	return writeFile(path, updated)
}

func readOptional(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func writeFile(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
