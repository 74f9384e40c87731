package release

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// PackageFile is the manifest whose version the release bumps.
const PackageFile = "package.json"

// BumpKind selects which part of the version to increment.
type BumpKind string

const (
	BumpNone  BumpKind = "none"
	BumpPatch BumpKind = "patch"
	BumpMinor BumpKind = "minor"
	BumpMajor BumpKind = "major"
)

// ErrNoVersion is returned when package.json has no top-level "version".
var ErrNoVersion = errors.New("package.json has no version")

// ParseBumpKind validates a --bump value. Empty means BumpNone.
func ParseBumpKind(value string) (BumpKind, error) {
	switch kind := BumpKind(strings.ToLower(strings.TrimSpace(value))); kind {
	case "":
		return BumpNone, nil
	case BumpNone, BumpPatch, BumpMinor, BumpMajor:
		return kind, nil
	default:
		return "", fmt.Errorf("invalid bump %q (want major, minor, patch or none)", value)
	}
}

// BumpVersion increments a strict MAJOR.MINOR.PATCH version.
func BumpVersion(current string, kind BumpKind) (string, error) {
	v, err := semver.StrictNewVersion(strings.TrimSpace(current))
	if err != nil {
		return "", fmt.Errorf("version %q is not MAJOR.MINOR.PATCH: %w", current, err)
	}
	if v.Prerelease() != "" || v.Metadata() != "" {
		return "", fmt.Errorf("version %q is not MAJOR.MINOR.PATCH", current)
	}

	var next semver.Version
	switch kind {
	case BumpMajor:
		next = v.IncMajor()
	case BumpMinor:
		next = v.IncMinor()
	case BumpPatch:
		next = v.IncPatch()
	case BumpNone, "":
		return v.String(), nil
	default:
		return "", fmt.Errorf("invalid bump %q", kind)
	}
	return next.String(), nil
}

var versionValue = regexp.MustCompile(`^\s*:\s*"([^"\\]*)"`)

// ReadPackageVersion returns the top-level "version" of the manifest at path.
// The boolean is false when the file does not exist.
func ReadPackageVersion(path string) (string, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", path, err)
	}
	start, end, err := versionSpan(data)
	if err != nil {
		return "", true, fmt.Errorf("parse %s: %w", path, err)
	}
	return string(data[start:end]), true, nil
}

// WritePackageVersion rewrites the top-level "version" value in place. Every
// other byte of the file is preserved.
func WritePackageVersion(path, version string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	start, end, err := versionSpan(data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	var out bytes.Buffer
	out.Grow(len(data) + len(version))
	out.Write(data[:start])
	out.WriteString(version)
	out.Write(data[end:])

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, out.Bytes(), info.Mode().Perm()); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// versionSpan locates the byte range of the top-level "version" string value.
func versionSpan(data []byte) (int, int, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return 0, 0, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return 0, 0, fmt.Errorf("expected a JSON object")
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return 0, 0, err
		}
		key, _ := tok.(string)
		if key == "version" {
			offset := int(dec.InputOffset())
			loc := versionValue.FindSubmatchIndex(data[offset:])
			if loc == nil {
				return 0, 0, fmt.Errorf("version is not a plain string")
			}
			return offset + loc[2], offset + loc[3], nil
		}

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return 0, 0, err
		}
	}
	return 0, 0, ErrNoVersion
}
