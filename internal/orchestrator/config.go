package orchestrator

import (
	"fmt"
	"strings"
)

// PublicMode selects how the public branch is updated.
type PublicMode string

const (
	// ModeCherryPick appends the latest local commit to the public branch.
	ModeCherryPick PublicMode = "cherry-pick"
	// ModeSnapshot replaces the public branch with a single root commit.
	ModeSnapshot PublicMode = "snapshot"
)

// ParsePublicMode normalizes a user-supplied mode. An empty value selects
// ModeCherryPick.
func ParsePublicMode(value string) (PublicMode, error) {
	switch PublicMode(strings.ToLower(strings.TrimSpace(value))) {
	case "", ModeCherryPick:
		return ModeCherryPick, nil
	case ModeSnapshot:
		return ModeSnapshot, nil
	default:
		return "", fmt.Errorf("invalid public mode %q (want %q or %q)", value, ModeCherryPick, ModeSnapshot)
	}
}

// Config captures the runtime controls the orchestrator needs.
type Config struct {
	PrivateRemote string
	PrivateURL    string
	PublicRemote  string
	PublicURL     string

	// Branch is the local branch to publish. Empty means the current branch.
	Branch string
	// PublicBranch is the branch updated on the public remote. Empty means "main".
	PublicBranch string

	PublicMode PublicMode
	// PublicMessage overrides the message of synthesized public commits.
	PublicMessage  string
	PreserveAuthor bool
	DryRun         bool
}
