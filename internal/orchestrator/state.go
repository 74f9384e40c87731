package orchestrator

// State is everything the publication strategy depends on.
type State struct {
	LocalUnborn bool
	Mode        PublicMode
	// PublicBranchExists is only meaningful for a born repository in
	// ModeCherryPick.
	PublicBranchExists bool
}

// Strategy is the way the public branch gets updated in one run.
type Strategy string

const (
	// StrategyInitFromWorkingTree publishes the working tree as a root commit.
	// The private push is skipped because there is no history yet.
	StrategyInitFromWorkingTree Strategy = "init_from_working_tree"
	// StrategySnapshot replaces the public branch with HEAD's tree.
	StrategySnapshot Strategy = "snapshot"
	// StrategyInitFromHead seeds a missing public branch with HEAD's tree.
	StrategyInitFromHead Strategy = "init_from_head"
	// StrategyCherryPick appends HEAD to the public branch.
	StrategyCherryPick Strategy = "cherry_pick"
)

// Decide maps a repository state onto a publication strategy.
func Decide(s State) Strategy {
	switch {
	case s.LocalUnborn:
		return StrategyInitFromWorkingTree
	case s.Mode == ModeSnapshot:
		return StrategySnapshot
	case !s.PublicBranchExists:
		return StrategyInitFromHead
	default:
		return StrategyCherryPick
	}
}

// PushesPrivate reports whether the strategy runs after a private push.
func (s Strategy) PushesPrivate() bool {
	return s != StrategyInitFromWorkingTree
}

// ReplacesHistory reports whether the strategy force-pushes a root commit.
func (s Strategy) ReplacesHistory() bool {
	return s != StrategyCherryPick
}
