package orchestrator_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rancher/repo-sync/internal/orchestrator"
)

var _ = Describe("Decide", func() {
	DescribeTable("maps repository state to a strategy",
		func(state orchestrator.State, expected orchestrator.Strategy) {
			Expect(orchestrator.Decide(state)).To(Equal(expected))
		},
		Entry("unborn in cherry-pick mode", orchestrator.State{LocalUnborn: true, Mode: orchestrator.ModeCherryPick}, orchestrator.StrategyInitFromWorkingTree),
		Entry("unborn in snapshot mode", orchestrator.State{LocalUnborn: true, Mode: orchestrator.ModeSnapshot}, orchestrator.StrategyInitFromWorkingTree),
		Entry("unborn ignores public branch", orchestrator.State{LocalUnborn: true, Mode: orchestrator.ModeCherryPick, PublicBranchExists: true}, orchestrator.StrategyInitFromWorkingTree),
		Entry("born in snapshot mode", orchestrator.State{Mode: orchestrator.ModeSnapshot}, orchestrator.StrategySnapshot),
		Entry("snapshot mode ignores public branch", orchestrator.State{Mode: orchestrator.ModeSnapshot, PublicBranchExists: true}, orchestrator.StrategySnapshot),
		Entry("cherry-pick without public branch", orchestrator.State{Mode: orchestrator.ModeCherryPick}, orchestrator.StrategyInitFromHead),
		Entry("cherry-pick with public branch", orchestrator.State{Mode: orchestrator.ModeCherryPick, PublicBranchExists: true}, orchestrator.StrategyCherryPick),
	)

	It("only skips the private push for an unborn repository", func() {
		Expect(orchestrator.StrategyInitFromWorkingTree.PushesPrivate()).To(BeFalse())
		Expect(orchestrator.StrategySnapshot.PushesPrivate()).To(BeTrue())
		Expect(orchestrator.StrategyInitFromHead.PushesPrivate()).To(BeTrue())
		Expect(orchestrator.StrategyCherryPick.PushesPrivate()).To(BeTrue())
	})

	It("only preserves public history when cherry-picking", func() {
		Expect(orchestrator.StrategyCherryPick.ReplacesHistory()).To(BeFalse())
		Expect(orchestrator.StrategySnapshot.ReplacesHistory()).To(BeTrue())
		Expect(orchestrator.StrategyInitFromHead.ReplacesHistory()).To(BeTrue())
		Expect(orchestrator.StrategyInitFromWorkingTree.ReplacesHistory()).To(BeTrue())
	})
})

var _ = Describe("ParsePublicMode", func() {
	DescribeTable("normalizes modes",
		func(input string, expected orchestrator.PublicMode) {
			mode, err := orchestrator.ParsePublicMode(input)
			Expect(err).NotTo(HaveOccurred())
			Expect(mode).To(Equal(expected))
		},
		Entry("empty defaults to cherry-pick", "", orchestrator.ModeCherryPick),
		Entry("cherry-pick", "cherry-pick", orchestrator.ModeCherryPick),
		Entry("snapshot with whitespace and case", "  Snapshot ", orchestrator.ModeSnapshot),
	)

	It("rejects unknown modes", func() {
		_, err := orchestrator.ParsePublicMode("mirror")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("mirror"))
	})
})
