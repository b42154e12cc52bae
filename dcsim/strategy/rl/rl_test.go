package rl

import (
	"testing"

	"github.com/dcsim/dcsim"
	"github.com/dcsim/dcsim/strategy/ilp"
)

func agentCfg() LinearQAgentConfig {
	return LinearQAgentConfig{
		StateDim:        StateDim,
		NumActions:      DefaultActionSpace().Size(),
		LearningRate:    0.01,
		Discount:        0.9,
		Epsilon:         0.5,
		EpsilonMin:      0.05,
		EpsilonDecay:    0.01,
		ReplayCapacity:  100,
		Batch:           4,
		TargetSyncEvery: 5,
		Variant:         DQN,
	}
}

func TestLinearQAgentSelectActionInRange(t *testing.T) {
	a := NewLinearQAgent(dcsim.NewSimulationKey(1), agentCfg())
	state := make([]float64, StateDim)
	for i := 0; i < 20; i++ {
		action := a.SelectAction(state)
		if action < 0 || action >= agentCfg().NumActions {
			t.Fatalf("action %d out of range [0, %d)", action, agentCfg().NumActions)
		}
	}
}

func TestLinearQAgentUpdateDecaysEpsilon(t *testing.T) {
	a := NewLinearQAgent(dcsim.NewSimulationKey(1), agentCfg())
	a.Store(Transition{
		State:     make([]float64, StateDim),
		Action:    0,
		Reward:    1.0,
		NextState: make([]float64, StateDim),
		Terminal:  false,
	})
	before := a.Epsilon()
	if err := a.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if a.Epsilon() >= before {
		t.Errorf("Epsilon() = %v, want less than %v after Update", a.Epsilon(), before)
	}
}

func TestActionSpaceDecodeRoundTripsWithinBounds(t *testing.T) {
	space := DefaultActionSpace()
	base := ilp.DefaultConfig()
	for action := 0; action < space.Size(); action += 37 {
		cfg := space.Decode(action, base)
		if cfg.BundleSize <= 0 {
			t.Fatalf("action %d decoded BundleSize <= 0", action)
		}
	}
}

func TestRLStrategyRunProducesDecisions(t *testing.T) {
	space := DefaultActionSpace()
	cfg := LinearQAgentConfig{
		StateDim:        StateDim,
		NumActions:      space.Size(),
		LearningRate:    0.01,
		Discount:        0.9,
		Epsilon:         1.0,
		EpsilonMin:      0.05,
		EpsilonDecay:    0.0,
		ReplayCapacity:  50,
		Batch:           2,
		TargetSyncEvery: 10,
		Variant:         DoubleDQN,
	}
	agent := NewLinearQAgent(dcsim.NewSimulationKey(3), cfg)
	s := New(ilp.DefaultConfig(), space, ilp.NewBranchAndBound(), agent, 10)

	pm := dcsim.NewPhysicalMachine(1, dcsim.Resources{CPU: 100, RAM: 100, Disk: 100, Bandwidth: 100, FPGA: 10}, 10, 1, 1)
	pm.PoweredOn = true
	vm := dcsim.NewVirtualMachine(1, dcsim.Resources{CPU: 10, RAM: 10, Disk: 10, Bandwidth: 10}, 100, 1.0)

	out, err := s.Run(dcsim.StrategyInput{
		NewRequests: []*dcsim.VirtualMachine{vm},
		PMs:         []*dcsim.PhysicalMachine{pm},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out.Placements) != 1 {
		t.Fatalf("placements = %d, want 1", len(out.Placements))
	}
}
