package rl

import (
	"github.com/dcsim/dcsim"
	"github.com/dcsim/dcsim/strategy/ilp"
)

// ActionSpace is the Cartesian product of tunable ILP knobs the agent
// chooses from each run (spec.md §4.6.6): bundle_size, mu, tau, beta,
// gamma, and migration_start_threshold, each drawn from a small finite
// set.
type ActionSpace struct {
	BundleSizes           []int
	Mus                   []float64
	Taus                  []float64
	Betas                 []float64
	Gammas                []float64
	MigrationThresholds   []float64
}

// DefaultActionSpace returns a modest discretization of each knob.
func DefaultActionSpace() ActionSpace {
	return ActionSpace{
		BundleSizes:         []int{5, 10, 20},
		Mus:                 []float64{1, 5, 10},
		Taus:                []float64{0.5, 0.7, 0.9},
		Betas:               []float64{0.5, 1.0, 1.5},
		Gammas:              []float64{0.5, 1.0, 1.5},
		MigrationThresholds: []float64{0.7, 0.8, 0.9},
	}
}

// Size returns the total number of discrete actions.
func (a ActionSpace) Size() int {
	return len(a.BundleSizes) * len(a.Mus) * len(a.Taus) * len(a.Betas) * len(a.Gammas) * len(a.MigrationThresholds)
}

// Decode maps a flat action index to an ilp.Config, holding CPUPowerRate
// and ExtraCandidateCoef fixed at the base config's values.
func (a ActionSpace) Decode(action int, base ilp.Config) ilp.Config {
	cfg := base
	n := action

	cfg.MigrationThreshold = a.MigrationThresholds[n%len(a.MigrationThresholds)]
	n /= len(a.MigrationThresholds)
	cfg.Gamma = a.Gammas[n%len(a.Gammas)]
	n /= len(a.Gammas)
	cfg.Beta = a.Betas[n%len(a.Betas)]
	n /= len(a.Betas)
	cfg.Tau = a.Taus[n%len(a.Taus)]
	n /= len(a.Taus)
	cfg.Mu = a.Mus[n%len(a.Mus)]
	n /= len(a.Mus)
	cfg.BundleSize = a.BundleSizes[n%len(a.BundleSizes)]

	return cfg
}

// infeasibleReward is the large negative constant assigned when the ILP
// run is infeasible (spec.md §4.6.6 step 4).
const infeasibleReward = -1e6

// Strategy wraps an ilp.Strategy with an Agent that picks its
// hyper-parameters each run, training on the resulting reward (spec.md
// §4.6.6).
type Strategy struct {
	base   ilp.Config
	space  ActionSpace
	ilp    *ilp.Strategy
	agent  Agent
	bundle int

	lastState []float64
}

// New creates the RL-augmented ILP strategy. bundleSize is fixed for the
// purpose of dcsim.Strategy.BundleSize() (the data center must know the
// trigger size before a run happens and before an action is chosen); the
// agent's chosen BundleSize for the run itself only affects that run's
// ILP configuration.
func New(base ilp.Config, space ActionSpace, solver ilp.ILPSolver, agent Agent, bundleSize int) *Strategy {
	return &Strategy{
		base:   base,
		space:  space,
		ilp:    ilp.New(base, solver),
		agent:  agent,
		bundle: bundleSize,
	}
}

func (s *Strategy) Name() string               { return "rl-ilp" }
func (s *Strategy) BundleSize() int             { return s.bundle }
func (s *Strategy) MigrationThreshold() float64 { return s.base.MigrationThreshold }

// Run implements dcsim.Strategy, following spec.md §4.6.6's five steps.
func (s *Strategy) Run(input dcsim.StrategyInput) (dcsim.StrategyOutput, error) {
	state := computeState(input)
	action := s.agent.SelectAction(state)
	cfg := s.space.Decode(action, s.base)

	out, objective, feasible, err := s.ilp.RunWithObjective(input, cfg)
	if err != nil {
		return dcsim.StrategyOutput{}, err
	}

	reward := -objective
	if !feasible {
		reward = infeasibleReward
	}

	nextState := computeState(dcsim.StrategyInput{PMs: input.PMs, Counters: input.Counters})
	s.agent.Store(Transition{
		State:     state,
		Action:    action,
		Reward:    reward,
		NextState: nextState,
		Terminal:  !feasible,
	})
	if err := s.agent.Update(); err != nil {
		return dcsim.StrategyOutput{}, err
	}

	s.lastState = state
	return out, nil
}
