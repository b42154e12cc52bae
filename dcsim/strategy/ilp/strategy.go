package ilp

import "github.com/dcsim/dcsim"

// Config holds the ILP consolidator's tunable parameters (spec.md
// §4.6.5 configuration table).
type Config struct {
	BundleSize         int
	MigrationThreshold float64
	Mu                 float64
	Tau                float64
	Beta               float64
	Gamma              float64
	CPUPowerRate       float64
	ExtraCandidateCoef float64
}

// DefaultConfig returns the ILP strategy's documented defaults (spec.md
// §6 configuration table).
func DefaultConfig() Config {
	return Config{
		BundleSize:         10,
		MigrationThreshold: 1.0,
		Mu:                 250,
		Tau:                0.75,
		Beta:               1.0,
		Gamma:              1.0,
		CPUPowerRate:       1.0,
		ExtraCandidateCoef: 5.0,
	}
}

// Strategy wraps an ILPSolver behind dcsim.Strategy, applying
// ChooseMachines before building the Problem (spec.md §4.6.5).
type Strategy struct {
	cfg    Config
	solver ILPSolver
}

// New creates an ILP strategy over the given solver (normally
// NewBranchAndBound()).
func New(cfg Config, solver ILPSolver) *Strategy {
	return &Strategy{cfg: cfg, solver: solver}
}

func (s *Strategy) Name() string               { return "ilp" }
func (s *Strategy) BundleSize() int             { return s.cfg.BundleSize }
func (s *Strategy) MigrationThreshold() float64 { return s.cfg.MigrationThreshold }

// Run implements dcsim.Strategy.
func (s *Strategy) Run(input dcsim.StrategyInput) (dcsim.StrategyOutput, error) {
	out, _, _, err := s.run(input, s.cfg)
	return out, err
}

// run is factored out so the RL-augmented strategy (dcsim/strategy/rl)
// can apply a per-call hyper-parameter override without re-implementing
// ChooseMachines/problem construction.
func (s *Strategy) run(input dcsim.StrategyInput, cfg Config) (dcsim.StrategyOutput, Assignment, []*dcsim.PhysicalMachine, error) {
	candidates := ChooseMachines(input.PMs, len(input.NewRequests), len(input.ToMigrate), cfg.ExtraCandidateCoef)

	problem := Problem{
		NewRequests:  input.NewRequests,
		Migrating:    input.ToMigrate,
		PMs:          candidates,
		Mu:           cfg.Mu,
		Tau:          cfg.Tau,
		Beta:         cfg.Beta,
		Gamma:        cfg.Gamma,
		CPUPowerRate: cfg.CPUPowerRate,
	}

	assignment, err := s.solver.Minimize(problem)
	if err != nil {
		return dcsim.StrategyOutput{}, Assignment{}, candidates, err
	}

	var out dcsim.StrategyOutput
	for i, vm := range input.NewRequests {
		pmID := dcsim.NoFitPMID
		if assignment.Feasible && assignment.NewPM[i] >= 0 {
			pmID = candidates[assignment.NewPM[i]].ID
		}
		out.Placements = append(out.Placements, dcsim.PlacementDecision{VM: vm, PMID: pmID})
	}
	for i, vm := range input.ToMigrate {
		pmID := dcsim.NoFitPMID
		if assignment.Feasible && assignment.MigPM[i] >= 0 {
			pmID = candidates[assignment.MigPM[i]].ID
		}
		out.Migrations = append(out.Migrations, dcsim.PlacementDecision{VM: vm, PMID: pmID})
	}
	return out, assignment, candidates, nil
}

// RunWithObjective runs the solver once and also returns its objective
// value and feasibility, used by the RL wrapper to compute a reward
// (spec.md §4.6.6 step 4).
func (s *Strategy) RunWithObjective(input dcsim.StrategyInput, cfg Config) (dcsim.StrategyOutput, float64, bool, error) {
	out, assignment, _, err := s.run(input, cfg)
	if err != nil {
		return dcsim.StrategyOutput{}, 0, false, err
	}
	return out, assignment.Objective, assignment.Feasible, nil
}
