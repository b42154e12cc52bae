package cmd

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dcsim/dcsim"
	"github.com/dcsim/dcsim/config"
	"github.com/dcsim/dcsim/datacenter"
	"github.com/dcsim/dcsim/stats"
	"github.com/dcsim/dcsim/strategy"
	"github.com/dcsim/dcsim/strategy/ilp"
	"github.com/dcsim/dcsim/strategy/papso"
	"github.com/dcsim/dcsim/strategy/rl"
	"github.com/dcsim/dcsim/trace"
)

var configPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a trace-driven data center simulation",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runSimulation(configPath); err != nil {
			logrus.Fatalf("run: %v", err)
		}
	},
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "Path to the run configuration YAML file (required)")
	runCmd.MarkFlagRequired("config")
}

func runSimulation(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	strat, err := buildStrategy(cfg)
	if err != nil {
		return fmt.Errorf("building strategy: %w", err)
	}

	migrationModel := datacenter.MigrationBatchedBandwidth
	if cfg.MigrationModel == config.MigrationModelSimple {
		migrationModel = datacenter.MigrationSimpleBandwidth
	}

	queue := dcsim.NewEventQueue()
	dc := datacenter.New(queue, strat, migrationModel, logrus.StandardLogger())
	registerStrategyFactories(dc, cfg)

	for _, spec := range cfg.PhysicalMachines {
		pm := dcsim.NewPhysicalMachine(
			dcsim.PMID(spec.ID),
			dcsim.Resources{CPU: spec.CPU, RAM: spec.RAM, Disk: spec.Disk, Bandwidth: spec.Bandwidth, FPGA: spec.FPGA},
			spec.PowerOnCost, spec.PowerPerCPUUnit, spec.PowerPerFPGAUnit,
		)
		dc.AddPhysicalMachine(pm)
	}

	var recorder dcsim.Recorder
	if cfg.StatsOutputPath != "" {
		rec, err := stats.NewRecorder(cfg.StatsOutputPath)
		if err != nil {
			return fmt.Errorf("opening stats output: %w", err)
		}
		recorder = rec
	}

	engine := dcsim.NewEngine(queue, dc, recorder, logrus.StandardLogger())

	logrus.Infof("starting simulation: strategy=%s pms=%d traces=%d migration_model=%s",
		strat.Name(), len(cfg.PhysicalMachines), len(cfg.TraceFiles), cfg.MigrationModel)

	// One producer goroutine per trace file pushes its arrivals; the queue
	// is terminated once all of them are done, so Run returns after the
	// last event has been dispatched.
	var producers sync.WaitGroup
	for _, file := range cfg.TraceFiles {
		producers.Add(1)
		go func(p *trace.Producer) {
			defer producers.Done()
			p.Run(queue)
		}(trace.NewProducer(file, logrus.StandardLogger()))
	}
	producers.Wait()
	queue.Terminate()

	if err := engine.Run(); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}
	logrus.Info("simulation complete")
	return nil
}

// buildStrategy constructs the strategy named by cfg.Strategy.Name,
// wiring FFD/BFD/OpenStack through the shared factory and constructing
// PAPSO/ILP/RL directly since they need gonum-backed solvers/agents the
// shared factory does not carry.
func buildStrategy(cfg *config.RunConfig) (dcsim.Strategy, error) {
	key := dcsim.NewSimulationKey(cfg.Seed)
	switch cfg.Strategy.Name {
	case "ffd", "bfd":
		return strategy.New(cfg.Strategy.Name, nil), nil
	case "openstack":
		return strategy.New("openstack", map[string]float64{"ial": cfg.Strategy.OpenStack.IAL}), nil
	case "papso":
		return papso.New(key, papsoConfigFrom(cfg.Strategy.PAPSO)), nil
	case "ilp":
		return ilp.New(ilpConfigFrom(cfg.Strategy.ILP), ilp.NewBranchAndBound()), nil
	case "rl-ilp":
		base := ilpConfigFrom(cfg.Strategy.ILP)
		agent := rl.NewLinearQAgent(key, rlAgentConfigFrom(cfg.Strategy.RL, rl.DefaultActionSpace().Size(), base.BundleSize))
		return rl.New(base, rl.DefaultActionSpace(), ilp.NewBranchAndBound(), agent, base.BundleSize), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", cfg.Strategy.Name)
	}
}

// registerStrategyFactories wires dcsim.EventReconfigureStrategy support
// (spec.md §4.5.7) so a trace-time reconfiguration event can swap to any
// of the six strategies, not just whichever one the run started with.
func registerStrategyFactories(dc *datacenter.DataCenter, cfg *config.RunConfig) {
	key := dcsim.NewSimulationKey(cfg.Seed)
	dc.RegisterStrategyFactory("ffd", func(map[string]float64) (dcsim.Strategy, error) {
		return strategy.New("ffd", nil), nil
	})
	dc.RegisterStrategyFactory("bfd", func(map[string]float64) (dcsim.Strategy, error) {
		return strategy.New("bfd", nil), nil
	})
	dc.RegisterStrategyFactory("openstack", func(params map[string]float64) (dcsim.Strategy, error) {
		return strategy.New("openstack", params), nil
	})
	dc.RegisterStrategyFactory("papso", func(map[string]float64) (dcsim.Strategy, error) {
		return papso.New(key, papsoConfigFrom(cfg.Strategy.PAPSO)), nil
	})
	dc.RegisterStrategyFactory("ilp", func(map[string]float64) (dcsim.Strategy, error) {
		return ilp.New(ilpConfigFrom(cfg.Strategy.ILP), ilp.NewBranchAndBound()), nil
	})
	dc.RegisterStrategyFactory("rl-ilp", func(map[string]float64) (dcsim.Strategy, error) {
		base := ilpConfigFrom(cfg.Strategy.ILP)
		agent := rl.NewLinearQAgent(key, rlAgentConfigFrom(cfg.Strategy.RL, rl.DefaultActionSpace().Size(), base.BundleSize))
		return rl.New(base, rl.DefaultActionSpace(), ilp.NewBranchAndBound(), agent, base.BundleSize), nil
	})
}

func papsoConfigFrom(c config.PAPSOConfig) papso.Config {
	return papso.Config{
		SwarmSize:      c.SwarmSize,
		MaxIterations:  c.MaxIters,
		InertiaMin:     c.InertiaMin,
		InertiaMax:     c.InertiaMax,
		C1:             c.C1,
		C2:             c.C2,
		VelocityClamp:  c.MaxVelocity,
		BundleSize:     c.BundleSize,
		UtilThreshold:  c.UtilThreshold,
		OverflowWeight: c.OverflowWeight,
		ActiveWeight:   c.W1,
		OverloadWeight: c.W2,
		NewPMPenalty:   c.NewPMPenalty,
	}
}

func ilpConfigFrom(c config.ILPConfig) ilp.Config {
	return ilp.Config{
		BundleSize:         c.BundleSize,
		MigrationThreshold: c.MST,
		Mu:                 c.Mu,
		Tau:                c.Tau,
		Beta:               c.Beta,
		Gamma:              c.Gamma,
		CPUPowerRate:       c.CPUPowerRate,
		ExtraCandidateCoef: c.ExtraCoef,
	}
}

func rlAgentConfigFrom(c config.RLConfig, numActions, bundleSize int) rl.LinearQAgentConfig {
	variant := rl.DQN
	if c.Variant == "double-dqn" {
		variant = rl.DoubleDQN
	}
	return rl.LinearQAgentConfig{
		StateDim:        rl.StateDim,
		NumActions:      numActions,
		LearningRate:    c.LearningRate,
		Discount:        c.Gamma,
		Epsilon:         c.EpsilonStart,
		EpsilonMin:      c.EpsilonMin,
		EpsilonDecay:    c.EpsilonDecay,
		ReplayCapacity:  c.ReplayCapacity,
		Batch:           c.BatchSize,
		TargetSyncEvery: c.TargetUpdateInterval,
		Variant:         variant,
		BundleSize:      bundleSize,
	}
}
