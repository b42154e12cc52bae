// Package config loads and validates the YAML run configuration: physical
// machine fleet, trace file list, placement strategy selection with its
// per-strategy knobs, migration model, and statistics output path.
// Grounded on the teacher's grouped-*Config-structs style (sim/config.go)
// and its YAML spec loader (sim/workload/spec.go: yaml.v3 decoder with
// KnownFields(true) plus a hand-written Validate()).
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PhysicalMachineSpec describes one PM in the fleet (spec.md §4.1).
type PhysicalMachineSpec struct {
	ID               int64   `yaml:"id"`
	CPU              float64 `yaml:"cpu"`
	RAM              float64 `yaml:"ram"`
	Disk             float64 `yaml:"disk"`
	Bandwidth        float64 `yaml:"bandwidth"`
	FPGA             float64 `yaml:"fpga,omitempty"`
	PowerOnCost      float64 `yaml:"power_on_cost"`
	PowerPerCPUUnit  float64 `yaml:"power_per_cpu_unit"`
	PowerPerFPGAUnit float64 `yaml:"power_per_fpga_unit,omitempty"`
}

// OpenStackConfig holds the OpenStack strategy's knobs (spec.md §6).
type OpenStackConfig struct {
	IAL float64 `yaml:"ial"`
}

// DefaultOpenStackConfig returns spec.md §6's documented default.
func DefaultOpenStackConfig() OpenStackConfig {
	return OpenStackConfig{IAL: 0.8}
}

// PAPSOConfig holds the PAPSO strategy's knobs (spec.md §6).
type PAPSOConfig struct {
	W1             float64 `yaml:"w1"`
	W2             float64 `yaml:"w2"`
	SwarmSize      int     `yaml:"swarm_size"`
	MaxIters       int     `yaml:"max_iters"`
	InertiaMin     float64 `yaml:"inertia_min"`
	InertiaMax     float64 `yaml:"inertia_max"`
	C1             float64 `yaml:"c1"`
	C2             float64 `yaml:"c2"`
	UtilThreshold  float64 `yaml:"util_threshold"`
	MaxVelocity    float64 `yaml:"max_velocity"`
	BundleSize     int     `yaml:"bundle_size"`
	OverflowWeight float64 `yaml:"overflow_weight,omitempty"`
	NewPMPenalty   float64 `yaml:"new_pm_penalty,omitempty"`
}

// DefaultPAPSOConfig returns spec.md §6's documented defaults.
func DefaultPAPSOConfig() PAPSOConfig {
	return PAPSOConfig{
		W1: 0.5, W2: 0.5,
		SwarmSize: 60, MaxIters: 100,
		InertiaMin: 0.4, InertiaMax: 0.9,
		C1: 2.05, C2: 2.05,
		UtilThreshold: 0.8, MaxVelocity: 10,
		BundleSize:     10,
		OverflowWeight: 1000,
		NewPMPenalty:   50,
	}
}

// ILPConfig holds the ILP consolidator's knobs (spec.md §6).
type ILPConfig struct {
	Mu                 float64 `yaml:"mu"`
	Tau                float64 `yaml:"tau"`
	Beta               float64 `yaml:"beta"`
	Gamma              float64 `yaml:"gamma"`
	MST                float64 `yaml:"mst"`
	ExtraCoef          float64 `yaml:"extra_coef"`
	MaxRequestsPerPM   int     `yaml:"max_requests_per_pm"`
	SolverTimeLimitSec float64 `yaml:"solver_time_limit_sec"`
	MIPGap             float64 `yaml:"mip_gap"`
	BundleSize         int     `yaml:"bundle_size"`
	CPUPowerRate       float64 `yaml:"cpu_power_rate,omitempty"`
}

// DefaultILPConfig returns spec.md §6's documented defaults.
func DefaultILPConfig() ILPConfig {
	return ILPConfig{
		Mu: 250, Tau: 0.75, Beta: 1.0, Gamma: 1.0, MST: 1.0,
		ExtraCoef:          5.0,
		MaxRequestsPerPM:   100000,
		SolverTimeLimitSec: 60,
		MIPGap:             0.01,
		BundleSize:         10,
		CPUPowerRate:       1.0,
	}
}

// RLConfig holds the DQN/DDQN agent's knobs layered on top of ILPConfig
// (spec.md §6, §4.6.6).
type RLConfig struct {
	Variant              string  `yaml:"variant"` // "dqn" or "double-dqn"
	LearningRate         float64 `yaml:"lr"`
	ReplayCapacity       int     `yaml:"replay_capacity"`
	BatchSize            int     `yaml:"batch_size"`
	Gamma                float64 `yaml:"gamma"`
	EpsilonStart         float64 `yaml:"epsilon_start"`
	EpsilonMin           float64 `yaml:"epsilon_min"`
	EpsilonDecay         float64 `yaml:"epsilon_decay"`
	TargetUpdateInterval int     `yaml:"target_update_interval"`
}

// DefaultRLConfig returns spec.md §6's documented defaults.
func DefaultRLConfig() RLConfig {
	return RLConfig{
		Variant:              "dqn",
		LearningRate:         1e-4,
		ReplayCapacity:       100000,
		BatchSize:            128,
		Gamma:                0.99,
		EpsilonStart:         1.0,
		EpsilonMin:           0.01,
		EpsilonDecay:         1e-5,
		TargetUpdateInterval: 1000,
	}
}

// StrategyConfig selects one placement strategy and holds every
// strategy's knobs; only the block matching Name is consulted.
type StrategyConfig struct {
	Name      string          `yaml:"name"` // "ffd", "bfd", "openstack", "papso", "ilp", "rl-ilp"
	OpenStack OpenStackConfig `yaml:"openstack,omitempty"`
	PAPSO     PAPSOConfig     `yaml:"papso,omitempty"`
	ILP       ILPConfig       `yaml:"ilp,omitempty"`
	RL        RLConfig        `yaml:"rl,omitempty"`
}

// MigrationModel selects the live-migration transfer-time formula
// (spec.md §4.5.4, open question 1): "batched" computes
// disk / (bandwidth / (1000 * N)), N being the number of migrations decided
// in the same placement run; "simple" computes disk / bandwidth.
type MigrationModel string

const (
	MigrationModelBatched MigrationModel = "batched"
	MigrationModelSimple  MigrationModel = "simple"
)

// RunConfig is the top-level run configuration, loaded from YAML.
type RunConfig struct {
	Seed                int64                 `yaml:"seed"`
	PhysicalMachines    []PhysicalMachineSpec `yaml:"physical_machines"`
	TraceFiles          []string              `yaml:"trace_files"`
	Strategy            StrategyConfig        `yaml:"strategy"`
	MigrationModel      MigrationModel        `yaml:"migration_model"`
	OvercommitThreshold float64               `yaml:"overcommit_threshold"`
	StatsOutputPath     string                `yaml:"stats_output_path,omitempty"`
	SampleEveryEvent    int                   `yaml:"sample_every_event,omitempty"`
}

var validMigrationModels = map[MigrationModel]bool{
	MigrationModelBatched: true,
	MigrationModelSimple:  true,
}

var validStrategyNames = map[string]bool{
	"ffd": true, "bfd": true, "openstack": true, "papso": true, "ilp": true, "rl-ilp": true,
}

// Load reads and parses a RunConfig from a YAML file, rejecting unknown
// fields (mirrors the teacher's decoder.KnownFields(true) policy, so a
// typo'd key fails loudly instead of silently no-op'ing).
func Load(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg RunConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults fills zero-valued strategy sub-configs with their
// documented defaults, so a config file only needs to name a strategy to
// get spec.md's baseline behavior.
func applyDefaults(cfg *RunConfig) {
	if cfg.MigrationModel == "" {
		cfg.MigrationModel = MigrationModelBatched
	}
	if cfg.OvercommitThreshold == 0 {
		cfg.OvercommitThreshold = 1.0
	}
	if cfg.Strategy.OpenStack == (OpenStackConfig{}) {
		cfg.Strategy.OpenStack = DefaultOpenStackConfig()
	}
	if cfg.Strategy.PAPSO == (PAPSOConfig{}) {
		cfg.Strategy.PAPSO = DefaultPAPSOConfig()
	}
	if cfg.Strategy.ILP == (ILPConfig{}) {
		cfg.Strategy.ILP = DefaultILPConfig()
	}
	if cfg.Strategy.RL == (RLConfig{}) {
		cfg.Strategy.RL = DefaultRLConfig()
	}
}

// Validate checks that every field is within its documented range
// (spec.md §6's per-strategy configuration table).
func (c *RunConfig) Validate() error {
	if len(c.PhysicalMachines) == 0 {
		return fmt.Errorf("at least one physical machine required")
	}
	seen := make(map[int64]bool, len(c.PhysicalMachines))
	for i, pm := range c.PhysicalMachines {
		if seen[pm.ID] {
			return fmt.Errorf("physical_machines[%d]: duplicate id %d", i, pm.ID)
		}
		seen[pm.ID] = true
		if pm.CPU <= 0 || pm.RAM <= 0 || pm.Disk <= 0 || pm.Bandwidth <= 0 {
			return fmt.Errorf("physical_machines[%d]: all capacity axes must be positive", i)
		}
	}
	if len(c.TraceFiles) == 0 {
		return fmt.Errorf("at least one trace file required")
	}
	if !validStrategyNames[c.Strategy.Name] {
		return fmt.Errorf("unknown strategy %q; valid: ffd, bfd, openstack, papso, ilp, rl-ilp", c.Strategy.Name)
	}
	if !validMigrationModels[c.MigrationModel] {
		return fmt.Errorf("unknown migration_model %q; valid: batched, simple", c.MigrationModel)
	}
	if c.OvercommitThreshold <= 0 {
		return fmt.Errorf("overcommit_threshold must be positive, got %f", c.OvercommitThreshold)
	}

	switch c.Strategy.Name {
	case "openstack":
		if c.Strategy.OpenStack.IAL < 0 || c.Strategy.OpenStack.IAL > 1 {
			return fmt.Errorf("strategy.openstack.ial must be in [0,1], got %f", c.Strategy.OpenStack.IAL)
		}
	case "papso":
		if err := validatePAPSO(c.Strategy.PAPSO); err != nil {
			return err
		}
	case "ilp", "rl-ilp":
		if err := validateILP(c.Strategy.ILP); err != nil {
			return err
		}
		if c.Strategy.Name == "rl-ilp" {
			if err := validateRL(c.Strategy.RL); err != nil {
				return err
			}
		}
	}
	return nil
}

func validatePAPSO(p PAPSOConfig) error {
	if p.W1 < 0 || p.W1 > 1 || p.W2 < 0 || p.W2 > 1 {
		return fmt.Errorf("strategy.papso.w1/w2 must be in [0,1]")
	}
	if p.SwarmSize < 1 || p.SwarmSize > 1000 {
		return fmt.Errorf("strategy.papso.swarm_size must be in [1,1000], got %d", p.SwarmSize)
	}
	if p.MaxIters <= 0 {
		return fmt.Errorf("strategy.papso.max_iters must be positive, got %d", p.MaxIters)
	}
	if p.InertiaMin > p.InertiaMax {
		return fmt.Errorf("strategy.papso.inertia_min must be <= inertia_max")
	}
	return nil
}

func validateILP(c ILPConfig) error {
	if c.Tau <= 0 || c.Tau > 1 {
		return fmt.Errorf("strategy.ilp.tau must be in (0,1], got %f", c.Tau)
	}
	if c.MaxRequestsPerPM <= 0 {
		return fmt.Errorf("strategy.ilp.max_requests_per_pm must be positive, got %d", c.MaxRequestsPerPM)
	}
	if c.SolverTimeLimitSec <= 0 {
		return fmt.Errorf("strategy.ilp.solver_time_limit_sec must be positive, got %f", c.SolverTimeLimitSec)
	}
	if c.MIPGap < 0 {
		return fmt.Errorf("strategy.ilp.mip_gap must be non-negative, got %f", c.MIPGap)
	}
	return nil
}

func validateRL(c RLConfig) error {
	if c.Variant != "dqn" && c.Variant != "double-dqn" {
		return fmt.Errorf("strategy.rl.variant must be \"dqn\" or \"double-dqn\", got %q", c.Variant)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("strategy.rl.batch_size must be positive, got %d", c.BatchSize)
	}
	if c.ReplayCapacity < c.BatchSize {
		return fmt.Errorf("strategy.rl.replay_capacity must be >= batch_size")
	}
	if c.EpsilonStart < c.EpsilonMin {
		return fmt.Errorf("strategy.rl.epsilon_start must be >= epsilon_min")
	}
	return nil
}
