// Package papso implements the particle-swarm placement strategy
// (spec.md §4.6.4): a candidate assignment is a length-|VMs| real vector
// in [0, |PMs|-1], decoded to PM indices by rounding, and a swarm of
// particles optimizes a weighted objective balancing active-machine
// count, over-commitment, and per-axis overflow penalty.
//
// Nothing in the teacher directly does particle-swarm optimization; this
// package follows the teacher's small-numeric-file idiom (see
// sim/mfu_database.go) while reaching for gonum/floats for the vector
// reductions (sum, max) a hand-rolled loop would otherwise duplicate.
package papso

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/dcsim/dcsim"
)

// Config holds PAPSO's tunable parameters (spec.md §4.6.4 configuration
// table).
type Config struct {
	SwarmSize      int
	MaxIterations  int
	InertiaMin     float64
	InertiaMax     float64
	C1             float64
	C2             float64
	VelocityClamp  float64
	BundleSize     int
	UtilThreshold  float64
	OverflowWeight float64
	ActiveWeight   float64
	OverloadWeight float64
	NewPMPenalty   float64
}

// DefaultConfig returns PAPSO's spec.md §6-documented defaults.
func DefaultConfig() Config {
	return Config{
		SwarmSize:      60,
		MaxIterations:  100,
		InertiaMin:     0.4,
		InertiaMax:     0.9,
		C1:             2.05,
		C2:             2.05,
		VelocityClamp:  10.0,
		BundleSize:     10,
		UtilThreshold:  0.8,
		OverflowWeight: 1000,
		ActiveWeight:   0.5,
		OverloadWeight: 0.5,
		NewPMPenalty:   50,
	}
}

// Strategy is the PAPSO dcsim.Strategy implementation.
type Strategy struct {
	cfg Config
	rng *rand.Rand
}

// New creates a PAPSO strategy seeded from key's papso-subsystem RNG,
// partitioned by cfg.BundleSize, so repeated runs with the same
// SimulationKey and bundle size produce identical swarms.
func New(key dcsim.SimulationKey, cfg Config) *Strategy {
	prng := dcsim.NewPartitionedRNG(key)
	return &Strategy{cfg: cfg, rng: prng.ForSubsystem(dcsim.SubsystemPAPSO, cfg.BundleSize)}
}

func (s *Strategy) Name() string                { return "papso" }
func (s *Strategy) BundleSize() int              { return s.cfg.BundleSize }
func (s *Strategy) MigrationThreshold() float64  { return s.cfg.UtilThreshold }

// particle is one candidate assignment vector plus its velocity and
// personal best.
type particle struct {
	position []float64
	velocity []float64
	best     []float64
	bestCost float64
}

// Run implements dcsim.Strategy.
func (s *Strategy) Run(input dcsim.StrategyInput) (dcsim.StrategyOutput, error) {
	vms := make([]*dcsim.VirtualMachine, 0, len(input.NewRequests)+len(input.ToMigrate))
	vms = append(vms, input.NewRequests...)
	vms = append(vms, input.ToMigrate...)
	if len(vms) == 0 || len(input.PMs) == 0 {
		return dcsim.StrategyOutput{}, nil
	}

	dim := len(vms)
	upperBound := float64(len(input.PMs) - 1)

	swarm := s.initSwarm(dim, upperBound)
	globalBest := make([]float64, dim)
	globalBestCost := math.Inf(1)
	for _, p := range swarm {
		cost := s.evaluate(p.position, vms, input.PMs)
		p.best = append([]float64(nil), p.position...)
		p.bestCost = cost
		if cost < globalBestCost {
			globalBestCost = cost
			copy(globalBest, p.position)
		}
	}

	for iter := 0; iter < s.cfg.MaxIterations; iter++ {
		inertia := s.cfg.InertiaMax - (s.cfg.InertiaMax-s.cfg.InertiaMin)*float64(iter)/float64(maxInt(1, s.cfg.MaxIterations-1))
		for _, p := range swarm {
			for d := 0; d < dim; d++ {
				r1, r2 := s.rng.Float64(), s.rng.Float64()
				v := inertia*p.velocity[d] +
					s.cfg.C1*r1*(p.best[d]-p.position[d]) +
					s.cfg.C2*r2*(globalBest[d]-p.position[d])
				v = clamp(v, -s.cfg.VelocityClamp, s.cfg.VelocityClamp)
				p.velocity[d] = v
				p.position[d] = clamp(p.position[d]+v, 0, upperBound)
			}
			cost := s.evaluate(p.position, vms, input.PMs)
			if cost < p.bestCost {
				p.bestCost = cost
				copy(p.best, p.position)
			}
			if cost < globalBestCost {
				globalBestCost = cost
				copy(globalBest, p.position)
			}
		}
	}

	return decode(globalBest, vms, input.PMs, input.NewRequests), nil
}

func (s *Strategy) initSwarm(dim int, upperBound float64) []*particle {
	swarm := make([]*particle, s.cfg.SwarmSize)
	for i := range swarm {
		pos := make([]float64, dim)
		vel := make([]float64, dim)
		for d := 0; d < dim; d++ {
			pos[d] = s.rng.Float64() * upperBound
			vel[d] = (s.rng.Float64()*2 - 1) * s.cfg.VelocityClamp
		}
		swarm[i] = &particle{position: pos, velocity: vel}
	}
	return swarm
}

// evaluate decodes position to PM assignments and scores it per the
// objective of spec.md §4.6.4.
func (s *Strategy) evaluate(position []float64, vms []*dcsim.VirtualMachine, pms []*dcsim.PhysicalMachine) float64 {
	load := make([]dcsim.Resources, len(pms))
	wasOn := make([]bool, len(pms))
	for i, pm := range pms {
		load[i] = pm.UsedResources
		wasOn[i] = pm.PoweredOn
	}

	for i, vm := range vms {
		idx := decodeIndex(position[i], len(pms))
		load[idx] = load[idx].Add(vm.CurrentUsage)
	}

	activeCount := 0.0
	overloadedCount := 0.0
	overflowPenalty := 0.0
	newlyOnPenalty := 0.0
	for i, pm := range pms {
		used := load[i].Div(pm.TotalCapacity)
		if load[i].CPU > 0 || load[i].RAM > 0 || load[i].Disk > 0 || load[i].Bandwidth > 0 || load[i].FPGA > 0 {
			activeCount++
			if !wasOn[i] {
				newlyOnPenalty++
			}
		}
		maxRatio := floats.Max([]float64{used.CPU, used.RAM, used.Disk, used.Bandwidth, used.FPGA})
		if maxRatio > s.cfg.UtilThreshold {
			overloadedCount++
		}
		overflowPenalty += axisOverflow(load[i].CPU, pm.TotalCapacity.CPU)
		overflowPenalty += axisOverflow(load[i].RAM, pm.TotalCapacity.RAM)
		overflowPenalty += axisOverflow(load[i].Disk, pm.TotalCapacity.Disk)
		overflowPenalty += axisOverflow(load[i].Bandwidth, pm.TotalCapacity.Bandwidth)
		overflowPenalty += axisOverflow(load[i].FPGA, pm.TotalCapacity.FPGA)
	}

	activeFraction := activeCount / float64(len(pms))
	overloadedFraction := overloadedCount / float64(len(pms))

	return s.cfg.ActiveWeight*activeFraction +
		s.cfg.OverloadWeight*overloadedFraction +
		s.cfg.OverflowWeight*overflowPenalty +
		s.cfg.NewPMPenalty*newlyOnPenalty
}

// decode turns the globally-best position into placement/migration
// decisions, splitting by which input list each VM came from.
func decode(position []float64, vms []*dcsim.VirtualMachine, pms []*dcsim.PhysicalMachine, newRequests []*dcsim.VirtualMachine) dcsim.StrategyOutput {
	var out dcsim.StrategyOutput
	newSet := make(map[dcsim.VMID]bool, len(newRequests))
	for _, vm := range newRequests {
		newSet[vm.ID] = true
	}
	for i, vm := range vms {
		idx := decodeIndex(position[i], len(pms))
		decision := dcsim.PlacementDecision{VM: vm, PMID: pms[idx].ID}
		if newSet[vm.ID] {
			out.Placements = append(out.Placements, decision)
		} else {
			out.Migrations = append(out.Migrations, decision)
		}
	}
	return out
}

func axisOverflow(used, total float64) float64 {
	if used > total {
		return used - total
	}
	return 0
}

func decodeIndex(position float64, numPMs int) int {
	idx := int(math.Round(position))
	if numPMs <= 0 {
		return idx
	}
	if idx < 0 {
		idx = 0
	}
	if idx >= numPMs {
		idx = numPMs - 1
	}
	return idx
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
