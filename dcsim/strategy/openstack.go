package strategy

import "github.com/dcsim/dcsim"

// OpenStack is an OpenStack-style power-aware best fit: among PMs whose
// post-placement remaining capacity stays above an initial-allocation
// limit on every axis, it picks the one minimizing incremental power
// (spec.md §4.6.3).
type OpenStack struct {
	ial        float64
	bundleSize int
}

// NewOpenStack creates an OpenStack strategy with the given initial
// allocation limit (IAL ∈ (0,1], default 0.8 per spec.md's configuration
// table) and the spec's default bundle size of 10.
func NewOpenStack(ial float64) *OpenStack {
	if ial <= 0 || ial > 1 {
		ial = 0.8
	}
	return &OpenStack{ial: ial, bundleSize: 10}
}

func (o *OpenStack) Name() string               { return "openstack" }
func (o *OpenStack) BundleSize() int             { return o.bundleSize }
func (o *OpenStack) MigrationThreshold() float64 { return 1.0 }

// Run implements dcsim.Strategy.
func (o *OpenStack) Run(input dcsim.StrategyInput) (dcsim.StrategyOutput, error) {
	shadows := newShadows(input.PMs)
	var out dcsim.StrategyOutput

	place := func(vms []*dcsim.VirtualMachine, sink *[]dcsim.PlacementDecision) {
		for _, vm := range sortDescendingCPU(vms) {
			best := o.pickPM(shadows, vm.CurrentUsage)
			if best == nil {
				*sink = append(*sink, dcsim.PlacementDecision{VM: vm, PMID: dcsim.NoFitPMID})
				continue
			}
			best.reserve(vm.CurrentUsage)
			*sink = append(*sink, dcsim.PlacementDecision{VM: vm, PMID: best.pm.ID})
		}
	}

	place(input.NewRequests, &out.Placements)
	place(input.ToMigrate, &out.Migrations)
	return out, nil
}

// pickPM returns the candidate (among PMs leaving at least (1-IAL)*total
// headroom on every axis after hosting usage) with the smallest
// incremental power-on cost.
func (o *OpenStack) pickPM(shadows []*shadow, usage dcsim.Resources) *shadow {
	var best *shadow
	var bestCost float64
	for _, s := range shadows {
		if !s.canHost(usage) {
			continue
		}
		remaining := s.available().Sub(usage)
		floor := s.pm.TotalCapacity.Scale(1 - o.ial)
		if !withinFloor(remaining, floor) {
			continue
		}
		cost := s.pm.IncrementalPowerOnCost(usage.CPU)
		if best == nil || cost < bestCost {
			best = s
			bestCost = cost
		}
	}
	return best
}

// withinFloor reports whether remaining is at least floor on every axis.
func withinFloor(remaining, floor dcsim.Resources) bool {
	return remaining.CPU >= floor.CPU &&
		remaining.RAM >= floor.RAM &&
		remaining.Disk >= floor.Disk &&
		remaining.Bandwidth >= floor.Bandwidth &&
		remaining.FPGA >= floor.FPGA
}
