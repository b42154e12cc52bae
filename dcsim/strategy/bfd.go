package strategy

import "github.com/dcsim/dcsim"

// BFD is Best-Fit Decreasing: candidates sorted by descending requested
// CPU are placed on the PM with the smallest remaining-CPU slack able to
// still host them, powered on or off, ties broken by the lower PM id
// (spec.md §4.6.2).
type BFD struct {
	bundleSize int
}

// NewBFD creates a BFD strategy with the spec's default bundle size of
// 10 and migration threshold of 1.0.
func NewBFD() *BFD {
	return &BFD{bundleSize: 10}
}

func (b *BFD) Name() string               { return "bfd" }
func (b *BFD) BundleSize() int             { return b.bundleSize }
func (b *BFD) MigrationThreshold() float64 { return 1.0 }

// Run implements dcsim.Strategy.
func (b *BFD) Run(input dcsim.StrategyInput) (dcsim.StrategyOutput, error) {
	shadows := newShadows(input.PMs)
	var out dcsim.StrategyOutput

	place := func(vms []*dcsim.VirtualMachine, sink *[]dcsim.PlacementDecision) {
		for _, vm := range sortDescendingCPU(vms) {
			best := bestFit(shadows, vm.CurrentUsage)
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

// bestFit finds the shadow PM with the smallest post-placement remaining
// CPU slack that can still host usage, breaking ties by the lower PM id.
func bestFit(shadows []*shadow, usage dcsim.Resources) *shadow {
	var best *shadow
	var bestSlack float64
	for _, s := range shadows {
		if !s.canHost(usage) {
			continue
		}
		slack := s.available().CPU - usage.CPU
		if best == nil || slack < bestSlack || (slack == bestSlack && s.pm.ID < best.pm.ID) {
			best = s
			bestSlack = slack
		}
	}
	return best
}
