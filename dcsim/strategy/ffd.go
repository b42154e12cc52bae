package strategy

import "github.com/dcsim/dcsim"

// FFD is First-Fit Decreasing: candidates sorted by descending requested
// CPU are placed on the first PM (in the order given) that can host them
// against an ephemeral shadow of used resources (spec.md §4.6.1).
type FFD struct {
	bundleSize int
}

// NewFFD creates an FFD strategy with the spec's default bundle size of
// 10 and migration threshold of 1.0 (disabling SLA-driven migration).
func NewFFD() *FFD {
	return &FFD{bundleSize: 10}
}

func (f *FFD) Name() string               { return "ffd" }
func (f *FFD) BundleSize() int             { return f.bundleSize }
func (f *FFD) MigrationThreshold() float64 { return 1.0 }

// Run implements dcsim.Strategy.
func (f *FFD) Run(input dcsim.StrategyInput) (dcsim.StrategyOutput, error) {
	shadows := newShadows(input.PMs)
	var out dcsim.StrategyOutput

	place := func(vms []*dcsim.VirtualMachine, sink *[]dcsim.PlacementDecision) {
		for _, vm := range sortDescendingCPU(vms) {
			placed := false
			for _, s := range shadows {
				if s.canHost(vm.CurrentUsage) {
					s.reserve(vm.CurrentUsage)
					*sink = append(*sink, dcsim.PlacementDecision{VM: vm, PMID: s.pm.ID})
					placed = true
					break
				}
			}
			if !placed {
				*sink = append(*sink, dcsim.PlacementDecision{VM: vm, PMID: dcsim.NoFitPMID})
			}
		}
	}

	place(input.NewRequests, &out.Placements)
	place(input.ToMigrate, &out.Migrations)
	return out, nil
}
