// Package strategy implements the bin-packing placement strategies that
// need no external numeric solver: First-Fit Decreasing, Best-Fit
// Decreasing, and an OpenStack-style power-aware best fit (spec.md
// §4.6.1-3). PAPSO, the ILP consolidator, and the RL-augmented ILP live
// in their own sub-packages since they pull in gonum and its own
// configuration surface.
package strategy

import (
	"fmt"
	"sort"

	"github.com/dcsim/dcsim"
)

// New builds a named strategy from a flat parameter map, mirroring the
// teacher's NewAdmissionPolicy factory (sim/admission.go): panics on an
// unrecognized name, since this is a programming error (a config or CLI
// flag that bypassed validation), not a runtime condition to recover
// from.
func New(name string, params map[string]float64) dcsim.Strategy {
	switch name {
	case "ffd":
		return NewFFD()
	case "bfd":
		return NewBFD()
	case "openstack":
		ial := 0.8
		if v, ok := params["ial"]; ok {
			ial = v
		}
		return NewOpenStack(ial)
	default:
		panic(fmt.Sprintf("strategy: unknown strategy %q", name))
	}
}

// sortDescendingCPU returns vms sorted by descending requested CPU,
// leaving the input slice untouched (strategies must not mutate their
// inputs, spec.md §4.6).
func sortDescendingCPU(vms []*dcsim.VirtualMachine) []*dcsim.VirtualMachine {
	sorted := make([]*dcsim.VirtualMachine, len(vms))
	copy(sorted, vms)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Requested.CPU > sorted[j].Requested.CPU
	})
	return sorted
}

// shadow is an ephemeral per-PM used-resources tracker so a single Run
// call can place several candidates against the same PM snapshot without
// mutating the PhysicalMachine objects it was handed (spec.md §4.6.1,
// "ephemeral used-resources shadow").
type shadow struct {
	pm   *dcsim.PhysicalMachine
	used dcsim.Resources
}

func newShadows(pms []*dcsim.PhysicalMachine) []*shadow {
	shadows := make([]*shadow, len(pms))
	for i, pm := range pms {
		shadows[i] = &shadow{pm: pm, used: pm.UsedResources}
	}
	return shadows
}

func (s *shadow) available() dcsim.Resources {
	return s.pm.TotalCapacity.Sub(s.used)
}

func (s *shadow) canHost(usage dcsim.Resources) bool {
	return dcsim.Fits(usage, s.available())
}

func (s *shadow) reserve(usage dcsim.Resources) {
	s.used = s.used.Add(usage)
}
