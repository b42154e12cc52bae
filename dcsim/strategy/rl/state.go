package rl

import (
	"gonum.org/v1/gonum/stat"

	"github.com/dcsim/dcsim"
)

// StateDim is the dimensionality of the computed state vector (spec.md
// §4.6.6 step 1: "dim >= 10"): 2 population counts, mean+std of
// utilization on 4 axes, a 5-bin CPU occupancy histogram, and 3 windowed
// counters.
const StateDim = 2 + 4*2 + 5 + 3

// computeState builds the state vector: active VM/PM counts, mean and
// std of per-PM utilization on four axes, a 5-bin CPU-utilization
// occupancy histogram, and three windowed counters.
func computeState(input dcsim.StrategyInput) []float64 {
	cpuUtil := make([]float64, 0, len(input.PMs))
	ramUtil := make([]float64, 0, len(input.PMs))
	diskUtil := make([]float64, 0, len(input.PMs))
	bwUtil := make([]float64, 0, len(input.PMs))
	activePMs := 0
	activeVMs := 0

	histogram := [5]float64{}

	for _, pm := range input.PMs {
		if pm.PoweredOn {
			activePMs++
			activeVMs += len(pm.Hosted)
		}
		pct := pm.UsedResources.PercentOf(pm.TotalCapacity)
		cpuUtil = append(cpuUtil, pct.CPU)
		ramUtil = append(ramUtil, pct.RAM)
		diskUtil = append(diskUtil, pct.Disk)
		bwUtil = append(bwUtil, pct.Bandwidth)

		bin := int(pct.CPU / 20)
		if bin > 4 {
			bin = 4
		}
		if bin < 0 {
			bin = 0
		}
		histogram[bin]++
	}

	state := make([]float64, 0, StateDim)
	state = append(state, float64(activeVMs), float64(activePMs))
	state = append(state,
		meanOrZero(cpuUtil), stdOrZero(cpuUtil),
		meanOrZero(ramUtil), stdOrZero(ramUtil),
		meanOrZero(diskUtil), stdOrZero(diskUtil),
		meanOrZero(bwUtil), stdOrZero(bwUtil),
	)
	for _, v := range histogram {
		state = append(state, v)
	}
	state = append(state,
		float64(input.Counters.SLAViolationsWindow),
		float64(input.Counters.MigrationsWindow),
		float64(input.Counters.NewRequestsWindow),
	)
	return state
}

func meanOrZero(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

func stdOrZero(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	return stat.StdDev(xs, nil)
}
