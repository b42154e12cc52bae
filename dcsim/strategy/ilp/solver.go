package ilp

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/dcsim/dcsim"
)

// BranchAndBound is a depth-first branch-and-bound solver over the small
// 0/1 assignment program built by Problem. Each PM's running usage is
// tracked as a 5-dimensional gonum vector (CPU, RAM, disk, bandwidth,
// FPGA), updated incrementally as items are tentatively assigned and
// backed out on backtrack.
type BranchAndBound struct {
	Timeout time.Duration
	MIPGap  float64
}

// NewBranchAndBound creates a solver with the spec's default 60s timeout.
func NewBranchAndBound() *BranchAndBound {
	return &BranchAndBound{Timeout: 60 * time.Second, MIPGap: 0.01}
}

// item is one decision variable's worth of bookkeeping: a VM to place,
// whether leaving it unassigned is a legal branch (only true for
// migration candidates), and its per-candidate-PM dynamic cost.
type item struct {
	vm           *dcsim.VirtualMachine
	optional     bool
	dynamicCosts []float64 // per candidate PM index
}

// Minimize implements ILPSolver.
func (b *BranchAndBound) Minimize(problem Problem) (Assignment, error) {
	deadline := time.Now().Add(b.Timeout)
	numPMs := len(problem.PMs)

	usage := make([]*mat.VecDense, numPMs)
	wasOn := make([]bool, numPMs)
	for i, pm := range problem.PMs {
		v := pm.UsedResources
		usage[i] = mat.NewVecDense(5, []float64{v.CPU, v.RAM, v.Disk, v.Bandwidth, v.FPGA})
		wasOn[i] = pm.PoweredOn
	}

	newItems := buildItems(problem.NewRequests, problem.PMs, false, problem.Beta, problem.CPUPowerRate)
	migItems := buildItems(problem.Migrating, problem.PMs, true, problem.Gamma, problem.CPUPowerRate)
	items := append(append([]item{}, newItems...), migItems...)

	assignment := make([]int, len(items)) // -1 = unassigned; index = PM index
	for i := range assignment {
		assignment[i] = -1
	}
	best := make([]int, len(items))
	bestObjective := posInf
	bestFound := false

	referenceCPU := referenceCPUCapacity(problem.PMs)

	var search func(idx int, current float64) bool
	search = func(idx int, current float64) bool {
		if time.Now().After(deadline) {
			return false
		}
		if current >= bestObjective {
			return true // pruned, but not timed out
		}
		if idx == len(items) {
			if !residualLoadOK(items, assignment, problem.Tau, referenceCPU) {
				return true
			}
			total := current + powerOnCost(problem.PMs, usage, wasOn)
			if total < bestObjective {
				bestObjective = total
				bestFound = true
				copy(best, assignment)
			}
			return true
		}

		it := items[idx]
		options := make([]int, 0, numPMs+1)
		for pmIdx := 0; pmIdx < numPMs; pmIdx++ {
			options = append(options, pmIdx)
		}
		if it.optional {
			options = append(options, -1)
		}

		for _, pmIdx := range options {
			var added float64
			if pmIdx >= 0 {
				req := mat.NewVecDense(5, resourceVector(it.vm.CurrentUsage))
				if !fitsVec(usage[pmIdx], req, problem.PMs[pmIdx]) {
					continue
				}
				usage[pmIdx].AddVec(usage[pmIdx], req)
				added = it.dynamicCosts[pmIdx]
				if it.optional {
					added += problem.Mu
				}
			}
			assignment[idx] = pmIdx
			ok := search(idx+1, current+added)
			if pmIdx >= 0 {
				req := mat.NewVecDense(5, resourceVector(it.vm.CurrentUsage))
				usage[pmIdx].SubVec(usage[pmIdx], req)
			}
			assignment[idx] = -1
			if !ok {
				return false
			}
		}
		return true
	}

	search(0, 0)

	result := Assignment{Feasible: bestFound, Objective: bestObjective}
	if !bestFound {
		result.NewPM = unfit(len(problem.NewRequests))
		result.MigPM = unfit(len(problem.Migrating))
		return result, nil
	}
	result.NewPM = best[:len(newItems)]
	result.MigPM = best[len(newItems):]
	return result, nil
}

const posInf = 1e18

func unfit(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = -1
	}
	return out
}

func resourceVector(r dcsim.Resources) []float64 {
	return []float64{r.CPU, r.RAM, r.Disk, r.Bandwidth, r.FPGA}
}

func fitsVec(used, req *mat.VecDense, pm *dcsim.PhysicalMachine) bool {
	total := mat.NewVecDense(5, resourceVector(pm.TotalCapacity))
	for d := 0; d < 5; d++ {
		if used.AtVec(d)+req.AtVec(d) > total.AtVec(d) {
			return false
		}
	}
	return true
}

// buildItems precomputes each VM's per-candidate-PM dynamic placement
// cost (objective terms 3/4 of spec.md §4.6.5), using the PM's
// current (pre-run) CPU utilization percent.
func buildItems(vms []*dcsim.VirtualMachine, pms []*dcsim.PhysicalMachine, optional bool, scaler, cpuPowerRate float64) []item {
	items := make([]item, len(vms))
	for i, vm := range vms {
		costs := make([]float64, len(pms))
		effectiveScaler := scaler
		if scaler < 0 && vm.Requested.CPU != 0 {
			effectiveScaler = vm.CurrentUsage.CPU / vm.Requested.CPU
		}
		for j, pm := range pms {
			u := pm.UsedResources.PercentOf(pm.TotalCapacity).CPU
			costs[j] = dynamicRate(u, cpuPowerRate) * vm.Requested.CPU * effectiveScaler
		}
		items[i] = item{vm: vm, optional: optional, dynamicCosts: costs}
	}
	return items
}

// dynamicRate is the piecewise-linear rate function of spec.md §4.6.5
// term 3: cpuPowerRate*(300-4u) below 45% utilization, cpuPowerRate*(4u-60)
// at or above it.
func dynamicRate(utilizationPercent, cpuPowerRate float64) float64 {
	if utilizationPercent < 45 {
		return cpuPowerRate * (300 - 4*utilizationPercent)
	}
	return cpuPowerRate * (4*utilizationPercent - 60)
}

// powerOnCost is objective term 1: for every PM left hosting anything
// (new or pre-existing usage), 1 if it was already on, 100 if newly
// turned on.
func powerOnCost(pms []*dcsim.PhysicalMachine, usage []*mat.VecDense, wasOn []bool) float64 {
	var total float64
	for i, pm := range pms {
		hasLoad := false
		for d := 0; d < 5; d++ {
			if usage[i].AtVec(d) > 0 {
				hasLoad = true
				break
			}
		}
		if !hasLoad {
			continue
		}
		if wasOn[i] || pm.PoweredOn {
			total += 1
		} else {
			total += 100
		}
	}
	return total
}

// residualLoadOK enforces spec.md §4.6.5's residual-load constraint: the
// CPU of non-migrated candidates must not exceed tau * referenceCPU.
func residualLoadOK(items []item, assignment []int, tau, referenceCPU float64) bool {
	if referenceCPU == 0 {
		return true
	}
	var residual float64
	for i, it := range items {
		if !it.optional {
			continue
		}
		if assignment[i] == -1 {
			residual += it.vm.CurrentUsage.CPU
		}
	}
	return residual <= tau*referenceCPU
}

// referenceCPUCapacity picks the largest total-CPU PM as the residual-load
// constraint's reference point.
func referenceCPUCapacity(pms []*dcsim.PhysicalMachine) float64 {
	var max float64
	for _, pm := range pms {
		if pm.TotalCapacity.CPU > max {
			max = pm.TotalCapacity.CPU
		}
	}
	return max
}
