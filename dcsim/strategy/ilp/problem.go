// Package ilp implements the ILP-based consolidator (spec.md §4.6.5): a
// candidate-PM pre-filter (ChooseMachines) followed by a 0/1 integer
// program assigning new requests and migration candidates to PMs while
// minimizing power-on, migration, and dynamic placement cost.
//
// No MIP/LP solver library appears anywhere in the retrieved corpus, so
// this package defines a narrow ILPSolver interface and ships one
// concrete branch-and-bound implementation built on gonum/mat for
// constraint bookkeeping, following §9's design note treating the
// external solver as an opaque collaborator with a narrow contract.
package ilp

import "github.com/dcsim/dcsim"

// Problem is the 0/1 integer program built for one placement run
// (spec.md §4.6.5). PMs is the candidate list already filtered by
// ChooseMachines, not the full PM vector.
type Problem struct {
	NewRequests []*dcsim.VirtualMachine
	Migrating   []*dcsim.VirtualMachine
	PMs         []*dcsim.PhysicalMachine

	// Mu is the migration-cost scalar (objective term 2).
	Mu float64
	// Tau is the Target-Utilization-After-Migration fraction (residual
	// load constraint).
	Tau float64
	// Beta scales the dynamic placement cost for new requests; a
	// negative value signals "use the VM's current/requested CPU ratio
	// instead" (spec.md §4.6.5 term 3).
	Beta float64
	// Gamma is Beta's counterpart for migration candidates (term 4).
	Gamma float64
	// CPUPowerRate is the piecewise dynamic-cost rate coefficient.
	CPUPowerRate float64
}

// Assignment is a feasible (or best-effort, on timeout) solution.
// NewPM[j] / MigPM[k] index into Problem.PMs; MigPM[k] == -1 means
// candidate k is left where it is (not migrated).
type Assignment struct {
	NewPM     []int
	MigPM     []int
	Feasible  bool
	Objective float64
}

// ILPSolver is the narrow contract the strategy speaks to, so a real MIP
// backend (CPLEX, Gurobi, a pure-Go solver) can be swapped in without
// touching the strategy.
type ILPSolver interface {
	Minimize(problem Problem) (Assignment, error)
}

// ChooseMachines selects the candidate PM list for a placement run
// (spec.md §4.6.5): every powered-on PM, plus up to
// extraCoef*(|new|+|mig|) powered-off PMs in ascending projected
// turn-on-cost order, bounded by the total PM count.
func ChooseMachines(all []*dcsim.PhysicalMachine, newCount, migCount int, extraCoef float64) []*dcsim.PhysicalMachine {
	var poweredOn, poweredOff []*dcsim.PhysicalMachine
	for _, pm := range all {
		if pm.PoweredOn {
			poweredOn = append(poweredOn, pm)
		} else {
			poweredOff = append(poweredOff, pm)
		}
	}

	sortByTurnOnCost(poweredOff)

	extra := int(extraCoef * float64(newCount+migCount))
	if extra > len(poweredOff) {
		extra = len(poweredOff)
	}
	if extra < 0 {
		extra = 0
	}

	candidates := append(append([]*dcsim.PhysicalMachine{}, poweredOn...), poweredOff[:extra]...)
	if len(candidates) > len(all) {
		candidates = candidates[:len(all)]
	}
	return candidates
}

func sortByTurnOnCost(pms []*dcsim.PhysicalMachine) {
	// Insertion sort: candidate lists are small (bounded by PM count),
	// and this keeps the package dependency-free of "sort" for a
	// five-line comparison.
	for i := 1; i < len(pms); i++ {
		for j := i; j > 0 && pms[j].TurnOnCost() < pms[j-1].TurnOnCost(); j-- {
			pms[j], pms[j-1] = pms[j-1], pms[j]
		}
	}
}
