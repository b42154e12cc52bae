package dcsim

// PMID uniquely identifies a PhysicalMachine for the lifetime of a
// simulation run.
type PMID int64

// PhysicalMachine models a host with finite capacity on five resource
// axes. Invariants (enforced by the methods below, never by callers
// reaching into the fields directly):
//   - UsedResources >= 0 on every axis
//   - PoweredOn iff Hosted is non-empty or OngoingMigrationCount > 0
//   - a PM may not power off while OngoingMigrationCount > 0
type PhysicalMachine struct {
	ID PMID

	TotalCapacity Resources
	UsedResources Resources

	PoweredOn bool

	PowerOnCost      float64
	PowerPerCPUUnit  float64
	PowerPerFPGAUnit float64

	OngoingMigrationCount int

	// Hosted holds borrowed VM references, keyed by VM id, mirroring the
	// "ids + a central index" replacement for raw VM<->PM pointers.
	Hosted map[VMID]*VirtualMachine
}

// NewPhysicalMachine creates a powered-off PM with the given capacity and
// power model coefficients.
func NewPhysicalMachine(id PMID, capacity Resources, powerOnCost, powerPerCPUUnit, powerPerFPGAUnit float64) *PhysicalMachine {
	return &PhysicalMachine{
		ID:               id,
		TotalCapacity:    capacity,
		PowerOnCost:      powerOnCost,
		PowerPerCPUUnit:  powerPerCPUUnit,
		PowerPerFPGAUnit: powerPerFPGAUnit,
		Hosted:           make(map[VMID]*VirtualMachine),
	}
}

// Available returns the unreserved capacity on every axis.
func (pm *PhysicalMachine) Available() Resources {
	return pm.TotalCapacity.Sub(pm.UsedResources)
}

// CanHost reports whether usage fits in the PM's current available
// capacity.
func (pm *PhysicalMachine) CanHost(usage Resources) bool {
	return Fits(usage, pm.Available())
}

// AddVM reserves vm's current usage on the PM, adds it to the hosted set,
// and powers the PM on if it was off. It does not check CanHost — callers
// (placeVMonPM, scheduleMigration) are expected to have checked already.
func (pm *PhysicalMachine) AddVM(vm *VirtualMachine) {
	pm.Hosted[vm.ID] = vm
	pm.UsedResources = pm.UsedResources.Add(vm.CurrentUsage)
	pm.PoweredOn = true
}

// RemoveVM releases vm's current usage and removes it from the hosted set.
// The PM is powered off if it is left with no hosted VMs and no ongoing
// migrations.
func (pm *PhysicalMachine) RemoveVM(id VMID) {
	vm, ok := pm.Hosted[id]
	if !ok {
		return
	}
	delete(pm.Hosted, id)
	pm.UsedResources = pm.UsedResources.Sub(vm.CurrentUsage)
	if len(pm.Hosted) == 0 && pm.OngoingMigrationCount == 0 {
		pm.PoweredOn = false
	}
}

// ApplyUsageDelta adjusts UsedResources by -old + new, used when a hosted
// (or migrating) VM's utilization changes.
func (pm *PhysicalMachine) ApplyUsageDelta(oldUsage, newUsage Resources) {
	pm.UsedResources = pm.UsedResources.Sub(oldUsage).Add(newUsage)
}

// IsOvercommitted reports whether any axis of used/total exceeds threshold.
func (pm *PhysicalMachine) IsOvercommitted(threshold float64) bool {
	return pm.UsedResources.MaxAxisRatio(pm.TotalCapacity) > threshold
}

// IncomingMigration increments the migration counter, keeping the PM
// powered on for the duration of the transfer even if it ends up with no
// other hosted VMs.
func (pm *PhysicalMachine) IncomingMigration() {
	pm.OngoingMigrationCount++
	pm.PoweredOn = true
}

// CompleteMigration decrements the migration counter. It may power the PM
// off if it ends up with no hosted VMs and no other ongoing migrations.
func (pm *PhysicalMachine) CompleteMigration() {
	if pm.OngoingMigrationCount > 0 {
		pm.OngoingMigrationCount--
	}
	if len(pm.Hosted) == 0 && pm.OngoingMigrationCount == 0 {
		pm.PoweredOn = false
	}
}

// IncrementalPowerOnCost is the marginal power cost of placing a request of
// the given CPU size on this PM: PowerOnCost if it is currently off, plus
// PowerPerCPUUnit * cpu.
func (pm *PhysicalMachine) IncrementalPowerOnCost(cpu float64) float64 {
	cost := pm.PowerPerCPUUnit * cpu
	if !pm.PoweredOn {
		cost += pm.PowerOnCost
	}
	return cost
}

// TurnOnCost is the projected one-time cost of turning on an off PM,
// factoring in a fixed CPU/FPGA weighting used by ILP candidate selection
// (spec.md §4.6.5, ChooseMachines).
func (pm *PhysicalMachine) TurnOnCost() float64 {
	return pm.PowerOnCost + 4*pm.PowerPerCPUUnit + 2*pm.PowerPerFPGAUnit
}

// CurrentPower is the PM's instantaneous power draw: zero if off, else
// PowerOnCost plus the per-unit rates applied to used CPU/FPGA.
func (pm *PhysicalMachine) CurrentPower() float64 {
	if !pm.PoweredOn {
		return 0
	}
	return pm.PowerOnCost + pm.PowerPerCPUUnit*pm.UsedResources.CPU + pm.PowerPerFPGAUnit*pm.UsedResources.FPGA
}
