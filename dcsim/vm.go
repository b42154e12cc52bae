package dcsim

// VMID uniquely identifies a VirtualMachine for the lifetime of a
// simulation run.
type VMID int64

// UtilizationUpdate is a future (offset, utilization) pair scheduled at VM
// placement time. Offset is measured in simulated seconds from the VM's
// StartTime; Utilization is a fraction in [0, 1].
type UtilizationUpdate struct {
	Offset      float64
	Utilization float64
}

// VirtualMachine models a workload unit with a resource request and a
// lifetime. A VM is owned exclusively by a VMRequest event until the data
// center takes it on placement; thereafter the VM index is its sole owner,
// and PM hosted-sets hold borrowed references.
type VirtualMachine struct {
	ID VMID

	// Requested is fixed at creation; its CPU axis is the VM's nominal size.
	Requested Resources
	// CurrentUsage has its CPU axis scaled by the current utilization
	// fraction; every other axis equals Requested.
	CurrentUsage Resources

	Duration  float64
	StartTime float64

	Placed    bool
	Migrating bool

	CurrentPMID PMID
	// OldPMID is defined only while Migrating: it is the pre-migration PM.
	OldPMID PMID

	// FutureUpdates is consumed (and emptied) at placement time to schedule
	// VMUtilUpdate events; it is kept here so trace producers can populate
	// it before the VM is placed.
	FutureUpdates []UtilizationUpdate
}

// NewVirtualMachine creates a VM in its unplaced state with the given
// nominal request and initial utilization fraction.
func NewVirtualMachine(id VMID, requested Resources, duration float64, initialUtilization float64) *VirtualMachine {
	vm := &VirtualMachine{
		ID:        id,
		Requested: requested,
		Duration:  duration,
	}
	vm.CurrentUsage = usageAtUtilization(requested, initialUtilization)
	return vm
}

// usageAtUtilization scales only the CPU axis by the utilization fraction;
// the other four axes are always reserved at their full requested size.
func usageAtUtilization(requested Resources, utilization float64) Resources {
	usage := requested
	usage.CPU = requested.CPU * utilization
	return usage
}

// SetUtilization recomputes CurrentUsage for a new utilization fraction.
func (vm *VirtualMachine) SetUtilization(utilization float64) Resources {
	old := vm.CurrentUsage
	vm.CurrentUsage = usageAtUtilization(vm.Requested, utilization)
	return old
}
