package dcsim

// EventKind tags the variant carried by an Event. The original C++ source
// used double-dispatch (each event type invoked a DataCenter method on
// itself); here events are a single tagged-variant struct matched by the
// consumer.
type EventKind int

const (
	// EventVMRequest carries a newly arrived VM, owned exclusively by the
	// event until the data center takes it on placement.
	EventVMRequest EventKind = iota
	// EventVMUtilUpdate carries a new utilization fraction for an
	// already-placed VM.
	EventVMUtilUpdate
	// EventVMDeparture signals a VM's lifetime has ended.
	EventVMDeparture
	// EventMigrationComplete signals a scheduled migration has finished
	// transferring.
	EventMigrationComplete
	// EventReconfigureStrategy swaps the data center's active placement
	// strategy at a specific simulated time (supplemented from
	// original_source/, see SPEC_FULL.md).
	EventReconfigureStrategy
)

func (k EventKind) String() string {
	switch k {
	case EventVMRequest:
		return "VMRequest"
	case EventVMUtilUpdate:
		return "VMUtilUpdate"
	case EventVMDeparture:
		return "VMDeparture"
	case EventMigrationComplete:
		return "MigrationComplete"
	case EventReconfigureStrategy:
		return "ReconfigureStrategy"
	default:
		return "Unknown"
	}
}

// Event is the tagged-variant event carried by the EventQueue. Only the
// fields relevant to Kind are populated; see the EventXxx constructors
// below for the canonical shape of each variant.
type Event struct {
	Kind EventKind
	Time float64
	// seq is assigned by EventQueue.Push and used as the FIFO tie-break
	// among events with equal Time; it is unexported so only the queue
	// can set it, preserving the insertion-order contract of spec.md §4.2.
	seq uint64

	// EventVMRequest payload.
	VM *VirtualMachine

	// EventVMUtilUpdate / EventVMDeparture / EventMigrationComplete payload.
	VMID VMID

	// EventVMUtilUpdate payload.
	Utilization float64

	// EventMigrationComplete payload.
	OldPMID PMID
	NewPMID PMID

	// EventReconfigureStrategy payload.
	NewStrategyName string
	StrategyParams  map[string]float64
}

// Seq returns the FIFO tie-break sequence number assigned at push time.
func (e *Event) Seq() uint64 { return e.seq }

// NewVMRequestEvent creates a VMRequest event that owns vm.
func NewVMRequestEvent(time float64, vm *VirtualMachine) *Event {
	return &Event{Kind: EventVMRequest, Time: time, VM: vm}
}

// NewVMUtilUpdateEvent creates a VMUtilUpdate event for vmID.
func NewVMUtilUpdateEvent(time float64, vmID VMID, utilization float64) *Event {
	return &Event{Kind: EventVMUtilUpdate, Time: time, VMID: vmID, Utilization: utilization}
}

// NewVMDepartureEvent creates a VMDeparture event for vmID.
func NewVMDepartureEvent(time float64, vmID VMID) *Event {
	return &Event{Kind: EventVMDeparture, Time: time, VMID: vmID}
}

// NewMigrationCompleteEvent creates a MigrationComplete event.
func NewMigrationCompleteEvent(time float64, vmID VMID, oldPM, newPM PMID) *Event {
	return &Event{Kind: EventMigrationComplete, Time: time, VMID: vmID, OldPMID: oldPM, NewPMID: newPM}
}

// NewReconfigureStrategyEvent creates a ReconfigureStrategy event.
func NewReconfigureStrategyEvent(time float64, strategyName string, params map[string]float64) *Event {
	return &Event{Kind: EventReconfigureStrategy, Time: time, NewStrategyName: strategyName, StrategyParams: params}
}
