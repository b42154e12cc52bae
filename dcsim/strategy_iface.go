package dcsim

// PlacementDecision pairs a VM with a target PM id. A PMID of -1 signals
// "no fit found" for that VM (spec.md §4.6).
type PlacementDecision struct {
	VM   *VirtualMachine
	PMID PMID
}

// NoFitPMID is the sentinel PM id a Strategy returns when it found no
// feasible placement for a VM.
const NoFitPMID PMID = -1

// StrategyInput is the bundle of state a Strategy.Run call consumes.
// Strategies are pure with respect to this input: they never mutate the
// VMs or PMs directly, only return decisions for the data center to apply.
type StrategyInput struct {
	NewRequests []*VirtualMachine
	ToMigrate   []*VirtualMachine
	PMs         []*PhysicalMachine
	// Counters is a snapshot of the data center's windowed/monotone
	// counters taken at the moment this run was triggered, consumed by
	// the RL-augmented ILP strategy's state vector (spec.md §4.6.6).
	Counters Counters
}

// StrategyOutput is the result of a placement run.
type StrategyOutput struct {
	Placements []PlacementDecision
	Migrations []PlacementDecision
}

// Strategy is the shared placement-strategy contract (spec.md §4.6). The
// data center speaks only to this capability set — run/bundle_size/
// migration_threshold/name — never to a strategy's concrete type.
type Strategy interface {
	// Name identifies the strategy for logging and statistics.
	Name() string
	// Run computes placement and migration decisions for the given
	// bundle of new requests, migration candidates, and current PM state.
	Run(input StrategyInput) (StrategyOutput, error)
	// BundleSize is the number of pending new requests that triggers a
	// placement run.
	BundleSize() int
	// MigrationThreshold is the per-axis utilization fraction in [0,1]
	// above which a PM is considered over-committed.
	MigrationThreshold() float64
}

// Dispatcher receives tagged-variant events from the Engine and applies
// them to data-center state. Implementations run exclusively on the
// Engine's single consumer goroutine.
type Dispatcher interface {
	HandleEvent(e *Event, now float64) error
}

// PMUsageView is a read-only snapshot of one PM's resource usage, returned
// by Introspectable.MachineUsage.
type PMUsageView struct {
	ID    PMID
	Used  Resources
	Total Resources
}

// Counters is a read-only snapshot of the data center's windowed and
// monotone counters (spec.md §3).
type Counters struct {
	SLAViolationsTotal  int64
	SLAViolationsWindow int64
	MigrationsWindow    int64
	MigrationsTotal     int64
	NewRequestsWindow   int64
}

// Introspectable is the read-only view consumed by the statistics recorder
// and by host embedders (spec.md §6 "Programmatic API surface").
type Introspectable interface {
	ResourceUtilizations() Resources // percent, system-wide, among powered-on PMs
	MachineUsage() []PMUsageView
	PoweredOnCount() int
	TotalPower() float64
	AveragePower() float64
	Counters() Counters
	ActiveStrategyName() string
	PendingBundleSize() int
}
