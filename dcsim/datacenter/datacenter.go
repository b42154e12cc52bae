// Package datacenter implements the data-center state machine: the VM/PM
// index, placement bundling, migration scheduling, over-commit detection,
// and read-only introspection (spec.md §4.5). It is the Dispatcher the
// Engine drives on its single consumer goroutine.
package datacenter

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dcsim/dcsim"
)

// MigrationModel selects which migration-transfer-time formula §4.5.4
// uses. spec.md §9 notes the source mixes two formulas and mandates
// accepting either per configuration.
type MigrationModel int

const (
	// MigrationBatchedBandwidth divides disk size by bandwidth/(1000*N),
	// the spec.md §4.5.4 default.
	MigrationBatchedBandwidth MigrationModel = iota
	// MigrationSimpleBandwidth divides disk size by bandwidth directly,
	// ignoring the concurrent-migration count.
	MigrationSimpleBandwidth
)

// StrategyFactory builds a dcsim.Strategy from a flat parameter map,
// mirroring the teacher's sub-package registration idiom described in
// sim/doc.go ("sub-packages register their implementations via init()
// functions that set package-level factory variables").
type StrategyFactory func(params map[string]float64) (dcsim.Strategy, error)

// vmIndexEntry is the VM index's value type: a PM id plus the owned VM
// reference, kept consistent with the PM's hosted set on every mutation
// (spec.md §3, "VM index" invariants).
type vmIndexEntry struct {
	PMID dcsim.PMID
	VM   *dcsim.VirtualMachine
}

// DataCenter holds the PM vector, the VM index, the pending placement
// bundles, the active strategy, and the counters (spec.md §4.5). All
// mutation happens under mu, which is also the "single consumer task"
// serialization point described in spec.md §5 — in practice the Engine
// guarantees HandleEvent is only ever called from one goroutine at a time,
// so mu exists to let introspection reads (recorder, host embedders) run
// concurrently with that single writer.
type DataCenter struct {
	mu  sync.RWMutex
	log logrus.FieldLogger

	pms   map[dcsim.PMID]*dcsim.PhysicalMachine
	index map[dcsim.VMID]vmIndexEntry

	pendingNewRequests []*dcsim.VirtualMachine
	pendingMigrations  []*dcsim.VirtualMachine

	strategy        dcsim.Strategy
	strategyFactory map[string]StrategyFactory
	migrationModel  MigrationModel

	queue *dcsim.EventQueue

	slaViolationsTotal  int64
	slaViolationsWindow int64
	migrationsWindow    int64
	migrationsTotal     int64
	newRequestsWindow   int64
}

// New creates a DataCenter that schedules follow-on events (util updates,
// departures, migration completions) onto queue, and dispatches placement
// decisions through strategy.
func New(queue *dcsim.EventQueue, strategy dcsim.Strategy, model MigrationModel, log logrus.FieldLogger) *DataCenter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &DataCenter{
		log:             log,
		pms:             make(map[dcsim.PMID]*dcsim.PhysicalMachine),
		index:           make(map[dcsim.VMID]vmIndexEntry),
		strategy:        strategy,
		strategyFactory: make(map[string]StrategyFactory),
		migrationModel:  model,
		queue:           queue,
	}
}

// AddPhysicalMachine registers pm. Panics on a duplicate id, mirroring the
// teacher's NewClusterSimulator constructor-time panics on structurally
// invalid configuration (sim/cluster/cluster.go).
func (dc *DataCenter) AddPhysicalMachine(pm *dcsim.PhysicalMachine) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	if _, exists := dc.pms[pm.ID]; exists {
		panic(fmt.Sprintf("datacenter: PM %d already exists", pm.ID))
	}
	dc.pms[pm.ID] = pm
}

// PhysicalMachine returns the PM with the given id, or nil if absent.
func (dc *DataCenter) PhysicalMachine(id dcsim.PMID) *dcsim.PhysicalMachine {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	return dc.pms[id]
}

// SetPlacementStrategy replaces the active strategy.
func (dc *DataCenter) SetPlacementStrategy(s dcsim.Strategy) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	dc.strategy = s
}

// RegisterStrategyFactory makes a named strategy constructible by a
// ReconfigureStrategy event.
func (dc *DataCenter) RegisterStrategyFactory(name string, factory StrategyFactory) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	dc.strategyFactory[name] = factory
}

// VMLocation returns the PM currently hosting vmID and whether it was
// found in the index.
func (dc *DataCenter) VMLocation(vmID dcsim.VMID) (dcsim.PMID, bool) {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	entry, ok := dc.index[vmID]
	return entry.PMID, ok
}

// sortedPMsLocked returns a deterministic, ID-ordered snapshot of all PMs for
// handing to a Strategy.Run call. Must be called with mu held.
func (dc *DataCenter) sortedPMsLocked() []*dcsim.PhysicalMachine {
	pms := make([]*dcsim.PhysicalMachine, 0, len(dc.pms))
	for _, pm := range dc.pms {
		pms = append(pms, pm)
	}
	sort.Slice(pms, func(i, j int) bool { return pms[i].ID < pms[j].ID })
	return pms
}
