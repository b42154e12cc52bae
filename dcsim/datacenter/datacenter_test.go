package datacenter

import (
	"errors"
	"testing"

	"github.com/dcsim/dcsim"
)

// fixedStrategy is a minimal dcsim.Strategy test double whose Run
// function is supplied per-test.
type fixedStrategy struct {
	name      string
	bundle    int
	threshold float64
	run       func(dcsim.StrategyInput) (dcsim.StrategyOutput, error)
	runCount  int
	lastInput dcsim.StrategyInput
}

func (s *fixedStrategy) Name() string { return s.name }
func (s *fixedStrategy) Run(in dcsim.StrategyInput) (dcsim.StrategyOutput, error) {
	s.runCount++
	s.lastInput = in
	if s.run != nil {
		return s.run(in)
	}
	return dcsim.StrategyOutput{}, nil
}
func (s *fixedStrategy) BundleSize() int             { return s.bundle }
func (s *fixedStrategy) MigrationThreshold() float64 { return s.threshold }

func newTestDC(strategy dcsim.Strategy) (*DataCenter, *dcsim.EventQueue) {
	q := dcsim.NewEventQueue()
	dc := New(q, strategy, MigrationBatchedBandwidth, nil)
	return dc, q
}

func stdCapacity() dcsim.Resources {
	return dcsim.Resources{CPU: 100, RAM: 100, Disk: 100, Bandwidth: 100, FPGA: 100}
}

func TestHandleVMRequestTriggersPlacementAtBundleSize(t *testing.T) {
	strategy := &fixedStrategy{name: "test", bundle: 2, threshold: 0.9}
	strategy.run = func(in dcsim.StrategyInput) (dcsim.StrategyOutput, error) {
		var placements []dcsim.PlacementDecision
		for _, vm := range in.NewRequests {
			placements = append(placements, dcsim.PlacementDecision{VM: vm, PMID: 1})
		}
		return dcsim.StrategyOutput{Placements: placements}, nil
	}
	dc, _ := newTestDC(strategy)
	dc.AddPhysicalMachine(dcsim.NewPhysicalMachine(1, stdCapacity(), 10, 1, 1))

	vm1 := dcsim.NewVirtualMachine(1, dcsim.Resources{CPU: 10, RAM: 10, Disk: 10, Bandwidth: 10, FPGA: 0}, 100, 1.0)
	vm2 := dcsim.NewVirtualMachine(2, dcsim.Resources{CPU: 10, RAM: 10, Disk: 10, Bandwidth: 10, FPGA: 0}, 100, 1.0)

	if err := dc.HandleEvent(dcsim.NewVMRequestEvent(0, vm1), 0); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if strategy.runCount != 0 {
		t.Fatalf("strategy ran before bundle size reached")
	}
	if err := dc.HandleEvent(dcsim.NewVMRequestEvent(0, vm2), 0); err != nil {
		t.Fatalf("second request: %v", err)
	}
	if strategy.runCount != 1 {
		t.Fatalf("runCount = %d, want 1", strategy.runCount)
	}

	loc1, ok := dc.VMLocation(1)
	if !ok || loc1 != 1 {
		t.Errorf("vm1 location = (%v, %v), want (1, true)", loc1, ok)
	}
	loc2, ok := dc.VMLocation(2)
	if !ok || loc2 != 1 {
		t.Errorf("vm2 location = (%v, %v), want (1, true)", loc2, ok)
	}
}

func TestPlaceVMonPMSchedulesDepartureAndUpdates(t *testing.T) {
	strategy := &fixedStrategy{name: "test", bundle: 1, threshold: 0.9}
	dc, q := newTestDC(strategy)
	dc.AddPhysicalMachine(dcsim.NewPhysicalMachine(1, stdCapacity(), 10, 1, 1))

	vm := dcsim.NewVirtualMachine(1, dcsim.Resources{CPU: 10, RAM: 10, Disk: 10, Bandwidth: 10}, 50, 0.5)
	vm.FutureUpdates = []dcsim.UtilizationUpdate{{Offset: 5, Utilization: 0.8}}

	if err := dc.placeVMonPM(vm, 1, 10); err != nil {
		t.Fatalf("placeVMonPM: %v", err)
	}

	pushed, _, _ := q.Counts()
	if pushed != 2 {
		t.Fatalf("pushed = %d, want 2 (util update + departure)", pushed)
	}

	e1, _ := q.Pop()
	if e1.Kind != dcsim.EventVMUtilUpdate || e1.Time != 15 {
		t.Errorf("first event = %+v, want VMUtilUpdate at t=15", e1)
	}
	e2, _ := q.Pop()
	if e2.Kind != dcsim.EventVMDeparture || e2.Time != 60 {
		t.Errorf("second event = %+v, want VMDeparture at t=60", e2)
	}
}

func TestPlaceVMonPMInsufficientCapacity(t *testing.T) {
	strategy := &fixedStrategy{name: "test", bundle: 1, threshold: 0.9}
	dc, _ := newTestDC(strategy)
	dc.AddPhysicalMachine(dcsim.NewPhysicalMachine(1, dcsim.Resources{CPU: 1}, 10, 1, 1))

	vm := dcsim.NewVirtualMachine(1, dcsim.Resources{CPU: 10}, 50, 1.0)
	err := dc.placeVMonPM(vm, 1, 0)
	var capErr *dcsim.InsufficientCapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("err = %v, want *InsufficientCapacityError", err)
	}
}

func TestScheduleMigrationMarksBothPMsAndIndex(t *testing.T) {
	strategy := &fixedStrategy{name: "test", bundle: 1, threshold: 0.9}
	dc, q := newTestDC(strategy)
	src := dcsim.NewPhysicalMachine(1, stdCapacity(), 10, 1, 1)
	dst := dcsim.NewPhysicalMachine(2, stdCapacity(), 10, 1, 1)
	dc.AddPhysicalMachine(src)
	dc.AddPhysicalMachine(dst)

	vm := dcsim.NewVirtualMachine(1, dcsim.Resources{CPU: 10, RAM: 10, Disk: 100, Bandwidth: 50}, 1000, 1.0)
	if err := dc.placeVMonPM(vm, 1, 0); err != nil {
		t.Fatalf("placeVMonPM: %v", err)
	}
	q.Pop() // drain departure event pushed by placement

	if err := dc.scheduleMigration(1, 2, 1, 0); err != nil {
		t.Fatalf("scheduleMigration: %v", err)
	}

	if !vm.Migrating {
		t.Error("vm.Migrating = false, want true")
	}
	if vm.OldPMID != 1 || vm.CurrentPMID != 2 {
		t.Errorf("vm PM ids = (%d, %d), want (1, 2)", vm.OldPMID, vm.CurrentPMID)
	}
	if _, hosted := src.Hosted[1]; !hosted {
		t.Error("source PM should still host the VM during migration")
	}
	if _, hosted := dst.Hosted[1]; !hosted {
		t.Error("destination PM should host the VM once migration is scheduled")
	}
	if src.OngoingMigrationCount != 1 || dst.OngoingMigrationCount != 1 {
		t.Errorf("ongoing migration counts = (%d, %d), want (1, 1)", src.OngoingMigrationCount, dst.OngoingMigrationCount)
	}

	loc, ok := dc.VMLocation(1)
	if !ok || loc != 2 {
		t.Errorf("VMLocation = (%d, %v), want (2, true)", loc, ok)
	}

	ev, ok := q.Pop()
	if !ok || ev.Kind != dcsim.EventMigrationComplete {
		t.Fatalf("expected a MigrationComplete event, got %+v, %v", ev, ok)
	}
}

func TestHandleMigrationCompleteReleasesSourceAndClearsFlag(t *testing.T) {
	strategy := &fixedStrategy{name: "test", bundle: 1, threshold: 0.9}
	dc, q := newTestDC(strategy)
	src := dcsim.NewPhysicalMachine(1, stdCapacity(), 10, 1, 1)
	dst := dcsim.NewPhysicalMachine(2, stdCapacity(), 10, 1, 1)
	dc.AddPhysicalMachine(src)
	dc.AddPhysicalMachine(dst)

	vm := dcsim.NewVirtualMachine(1, dcsim.Resources{CPU: 10, RAM: 10, Disk: 10, Bandwidth: 10}, 1000, 1.0)
	dc.placeVMonPM(vm, 1, 0)
	q.Pop()
	dc.scheduleMigration(1, 2, 1, 0)
	q.Pop()

	if err := dc.HandleEvent(dcsim.NewMigrationCompleteEvent(100, 1, 1, 2), 100); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if vm.Migrating {
		t.Error("vm.Migrating = true after MigrationComplete, want false")
	}
	if _, hosted := src.Hosted[1]; hosted {
		t.Error("source PM should have released the VM after migration completed")
	}
	if src.OngoingMigrationCount != 0 || dst.OngoingMigrationCount != 0 {
		t.Errorf("ongoing migration counts = (%d, %d), want (0, 0)", src.OngoingMigrationCount, dst.OngoingMigrationCount)
	}
	counters := dc.Counters()
	if counters.MigrationsTotal != 1 {
		t.Errorf("MigrationsTotal = %d, want 1", counters.MigrationsTotal)
	}
}

func TestHandleMigrationCompleteToleratesDepartedVM(t *testing.T) {
	strategy := &fixedStrategy{name: "test", bundle: 1, threshold: 0.9}
	dc, q := newTestDC(strategy)
	dc.AddPhysicalMachine(dcsim.NewPhysicalMachine(1, stdCapacity(), 10, 1, 1))
	dc.AddPhysicalMachine(dcsim.NewPhysicalMachine(2, stdCapacity(), 10, 1, 1))

	vm := dcsim.NewVirtualMachine(1, dcsim.Resources{CPU: 10, RAM: 10, Disk: 10, Bandwidth: 10}, 1000, 1.0)
	dc.placeVMonPM(vm, 1, 0)
	q.Pop()
	dc.scheduleMigration(1, 2, 1, 0)
	q.Pop()

	if err := dc.HandleEvent(dcsim.NewVMDepartureEvent(50, 1), 50); err != nil {
		t.Fatalf("VMDeparture: %v", err)
	}
	if err := dc.HandleEvent(dcsim.NewMigrationCompleteEvent(100, 1, 1, 2), 100); err != nil {
		t.Fatalf("stale MigrationComplete should be a no-op, got error: %v", err)
	}
}

func TestVMDepartureUnknownVMIsError(t *testing.T) {
	strategy := &fixedStrategy{name: "test", bundle: 1, threshold: 0.9}
	dc, _ := newTestDC(strategy)
	err := dc.HandleEvent(dcsim.NewVMDepartureEvent(0, 999), 0)
	var unknown *dcsim.UnknownVMError
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want *UnknownVMError", err)
	}
}

func TestVMDepartureDuringMigrationReleasesSourceReservation(t *testing.T) {
	strategy := &fixedStrategy{name: "test", bundle: 1, threshold: 0.9}
	dc, q := newTestDC(strategy)
	src := dcsim.NewPhysicalMachine(1, stdCapacity(), 10, 1, 1)
	dst := dcsim.NewPhysicalMachine(2, stdCapacity(), 10, 1, 1)
	dc.AddPhysicalMachine(src)
	dc.AddPhysicalMachine(dst)

	vm := dcsim.NewVirtualMachine(1, dcsim.Resources{CPU: 10, RAM: 10, Disk: 10, Bandwidth: 10}, 1000, 1.0)
	dc.placeVMonPM(vm, 1, 0)
	q.Pop() // drain departure event
	dc.scheduleMigration(1, 2, 1, 0)
	q.Pop() // drain migration-complete event

	if err := dc.HandleEvent(dcsim.NewVMDepartureEvent(50, 1), 50); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if _, hosted := src.Hosted[1]; hosted {
		t.Error("source PM should have released the VM on departure mid-migration")
	}
	if src.UsedResources != (dcsim.Resources{}) {
		t.Errorf("source PM UsedResources = %+v, want zero value (reservation released)", src.UsedResources)
	}
}

func TestDetectOvercommitmentQueuesHostedVMsForMigration(t *testing.T) {
	strategy := &fixedStrategy{name: "test", bundle: 100, threshold: 0.5}
	strategy.run = func(in dcsim.StrategyInput) (dcsim.StrategyOutput, error) {
		return dcsim.StrategyOutput{}, nil
	}
	dc, _ := newTestDC(strategy)
	pm := dcsim.NewPhysicalMachine(1, dcsim.Resources{CPU: 100, RAM: 100, Disk: 100, Bandwidth: 100}, 10, 1, 1)
	dc.AddPhysicalMachine(pm)

	vm := dcsim.NewVirtualMachine(1, dcsim.Resources{CPU: 40, RAM: 10, Disk: 10, Bandwidth: 10}, 1000, 1.0)
	dc.placeVMonPM(vm, 1, 0)

	if err := dc.HandleEvent(dcsim.NewVMUtilUpdateEvent(10, 1, 1.0), 10); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	// CPU usage is 40, which is below the 50-unit 0.5 threshold on a
	// 100-unit PM; bump it further to force an overcommit.
	pm.ApplyUsageDelta(dcsim.Resources{}, dcsim.Resources{CPU: 20})
	if overcommitted := dc.detectOvercommitmentLocked(pm); !overcommitted {
		t.Fatal("expected PM to be detected as overcommitted")
	}
	counters := dc.Counters()
	if counters.SLAViolationsTotal != 1 {
		t.Errorf("SLAViolationsTotal = %d, want 1", counters.SLAViolationsTotal)
	}
	if len(dc.pendingMigrations) != 1 {
		t.Errorf("pendingMigrations = %d, want 1 (the hosted VM)", len(dc.pendingMigrations))
	}
}

func TestReconfigureStrategyUsesRegisteredFactory(t *testing.T) {
	strategy := &fixedStrategy{name: "initial", bundle: 1, threshold: 0.9}
	dc, _ := newTestDC(strategy)
	dc.RegisterStrategyFactory("alternate", func(params map[string]float64) (dcsim.Strategy, error) {
		return &fixedStrategy{name: "alternate", bundle: 1, threshold: params["threshold"]}, nil
	})

	err := dc.HandleEvent(dcsim.NewReconfigureStrategyEvent(0, "alternate", map[string]float64{"threshold": 0.7}), 0)
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if got := dc.ActiveStrategyName(); got != "alternate" {
		t.Errorf("ActiveStrategyName() = %q, want %q", got, "alternate")
	}
}

func TestReconfigureStrategyUnregisteredNameFails(t *testing.T) {
	strategy := &fixedStrategy{name: "initial", bundle: 1, threshold: 0.9}
	dc, _ := newTestDC(strategy)
	err := dc.HandleEvent(dcsim.NewReconfigureStrategyEvent(0, "missing", nil), 0)
	var failure *dcsim.StrategyFailureError
	if !errors.As(err, &failure) {
		t.Fatalf("err = %v, want *StrategyFailureError", err)
	}
}

func TestIntrospectionReportsUtilizationAndPower(t *testing.T) {
	strategy := &fixedStrategy{name: "test", bundle: 1, threshold: 0.9}
	dc, _ := newTestDC(strategy)
	dc.AddPhysicalMachine(dcsim.NewPhysicalMachine(1, stdCapacity(), 10, 2, 0))
	dc.AddPhysicalMachine(dcsim.NewPhysicalMachine(2, stdCapacity(), 10, 2, 0))

	vm := dcsim.NewVirtualMachine(1, dcsim.Resources{CPU: 50, RAM: 10, Disk: 10, Bandwidth: 10}, 1000, 1.0)
	if err := dc.placeVMonPM(vm, 1, 0); err != nil {
		t.Fatalf("placeVMonPM: %v", err)
	}

	util := dc.ResourceUtilizations()
	if util.CPU != 50 {
		t.Errorf("ResourceUtilizations().CPU = %v, want 50 (one of two 100-unit PMs powered on, hosting 50 CPU)", util.CPU)
	}
	if dc.PoweredOnCount() != 1 {
		t.Errorf("PoweredOnCount() = %d, want 1", dc.PoweredOnCount())
	}
	wantPower := 10.0 + 2*50
	if dc.TotalPower() != wantPower {
		t.Errorf("TotalPower() = %v, want %v", dc.TotalPower(), wantPower)
	}
	if dc.AveragePower() != wantPower {
		t.Errorf("AveragePower() = %v, want %v", dc.AveragePower(), wantPower)
	}
	if len(dc.MachineUsage()) != 2 {
		t.Errorf("MachineUsage() length = %d, want 2", len(dc.MachineUsage()))
	}
}
