package datacenter

import "github.com/dcsim/dcsim"

// runPlacement drains the pending new-request and to-migrate bundles,
// hands them to the active strategy alongside a deterministic PM
// snapshot, and applies the resulting decisions (spec.md §4.6). A
// negative pm_id for a new request is fatal (NoFitError); a negative
// pm_id for a migration candidate means "leave it where it is" and is
// simply skipped.
func (dc *DataCenter) runPlacement(now float64) error {
	dc.mu.Lock()
	newRequests := dc.pendingNewRequests
	dc.pendingNewRequests = nil
	toMigrate := dc.pendingMigrations
	dc.pendingMigrations = nil

	counters := dcsim.Counters{
		SLAViolationsTotal:  dc.slaViolationsTotal,
		SLAViolationsWindow: dc.slaViolationsWindow,
		MigrationsWindow:    dc.migrationsWindow,
		MigrationsTotal:     dc.migrationsTotal,
		NewRequestsWindow:   dc.newRequestsWindow,
	}
	dc.newRequestsWindow = 0
	dc.slaViolationsWindow = 0
	dc.migrationsWindow = 0

	strategy := dc.strategy
	pmSnapshot := dc.sortedPMsLocked()
	dc.mu.Unlock()

	if len(newRequests) == 0 && len(toMigrate) == 0 {
		return nil
	}

	output, err := strategy.Run(dcsim.StrategyInput{
		NewRequests: newRequests,
		ToMigrate:   toMigrate,
		PMs:         pmSnapshot,
		Counters:    counters,
	})
	if err != nil {
		return &dcsim.StrategyFailureError{Strategy: strategy.Name(), Err: err}
	}

	for _, d := range output.Placements {
		if d.PMID == dcsim.NoFitPMID {
			return &dcsim.NoFitError{VMID: d.VM.ID}
		}
		if err := dc.placeVMonPM(d.VM, d.PMID, now); err != nil {
			return err
		}
	}

	batchSize := len(output.Migrations)
	for _, d := range output.Migrations {
		if d.PMID == dcsim.NoFitPMID {
			continue
		}
		if err := dc.scheduleMigration(d.VM.ID, d.PMID, batchSize, now); err != nil {
			return err
		}
	}
	return nil
}

// placeVMonPM commits a new placement decision: reserves capacity on pm,
// indexes the VM, and schedules its future utilization updates and its
// departure (spec.md §4.6).
func (dc *DataCenter) placeVMonPM(vm *dcsim.VirtualMachine, pmID dcsim.PMID, now float64) error {
	dc.mu.Lock()
	pm, ok := dc.pms[pmID]
	if !ok || !pm.CanHost(vm.CurrentUsage) {
		dc.mu.Unlock()
		return &dcsim.InsufficientCapacityError{VMID: vm.ID, PMID: pmID}
	}

	pm.AddVM(vm)
	dc.index[vm.ID] = vmIndexEntry{PMID: pmID, VM: vm}
	vm.Placed = true
	vm.CurrentPMID = pmID
	vm.StartTime = now

	futureUpdates := vm.FutureUpdates
	vm.FutureUpdates = nil
	duration := vm.Duration
	dc.mu.Unlock()

	for _, u := range futureUpdates {
		dc.queue.Push(dcsim.NewVMUtilUpdateEvent(now+u.Offset, vm.ID, u.Utilization))
	}
	dc.queue.Push(dcsim.NewVMDepartureEvent(now+duration, vm.ID))
	return nil
}

// scheduleMigration reserves vm's current usage on the destination PM,
// marks it migrating, repoints the index to the destination, and
// schedules a MigrationComplete event at the projected transfer time
// (spec.md §4.6). batchSize is the number of migrations decided in the
// same placement run, used by the batched-bandwidth transfer model.
func (dc *DataCenter) scheduleMigration(vmID dcsim.VMID, destPMID dcsim.PMID, batchSize int, now float64) error {
	dc.mu.Lock()
	entry, ok := dc.index[vmID]
	if !ok {
		dc.mu.Unlock()
		return &dcsim.UnknownVMError{VMID: vmID}
	}
	vm := entry.VM
	srcPMID := entry.PMID
	if srcPMID == destPMID {
		dc.mu.Unlock()
		return nil
	}

	destPM, ok := dc.pms[destPMID]
	if !ok || !destPM.CanHost(vm.CurrentUsage) {
		dc.mu.Unlock()
		return &dcsim.InsufficientCapacityError{VMID: vmID, PMID: destPMID}
	}
	srcPM := dc.pms[srcPMID]

	vm.Migrating = true
	vm.OldPMID = srcPMID
	vm.CurrentPMID = destPMID
	if srcPM != nil {
		srcPM.OngoingMigrationCount++
	}
	destPM.IncomingMigration()
	destPM.AddVM(vm)
	dc.index[vmID] = vmIndexEntry{PMID: destPMID, VM: vm}

	usage := vm.CurrentUsage
	model := dc.migrationModel
	dc.mu.Unlock()

	deltaT := migrationTransferTime(usage, batchSize, model)
	dc.queue.Push(dcsim.NewMigrationCompleteEvent(now+deltaT, vmID, srcPMID, destPMID))
	return nil
}

// migrationTransferTime implements spec.md §4.5.4/§9's two accepted
// formulas for projected migration duration. batchSize is clamped to at
// least 1 to avoid division by zero for an empty (zero) batch size.
func migrationTransferTime(usage dcsim.Resources, batchSize int, model MigrationModel) float64 {
	if batchSize < 1 {
		batchSize = 1
	}
	if usage.Bandwidth == 0 {
		return 0
	}
	switch model {
	case MigrationSimpleBandwidth:
		return usage.Disk / usage.Bandwidth
	default:
		effectiveBandwidth := usage.Bandwidth / (1000 * float64(batchSize))
		if effectiveBandwidth == 0 {
			return 0
		}
		return usage.Disk / effectiveBandwidth
	}
}
