package datacenter

import "github.com/dcsim/dcsim"

// HandleEvent implements dcsim.Dispatcher. It is called exclusively from
// the Engine's single consumer goroutine (spec.md §4.5).
func (dc *DataCenter) HandleEvent(e *dcsim.Event, now float64) error {
	switch e.Kind {
	case dcsim.EventVMRequest:
		return dc.handleVMRequest(e.VM, now)
	case dcsim.EventVMUtilUpdate:
		return dc.handleVMUtilUpdate(e.VMID, e.Utilization, now)
	case dcsim.EventVMDeparture:
		return dc.handleVMDeparture(e.VMID, now)
	case dcsim.EventMigrationComplete:
		return dc.handleMigrationComplete(e.VMID, e.OldPMID, e.NewPMID, now)
	case dcsim.EventReconfigureStrategy:
		return dc.handleReconfigureStrategy(e.NewStrategyName, e.StrategyParams)
	default:
		return nil
	}
}

// handleVMRequest appends vm to the pending new-request bundle and runs
// placement once the active strategy's bundle size is reached (spec.md
// §4.5.1).
func (dc *DataCenter) handleVMRequest(vm *dcsim.VirtualMachine, now float64) error {
	dc.mu.Lock()
	dc.pendingNewRequests = append(dc.pendingNewRequests, vm)
	dc.newRequestsWindow++
	trigger := len(dc.pendingNewRequests) >= dc.strategy.BundleSize()
	dc.mu.Unlock()

	if trigger {
		return dc.runPlacement(now)
	}
	return nil
}

// handleVMUtilUpdate applies a new utilization fraction to an already
// placed VM, mirrors the delta onto the source (old) PM during an ongoing
// migration, and checks the hosting PM for over-commitment (spec.md
// §4.5.2).
func (dc *DataCenter) handleVMUtilUpdate(vmID dcsim.VMID, utilization float64, now float64) error {
	dc.mu.Lock()
	entry, ok := dc.index[vmID]
	if !ok {
		dc.mu.Unlock()
		return &dcsim.UnknownVMError{VMID: vmID}
	}
	vm := entry.VM
	old := vm.SetUtilization(utilization)

	hostPM := dc.pms[entry.PMID]
	hostPM.ApplyUsageDelta(old, vm.CurrentUsage)
	if vm.Migrating {
		if srcPM := dc.pms[vm.OldPMID]; srcPM != nil {
			srcPM.ApplyUsageDelta(old, vm.CurrentUsage)
		}
	}

	overcommitted := dc.detectOvercommitmentLocked(hostPM)
	dc.mu.Unlock()

	if overcommitted {
		return dc.runPlacement(now)
	}
	return nil
}

// handleVMDeparture tears down a VM's bookkeeping, cancelling an in-flight
// migration if one was underway (spec.md §4.5.3). A race against a
// not-yet-delivered MigrationComplete for the same VM is tolerated by
// handleMigrationComplete, not here.
func (dc *DataCenter) handleVMDeparture(vmID dcsim.VMID, now float64) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	entry, ok := dc.index[vmID]
	if !ok {
		return &dcsim.UnknownVMError{VMID: vmID}
	}
	vm := entry.VM

	if vm.Migrating {
		if oldPM := dc.pms[vm.OldPMID]; oldPM != nil {
			oldPM.CompleteMigration()
			oldPM.RemoveVM(vm.ID)
		}
		if newPM := dc.pms[vm.CurrentPMID]; newPM != nil {
			newPM.CompleteMigration()
			newPM.RemoveVM(vm.ID)
		}
	}
	if currentPM := dc.pms[entry.PMID]; currentPM != nil {
		currentPM.RemoveVM(vm.ID)
	}
	delete(dc.index, vmID)
	return nil
}

// handleMigrationComplete finalizes a migration: it tolerates the VM
// already being gone (a VMDeparture that raced ahead of this event), and
// otherwise releases the source PM's reservation and flips Migrating off
// (spec.md §4.5.4).
func (dc *DataCenter) handleMigrationComplete(vmID dcsim.VMID, oldPMID, newPMID dcsim.PMID, now float64) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	entry, ok := dc.index[vmID]
	if !ok {
		dc.log.WithField("vm", vmID).Debug("datacenter: migration complete for departed VM, skipping")
		return nil
	}
	vm := entry.VM
	vm.Migrating = false

	if oldPM := dc.pms[oldPMID]; oldPM != nil {
		oldPM.CompleteMigration()
		oldPM.RemoveVM(vmID)
	}
	if newPM := dc.pms[newPMID]; newPM != nil {
		newPM.CompleteMigration()
	}

	dc.migrationsWindow++
	dc.migrationsTotal++
	return nil
}

// handleReconfigureStrategy swaps the active strategy using a previously
// registered factory (supplemented from original_source/; see
// SPEC_FULL.md).
func (dc *DataCenter) handleReconfigureStrategy(name string, params map[string]float64) error {
	dc.mu.Lock()
	factory, ok := dc.strategyFactory[name]
	dc.mu.Unlock()
	if !ok {
		return &dcsim.StrategyFailureError{Strategy: name, Err: errUnregisteredStrategy(name)}
	}

	s, err := factory(params)
	if err != nil {
		return &dcsim.StrategyFailureError{Strategy: name, Err: err}
	}

	dc.mu.Lock()
	dc.strategy = s
	dc.mu.Unlock()
	return nil
}

// detectOvercommitmentLocked checks pm against the active strategy's
// migration threshold and, if exceeded, queues every hosted VM not
// already migrating for the next placement run (spec.md §4.5.2). Must be
// called with mu held.
func (dc *DataCenter) detectOvercommitmentLocked(pm *dcsim.PhysicalMachine) bool {
	if pm.OngoingMigrationCount > 0 {
		return false
	}
	if !pm.IsOvercommitted(dc.strategy.MigrationThreshold()) {
		return false
	}

	dc.slaViolationsTotal++
	dc.slaViolationsWindow++
	for _, hosted := range pm.Hosted {
		if !hosted.Migrating {
			dc.pendingMigrations = append(dc.pendingMigrations, hosted)
		}
	}
	return true
}
