package datacenter

import "github.com/dcsim/dcsim"

// ResourceUtilizations implements dcsim.Introspectable: system-wide
// percent utilization per axis, among powered-on PMs only.
func (dc *DataCenter) ResourceUtilizations() dcsim.Resources {
	dc.mu.RLock()
	defer dc.mu.RUnlock()

	var used, total dcsim.Resources
	for _, pm := range dc.pms {
		if !pm.PoweredOn {
			continue
		}
		used = used.Add(pm.UsedResources)
		total = total.Add(pm.TotalCapacity)
	}
	return used.PercentOf(total)
}

// MachineUsage implements dcsim.Introspectable.
func (dc *DataCenter) MachineUsage() []dcsim.PMUsageView {
	dc.mu.RLock()
	defer dc.mu.RUnlock()

	views := make([]dcsim.PMUsageView, 0, len(dc.pms))
	for _, pm := range dc.sortedPMsLocked() {
		views = append(views, dcsim.PMUsageView{
			ID:    pm.ID,
			Used:  pm.UsedResources,
			Total: pm.TotalCapacity,
		})
	}
	return views
}

// PoweredOnCount implements dcsim.Introspectable.
func (dc *DataCenter) PoweredOnCount() int {
	dc.mu.RLock()
	defer dc.mu.RUnlock()

	count := 0
	for _, pm := range dc.pms {
		if pm.PoweredOn {
			count++
		}
	}
	return count
}

// TotalPower implements dcsim.Introspectable.
func (dc *DataCenter) TotalPower() float64 {
	dc.mu.RLock()
	defer dc.mu.RUnlock()

	var total float64
	for _, pm := range dc.pms {
		total += pm.CurrentPower()
	}
	return total
}

// AveragePower implements dcsim.Introspectable: total power divided by
// the count of powered-on PMs, zero if none are on.
func (dc *DataCenter) AveragePower() float64 {
	dc.mu.RLock()
	var total float64
	poweredOn := 0
	for _, pm := range dc.pms {
		if pm.PoweredOn {
			poweredOn++
			total += pm.CurrentPower()
		}
	}
	dc.mu.RUnlock()

	if poweredOn == 0 {
		return 0
	}
	return total / float64(poweredOn)
}

// Counters implements dcsim.Introspectable.
func (dc *DataCenter) Counters() dcsim.Counters {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	return dcsim.Counters{
		SLAViolationsTotal:  dc.slaViolationsTotal,
		SLAViolationsWindow: dc.slaViolationsWindow,
		MigrationsWindow:    dc.migrationsWindow,
		MigrationsTotal:     dc.migrationsTotal,
		NewRequestsWindow:   dc.newRequestsWindow,
	}
}

// ActiveStrategyName implements dcsim.Introspectable.
func (dc *DataCenter) ActiveStrategyName() string {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	if dc.strategy == nil {
		return ""
	}
	return dc.strategy.Name()
}

// PendingBundleSize implements dcsim.Introspectable: the number of new
// requests currently awaiting a placement run.
func (dc *DataCenter) PendingBundleSize() int {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	return len(dc.pendingNewRequests)
}
