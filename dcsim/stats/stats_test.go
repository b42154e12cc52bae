package stats

import (
	"bytes"
	"os"
	"testing"

	"github.com/dcsim/dcsim"
)

// fakeView is a minimal dcsim.Introspectable test double with fixed
// values, enough to exercise Sample's field mapping.
type fakeView struct {
	util       dcsim.Resources
	poweredOn  int
	avgPower   float64
	totalPower float64
}

func (v fakeView) ResourceUtilizations() dcsim.Resources { return v.util }
func (v fakeView) MachineUsage() []dcsim.PMUsageView      { return nil }
func (v fakeView) PoweredOnCount() int                    { return v.poweredOn }
func (v fakeView) TotalPower() float64                    { return v.totalPower }
func (v fakeView) AveragePower() float64                  { return v.avgPower }
func (v fakeView) Counters() dcsim.Counters               { return dcsim.Counters{} }
func (v fakeView) ActiveStrategyName() string             { return "test" }
func (v fakeView) PendingBundleSize() int                 { return 0 }

func TestRecorderSampleAndReadAllRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/stats.bin"

	rec, err := NewRecorder(path)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}

	views := []fakeView{
		{util: dcsim.Resources{CPU: 0.5, RAM: 0.25, Disk: 0.1, Bandwidth: 0.2, FPGA: 0}, poweredOn: 3, avgPower: 120.5, totalPower: 361.5},
		{util: dcsim.Resources{CPU: 0.9, RAM: 0.8, Disk: 0.7, Bandwidth: 0.6, FPGA: 0.1}, poweredOn: 5, avgPower: 150, totalPower: 750},
	}
	times := []float64{0, 10.5}
	for i, v := range views {
		rec.Sample(times[i], v)
	}
	if err := rec.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	samples, err := ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("len(samples) = %d, want 2", len(samples))
	}
	for i, want := range views {
		got := samples[i]
		if got.Time != times[i] {
			t.Errorf("samples[%d].Time = %v, want %v", i, got.Time, times[i])
		}
		if got.Utilization != want.util {
			t.Errorf("samples[%d].Utilization = %+v, want %+v", i, got.Utilization, want.util)
		}
		if got.TurnedOnMachineCount != uint64(want.poweredOn) {
			t.Errorf("samples[%d].TurnedOnMachineCount = %d, want %d", i, got.TurnedOnMachineCount, want.poweredOn)
		}
		if got.AvgPower != want.avgPower || got.TotalPower != want.totalPower {
			t.Errorf("samples[%d] power = (%v,%v), want (%v,%v)", i, got.AvgPower, got.TotalPower, want.avgPower, want.totalPower)
		}
	}
}

func TestReadAllEmptyReturnsNoSamples(t *testing.T) {
	samples, err := ReadAll(bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(samples) != 0 {
		t.Errorf("len(samples) = %d, want 0", len(samples))
	}
}
