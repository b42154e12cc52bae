// Package stats implements the data center's binary statistics recorder
// (spec.md §6): a fixed little-endian, packed record appended once per
// sample, following the teacher's encoding/binary idiom for on-disk
// metrics rather than a serialization library (see DESIGN.md — no
// third-party binary codec appears anywhere in the corpus).
package stats

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"sync"

	"github.com/dcsim/dcsim"
)

// record is the fixed, bit-exact layout written per sample (spec.md §6):
// time, five utilization axes, turned-on machine count (8 bytes), average
// power, total power.
type record struct {
	Time                 float64
	UtilCPU              float64
	UtilRAM              float64
	UtilDisk             float64
	UtilBandwidth        float64
	UtilFPGA             float64
	TurnedOnMachineCount uint64
	AvgPower             float64
	TotalPower           float64
}

// Recorder implements dcsim.Recorder, appending one binary record per
// Sample call to a buffered writer over an underlying file. It is safe
// for concurrent use, though the engine's single-consumer contract means
// Sample is only ever called from one goroutine at a time in practice.
type Recorder struct {
	mu sync.Mutex
	w  *bufio.Writer
	f  *os.File
}

// NewRecorder creates a Recorder appending to the file at path, creating
// it if necessary and truncating any existing contents.
func NewRecorder(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &Recorder{w: bufio.NewWriter(f), f: f}, nil
}

// Sample implements dcsim.Recorder.
func (r *Recorder) Sample(now float64, view dcsim.Introspectable) {
	util := view.ResourceUtilizations()
	rec := record{
		Time:                 now,
		UtilCPU:              util.CPU,
		UtilRAM:              util.RAM,
		UtilDisk:             util.Disk,
		UtilBandwidth:        util.Bandwidth,
		UtilFPGA:             util.FPGA,
		TurnedOnMachineCount: uint64(view.PoweredOnCount()),
		AvgPower:             view.AveragePower(),
		TotalPower:           view.TotalPower(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := binary.Write(r.w, binary.LittleEndian, rec); err != nil {
		// Sample has no error return (dcsim.Recorder contract); a write
		// failure here can only be a disk-full or closed-file condition,
		// which Flush's caller will also observe on the next Flush.
		return
	}
}

// Flush implements dcsim.Recorder's companion Flush method, draining the
// buffered writer to disk and closing the underlying file.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.w.Flush(); err != nil {
		return err
	}
	return r.f.Close()
}

// ReadAll decodes every record in r into the returned slices, one value
// per sample, in file order. It is the offline companion to Recorder,
// for tools that post-process a completed run's statistics file.
func ReadAll(r io.Reader) ([]Sample, error) {
	var out []Sample
	for {
		var rec record
		if err := binary.Read(r, binary.LittleEndian, &rec); err != nil {
			if err == io.EOF {
				return out, nil
			}
			return out, err
		}
		out = append(out, Sample{
			Time:                 rec.Time,
			Utilization:          dcsim.Resources{CPU: rec.UtilCPU, RAM: rec.UtilRAM, Disk: rec.UtilDisk, Bandwidth: rec.UtilBandwidth, FPGA: rec.UtilFPGA},
			TurnedOnMachineCount: rec.TurnedOnMachineCount,
			AvgPower:             rec.AvgPower,
			TotalPower:           rec.TotalPower,
		})
	}
}

// Sample is the decoded, caller-friendly form of one on-disk record.
type Sample struct {
	Time                 float64
	Utilization          dcsim.Resources
	TurnedOnMachineCount uint64
	AvgPower             float64
	TotalPower           float64
}
