// Package trace parses the line-oriented VM-arrival trace format
// (spec.md §6) and drives it into an EventQueue through one goroutine
// per file, the teacher's goroutine-pool idiom (cmd/observe.go) applied
// to a real producer instead of an HTTP client pool.
package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dcsim/dcsim"
)

// ErrZeroValSize is the sentinel wrapped by ParseLine's valSize < 1 error,
// letting ScanRecords distinguish it from an ordinary malformed field
// (spec.md §4.3/§7: valSize = 0 is fatal for the producer that hit it,
// while every other parse error is log-and-skip).
var ErrZeroValSize = errors.New("valSize must be >= 1")

// Record is one parsed trace line before being turned into a VMRequest
// event.
type Record struct {
	RequestID   int64
	RequestType int
	StartTime   float64
	Duration    float64
	Resources   dcsim.Resources
	// Utilizations are fractions in [0,1]: ParseLine divides the percent
	// values read from the trace by 100.
	Utilizations []float64
}

// ParseLine parses one non-empty, non-comment trace line (spec.md §6
// grammar). Skips (returns nil, nil) for request types other than 0
// (VM arrival); such records are not logged here or by ScanRecords. A
// valSize < 1 field is reported as an error wrapping ErrZeroValSize,
// since spec.md §4.3/§7 treats that case as fatal rather than an
// ordinary malformed field; ScanRecords is what acts on the distinction.
func ParseLine(line string) (*Record, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 10 {
		return nil, fmt.Errorf("expected at least 10 fields, got %d", len(fields))
	}

	reqID, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("reqId: %w", err)
	}
	reqType, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("reqType: %w", err)
	}
	if reqType != 0 {
		return nil, nil
	}

	tStart, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return nil, fmt.Errorf("tStart: %w", err)
	}
	duration, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return nil, fmt.Errorf("duration: %w", err)
	}
	cpu, err := strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return nil, fmt.Errorf("cpu: %w", err)
	}
	fpga, err := strconv.ParseFloat(fields[5], 64)
	if err != nil {
		return nil, fmt.Errorf("fpga: %w", err)
	}
	ram, err := strconv.ParseFloat(fields[6], 64)
	if err != nil {
		return nil, fmt.Errorf("ram: %w", err)
	}
	disk, err := strconv.ParseFloat(fields[7], 64)
	if err != nil {
		return nil, fmt.Errorf("disk: %w", err)
	}
	bandwidth, err := strconv.ParseFloat(fields[8], 64)
	if err != nil {
		return nil, fmt.Errorf("bandwidth: %w", err)
	}
	valSize, err := strconv.Atoi(fields[9])
	if err != nil {
		return nil, fmt.Errorf("valSize: %w", err)
	}
	if valSize < 1 {
		return nil, fmt.Errorf("valSize = %d: %w", valSize, ErrZeroValSize)
	}
	if len(fields) < 10+valSize {
		return nil, fmt.Errorf("expected %d utilization fields, got %d", valSize, len(fields)-10)
	}

	utils := make([]float64, valSize)
	for i := 0; i < valSize; i++ {
		v, err := strconv.ParseFloat(fields[10+i], 64)
		if err != nil {
			return nil, fmt.Errorf("utilization_%d: %w", i, err)
		}
		utils[i] = v / 100
	}

	return &Record{
		RequestID:   reqID,
		RequestType: reqType,
		StartTime:   tStart,
		Duration:    duration,
		Resources:   dcsim.Resources{CPU: cpu, RAM: ram, Disk: disk, Bandwidth: bandwidth, FPGA: fpga},
		Utilizations: utils,
	}, nil
}

// ToVirtualMachine builds a VirtualMachine from a parsed record,
// computing its future utilization-update schedule (spec.md §6: the
// remaining valSize-1 utilizations are evenly spaced across duration).
func (r *Record) ToVirtualMachine(id dcsim.VMID) *dcsim.VirtualMachine {
	vm := dcsim.NewVirtualMachine(id, r.Resources, r.Duration, r.Utilizations[0])
	n := len(r.Utilizations)
	if n > 1 {
		vm.FutureUpdates = make([]dcsim.UtilizationUpdate, 0, n-1)
		for i := 0; i < n-1; i++ {
			offset := float64(i+1) * r.Duration / float64(n-1)
			vm.FutureUpdates = append(vm.FutureUpdates, dcsim.UtilizationUpdate{
				Offset:      offset,
				Utilization: r.Utilizations[i+1],
			})
		}
	}
	return vm
}

// ScanRecords reads non-empty, non-comment lines from r, parsing each into
// a Record. Ordinary parse errors are reported through onError and the
// offending line is skipped, mirroring the teacher's "log and continue on
// per-line parse error" policy (spec.md §7 propagation policy); a nil
// onError silently skips bad lines. A valSize = 0 record is different: it
// is fatal (spec.md §4.3/§7), so ScanRecords stops scanning immediately
// and returns the records collected so far alongside a *dcsim.TraceError
// (its File field left for the caller, which knows the file path, to
// fill in).
func ScanRecords(r io.Reader, onError func(line int, err error)) ([]*Record, error) {
	scanner := bufio.NewScanner(r)
	var records []*Record
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rec, err := ParseLine(line)
		if err != nil {
			if errors.Is(err, ErrZeroValSize) {
				return records, &dcsim.TraceError{Line: lineNo, Err: err}
			}
			if onError != nil {
				onError(lineNo, err)
			}
			continue
		}
		if rec == nil {
			continue // non-arrival record type, skipped without a log entry
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, err
	}
	return records, nil
}

// logSkip is the default onError handler used by Producer, logging at
// warn level and continuing (spec.md §7: "producers log-and-continue on
// per-line parse errors").
func logSkip(log logrus.FieldLogger, file string) func(int, error) {
	return func(line int, err error) {
		log.WithFields(logrus.Fields{"file": file, "line": line}).Warnf("trace: skipping malformed record: %v", err)
	}
}
