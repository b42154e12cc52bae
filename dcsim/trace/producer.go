package trace

import (
	"errors"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dcsim/dcsim"
)

// Producer implements dcsim.Producer over a single trace file: it parses
// every VM-arrival record up front and pushes one VMRequest event per
// record, in file order, at the record's StartTime. Because the EventQueue
// orders strictly by Time (spec.md §4.2), push order does not need to
// match simulated time order, so Run does not block pacing itself against
// the clock — it drains the file as fast as it can and returns.
//
// One Producer per trace file is the unit dcsim.Engine.Start spawns a
// goroutine for (engine.go's producers/producersWG pattern); a multi-file
// trace is simply multiple Producers registered on the same Engine.
type Producer struct {
	path string
	log  logrus.FieldLogger

	stop     chan struct{}
	stopOnce sync.Once
}

// NewProducer creates a Producer for the trace file at path. log may be
// nil, in which case logrus's standard logger is used.
func NewProducer(path string, log logrus.FieldLogger) *Producer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Producer{path: path, log: log, stop: make(chan struct{})}
}

// Run implements dcsim.Producer. It opens the file, parses and pushes
// every VM-arrival record, logging and skipping malformed lines, then
// returns. If Stop is called before the file is fully consumed, Run
// abandons the remaining lines.
func (p *Producer) Run(queue *dcsim.EventQueue) {
	f, err := os.Open(p.path)
	if err != nil {
		p.log.WithField("file", p.path).Errorf("trace: cannot open: %v", err)
		return
	}
	defer f.Close()

	p.runFrom(f, queue)
}

// runFrom drains r into queue; split out from Run so tests can supply an
// in-memory reader instead of a real file. A valSize = 0 record is fatal
// (spec.md §4.3/§7): ScanRecords stops at that line and reports it as a
// *dcsim.TraceError, which runFrom logs at Error level and treats as the
// end of this producer's input — the records already collected before the
// fatal line are still pushed, but nothing past it is.
func (p *Producer) runFrom(r io.Reader, queue *dcsim.EventQueue) {
	records, err := ScanRecords(r, logSkip(p.log, p.path))
	if err != nil {
		var traceErr *dcsim.TraceError
		if errors.As(err, &traceErr) {
			traceErr.File = p.path
			p.log.WithFields(logrus.Fields{"file": p.path, "line": traceErr.Line}).
				Errorf("trace: fatal record, aborting producer: %v", traceErr.Err)
		} else {
			p.log.WithField("file", p.path).Errorf("trace: read error: %v", err)
		}
	}

	for _, rec := range records {
		select {
		case <-p.stop:
			p.log.WithField("file", p.path).Warn("trace: producer stopped before file exhausted")
			return
		default:
		}
		vm := rec.ToVirtualMachine(dcsim.VMID(rec.RequestID))
		queue.Push(dcsim.NewVMRequestEvent(rec.StartTime, vm))
	}
}

// Stop implements dcsim.Producer.
func (p *Producer) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}
