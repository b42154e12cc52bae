package dcsim

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Recorder is sampled once per processed event by the Engine (spec.md
// §4.7). Implemented by dcsim/stats.Recorder; kept as a small interface
// here so the kernel package does not depend on the stats package.
type Recorder interface {
	Sample(now float64, view Introspectable)
	Flush() error
}

// noopRecorder discards every sample; used when the engine is constructed
// without a recorder.
type noopRecorder struct{}

func (noopRecorder) Sample(float64, Introspectable) {}
func (noopRecorder) Flush() error                   { return nil }

// Engine is the single-consumer simulation kernel: it owns the monotone
// virtual clock, pops events off the shared queue in time order, and
// dispatches them to a Dispatcher (normally a *datacenter.DataCenter).
// Structurally this mirrors sim/cluster/cluster.go's ClusterSimulator.Run
// shared-clock loop; the goroutine lifecycle (Start/Stop joining producer
// tasks) is grounded on the worker-pool pattern in cmd/observe.go.
type Engine struct {
	Queue      *EventQueue
	Dispatcher Dispatcher
	Recorder   Recorder
	Log        logrus.FieldLogger

	clock float64

	mu       sync.Mutex
	running  bool
	done     chan struct{}
	stopOnce sync.Once

	producers   []Producer
	producersWG sync.WaitGroup
}

// Producer is a background task that pushes events into the Engine's
// queue — trace-file readers are the canonical implementation
// (dcsim/trace.Producer). Run must return once ctx-equivalent stop() has
// been observed or its input is exhausted.
type Producer interface {
	Run(queue *EventQueue)
	Stop()
}

// NewEngine creates an Engine over queue, dispatching events to d and
// sampling rec after each processed event. A nil rec is replaced with a
// no-op recorder; a nil logger is replaced with logrus's standard logger.
func NewEngine(queue *EventQueue, d Dispatcher, rec Recorder, log logrus.FieldLogger) *Engine {
	if rec == nil {
		rec = noopRecorder{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{
		Queue:      queue,
		Dispatcher: d,
		Recorder:   rec,
		Log:        log,
		done:       make(chan struct{}),
	}
}

// AddProducer registers a background producer to be started by Start and
// joined by Stop. Must be called before Start.
func (e *Engine) AddProducer(p Producer) {
	e.producers = append(e.producers, p)
}

// Clock returns the engine's current virtual time. Readers may observe a
// value that is stale by one event, per the single-writer contract of
// spec.md §5.
func (e *Engine) Clock() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock
}

// Start launches every registered producer and the consumer loop. The
// consumer loop runs on the calling goroutine's behalf via a spawned
// goroutine so Start returns immediately; Stop waits for it to finish.
func (e *Engine) Start() {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()

	for _, p := range e.producers {
		e.producersWG.Add(1)
		go func(p Producer) {
			defer e.producersWG.Done()
			p.Run(e.Queue)
		}(p)
	}

	go e.consume()
}

// Run runs the consumer loop on the calling goroutine, blocking until the
// queue is terminated and drained. Unlike Start it launches none of the
// registered producers: the caller pushes the events and terminates the
// queue itself.
func (e *Engine) Run() error {
	return e.loop()
}

// consume runs the event loop until the queue terminates, then closes done.
func (e *Engine) consume() {
	if err := e.loop(); err != nil {
		e.Log.Errorf("engine: fatal error: %v", err)
	}
	close(e.done)
}

// loop is the single-consumer event loop (spec.md §4.4):
//  1. pop next event; exit if the queue is terminated and empty
//  2. reject an event older than the current clock (CausalityError)
//  3. advance the clock
//  4. dispatch to the Dispatcher
//  5. sample the recorder
func (e *Engine) loop() error {
	for {
		ev, ok := e.Queue.Pop()
		if !ok {
			break
		}
		if ev.Time < e.Clock() {
			return &CausalityError{EventTime: ev.Time, CurrentTime: e.Clock()}
		}
		e.mu.Lock()
		e.clock = ev.Time
		e.mu.Unlock()

		if err := e.Dispatcher.HandleEvent(ev, ev.Time); err != nil {
			return err
		}
		if view, ok := e.Dispatcher.(Introspectable); ok {
			e.Recorder.Sample(ev.Time, view)
		}
	}
	return e.Recorder.Flush()
}

// Stop is cooperative and idempotent (calling it twice is observationally
// identical to calling it once): it stops every producer, terminates the
// queue, and joins the consumer and producer goroutines, in that order, per
// spec.md §5.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		for _, p := range e.producers {
			p.Stop()
		}
		e.Queue.Terminate()
		<-e.done
		e.producersWG.Wait()
	})
}
