// Package dcsim provides the core discrete-event simulation engine for a
// cloud data-center VM placement and consolidation simulator.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - resources.go: the five-axis resource vector and its arithmetic
//   - vm.go, pm.go: the VirtualMachine and PhysicalMachine entity model
//   - event.go: the tagged-variant Event type that drives the simulation
//   - event_queue.go: the thread-safe time-ordered event queue
//   - engine.go: the single-consumer event loop and virtual clock
//
// # Architecture
//
// dcsim defines the kernel and the shared contracts; implementations live
// in sub-packages:
//   - dcsim/datacenter: the VM/PM index, placement bundling, migration
//     scheduling, and over-commit detection
//   - dcsim/strategy: FFD, BFD, and OpenStack-style placement strategies
//   - dcsim/strategy/papso: particle-swarm placement
//   - dcsim/strategy/ilp: ILP-based consolidation
//   - dcsim/strategy/rl: RL-driven hyper-parameter selection wrapping ilp
//   - dcsim/trace: trace-file parsing and producer goroutines
//   - dcsim/stats: periodic binary statistics recording
//   - dcsim/config: YAML configuration for the engine and strategies
//
// # Key Interfaces
//
// The extension points are small interfaces:
//   - Strategy: run/bundle_size/migration_threshold/name, the only
//     capability set the data center speaks to
//   - Dispatcher: receives events from the Engine and mutates data-center
//     state on the single consumer goroutine
//   - Introspectable: read-only snapshot views consumed by the recorder
//     and by host embedders
package dcsim
