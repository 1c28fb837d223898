// Package reactive implements the dependency-tracking engine behind
// incremental site builds: observable signals, keyed collections, async
// derived tasks, terminal effects, lazy resource lifecycles and quiescence
// detection.
//
// The engine uses a single logical thread of control. All graph operations
// are serialized through the runtime; only task bodies run on their own
// goroutines, and they re-enter the runtime through a generation-checked
// settlement path. A batch of writes fully propagates to all synchronous
// nodes before any task body observes it, so tasks always see consistent
// upstream state.
package reactive
