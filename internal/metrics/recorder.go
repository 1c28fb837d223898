// Package metrics provides observability hooks for the build graph.
package metrics

import "time"

// Recorder defines observability hooks for graph and build metrics.
// Implementations may forward to Prometheus, OpenTelemetry, etc. All methods
// must be safe for nil receivers when using the NoopRecorder (allowing
// optional injection).
type Recorder interface {
	SetPendingTasks(n int)
	IncTaskResult(outcome string) // outcome: ok|err|suppressed
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome string) // outcome: success|failed|canceled
	IncCoalescedEvents(n int)
	IncItemsWatched(delta int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not
// configured).
type NoopRecorder struct{}

func (NoopRecorder) SetPendingTasks(int)		{}
func (NoopRecorder) IncTaskResult(string)		{}
func (NoopRecorder) ObserveBuildDuration(time.Duration)	{}
func (NoopRecorder) IncBuildOutcome(string)		{}
func (NoopRecorder) IncCoalescedEvents(int)		{}
func (NoopRecorder) IncItemsWatched(int)		{}
