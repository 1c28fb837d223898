package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestNoopRecorderIsSafe(t *testing.T) {
	var r Recorder = NoopRecorder{}
	assert.NotPanics(t, func() {
		r.SetPendingTasks(3)
		r.IncTaskResult("ok")
		r.ObserveBuildDuration(time.Second)
		r.IncBuildOutcome("success")
		r.IncCoalescedEvents(10)
		r.IncItemsWatched(1)
	})
}

func TestPrometheusRecorderRegisters(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewPrometheusRecorder(reg)

	r.SetPendingTasks(2)
	r.IncTaskResult("ok")
	r.IncTaskResult("err")
	r.ObserveBuildDuration(250 * time.Millisecond)
	r.IncBuildOutcome("success")
	r.IncCoalescedEvents(5)
	r.IncItemsWatched(3)

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["sitebuilder_pending_tasks"])
	assert.True(t, names["sitebuilder_task_results_total"])
	assert.True(t, names["sitebuilder_build_duration_seconds"])
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var r *PrometheusRecorder
	assert.NotPanics(t, func() {
		r.SetPendingTasks(1)
		r.IncTaskResult("ok")
	})
}

func TestGraphObserverForwards(t *testing.T) {
	reg := prom.NewRegistry()
	rec := NewPrometheusRecorder(reg)
	obs := NewGraphObserver(rec)

	obs.PendingTasks(4)
	obs.TaskSettled("render/a.md", "ok", 1)
	obs.TaskSuppressed("render/a.md", 1)

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}
