package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once            sync.Once
	pendingTasks    prom.Gauge
	taskResults     *prom.CounterVec
	buildDuration   prom.Histogram
	buildOutcome    *prom.CounterVec
	coalescedEvents prom.Counter
	itemsWatched    prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.pendingTasks = prom.NewGauge(prom.GaugeOpts{
			Namespace: "sitebuilder",
			Name:      "pending_tasks",
			Help:      "Tasks currently pending in the build graph",
		})
		pr.taskResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "sitebuilder",
			Name:      "task_results_total",
			Help:      "Task settlements by outcome",
		}, []string{"outcome"})
		pr.buildDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "sitebuilder",
			Name:      "build_duration_seconds",
			Help:      "Time from build start to graph quiescence",
			Buckets:   prom.DefBuckets,
		})
		pr.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "sitebuilder",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"})
		pr.coalescedEvents = prom.NewCounter(prom.CounterOpts{
			Namespace: "sitebuilder",
			Name:      "coalesced_events_total",
			Help:      "Raw filesystem events absorbed by the debounce window",
		})
		pr.itemsWatched = prom.NewGauge(prom.GaugeOpts{
			Namespace: "sitebuilder",
			Name:      "items_watched",
			Help:      "Source items currently tracked in the input collection",
		})
		reg.MustRegister(pr.pendingTasks, pr.taskResults, pr.buildDuration, pr.buildOutcome, pr.coalescedEvents, pr.itemsWatched)
	})
	return pr
}

func (p *PrometheusRecorder) SetPendingTasks(n int) {
	if p == nil || p.pendingTasks == nil {
		return
	}
	p.pendingTasks.Set(float64(n))
}

func (p *PrometheusRecorder) IncTaskResult(outcome string) {
	if p == nil || p.taskResults == nil {
		return
	}
	p.taskResults.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome string) {
	if p == nil || p.buildOutcome == nil {
		return
	}
	p.buildOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncCoalescedEvents(n int) {
	if p == nil || p.coalescedEvents == nil {
		return
	}
	p.coalescedEvents.Add(float64(n))
}

func (p *PrometheusRecorder) IncItemsWatched(delta int) {
	if p == nil || p.itemsWatched == nil {
		return
	}
	p.itemsWatched.Add(float64(delta))
}
