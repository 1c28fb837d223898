package metrics

import "git.home.luguber.info/inful/sitebuilder/internal/reactive"

// GraphObserver adapts a Recorder to the reactive runtime's Observer hooks.
type GraphObserver struct {
	reactive.NoopObserver
	rec Recorder
}

// NewGraphObserver wraps rec; a nil rec falls back to NoopRecorder.
func NewGraphObserver(rec Recorder) *GraphObserver {
	if rec == nil {
		rec = NoopRecorder{}
	}
	return &GraphObserver{rec: rec}
}

func (o *GraphObserver) TaskSettled(_ string, outcome string, _ uint64) {
	o.rec.IncTaskResult(outcome)
}

func (o *GraphObserver) TaskSuppressed(string, uint64) {
	o.rec.IncTaskResult("suppressed")
}

func (o *GraphObserver) PendingTasks(n int) {
	o.rec.SetPendingTasks(n)
}
