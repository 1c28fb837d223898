package reactive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignalEffectReruns(t *testing.T) {
	rt := New()
	log := &eventLog{}

	count := NewSignal(rt, "count", 0)
	NewEffect(rt, "observer", func() {
		log.add("count=%d", count.Get())
	})

	count.Set(1)
	count.Set(2)

	assert.Equal(t, []string{"count=0", "count=1", "count=2"}, log.snapshot())
}

func TestSignalEqualWriteSuppressed(t *testing.T) {
	rt := New()
	log := &eventLog{}

	s := NewSignal(rt, "s", "a")
	NewEffect(rt, "observer", func() {
		log.add("run %s", s.Get())
	})

	s.Set("a")
	s.Set("a")
	assert.Len(t, log.snapshot(), 1)

	s.Set("b")
	assert.Equal(t, []string{"run a", "run b"}, log.snapshot())
}

func TestBatchCoalescesWrites(t *testing.T) {
	rt := New()
	log := &eventLog{}

	a := NewSignal(rt, "a", 1)
	b := NewSignal(rt, "b", 1)
	NewEffect(rt, "sum", func() {
		log.add("sum=%d", a.Get()+b.Get())
	})

	rt.Batch(func() {
		a.Set(10)
		b.Set(20)
	})

	// one propagation pass for two writes from one external event
	assert.Equal(t, []string{"sum=2", "sum=30"}, log.snapshot())
}

func TestUntrackSkipsDependency(t *testing.T) {
	rt := New()
	log := &eventLog{}

	tracked := NewSignal(rt, "tracked", 0)
	ignored := NewSignal(rt, "ignored", 0)

	NewEffect(rt, "partial", func() {
		v := tracked.Get()
		rt.Untrack(func() {
			v += ignored.Get()
		})
		log.add("v=%d", v)
	})

	ignored.Set(100)
	assert.Len(t, log.snapshot(), 1)

	tracked.Set(1)
	assert.Equal(t, []string{"v=0", "v=101"}, log.snapshot())
}

func TestDependencySetReplacedEachRun(t *testing.T) {
	rt := New()
	log := &eventLog{}

	gate := NewSignal(rt, "gate", true)
	left := NewSignal(rt, "left", "L0")
	right := NewSignal(rt, "right", "R0")

	NewEffect(rt, "branch", func() {
		if gate.Get() {
			log.add("left=%s", left.Get())
		} else {
			log.add("right=%s", right.Get())
		}
	})

	gate.Set(false)
	assert.Equal(t, []string{"left=L0", "right=R0"}, log.snapshot())

	// left was dropped from the dependency set when the branch flipped
	left.Set("L1")
	assert.Len(t, log.snapshot(), 2)

	right.Set("R1")
	assert.Equal(t, []string{"left=L0", "right=R0", "right=R1"}, log.snapshot())
}

func TestEffectCleanupRunsBeforeRerunAndOnDispose(t *testing.T) {
	rt := New()
	log := &eventLog{}

	s := NewSignal(rt, "s", 0)
	e := NewEffect(rt, "cleaner", func() {
		v := s.Get()
		log.add("run %d", v)
		rt.OnCleanup(func() {
			log.add("cleanup %d", v)
		})
	})

	s.Set(1)
	e.Dispose()
	s.Set(2)

	assert.Equal(t, []string{"run 0", "cleanup 0", "run 1", "cleanup 1"}, log.snapshot())
}

func TestEffectPanicIsIsolated(t *testing.T) {
	rt := New()
	log := &eventLog{}

	s := NewSignal(rt, "s", 0)
	NewEffect(rt, "faulty", func() {
		if s.Get() == 1 {
			panic("boom")
		}
	})
	NewEffect(rt, "healthy", func() {
		log.add("healthy %d", s.Get())
	})

	assert.NotPanics(t, func() { s.Set(1) })
	assert.Equal(t, []string{"healthy 0", "healthy 1"}, log.snapshot())
}
