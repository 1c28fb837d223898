package reactive

import "log/slog"

// Effect is a terminal node: it re-runs a side-effecting function whenever
// any node it read on its last run changes. Effects are scheduled eagerly,
// once per dirtying batch, after all synchronous propagation has finished.
// An effect is intrinsically live; liveness flows from it through every
// edge it creates.
type Effect struct {
	rt *Runtime
	n  *node

	fn       func()
	cleanups []func()
	disposed bool
}

// NewEffect creates an effect and runs it once immediately to establish its
// initial dependency set.
func NewEffect(rt *Runtime, name string, fn func()) *Effect {
	rt.lk.lock()
	defer rt.lk.unlock()

	e := &Effect{
		rt: rt,
		n:  rt.newNode(name, kindEffect),
		fn: fn,
	}
	e.n.effect = e
	e.n.incLive()
	e.run()
	rt.schedule()
	return e
}

// run executes the effect under a fresh dependency set. A panic in the body
// is logged and skipped; unrelated subgraphs stay live.
func (e *Effect) run() {
	if e.disposed {
		return
	}
	e.runCleanups()

	prev := e.n.beginTracking()
	e.rt.withScope(e.n, func() {
		defer func() {
			if r := recover(); r != nil {
				e.rt.logger.Error("effect panicked",
					slog.String("effect", e.n.name),
					slog.Any("panic", r))
			}
		}()
		e.fn()
	})
	e.n.endTracking(prev)
	e.rt.observer.EffectRan(e.n.name)
}

func (e *Effect) runCleanups() {
	cleanups := e.cleanups
	e.cleanups = nil
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}

// Dispose halts re-runs, invokes pending cleanups and releases every
// resource the effect was keeping live.
func (e *Effect) Dispose() {
	e.rt.lk.lock()
	defer e.rt.lk.unlock()

	if e.disposed {
		return
	}
	e.disposed = true
	e.runCleanups()
	e.n.decLive()
	for _, d := range e.n.deps {
		removeEdge(e.n, d)
	}
	e.n.deps = nil
	e.n.flags |= flagDisposed
}
