package reactive

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"
)

// Observer receives engine lifecycle notifications for metrics and tracing.
// Implementations must be fast and must not call back into the runtime.
type Observer interface {
	TaskStarted(name string, gen uint64)
	TaskSettled(name string, outcome string, gen uint64)
	TaskSuppressed(name string, gen uint64)
	PendingTasks(n int)
	EffectRan(name string)
}

// NoopObserver is the default Observer when none is configured.
type NoopObserver struct{}

func (NoopObserver) TaskStarted(string, uint64)		{}
func (NoopObserver) TaskSettled(string, string, uint64)	{}
func (NoopObserver) TaskSuppressed(string, uint64)	{}
func (NoopObserver) PendingTasks(int)			{}
func (NoopObserver) EffectRan(string)			{}

// Runtime owns one reactive graph: the evaluation-context stack, the dirty
// heap, the effect queue, the pending-task counter and the settled waiters.
type Runtime struct {
	lk reentrantLock

	heap    *dirtyHeap
	effects []*Effect
	starts  []func()

	// evaluation-context stack; the top entry is the node currently
	// recomputing, or nil inside an Untrack region
	scopes []*node

	batchDepth int
	flushing   bool
	clock      uint64

	pending int
	waiters []chan struct{}

	logger   *slog.Logger
	observer Observer
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the runtime logger.
func WithLogger(l *slog.Logger) Option {
	return func(rt *Runtime) { rt.logger = l }
}

// WithObserver sets the lifecycle observer.
func WithObserver(o Observer) Option {
	return func(rt *Runtime) { rt.observer = o }
}

// New creates an empty reactive runtime.
func New(opts ...Option) *Runtime {
	rt := &Runtime{
		heap:     newDirtyHeap(),
		logger:   slog.Default(),
		observer: NoopObserver{},
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Batch coalesces every write performed inside fn into a single propagation
// pass. Batches nest; propagation happens when the outermost batch ends.
func (rt *Runtime) Batch(fn func()) {
	rt.lk.lock()
	defer rt.lk.unlock()

	rt.batchDepth++
	defer func() {
		rt.batchDepth--
		if rt.batchDepth == 0 {
			rt.flush()
		}
	}()

	fn()
}

// Untrack runs fn without registering dependencies on anything it reads.
func (rt *Runtime) Untrack(fn func()) {
	rt.lk.lock()
	defer rt.lk.unlock()

	rt.scopes = append(rt.scopes, nil)
	defer func() { rt.scopes = rt.scopes[:len(rt.scopes)-1] }()

	fn()
}

// OnCleanup registers fn to run before the current effect's next run and on
// its disposal. Outside an effect run it is a no-op.
func (rt *Runtime) OnCleanup(fn func()) {
	rt.lk.lock()
	defer rt.lk.unlock()

	if scope := rt.currentScope(); scope != nil && scope.effect != nil {
		scope.effect.cleanups = append(scope.effect.cleanups, fn)
	}
}

func (rt *Runtime) currentScope() *node {
	if len(rt.scopes) == 0 {
		return nil
	}
	return rt.scopes[len(rt.scopes)-1]
}

func (rt *Runtime) withScope(n *node, fn func()) {
	rt.scopes = append(rt.scopes, n)
	defer func() { rt.scopes = rt.scopes[:len(rt.scopes)-1] }()
	fn()
}

// trackRead registers an edge from the currently recomputing node to dep.
func (rt *Runtime) trackRead(dep *node) {
	if scope := rt.currentScope(); scope != nil {
		addEdge(scope, dep)
	}
}

func (rt *Runtime) schedule() {
	if rt.batchDepth > 0 || rt.flushing {
		return
	}
	rt.flush()
}

// flush drains the dirty heap in height order (glitch-free: a node only
// recomputes after every upstream node of lower height has been processed),
// launches queued task bodies once synchronous propagation is complete, then
// runs scheduled effects. Effects may write signals, which loops the pass.
func (rt *Runtime) flush() {
	if rt.flushing {
		return
	}
	rt.flushing = true
	defer func() { rt.flushing = false }()

	for !rt.heap.empty() || len(rt.starts) > 0 || len(rt.effects) > 0 {
		rt.clock++

		for n := rt.heap.pop(); n != nil; n = rt.heap.pop() {
			rt.process(n)
		}

		// synchronous state is consistent from here; async bodies may start
		starts := rt.starts
		rt.starts = nil
		for _, start := range starts {
			start()
		}

		effects := rt.effects
		rt.effects = nil
		for _, e := range effects {
			e.n.flags &^= flagQueued
			e.run()
		}
	}

	if rt.pending == 0 {
		rt.notifySettled()
	}
}

func (rt *Runtime) process(n *node) {
	switch n.kind {
	case kindTask:
		if n.invalidate != nil {
			n.invalidate()
		}
	case kindEffect:
		if n.flags&(flagQueued|flagDisposed) == 0 {
			n.flags |= flagQueued
			rt.effects = append(rt.effects, n.effect)
		}
	}
}

func (rt *Runtime) taskPendingDelta(d int) {
	rt.pending += d
	rt.observer.PendingTasks(rt.pending)
}

// reentrantLock is a mutex that may be re-acquired by the goroutine holding
// it. Effects and batch bodies run under the runtime lock and call back into
// the public API; task bodies run on other goroutines and queue normally.
type reentrantLock struct {
	mu    sync.Mutex
	owner atomic.Int64
	depth int
}

func (l *reentrantLock) lock() {
	id := goid.Get()
	if l.owner.Load() == id {
		l.depth++
		return
	}
	l.mu.Lock()
	l.owner.Store(id)
	l.depth = 1
}

func (l *reentrantLock) unlock() {
	l.depth--
	if l.depth == 0 {
		l.owner.Store(0)
		l.mu.Unlock()
	}
}
