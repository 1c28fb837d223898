package reactive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// TaskState is the tri-state result of an async derived node.
type TaskState uint8

const (
	// TaskPending means no result yet, or the task was just invalidated.
	// There is no stale-value-while-revalidating mode; consumers see either
	// a fresh result or Pending.
	TaskPending TaskState = iota
	TaskOk
	TaskErr
)

func (s TaskState) String() string {
	switch s {
	case TaskOk:
		return "ok"
	case TaskErr:
		return "err"
	default:
		return "pending"
	}
}

// ErrPending is returned by ReadTask when the upstream task has not settled.
// A task body that receives it should return it unchanged; the task then
// stays Pending and re-runs when the upstream settles (backpressure).
var ErrPending = errors.New("reactive: upstream task pending")

// Result is a snapshot of a task's state.
type Result[T any] struct {
	State TaskState
	Value T
	Err   error
}

type runState uint8

const (
	runIdle runState = iota
	runQueued
	runRunning
)

// TaskFunc computes a task's value. It runs on its own goroutine; reads of
// other graph nodes go through ReadSignal/ReadTask so the dependency set is
// rebuilt fresh on every run. The context is cancelled when the run is
// superseded by a newer generation.
type TaskFunc[T any] func(tc *TaskCtx) (T, error)

// Task is a node computed by an asynchronous function. A monotonic
// generation counter identifies each invocation attempt; a stale
// generation's completion never mutates visible state.
type Task[T any] struct {
	rt *Runtime
	n  *node

	fn TaskFunc[T]

	state    TaskState
	value    T
	err      error
	run      runState
	cancel   context.CancelFunc
	prevDeps []*node

	// staticDeps are re-registered at every run start, before the body has
	// had a chance to read anything, keeping liveness and invalidation
	// wired even while the body is in flight.
	staticDeps []*node

	disposed bool
}

// NewTask creates a task and schedules its first run. The task starts
// Pending and counts against quiescence until it settles.
func NewTask[T any](rt *Runtime, name string, fn TaskFunc[T]) *Task[T] {
	rt.lk.lock()
	defer rt.lk.unlock()

	t := &Task[T]{
		rt:    rt,
		n:     rt.newNode(name, kindTask),
		fn:    fn,
		state: TaskPending,
	}
	t.n.invalidate = t.invalidateLocked
	rt.taskPendingDelta(+1)
	t.queueStartLocked()
	rt.schedule()
	return t
}

// Result returns the task's current tri-state result, tracking the task as
// a dependency when read from a recomputing node. Tracking happens on every
// read, Pending included, so a reader re-runs once the task settles.
func (t *Task[T]) Result() Result[T] {
	t.rt.lk.lock()
	defer t.rt.lk.unlock()
	t.rt.trackRead(t.n)
	return Result[T]{State: t.state, Value: t.value, Err: t.err}
}

// State returns the current state, tracked like Result.
func (t *Task[T]) State() TaskState {
	return t.Result().State
}

// Invalidate forces a new generation, discarding any in-flight run.
func (t *Task[T]) Invalidate() {
	t.rt.lk.lock()
	defer t.rt.lk.unlock()
	t.invalidateLocked()
	t.rt.schedule()
}

// invalidateLocked starts a new generation. Called from the dirty heap when
// an upstream changed, or directly by collection teardown paths.
func (t *Task[T]) invalidateLocked() {
	if t.disposed {
		return
	}
	if t.run == runQueued {
		// not launched yet; the queued run will read fresh upstream state
		return
	}
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.n.gen++
	if t.state != TaskPending {
		t.state = TaskPending
		t.err = nil
		var zero T
		t.value = zero
		t.rt.taskPendingDelta(+1)
	}
	t.n.version = t.rt.clock
	t.n.dirtySubs()
	t.queueStartLocked()
}

func (t *Task[T]) queueStartLocked() {
	t.run = runQueued
	gen := t.n.gen
	t.rt.starts = append(t.rt.starts, func() { t.launch(gen) })
}

// launch runs in the flush loop after synchronous propagation, so the body
// observes consistent upstream state at invocation start.
func (t *Task[T]) launch(gen uint64) {
	if t.disposed || gen != t.n.gen || t.run != runQueued {
		return
	}
	t.run = runRunning
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel

	t.prevDeps = t.n.beginTracking()
	for _, d := range t.staticDeps {
		addEdge(t.n, d)
	}

	tc := &TaskCtx{ctx: ctx, n: t.n, gen: gen}
	t.rt.observer.TaskStarted(t.n.name, gen)
	go t.execute(tc)
}

func (t *Task[T]) execute(tc *TaskCtx) {
	var (
		value T
		err   error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task %s panicked: %v", t.n.name, r)
			}
		}()
		value, err = t.fn(tc)
	}()
	t.settle(tc.gen, value, err)
}

// settle delivers one generation's completion. Anything but the latest
// generation is suppressed: not an error, not reported.
func (t *Task[T]) settle(gen uint64, value T, err error) {
	rt := t.rt
	rt.lk.lock()
	defer rt.lk.unlock()

	if t.disposed || gen != t.n.gen {
		rt.observer.TaskSuppressed(t.n.name, gen)
		rt.logger.Debug("discarding superseded task completion",
			slog.String("task", t.n.name),
			slog.Uint64("generation", gen))
		return
	}

	t.n.endTracking(t.prevDeps)
	t.prevDeps = nil
	t.run = runIdle
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}

	if errors.Is(err, ErrPending) {
		// upstream not settled; stay Pending, the tracked upstream edge
		// re-invalidates this task when it settles
		return
	}

	if err != nil {
		t.state = TaskErr
		t.err = err
		var zero T
		t.value = zero
	} else {
		t.state = TaskOk
		t.value = value
		t.err = nil
	}
	rt.taskPendingDelta(-1)
	rt.observer.TaskSettled(t.n.name, t.state.String(), gen)

	t.n.version = rt.clock
	t.n.dirtySubs()
	rt.schedule()
}

// Dispose cancels any in-flight run and detaches the task from the graph.
func (t *Task[T]) Dispose() {
	t.rt.lk.lock()
	defer t.rt.lk.unlock()
	t.disposeLocked()
	t.rt.schedule()
}

func (t *Task[T]) disposeLocked() {
	if t.disposed {
		return
	}
	t.disposed = true
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	if t.state == TaskPending {
		t.rt.taskPendingDelta(-1)
	}
	t.n.detach()
}

// TaskCtx is passed to a task body: cancellation, the run's generation, and
// the tracking anchor for ReadSignal/ReadTask.
type TaskCtx struct {
	ctx context.Context
	n   *node
	gen uint64
}

// Context is cancelled when this run is superseded or the task disposed.
func (tc *TaskCtx) Context() context.Context { return tc.ctx }

// Generation identifies this invocation attempt.
func (tc *TaskCtx) Generation() uint64 { return tc.gen }

func (tc *TaskCtx) current() bool { return tc.gen == tc.n.gen }

// ReadSignal reads a signal from inside a task body, registering the
// dependency against the task's current run. Stale generations read the
// value but leave the dependency set alone.
func ReadSignal[T any](tc *TaskCtx, s *Signal[T]) T {
	s.rt.lk.lock()
	defer s.rt.lk.unlock()
	if tc.current() {
		addEdge(tc.n, s.n)
	}
	return s.value
}

// ReadTask reads another task from inside a task body. Pending upstream
// short-circuits with ErrPending (the caller should return it); Err
// propagates; Ok unwraps.
func ReadTask[T any](tc *TaskCtx, t *Task[T]) (T, error) {
	t.rt.lk.lock()
	defer t.rt.lk.unlock()
	if tc.current() {
		addEdge(tc.n, t.n)
	}
	switch t.state {
	case TaskOk:
		return t.value, nil
	case TaskErr:
		var zero T
		return zero, t.err
	default:
		var zero T
		return zero, ErrPending
	}
}
