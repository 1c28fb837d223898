package reactive

import "reflect"

// Signal holds a directly observable value. Reading it inside a recomputing
// node registers a dependency; writing it dirties direct dependents and
// schedules a propagation pass.
type Signal[T any] struct {
	rt    *Runtime
	n     *node
	value T
	equal func(a, b T) bool
}

// SignalOption configures a Signal.
type SignalOption[T any] func(*Signal[T])

// WithEquals overrides the structural-equality check that gates writes.
func WithEquals[T any](eq func(a, b T) bool) SignalOption[T] {
	return func(s *Signal[T]) { s.equal = eq }
}

// NewSignal creates a signal owned by rt.
func NewSignal[T any](rt *Runtime, name string, initial T, opts ...SignalOption[T]) *Signal[T] {
	s := &Signal[T]{
		rt:    rt,
		n:     rt.newNode(name, kindSignal),
		value: initial,
		equal: structurallyEqual[T],
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the current value, tracking the dependency when called from a
// recomputing node.
func (s *Signal[T]) Get() T {
	s.rt.lk.lock()
	defer s.rt.lk.unlock()
	s.rt.trackRead(s.n)
	return s.value
}

// Peek returns the current value without tracking.
func (s *Signal[T]) Peek() T {
	s.rt.lk.lock()
	defer s.rt.lk.unlock()
	return s.value
}

// Set writes a new value. Structurally identical content does not dirty
// dependents, guarding against metadata-only false rebuilds.
func (s *Signal[T]) Set(v T) {
	s.rt.lk.lock()
	defer s.rt.lk.unlock()
	s.setLocked(v)
}

func (s *Signal[T]) setLocked(v T) {
	if s.equal != nil && s.equal(s.value, v) {
		return
	}
	s.value = v
	s.n.version = s.rt.clock
	s.n.dirtySubs()
	s.rt.schedule()
}

// structurallyEqual is the default write gate. Comparable kinds are compared
// directly; everything else falls back to reflect.DeepEqual.
func structurallyEqual[T any](a, b T) bool {
	return reflect.DeepEqual(a, b)
}
