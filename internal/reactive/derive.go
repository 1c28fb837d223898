package reactive

// Derive maps a keyed collection into a parallel collection of tasks, one
// per key. Only the task whose keyed input changed recomputes; siblings are
// untouched. Keys pass through unchanged, so derivations chain arbitrarily
// deep with stable keys.
func Derive[A, B any](src *KeyedCollection[A], name string, fn func(tc *TaskCtx, key string, value A) (B, error)) *KeyedCollection[*Task[B]] {
	out := NewKeyedCollection(src.rt, name,
		WithItemEquals(func(a, b *Task[B]) bool { return a == b }))

	d := &derivation[A, B]{src: src, out: out, fn: fn}

	// populate existing keys in one batch so no task body launches before
	// its static dependency edge is wired
	src.rt.Batch(func() {
		for _, key := range src.order {
			d.added(key, src.items[key].sig)
		}
	})

	src.observe(d)
	return out
}

type derivation[A, B any] struct {
	src *KeyedCollection[A]
	out *KeyedCollection[*Task[B]]
	fn  func(tc *TaskCtx, key string, value A) (B, error)
}

// added creates the task for a fresh upstream key. The source item signal is
// a static dependency so invalidation and liveness stay wired from the
// moment of creation, before the body's first read.
func (d *derivation[A, B]) added(key string, sig *Signal[A]) {
	rt := d.src.rt
	rt.Batch(func() {
		t := NewTask(rt, d.out.name+"/"+key, func(tc *TaskCtx) (B, error) {
			value := ReadSignal(tc, sig)
			return d.fn(tc, key, value)
		})
		t.staticDeps = []*node{sig.n}
		addEdge(t.n, sig.n)
		if err := d.out.Add(key, t); err != nil {
			t.disposeLocked()
		}
	})
}

// removed cancels and removes the task mirroring a deleted upstream key.
func (d *derivation[A, B]) removed(key string, _ *Signal[A]) {
	rt := d.src.rt
	rt.lk.lock()
	item, ok := d.out.items[key]
	var t *Task[B]
	if ok {
		t = item.sig.value
	}
	rt.lk.unlock()
	if !ok {
		return
	}
	d.out.Remove(key)
	t.Dispose()
}
