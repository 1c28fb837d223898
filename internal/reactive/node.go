package reactive

type nodeKind uint8

const (
	kindSignal nodeKind = iota
	kindTask
	kindEffect
)

type nodeFlags uint8

const (
	flagInHeap nodeFlags = 1 << iota
	flagQueued
	flagDisposed
)

// node is the graph vertex shared by signals, tasks and effects. Heights
// order the dirty heap so propagation is topological; the live counter is
// the transitive count of live subscribers used for resource lifecycles.
type node struct {
	rt   *Runtime
	name string
	kind nodeKind

	height  int
	flags   nodeFlags
	version uint64
	gen     uint64

	deps    []*node
	runDeps map[*node]struct{}
	subs    map[*node]struct{}

	live   int
	holder *resourceHolder

	invalidate func()
	effect     *Effect
}

func (rt *Runtime) newNode(name string, kind nodeKind) *node {
	return &node{rt: rt, name: name, kind: kind}
}

// addEdge links sub to dep. During a tracked run the subscriber's dependency
// set is rebuilt from scratch; edges surviving from the previous run are
// reused, stale ones are dropped by endTracking.
func addEdge(sub, dep *node) {
	if sub == nil || dep == nil || sub == dep {
		return
	}
	if sub.runDeps != nil {
		if _, ok := sub.runDeps[dep]; ok {
			return
		}
		sub.runDeps[dep] = struct{}{}
	} else {
		for _, d := range sub.deps {
			if d == dep {
				return
			}
		}
	}
	sub.deps = append(sub.deps, dep)
	if _, ok := dep.subs[sub]; !ok {
		if dep.subs == nil {
			dep.subs = make(map[*node]struct{})
		}
		dep.subs[sub] = struct{}{}
		if sub.isLive() {
			dep.incLive()
		}
	}
	if dep.height >= sub.height {
		sub.height = dep.height + 1
	}
}

func removeEdge(sub, dep *node) {
	if _, ok := dep.subs[sub]; !ok {
		return
	}
	delete(dep.subs, sub)
	if sub.isLive() {
		dep.decLive()
	}
}

// beginTracking starts a fresh dependency set for one recomputation and
// returns the previous one for endTracking to diff against.
func (n *node) beginTracking() []*node {
	prev := n.deps
	n.deps = nil
	n.runDeps = make(map[*node]struct{}, len(prev))
	return prev
}

// endTracking drops edges that the finished run did not re-establish and
// refreshes the node height. Keeping old edges alive until here means
// resources held through a recomputation never see a spurious 1->0->1.
func (n *node) endTracking(prev []*node) {
	for _, d := range prev {
		if _, ok := n.runDeps[d]; !ok {
			removeEdge(n, d)
		}
	}
	n.runDeps = nil

	h := 0
	for _, d := range n.deps {
		if d.height >= h {
			h = d.height + 1
		}
	}
	n.height = h
}

func (n *node) isLive() bool { return n.live > 0 }

// incLive increments the live-subscriber count. A 0->1 transition propagates
// to every dependency and acquires the attached resource, so liveness is
// transitive across arbitrarily long derivation chains.
func (n *node) incLive() {
	n.live++
	if n.live != 1 {
		return
	}
	for _, d := range n.deps {
		d.incLive()
	}
	if n.holder != nil {
		n.holder.acquire()
	}
}

func (n *node) decLive() {
	n.live--
	if n.live != 0 {
		return
	}
	for _, d := range n.deps {
		d.decLive()
	}
	if n.holder != nil {
		n.holder.release()
	}
}

// dirtySubs schedules every direct dependent for recomputation.
func (n *node) dirtySubs() {
	for s := range n.subs {
		n.rt.heap.insert(s)
	}
}

// detach removes the node from the graph in both directions.
func (n *node) detach() {
	for s := range n.subs {
		for i, d := range s.deps {
			if d == n {
				s.deps = append(s.deps[:i], s.deps[i+1:]...)
				break
			}
		}
		if s.isLive() {
			n.decLive()
		}
	}
	n.subs = nil
	for _, d := range n.deps {
		removeEdge(n, d)
	}
	n.deps = nil
	n.flags |= flagDisposed
}

// dirtyHeap holds dirty nodes bucketed by height. pop returns the lowest
// dirty node so downstream nodes never observe a half-updated upstream.
type dirtyHeap struct {
	buckets [][]*node
	count   int
}

func newDirtyHeap() *dirtyHeap {
	return &dirtyHeap{}
}

func (h *dirtyHeap) insert(n *node) {
	if n.flags&(flagInHeap|flagDisposed) != 0 {
		return
	}
	n.flags |= flagInHeap
	for len(h.buckets) <= n.height {
		h.buckets = append(h.buckets, nil)
	}
	h.buckets[n.height] = append(h.buckets[n.height], n)
	h.count++
}

func (h *dirtyHeap) pop() *node {
	if h.count == 0 {
		return nil
	}
	for i := range h.buckets {
		if len(h.buckets[i]) == 0 {
			continue
		}
		n := h.buckets[i][0]
		h.buckets[i] = h.buckets[i][1:]
		h.count--
		n.flags &^= flagInHeap
		return n
	}
	return nil
}

func (h *dirtyHeap) empty() bool { return h.count == 0 }
