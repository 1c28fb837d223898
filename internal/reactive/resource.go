package reactive

import "log/slog"

// LazyResource binds acquisition and release of an external resource (a
// filesystem watcher, a connection) to the transitive liveness of the node
// it is attached to. Activate runs exactly once on the 0->1 live-subscriber
// transition, Deactivate exactly once on 1->0.
type LazyResource struct {
	Activate   func() error
	Deactivate func()

	// OnError is called once if Activate fails. The resource then degrades:
	// it is never retried and never deactivated, and the owning source
	// continues without automatic updates.
	OnError func(error)
}

// resourceHolder refcounts liveness across all the nodes a resource is
// attached to (a collection's version node and every item signal count as
// one resource).
type resourceHolder struct {
	rt     *Runtime
	name   string
	res    *LazyResource
	count  int
	active bool
	failed bool
}

func newResourceHolder(rt *Runtime, name string, res *LazyResource) *resourceHolder {
	return &resourceHolder{rt: rt, name: name, res: res}
}

func (h *resourceHolder) acquire() {
	h.count++
	if h.count != 1 || h.failed {
		return
	}
	if h.res == nil || h.res.Activate == nil {
		h.active = true
		return
	}
	if err := h.res.Activate(); err != nil {
		h.failed = true
		h.rt.logger.Error("resource activation failed; source degrades to non-incremental",
			slog.String("resource", h.name),
			slog.Any("error", err))
		if h.res.OnError != nil {
			h.res.OnError(err)
		}
		return
	}
	h.active = true
}

func (h *resourceHolder) release() {
	h.count--
	if h.count != 0 || !h.active {
		return
	}
	h.active = false
	if h.res != nil && h.res.Deactivate != nil {
		h.res.Deactivate()
	}
}
