package reactive

import "context"

// AwaitQuiescence blocks until every task in the graph has settled: the
// pending-task counter is zero and stays zero through one full propagation
// pass, so a settlement that immediately invalidates another task within
// the same pass keeps the caller waiting. The counter itself is private to
// the runtime; this is its only external surface.
//
// Works for both operating modes: one-shot (build, await, dispose) and
// continuous (await once for initial-build confirmation, keep the graph
// alive). Must not be called from inside an effect.
func (rt *Runtime) AwaitQuiescence(ctx context.Context) error {
	rt.lk.lock()
	if rt.quietLocked() {
		rt.lk.unlock()
		return nil
	}
	ch := make(chan struct{})
	rt.waiters = append(rt.waiters, ch)
	rt.lk.unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (rt *Runtime) quietLocked() bool {
	return rt.pending == 0 &&
		!rt.flushing &&
		rt.heap.empty() &&
		len(rt.starts) == 0 &&
		len(rt.effects) == 0
}

// notifySettled releases quiescence waiters. Called at the end of a flush
// pass that left the pending counter at zero.
func (rt *Runtime) notifySettled() {
	if len(rt.waiters) == 0 {
		return
	}
	waiters := rt.waiters
	rt.waiters = nil
	for _, ch := range waiters {
		close(ch)
	}
}
