package reactive

// TaskHandlers dispatches one task's tri-state result. Nil handlers are
// skipped.
type TaskHandlers[T any] struct {
	Ok      func(value T)
	Err     func(err error)
	Pending func()
}

// Match dispatches on a single task. Reading the result tracks the task on
// every call, Pending included, so a dispatching effect re-runs when the
// task settles regardless of which branch runs. Reads the handlers perform
// themselves are tracked only when their branch is taken; a source that
// must unconditionally influence re-runs has to be read before dispatching.
func Match[T any](t *Task[T], h TaskHandlers[T]) {
	res := t.Result()
	switch res.State {
	case TaskOk:
		if h.Ok != nil {
			h.Ok(res.Value)
		}
	case TaskErr:
		if h.Err != nil {
			h.Err(res.Err)
		}
	default:
		if h.Pending != nil {
			h.Pending()
		}
	}
}

// GroupHandlers dispatches a set of tasks: Ok with all unwrapped values when
// every task is Ok, Err when any task is Err, Pending otherwise.
type GroupHandlers[T any] struct {
	Ok      func(values []T)
	Err     func(err error)
	Pending func()
}

// MatchAll dispatches on a group of tasks. Every given task is read (and
// therefore tracked) to pick the branch.
func MatchAll[T any](tasks []*Task[T], h GroupHandlers[T]) {
	values := make([]T, 0, len(tasks))
	pending := false
	var firstErr error

	for _, t := range tasks {
		res := t.Result()
		switch res.State {
		case TaskErr:
			if firstErr == nil {
				firstErr = res.Err
			}
		case TaskPending:
			pending = true
		default:
			values = append(values, res.Value)
		}
	}

	switch {
	case firstErr != nil:
		if h.Err != nil {
			h.Err(firstErr)
		}
	case pending:
		if h.Pending != nil {
			h.Pending()
		}
	default:
		if h.Ok != nil {
			h.Ok(values)
		}
	}
}
