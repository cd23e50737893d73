package core

import (
	"context"
	"runtime/debug"
)

// =============================================================================
// RunAndReply
// =============================================================================

// ReplyFunc receives the outcome of background work on the affinity goroutine.
type ReplyFunc[T any] func(ctx context.Context, result T, err error)

// reply carries a background result to the affinity goroutine.
type reply[T any] struct {
	value T
	err   error
}

// RunAndReply runs work on a new goroutine and posts the outcome to reply at priority
// on d's affinity goroutine. A panic in work is delivered to reply as a *JobError.
//
// work receives d's lifetime context, which is cancelled when d is disposed. If d is
// disposed before work finishes, the reply is dropped.
//
// Example:
//
//	core.RunAndReply(d,
//	    func(ctx context.Context) (string, error) { return fetch(ctx) },
//	    func(ctx context.Context, body string, err error) { view.Show(body, err) },
//	    core.PriorityDataBind,
//	)
func RunAndReply[T any](d *Dispatcher, work Func[T], replyFn ReplyFunc[T], priority Priority) error {
	if work == nil {
		return argumentMissing("work")
	}
	if replyFn == nil {
		return argumentMissing("reply")
	}
	if !priority.Valid() {
		return ErrInvalidPriority
	}
	if d.IsDisposed() {
		d.reportRejected("disposed", 1)
		return ErrDispatcherDisposed
	}

	id := newJobID()
	deliver := func(ctx context.Context, r reply[T]) {
		replyFn(ctx, r.value, r.err)
	}

	go func() {
		r := runWork(d.ctx, id, priority, work)
		if err := PostArg(d, deliver, r, priority); err != nil {
			d.logger.Debug("reply dropped",
				F("dispatcher", d.name),
				F("job_id", id.String()),
				F("error", err),
			)
		}
	}()
	return nil
}

func runWork[T any](ctx context.Context, id JobID, priority Priority, work Func[T]) (r reply[T]) {
	defer func() {
		if rec := recover(); rec != nil {
			r = reply[T]{err: &JobError{
				JobID:    id,
				Priority: priority,
				Err:      &PanicError{Value: rec, Stack: debug.Stack()},
			}}
		}
	}()
	value, err := work(ctx)
	return reply[T]{value: value, err: err}
}
