package core

import (
	"context"
	"time"
)

// PostArg schedules action(arg) as a fire-and-forget job at priority.
func PostArg[T any](d *Dispatcher, action ActionOf[T], arg T, priority Priority) error {
	if action == nil {
		return argumentMissing("action")
	}
	return d.Enqueue(newArgJob(action, arg, priority, false))
}

// InvokeAsync schedules action at priority and returns a future that resolves when it
// has run. The caller is never blocked.
func (d *Dispatcher) InvokeAsync(action Action, priority Priority) *Future[struct{}] {
	if action == nil {
		return failedFuture[struct{}](argumentMissing("action"))
	}
	job := newActionJob(action, priority, true)
	if err := d.Enqueue(job); err != nil {
		return failedFuture[struct{}](err)
	}
	return job.future
}

// InvokeAsyncFunc schedules fn at priority. The future resolves with fn's value, with
// the exact error fn returned, or with a *JobError if fn panicked.
func InvokeAsyncFunc[T any](d *Dispatcher, fn Func[T], priority Priority) *Future[T] {
	if fn == nil {
		return failedFuture[T](argumentMissing("function"))
	}
	job := newFuncJob(fn, priority)
	if err := d.Enqueue(job); err != nil {
		return failedFuture[T](err)
	}
	return job.future
}

// InvokeAsyncFuture schedules fn, which itself starts asynchronous work, and returns a
// future for the outcome of that inner work.
func InvokeAsyncFuture[T any](d *Dispatcher, fn func(ctx context.Context) *Future[T], priority Priority) *Future[T] {
	if fn == nil {
		return failedFuture[T](argumentMissing("function"))
	}
	job := newUnwrapJob(fn, priority, d.disposedCh)
	if err := d.Enqueue(job); err != nil {
		return failedFuture[T](err)
	}
	return job.future
}

// Invoke runs action at PriorityNormal and waits for it. On the affinity goroutine the
// wait keeps pumping, so calling Invoke from inside a job does not deadlock.
func (d *Dispatcher) Invoke(action Action) error {
	return AwaitDone(d, d.InvokeAsync(action, PriorityNormal))
}

// InvokeFunc runs fn at PriorityNormal and waits for its result.
func InvokeFunc[T any](d *Dispatcher, fn Func[T]) (T, error) {
	return Await(d, InvokeAsyncFunc(d, fn, PriorityNormal))
}

// InvokeFuture runs fn at PriorityNormal and waits for the future it returns.
func InvokeFuture[T any](d *Dispatcher, fn func(ctx context.Context) *Future[T]) (T, error) {
	return Await(d, InvokeAsyncFuture(d, fn, PriorityNormal))
}

// Await waits for f. It returns ErrShutdownWhileWaiting if the dispatcher is disposed
// before f resolves.
func Await[T any](d *Dispatcher, f *Future[T]) (T, error) {
	if f == nil {
		var zero T
		return zero, argumentMissing("future")
	}
	if err := d.wait(f.Done()); err != nil {
		var zero T
		return zero, err
	}
	return f.value, f.err
}

// AwaitDone waits for a future without a value.
func AwaitDone(d *Dispatcher, f *Future[struct{}]) error {
	_, err := Await(d, f)
	return err
}

const maxPumpAttempt = 32

// wait blocks until done is closed. On the affinity goroutine each iteration pumps the
// platform loop once and then sleeps with backoff, waking early on resolution or
// disposal. Elsewhere it simply blocks.
func (d *Dispatcher) wait(done <-chan struct{}) error {
	if isClosed(done) {
		return nil
	}

	if !d.CheckAccess() {
		select {
		case <-done:
			return nil
		case <-d.disposedCh:
			if isClosed(done) {
				return nil
			}
			return ErrShutdownWhileWaiting
		}
	}

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	attempt := 0
	for {
		if d.State() == StateFinallyDisposed {
			d.runner.ClearAll()
			return ErrShutdownWhileWaiting
		}

		executed := d.runner.executed.Load()
		d.runner.Rearm()
		d.DoEvents()
		if isClosed(done) {
			return nil
		}

		if d.runner.executed.Load() != executed {
			attempt = 0
		}
		timer.Reset(d.pumpBackoff.calculateDelay(attempt))
		if attempt < maxPumpAttempt {
			attempt++
		}

		select {
		case <-done:
			return nil
		case <-d.disposedCh:
		case <-timer.C:
			continue
		}
		timer.Stop()
	}
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
