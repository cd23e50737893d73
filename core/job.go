package core

import (
	"context"
	"reflect"
	"runtime"
	"runtime/debug"

	"github.com/google/uuid"
)

// Action is a unit of work without a result.
type Action func(ctx context.Context)

// ActionOf is a unit of work that receives one argument.
type ActionOf[T any] func(ctx context.Context, arg T)

// Func is a unit of work that produces a result or an error.
type Func[T any] func(ctx context.Context) (T, error)

// JobID identifies one scheduled job.
type JobID uuid.UUID

func newJobID() JobID {
	return JobID(uuid.New())
}

func (id JobID) String() string {
	return uuid.UUID(id).String()
}

// Job is one scheduled unit of work. Run is called exactly once, on the affinity
// goroutine, by the draining JobRunner.
type Job interface {
	ID() JobID
	Priority() Priority
	// Tracked reports whether the job resolves a Future. Untracked jobs let panics
	// escape Run; the runner's PanicPolicy decides what happens to them.
	Tracked() bool
	Name() string
	Run(ctx context.Context)
}

type jobBase struct {
	id       JobID
	priority Priority
	fn       any
}

func (b *jobBase) ID() JobID          { return b.id }
func (b *jobBase) Priority() Priority { return b.priority }
func (b *jobBase) Name() string       { return resolveJobName(b.fn) }

// actionJob runs an Action. With a nil future it is fire-and-forget.
type actionJob struct {
	jobBase
	action Action
	future *Future[struct{}]
}

func newActionJob(action Action, priority Priority, tracked bool) *actionJob {
	j := &actionJob{
		jobBase: jobBase{id: newJobID(), priority: priority, fn: action},
		action:  action,
	}
	if tracked {
		j.future = newFuture[struct{}]()
	}
	return j
}

func (j *actionJob) Tracked() bool { return j.future != nil }

func (j *actionJob) Run(ctx context.Context) {
	if j.future == nil {
		j.action(ctx)
		return
	}
	defer recoverInto(j.future, j.id, j.priority)
	j.action(ctx)
	j.future.complete(struct{}{}, nil)
}

// argJob runs an ActionOf with its captured argument.
type argJob[T any] struct {
	jobBase
	action ActionOf[T]
	arg    T
	future *Future[struct{}]
}

func newArgJob[T any](action ActionOf[T], arg T, priority Priority, tracked bool) *argJob[T] {
	j := &argJob[T]{
		jobBase: jobBase{id: newJobID(), priority: priority, fn: action},
		action:  action,
		arg:     arg,
	}
	if tracked {
		j.future = newFuture[struct{}]()
	}
	return j
}

func (j *argJob[T]) Tracked() bool { return j.future != nil }

func (j *argJob[T]) Run(ctx context.Context) {
	if j.future == nil {
		j.action(ctx, j.arg)
		return
	}
	defer recoverInto(j.future, j.id, j.priority)
	j.action(ctx, j.arg)
	j.future.complete(struct{}{}, nil)
}

// funcJob runs a Func and always resolves its future.
type funcJob[T any] struct {
	jobBase
	fn     Func[T]
	future *Future[T]
}

func newFuncJob[T any](fn Func[T], priority Priority) *funcJob[T] {
	return &funcJob[T]{
		jobBase: jobBase{id: newJobID(), priority: priority, fn: fn},
		fn:      fn,
		future:  newFuture[T](),
	}
}

func (j *funcJob[T]) Tracked() bool { return true }

func (j *funcJob[T]) Run(ctx context.Context) {
	defer recoverInto(j.future, j.id, j.priority)
	value, err := j.fn(ctx)
	j.future.complete(value, err)
}

// unwrapJob runs a function that itself returns a future and resolves its own future
// with the inner one's outcome.
type unwrapJob[T any] struct {
	jobBase
	fn     func(ctx context.Context) *Future[T]
	future *Future[T]
	stop   <-chan struct{}
}

func newUnwrapJob[T any](fn func(ctx context.Context) *Future[T], priority Priority, stop <-chan struct{}) *unwrapJob[T] {
	return &unwrapJob[T]{
		jobBase: jobBase{id: newJobID(), priority: priority, fn: fn},
		fn:      fn,
		future:  newFuture[T](),
		stop:    stop,
	}
}

func (j *unwrapJob[T]) Tracked() bool { return true }

func (j *unwrapJob[T]) Run(ctx context.Context) {
	defer recoverInto(j.future, j.id, j.priority)
	inner := j.fn(ctx)
	if inner == nil {
		var zero T
		j.future.complete(zero, argumentMissing("inner future"))
		return
	}
	chainFuture(j.future, inner, j.stop)
}

// recoverInto must be deferred directly so that recover sees the job's panic.
func recoverInto[T any](f *Future[T], id JobID, priority Priority) {
	if rec := recover(); rec != nil {
		var zero T
		f.complete(zero, &JobError{
			JobID:    id,
			Priority: priority,
			Err:      &PanicError{Value: rec, Stack: debug.Stack()},
		})
	}
}

func resolveJobName(fn any) string {
	if fn == nil {
		return "anonymous"
	}

	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return "anonymous"
	}

	f := runtime.FuncForPC(v.Pointer())
	if f == nil || f.Name() == "" {
		return "anonymous"
	}
	return f.Name()
}
