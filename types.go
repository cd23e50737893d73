package dispatcher

import (
	"github.com/Swind/go-dispatcher/core"
	"github.com/Swind/go-dispatcher/platform/goloop"
)

// Re-export commonly used types from the core package so most callers need only this
// package.

type (
	Dispatcher         = core.Dispatcher
	Priority           = core.Priority
	Action             = core.Action
	Job                = core.Job
	JobID              = core.JobID
	Disposable         = core.Disposable
	PlatformEventLoop  = core.PlatformEventLoop
	Config             = core.Config
	State              = core.State
	DispatcherStats    = core.DispatcherStats
	JobExecutionRecord = core.JobExecutionRecord
	PanicError         = core.PanicError
	JobError           = core.JobError
	Loop               = goloop.Loop
)

// Generic aliases.
type (
	ActionOf[T any]  = core.ActionOf[T]
	Func[T any]      = core.Func[T]
	Future[T any]    = core.Future[T]
	ReplyFunc[T any] = core.ReplyFunc[T]
)

// Priority constants
const (
	PrioritySystemIdle      = core.PrioritySystemIdle
	PriorityApplicationIdle = core.PriorityApplicationIdle
	PriorityContextIdle     = core.PriorityContextIdle
	PriorityBackground      = core.PriorityBackground
	PriorityInput           = core.PriorityInput
	PriorityLoaded          = core.PriorityLoaded
	PriorityRender          = core.PriorityRender
	PriorityDataBind        = core.PriorityDataBind
	PriorityNormal          = core.PriorityNormal
	PrioritySend            = core.PrioritySend
)

// Lifecycle states
const (
	StateActive          = core.StateActive
	StateDisposing       = core.StateDisposing
	StateFinallyDisposed = core.StateFinallyDisposed
)

// Errors
var (
	ErrInvalidThreadAccess  = core.ErrInvalidThreadAccess
	ErrArgumentMissing      = core.ErrArgumentMissing
	ErrJobExecutionFailure  = core.ErrJobExecutionFailure
	ErrShutdownWhileWaiting = core.ErrShutdownWhileWaiting
	ErrDispatcherDisposed   = core.ErrDispatcherDisposed
	ErrLoopBound            = core.ErrLoopBound
)

var (
	DefaultConfig       = core.DefaultConfig
	NewDispatcher       = core.NewDispatcher
	NewDisposable       = core.NewDisposable
	FromContext         = core.FromContext
	PriorityFromContext = core.PriorityFromContext
	ParsePriority       = core.ParsePriority
	NewLoop             = goloop.New
	StartLoop           = goloop.Start
	AwaitDone           = core.AwaitDone
)

// InvokeFunc runs fn on d's affinity goroutine at PriorityNormal and waits for its result.
func InvokeFunc[T any](d *Dispatcher, fn Func[T]) (T, error) {
	return core.InvokeFunc(d, fn)
}

// InvokeAsyncFunc queues fn at priority and returns a future for its result.
func InvokeAsyncFunc[T any](d *Dispatcher, fn Func[T], priority Priority) *Future[T] {
	return core.InvokeAsyncFunc(d, fn, priority)
}

// Await blocks until f resolves, pumping the loop when called on the affinity goroutine.
func Await[T any](d *Dispatcher, f *Future[T]) (T, error) {
	return core.Await(d, f)
}

// PostArg queues action with arg at priority.
func PostArg[T any](d *Dispatcher, action ActionOf[T], arg T, priority Priority) error {
	return core.PostArg(d, action, arg, priority)
}

// RunAndReply runs work off the affinity goroutine and posts reply back at priority.
func RunAndReply[T any](d *Dispatcher, work Func[T], reply ReplyFunc[T], priority Priority) error {
	return core.RunAndReply(d, work, reply, priority)
}
