package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidThreadAccess is returned by VerifyAccess off the affinity goroutine.
	ErrInvalidThreadAccess = errors.New("dispatcher: call from invalid thread")

	// ErrArgumentMissing is returned when a nil action or function is passed.
	ErrArgumentMissing = errors.New("dispatcher: argument is nil")

	// ErrShutdownWhileWaiting is returned by a blocking wait that observed final disposal.
	ErrShutdownWhileWaiting = errors.New("dispatcher: disposed while waiting for a job")

	// ErrDispatcherDisposed is returned when work is posted after Dispose.
	ErrDispatcherDisposed = errors.New("dispatcher: disposed")

	// ErrJobExecutionFailure marks a failure raised by a tracked job's callable.
	ErrJobExecutionFailure = errors.New("dispatcher: job execution failed")

	// ErrLoopBound is returned when a platform loop already has a dispatcher attached.
	ErrLoopBound = errors.New("dispatcher: platform loop already bound to a dispatcher")

	// ErrNoPlatform is returned by operations that need a platform loop when none is bound.
	ErrNoPlatform = errors.New("dispatcher: no platform loop")

	// ErrFuturePending is returned by Future.Result before the future resolves.
	ErrFuturePending = errors.New("dispatcher: future is not resolved")

	// ErrInvalidPriority is returned for priorities outside [MinValue, MaxValue].
	ErrInvalidPriority = errors.New("dispatcher: invalid priority")
)

func argumentMissing(name string) error {
	return fmt.Errorf("%w: %s", ErrArgumentMissing, name)
}

// PanicError carries a value recovered from a panicking job.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// JobError wraps a panic raised by a tracked job so callers can match it with
// errors.Is(err, ErrJobExecutionFailure). Errors returned by a job's function are
// delivered unchanged and are not wrapped.
type JobError struct {
	JobID    JobID
	Priority Priority
	Err      error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s (%s): %v", e.JobID, e.Priority, e.Err)
}

func (e *JobError) Unwrap() []error {
	return []error{ErrJobExecutionFailure, e.Err}
}
