package core

import (
	"context"
	"time"
)

// SignalHandler receives wake notifications from a platform loop. priority is nil
// when the loop woke without a specific level (the reference loops always pass one).
type SignalHandler func(priority *Priority)

// PlatformEventLoop is the OS or toolkit binding a Dispatcher runs on. The core only
// needs these operations; window creation, message translation and timers are the
// implementation's business. See platform/goloop for a goroutine-based loop.
type PlatformEventLoop interface {
	Disposable

	// RunLoop blocks on the loop goroutine, pumping events until ctx is cancelled
	// or the loop is disposed.
	RunLoop(ctx context.Context) error

	// StartTimer calls onTick on the loop goroutine roughly every interval until
	// the returned Disposable is disposed.
	StartTimer(priority Priority, interval time.Duration, onTick func()) (Disposable, error)

	// Signal wakes the loop as soon as possible so pending work at priority is noticed.
	// It may be called from any goroutine.
	Signal(priority Priority)

	// DoEvents processes the events pending at call time without blocking.
	DoEvents()

	// InvokeRequired reports whether the caller must marshal onto the loop goroutine.
	InvokeRequired() bool

	// CurrentThreadIsLoopThread reports whether the caller is the loop goroutine.
	CurrentThreadIsLoopThread() bool

	// OnSignaled installs the handler raised when the loop wakes. A loop accepts a
	// single handler; a second subscription fails with ErrLoopBound until the first
	// one is disposed.
	OnSignaled(handler SignalHandler) (Disposable, error)
}
