package core

import "sync/atomic"

// Disposable releases a resource. Dispose must be safe to call more than once.
type Disposable interface {
	Dispose()
}

// Cancelable is a Disposable that can report whether it was already released.
type Cancelable interface {
	Disposable
	IsDisposed() bool
}

// anonymousDisposable runs its release func exactly once, even when Dispose races
// across goroutines: the func pointer is swapped out before it is called.
type anonymousDisposable struct {
	dispose atomic.Pointer[func()]
}

// NewDisposable wraps release in a Cancelable. It returns ErrArgumentMissing when
// release is nil.
func NewDisposable(release func()) (Cancelable, error) {
	if release == nil {
		return nil, argumentMissing("release")
	}
	return newDisposable(release), nil
}

func newDisposable(release func()) *anonymousDisposable {
	d := &anonymousDisposable{}
	d.dispose.Store(&release)
	return d
}

func (d *anonymousDisposable) Dispose() {
	if fn := d.dispose.Swap(nil); fn != nil {
		(*fn)()
	}
}

func (d *anonymousDisposable) IsDisposed() bool {
	return d.dispose.Load() == nil
}

type emptyDisposable struct{}

func (emptyDisposable) Dispose() {}

// EmptyDisposable is a Disposable that does nothing.
var EmptyDisposable Disposable = emptyDisposable{}
