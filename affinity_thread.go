package dispatcher

import (
	"context"
	"errors"
	"sync"

	"github.com/Swind/go-dispatcher/core"
	"github.com/Swind/go-dispatcher/platform/goloop"
)

// AffinityThread owns a goroutine running a platform loop and the dispatcher bound to it.
type AffinityThread struct {
	loop       *goloop.Loop
	dispatcher *core.Dispatcher
	result     <-chan error
	cancel     context.CancelFunc

	stopOnce sync.Once
	err      error
}

// StartAffinityThread starts a loop on a new goroutine and binds a dispatcher to it.
// The thread runs until ctx is cancelled or Stop is called.
func StartAffinityThread(ctx context.Context, cfg *core.Config) (*AffinityThread, error) {
	loopCtx, cancel := context.WithCancel(ctx)
	loop, result := goloop.Start(loopCtx, goloop.WithLogger(loggerOf(cfg)))

	d, err := core.NewDispatcher(loop, cfg)
	if err != nil {
		cancel()
		loop.Dispose()
		<-result
		return nil, err
	}

	return &AffinityThread{
		loop:       loop,
		dispatcher: d,
		result:     result,
		cancel:     cancel,
	}, nil
}

// Dispatcher returns the dispatcher bound to the thread's loop.
func (t *AffinityThread) Dispatcher() *core.Dispatcher {
	return t.dispatcher
}

// Loop returns the thread's platform loop.
func (t *AffinityThread) Loop() *goloop.Loop {
	return t.loop
}

// IsRunning reports whether the loop is still pumping.
func (t *AffinityThread) IsRunning() bool {
	select {
	case <-t.loop.Done():
		return false
	default:
		return !t.dispatcher.IsDisposed()
	}
}

// Stop disposes the dispatcher, stops the loop and waits for the goroutine to exit.
// Repeated calls return the first result.
func (t *AffinityThread) Stop() error {
	t.stopOnce.Do(func() {
		t.dispatcher.Dispose()
		t.cancel()
		err := <-t.result
		if err != nil && !errors.Is(err, context.Canceled) {
			t.err = err
		}
	})
	return t.err
}

// Run makes the calling goroutine an affinity goroutine: it binds a loop and a
// dispatcher to it, posts main at PriorityNormal and pumps the loop until ctx is
// cancelled or the dispatcher is disposed. The dispatcher is disposed before Run
// returns. Run returns ctx.Err() on cancellation and nil after a dispose.
func Run(ctx context.Context, cfg *core.Config, main func(d *core.Dispatcher)) error {
	loop := goloop.New(goloop.WithLogger(loggerOf(cfg)))
	d, err := core.NewDispatcher(loop, cfg)
	if err != nil {
		loop.Dispose()
		return err
	}
	defer d.Dispose()

	if main != nil {
		if err := d.Post(func(context.Context) { main(d) }, core.PriorityNormal); err != nil {
			return err
		}
	}

	return loop.RunLoop(ctx)
}

func loggerOf(cfg *core.Config) core.Logger {
	if cfg == nil || cfg.Logger == nil {
		return core.NewNoOpLogger()
	}
	return cfg.Logger
}
