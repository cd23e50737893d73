// Package timer schedules recurring work onto a dispatcher's affinity goroutine.
//
// Timer fires at a fixed interval using the platform loop's native timer. CronTimer
// follows a cron expression and re-arms itself through Dispatcher.PostDelayed after
// every run. In both cases the callback is a regular job at the chosen priority.
package timer

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Swind/go-dispatcher/core"
)

// Timer posts a job at a fixed interval until stopped.
type Timer struct {
	handle core.Disposable
	ticks  atomic.Int64
}

// New starts an interval timer on d. onTick runs on the affinity goroutine at priority.
func New(d *core.Dispatcher, priority core.Priority, interval time.Duration, onTick core.Action) (*Timer, error) {
	if onTick == nil {
		return nil, core.ErrArgumentMissing
	}

	t := &Timer{}
	handle, err := d.StartTimer(priority, interval, func(ctx context.Context) {
		t.ticks.Add(1)
		onTick(ctx)
	})
	if err != nil {
		return nil, err
	}
	t.handle = handle
	return t, nil
}

// Stop cancels the timer. Ticks already queued on the dispatcher still run.
func (t *Timer) Stop() {
	t.handle.Dispose()
}

// Ticks returns how many ticks have run.
func (t *Timer) Ticks() int64 {
	return t.ticks.Load()
}
