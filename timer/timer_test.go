package timer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/Swind/go-dispatcher/core"
	"github.com/Swind/go-dispatcher/platform/goloop"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// startDispatcher runs a goloop on its own goroutine and binds a dispatcher to it.
func startDispatcher(t *testing.T) (*core.Dispatcher, *goloop.Loop) {
	t.Helper()
	loop, result := goloop.Start(context.Background())
	d, err := core.NewDispatcher(loop, &core.Config{Name: t.Name()})
	if err != nil {
		loop.Dispose()
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	t.Cleanup(func() {
		d.Dispose()
		<-result
	})
	return d, loop
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before timeout")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// TestTimer_TicksOnAffinityGoroutine verifies ticks run as jobs on the loop goroutine
// Given: A dispatcher on a running goloop
// When: A 5ms interval timer runs for a few ticks and is stopped
// Then: Every tick ran with access, at the timer's priority, and ticks stop afterwards
func TestTimer_TicksOnAffinityGoroutine(t *testing.T) {
	d, _ := startDispatcher(t)

	var offLoop atomic.Bool
	var wrongPriority atomic.Bool
	tm, err := New(d, core.PriorityRender, 5*time.Millisecond, func(ctx context.Context) {
		if !d.CheckAccess() {
			offLoop.Store(true)
		}
		if p, _ := core.PriorityFromContext(ctx); p != core.PriorityRender {
			wrongPriority.Store(true)
		}
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	waitFor(t, time.Second, func() bool { return tm.Ticks() >= 3 })
	tm.Stop()

	if offLoop.Load() {
		t.Error("tick ran off the affinity goroutine")
	}
	if wrongPriority.Load() {
		t.Error("tick ran at the wrong priority")
	}

	stoppedAt := tm.Ticks()
	time.Sleep(30 * time.Millisecond)
	if tm.Ticks() > stoppedAt+1 {
		t.Errorf("ticks kept running after Stop: %d -> %d", stoppedAt, tm.Ticks())
	}
}

func TestTimer_Errors(t *testing.T) {
	d, _ := startDispatcher(t)

	if _, err := New(d, core.PriorityNormal, time.Second, nil); !errors.Is(err, core.ErrArgumentMissing) {
		t.Errorf("New(nil) error = %v", err)
	}
	if _, err := New(d, core.PriorityInvalid, time.Second, func(context.Context) {}); !errors.Is(err, core.ErrInvalidPriority) {
		t.Errorf("New(invalid priority) error = %v", err)
	}

	d.Dispose()
	if _, err := New(d, core.PriorityNormal, time.Second, func(context.Context) {}); !errors.Is(err, core.ErrDispatcherDisposed) {
		t.Errorf("New() after dispose error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := []string{"*/5 * * * *", "*/30 * * * * *", "@hourly", "@every 2s", "0 9 * * 1-5"}
	for _, expr := range valid {
		if err := Validate(expr); err != nil {
			t.Errorf("Validate(%q) = %v", expr, err)
		}
	}

	invalid := []string{"", "not a cron", "61 * * * *", "* * * * * * *"}
	for _, expr := range invalid {
		if err := Validate(expr); err == nil {
			t.Errorf("Validate(%q) = nil, want error", expr)
		}
	}
}

// TestCronTimer_RunsAndStopsAfterMaxRuns verifies a cron job runs on the dispatcher and
// honours MaxRuns
func TestCronTimer_RunsAndStopsAfterMaxRuns(t *testing.T) {
	d, _ := startDispatcher(t)

	var runs atomic.Int32
	var offLoop atomic.Bool
	c, err := NewCron(d, "* * * * * *", core.PriorityBackground, func(context.Context) {
		if !d.CheckAccess() {
			offLoop.Store(true)
		}
		runs.Add(1)
	}, CronOptions{MaxRuns: 1})
	if err != nil {
		t.Fatalf("NewCron() error = %v", err)
	}

	next, err := c.Next()
	if err != nil || next.IsZero() || next.After(time.Now().Add(time.Second+10*time.Millisecond)) {
		t.Errorf("Next() = (%v, %v)", next, err)
	}

	waitFor(t, 3*time.Second, func() bool { return runs.Load() == 1 })
	if offLoop.Load() {
		t.Error("cron job ran off the affinity goroutine")
	}
	if _, err := c.Next(); !errors.Is(err, ErrCronStopped) {
		t.Errorf("Next() after MaxRuns error = %v, want ErrCronStopped", err)
	}
	if c.Runs() != 1 {
		t.Errorf("Runs() = %d, want 1", c.Runs())
	}
}

func TestCronTimer_Stop(t *testing.T) {
	d, _ := startDispatcher(t)

	var runs atomic.Int32
	c, err := NewCron(d, "@hourly", core.PriorityNormal, func(context.Context) { runs.Add(1) }, CronOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if c.Expression() != "@hourly" {
		t.Errorf("Expression() = %q", c.Expression())
	}
	if d.Stats().Delayed != 1 {
		t.Errorf("Delayed = %d, want 1", d.Stats().Delayed)
	}

	c.Stop()
	if _, err := c.Next(); !errors.Is(err, ErrCronStopped) {
		t.Errorf("Next() after Stop error = %v", err)
	}
}

func TestNewCron_Errors(t *testing.T) {
	d, _ := startDispatcher(t)

	if _, err := NewCron(d, "bogus", core.PriorityNormal, func(context.Context) {}, CronOptions{}); err == nil {
		t.Error("NewCron(bogus) succeeded")
	}
	if _, err := NewCron(d, "@hourly", core.PriorityNormal, nil, CronOptions{}); !errors.Is(err, core.ErrArgumentMissing) {
		t.Errorf("NewCron(nil action) error = %v", err)
	}
}
