package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

func newTestRunner(t *testing.T, cfg *Config) (*JobRunner, *fakePlatform) {
	t.Helper()
	platform := newFakePlatform()
	return NewJobRunner(platform, cfg), platform
}

func enqueueAction(t *testing.T, r *JobRunner, p Priority, fn func()) {
	t.Helper()
	if err := r.Enqueue(newActionJob(func(context.Context) { fn() }, p, false)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
}

// TestJobRunner_DrainOrder verifies strict priority precedence with FIFO within a level
// Given: A@Normal, B@Background, C@Send, D@Normal enqueued in that order
// When: The runner drains from MinValue
// Then: Jobs run as C, A, D, B
func TestJobRunner_DrainOrder(t *testing.T) {
	r, _ := newTestRunner(t, nil)
	var order []string

	enqueueAction(t, r, PriorityNormal, func() { order = append(order, "A") })
	enqueueAction(t, r, PriorityBackground, func() { order = append(order, "B") })
	enqueueAction(t, r, PrioritySend, func() { order = append(order, "C") })
	enqueueAction(t, r, PriorityNormal, func() { order = append(order, "D") })

	r.Drain(MinValue)

	if got := strings.Join(order, ","); got != "C,A,D,B" {
		t.Errorf("order = %s, want C,A,D,B", got)
	}
	if r.Pending() != 0 {
		t.Errorf("Pending() = %d after drain, want 0", r.Pending())
	}
}

// TestJobRunner_DrainRespectsMinimum verifies jobs below the minimum stay queued
func TestJobRunner_DrainRespectsMinimum(t *testing.T) {
	r, _ := newTestRunner(t, nil)
	var order []string

	enqueueAction(t, r, PriorityBackground, func() { order = append(order, "background") })
	enqueueAction(t, r, PriorityRender, func() { order = append(order, "render") })
	enqueueAction(t, r, PriorityInput, func() { order = append(order, "input") })

	r.Drain(PriorityInput)

	if got := strings.Join(order, ","); got != "render,input" {
		t.Errorf("order = %s, want render,input", got)
	}
	if r.PendingAt(PriorityBackground) != 1 {
		t.Errorf("PendingAt(Background) = %d, want 1", r.PendingAt(PriorityBackground))
	}
	if p, ok := r.HighestPending(); !ok || p != PriorityBackground {
		t.Errorf("HighestPending() = (%v, %v), want (background, true)", p, ok)
	}
}

// TestJobRunner_JobsEnqueuedDuringDrainRunInSameDrain verifies the scan restarts after
// every job, so a higher priority job posted by a running job goes next
func TestJobRunner_JobsEnqueuedDuringDrainRunInSameDrain(t *testing.T) {
	r, _ := newTestRunner(t, nil)
	var order []string

	enqueueAction(t, r, PriorityNormal, func() {
		order = append(order, "first")
		enqueueAction(t, r, PrioritySend, func() { order = append(order, "urgent") })
	})
	enqueueAction(t, r, PriorityNormal, func() { order = append(order, "second") })

	r.Drain(MinValue)

	if got := strings.Join(order, ","); got != "first,urgent,second" {
		t.Errorf("order = %s, want first,urgent,second", got)
	}
}

// TestJobRunner_WakeCoalescing verifies one signal per empty-to-non-empty transition
// Given: An idle runner
// When: 100 jobs are enqueued at one level from several goroutines
// Then: The platform was signaled exactly once; after a drain the next enqueue signals again
func TestJobRunner_WakeCoalescing(t *testing.T) {
	r, platform := newTestRunner(t, nil)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 25 {
				_ = r.Enqueue(newTestJob(PriorityNormal))
			}
		}()
	}
	wg.Wait()

	if got := platform.signalCount(); got != 1 {
		t.Errorf("signals = %d, want 1", got)
	}
	if r.PendingAt(PriorityNormal) != 100 {
		t.Errorf("PendingAt(Normal) = %d, want 100", r.PendingAt(PriorityNormal))
	}

	r.Drain(MinValue)
	_ = r.Enqueue(newTestJob(PriorityNormal))
	if got := platform.signalCount(); got != 2 {
		t.Errorf("signals after drain = %d, want 2", got)
	}

	// A different empty level signals on its own.
	_ = r.Enqueue(newTestJob(PriorityInput))
	if got := platform.signalCount(); got != 3 {
		t.Errorf("signals after new level = %d, want 3", got)
	}
}

func TestJobRunner_Rearm(t *testing.T) {
	r, platform := newTestRunner(t, nil)

	r.Rearm()
	if platform.signalCount() != 0 {
		t.Error("Rearm() on empty runner signaled")
	}

	_ = r.Enqueue(newTestJob(PriorityLoaded))
	r.Rearm()
	if platform.signalCount() != 2 {
		t.Errorf("signals = %d, want 2", platform.signalCount())
	}
}

func TestJobRunner_EnqueueValidation(t *testing.T) {
	r, _ := newTestRunner(t, nil)

	if err := r.Enqueue(nil); !errors.Is(err, ErrArgumentMissing) {
		t.Errorf("Enqueue(nil) error = %v, want ErrArgumentMissing", err)
	}
	if err := r.Enqueue(newTestJob(Priority(12))); !errors.Is(err, ErrInvalidPriority) {
		t.Errorf("Enqueue(invalid) error = %v, want ErrInvalidPriority", err)
	}
}

func TestJobRunner_ClearAll(t *testing.T) {
	r, _ := newTestRunner(t, nil)
	ran := false
	for _, p := range []Priority{PrioritySend, PriorityNormal, PrioritySystemIdle} {
		enqueueAction(t, r, p, func() { ran = true })
	}

	if n := r.ClearAll(); n != 3 {
		t.Errorf("ClearAll() = %d, want 3", n)
	}
	r.Drain(MinValue)
	if ran {
		t.Error("cleared job ran")
	}
}

// TestJobRunner_RecoverPolicy verifies a panicking fire-and-forget job is reported and
// the drain continues with the next job
func TestJobRunner_RecoverPolicy(t *testing.T) {
	handler := &recordingPanicHandler{}
	r, _ := newTestRunner(t, &Config{PanicHandler: handler})
	var after bool

	enqueueAction(t, r, PrioritySend, func() { panic("kaboom") })
	enqueueAction(t, r, PriorityNormal, func() { after = true })

	r.Drain(MinValue)

	if handler.count() != 1 || handler.values[0] != "kaboom" {
		t.Errorf("panic handler values = %v, want [kaboom]", handler.values)
	}
	if !after {
		t.Error("drain stopped after panic")
	}
	if r.panicked.Load() != 1 || r.executed.Load() != 2 {
		t.Errorf("panicked=%d executed=%d, want 1 and 2", r.panicked.Load(), r.executed.Load())
	}

	last, ok := r.history.Last()
	if !ok || last.Panicked {
		t.Errorf("last record = %+v, want the non-panicking job", last)
	}
	if recent := r.history.Recent(0); len(recent) != 2 || !recent[1].Panicked {
		t.Errorf("history = %+v, want the panicking job second", recent)
	}
}

// TestJobRunner_PropagatePolicy verifies the panic escapes Drain after being reported
func TestJobRunner_PropagatePolicy(t *testing.T) {
	handler := &recordingPanicHandler{}
	r, _ := newTestRunner(t, &Config{PanicHandler: handler, PanicPolicy: PanicPolicyPropagate})
	var after bool

	enqueueAction(t, r, PrioritySend, func() { panic("kaboom") })
	enqueueAction(t, r, PriorityNormal, func() { after = true })

	func() {
		defer func() {
			if rec := recover(); rec != "kaboom" {
				t.Errorf("recovered %v, want kaboom", rec)
			}
		}()
		r.Drain(MinValue)
	}()

	if handler.count() != 1 {
		t.Errorf("panic handler calls = %d, want 1", handler.count())
	}
	if after {
		t.Error("drain continued after propagated panic")
	}

	// The remaining job is still queued for the next drain.
	r.Drain(MinValue)
	if !after {
		t.Error("remaining job did not run on the next drain")
	}
}

// TestJobRunner_TrackedJobNeverPanicsDrain verifies tracked failures stay in the future
func TestJobRunner_TrackedJobNeverPanicsDrain(t *testing.T) {
	handler := &recordingPanicHandler{}
	r, _ := newTestRunner(t, &Config{PanicHandler: handler, PanicPolicy: PanicPolicyPropagate})

	job := newFuncJob(func(context.Context) (int, error) { panic("inside") }, PriorityNormal)
	if err := r.Enqueue(job); err != nil {
		t.Fatal(err)
	}
	r.Drain(MinValue)

	var jobErr *JobError
	if !errors.As(job.future.Err(), &jobErr) {
		t.Fatalf("future error = %v, want *JobError", job.future.Err())
	}
	if handler.count() != 0 {
		t.Error("tracked panic reached the panic handler")
	}
}
