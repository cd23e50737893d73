package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFuture_ResolvesOnce(t *testing.T) {
	f := newFuture[int]()

	if _, err := f.Result(); !errors.Is(err, ErrFuturePending) {
		t.Fatalf("Result() before completion error = %v, want ErrFuturePending", err)
	}

	f.complete(1, nil)
	f.complete(2, errors.New("late"))

	got, err := f.Result()
	if err != nil || got != 1 {
		t.Errorf("Result() = (%d, %v), want (1, nil)", got, err)
	}
	if !f.IsCompleted() {
		t.Error("IsCompleted() = false")
	}
}

func TestFuture_GetHonoursContext(t *testing.T) {
	f := newFuture[string]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := f.Get(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Get() error = %v, want DeadlineExceeded", err)
	}

	f.complete("done", nil)
	got, err := f.Get(context.Background())
	if err != nil || got != "done" {
		t.Errorf("Get() = (%q, %v)", got, err)
	}
}

// TestChainFuture verifies chaining forwards the source outcome and stops cleanly
func TestChainFuture(t *testing.T) {
	stop := make(chan struct{})
	src := newFuture[int]()
	dst := newFuture[int]()
	chainFuture(dst, src, stop)

	boom := errors.New("boom")
	src.complete(0, boom)
	<-dst.Done()
	if !errors.Is(dst.Err(), boom) {
		t.Errorf("chained error = %v, want %v", dst.Err(), boom)
	}

	// An unresolved source is abandoned once stop closes.
	orphan := newFuture[int]()
	abandoned := newFuture[int]()
	chainFuture(abandoned, orphan, stop)
	close(stop)
	time.Sleep(5 * time.Millisecond)
	if abandoned.IsCompleted() {
		t.Error("abandoned future resolved")
	}
}
