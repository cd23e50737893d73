package dispatcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestAffinityThread_StartStop(t *testing.T) {
	thread, err := StartAffinityThread(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, thread.IsRunning())

	d := thread.Dispatcher()
	assert.False(t, d.CheckAccess())
	assert.ErrorIs(t, d.VerifyAccess(), ErrInvalidThreadAccess)

	ran := make(chan bool, 1)
	require.NoError(t, d.Post(func(ctx context.Context) {
		ran <- FromContext(ctx) == d && thread.Loop().CurrentThreadIsLoopThread()
	}, PriorityInput))

	select {
	case ok := <-ran:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("job did not run on the affinity goroutine")
	}

	require.NoError(t, thread.Stop())
	require.NoError(t, thread.Stop())
	assert.False(t, thread.IsRunning())
	assert.Equal(t, StateFinallyDisposed, d.State())
}

func TestAffinityThread_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	thread, err := StartAffinityThread(ctx, nil)
	require.NoError(t, err)

	cancel()
	require.NoError(t, thread.Stop())
}

// TestRun_DisposeFromJobReturns verifies Run returns nil once a job disposes the dispatcher
func TestRun_DisposeFromJobReturns(t *testing.T) {
	var order []Priority
	err := Run(context.Background(), nil, func(d *Dispatcher) {
		for _, p := range []Priority{PriorityLoaded, PrioritySend, PriorityBackground} {
			_ = d.Post(func(ctx context.Context) {
				p, _ := PriorityFromContext(ctx)
				order = append(order, p)
			}, p)
		}
		_ = d.Post(func(context.Context) { d.Dispose() }, PrioritySystemIdle)
	})

	require.NoError(t, err)
	assert.Equal(t, []Priority{PrioritySend, PriorityLoaded, PriorityBackground}, order)
}

func TestRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var disposed <-chan struct{}
	err := Run(ctx, nil, func(d *Dispatcher) { disposed = d.Disposed() })

	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	select {
	case <-disposed:
	default:
		t.Fatal("dispatcher not disposed after Run returned")
	}
}

// TestRun_InvokeFromOtherGoroutine verifies blocking invokes from outside wait without pumping
func TestRun_InvokeFromOtherGoroutine(t *testing.T) {
	results := make(chan string, 1)
	err := Run(context.Background(), nil, func(d *Dispatcher) {
		go func() {
			s, err := InvokeFunc(d, func(ctx context.Context) (string, error) {
				return "from loop", nil
			})
			if err != nil {
				s = err.Error()
			}
			results <- s
			d.Dispose()
		}()
	})

	require.NoError(t, err)
	assert.Equal(t, "from loop", <-results)
}
