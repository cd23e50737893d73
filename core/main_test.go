package core

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/Swind/go-dispatcher/internal/goid"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakePlatform is a PlatformEventLoop bound to the goroutine that created it. Signals
// are recorded and coalesced into one pending wake, delivered by DoEvents.
type fakePlatform struct {
	owner uint64

	mu          sync.Mutex
	handler     SignalHandler
	signals     []Priority
	wakePending bool
	wakeAt      Priority
	timers      []func()

	doEvents atomic.Int32
	disposed atomic.Bool
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{owner: goid.Current()}
}

func (p *fakePlatform) RunLoop(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (p *fakePlatform) StartTimer(priority Priority, interval time.Duration, onTick func()) (Disposable, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timers = append(p.timers, onTick)
	idx := len(p.timers) - 1
	return newDisposable(func() {
		p.mu.Lock()
		p.timers[idx] = nil
		p.mu.Unlock()
	}), nil
}

// fireTimers calls every live timer callback once.
func (p *fakePlatform) fireTimers() {
	p.mu.Lock()
	timers := append([]func(){}, p.timers...)
	p.mu.Unlock()
	for _, fn := range timers {
		if fn != nil {
			fn()
		}
	}
}

func (p *fakePlatform) Signal(priority Priority) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signals = append(p.signals, priority)
	if !p.wakePending || priority > p.wakeAt {
		p.wakeAt = priority
	}
	p.wakePending = true
}

func (p *fakePlatform) DoEvents() {
	if !p.CurrentThreadIsLoopThread() {
		return
	}
	p.doEvents.Add(1)

	p.mu.Lock()
	wake, at, handler := p.wakePending, p.wakeAt, p.handler
	p.wakePending = false
	p.mu.Unlock()

	if wake && handler != nil {
		handler(&at)
	}
}

func (p *fakePlatform) InvokeRequired() bool {
	return !p.CurrentThreadIsLoopThread()
}

func (p *fakePlatform) CurrentThreadIsLoopThread() bool {
	return goid.Current() == p.owner
}

func (p *fakePlatform) OnSignaled(handler SignalHandler) (Disposable, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handler != nil {
		return nil, ErrLoopBound
	}
	p.handler = handler
	return newDisposable(func() {
		p.mu.Lock()
		p.handler = nil
		p.mu.Unlock()
	}), nil
}

func (p *fakePlatform) Dispose() {
	p.disposed.Store(true)
}

func (p *fakePlatform) signalCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.signals)
}

// newTestDispatcher binds a dispatcher to a fake platform owned by the test goroutine.
func newTestDispatcher(t *testing.T, cfg *Config) (*Dispatcher, *fakePlatform) {
	t.Helper()
	platform := newFakePlatform()
	d, err := NewDispatcher(platform, cfg)
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	t.Cleanup(d.Dispose)
	return d, platform
}

// recordingPanicHandler collects fire-and-forget panics.
type recordingPanicHandler struct {
	mu     sync.Mutex
	values []any
	jobs   []string
}

func (h *recordingPanicHandler) HandlePanic(ctx context.Context, dispatcherName string, job Job, panicInfo any, stackTrace []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.values = append(h.values, panicInfo)
	h.jobs = append(h.jobs, job.Name())
}

func (h *recordingPanicHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.values)
}

// recordingRejectedHandler collects rejections by reason.
type recordingRejectedHandler struct {
	mu      sync.Mutex
	reasons map[string]int
}

func (h *recordingRejectedHandler) HandleRejectedJob(dispatcherName string, reason string, count int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.reasons == nil {
		h.reasons = make(map[string]int)
	}
	h.reasons[reason] += count
}

func (h *recordingRejectedHandler) get(reason string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reasons[reason]
}
