// Package goloop is a PlatformEventLoop backed by a goroutine instead of an OS message
// queue. The loop is bound to one goroutine; messages posted from other goroutines are
// queued and processed there by RunLoop or DoEvents.
package goloop

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Swind/go-dispatcher/core"
	"github.com/Swind/go-dispatcher/internal/goid"
)

var (
	// ErrLoopDisposed is returned by operations on a disposed loop.
	ErrLoopDisposed = errors.New("goloop: loop disposed")

	// ErrWrongGoroutine is returned when RunLoop is called off the bound goroutine.
	ErrWrongGoroutine = errors.New("goloop: RunLoop called off the loop goroutine")
)

type messageKind int

const (
	messageWake messageKind = iota
	messageTick
	messageNative
)

type message struct {
	kind     messageKind
	priority core.Priority
	fn       func()
}

// Loop is a message loop bound to a single goroutine.
type Loop struct {
	owner atomic.Uint64

	mu          sync.Mutex
	messages    []message
	wakePending bool
	handler     core.SignalHandler
	timers      map[uint64]*loopTimer
	nextTimerID uint64

	notify   chan struct{}
	done     chan struct{}
	disposed atomic.Bool

	processed atomic.Int64
	logger    core.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the loop's logger.
func WithLogger(logger core.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a loop bound to the calling goroutine.
func New(opts ...Option) *Loop {
	l := &Loop{
		timers: make(map[uint64]*loopTimer),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: core.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.owner.Store(goid.Current())
	return l
}

// Start creates a loop on a new goroutine and runs it until ctx is cancelled or the
// loop is disposed. The returned channel receives RunLoop's result.
func Start(ctx context.Context, opts ...Option) (*Loop, <-chan error) {
	ready := make(chan *Loop)
	result := make(chan error, 1)
	go func() {
		l := New(opts...)
		ready <- l
		result <- l.RunLoop(ctx)
	}()
	return <-ready, result
}

// RunLoop pumps messages on the bound goroutine, which it locks to its OS thread,
// until ctx is cancelled or the loop is disposed.
func (l *Loop) RunLoop(ctx context.Context) error {
	if !l.CurrentThreadIsLoopThread() {
		return ErrWrongGoroutine
	}
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	l.logger.Debug("loop running", core.F("goroutine", l.owner.Load()))
	for {
		l.DoEvents()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case <-l.notify:
		}
	}
}

// Signal queues a wake message. While one is pending, further signals are folded into
// it, keeping the highest priority.
func (l *Loop) Signal(priority core.Priority) {
	if l.disposed.Load() {
		return
	}

	l.mu.Lock()
	if l.wakePending {
		for i := range l.messages {
			if l.messages[i].kind == messageWake && l.messages[i].priority < priority {
				l.messages[i].priority = priority
			}
		}
		l.mu.Unlock()
		return
	}
	l.wakePending = true
	l.messages = append(l.messages, message{kind: messageWake, priority: priority})
	l.mu.Unlock()

	l.wakeup()
}

// PostMessage queues fn as a native event, processed in order with wake and timer
// messages.
func (l *Loop) PostMessage(fn func()) error {
	if fn == nil {
		return core.ErrArgumentMissing
	}
	return l.post(message{kind: messageNative, fn: fn})
}

func (l *Loop) post(m message) error {
	if l.disposed.Load() {
		return ErrLoopDisposed
	}
	l.mu.Lock()
	l.messages = append(l.messages, m)
	l.mu.Unlock()
	l.wakeup()
	return nil
}

func (l *Loop) wakeup() {
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

// DoEvents processes the messages queued at call time and returns without waiting
// for more. Messages are taken one at a time, so a handler may call DoEvents again.
// Calls off the loop goroutine do nothing.
func (l *Loop) DoEvents() {
	if !l.CurrentThreadIsLoopThread() {
		return
	}

	l.mu.Lock()
	budget := len(l.messages)
	l.mu.Unlock()

	for range budget {
		m, ok := l.pop()
		if !ok {
			return
		}
		l.dispatch(m)
	}
}

func (l *Loop) pop() (message, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.messages) == 0 {
		return message{}, false
	}
	m := l.messages[0]
	l.messages[0] = message{}
	l.messages = l.messages[1:]
	if len(l.messages) == 0 {
		l.messages = nil
	}

	var handler core.SignalHandler
	if m.kind == messageWake {
		l.wakePending = false
		handler = l.handler
		if handler == nil {
			return message{}, true
		}
		p := m.priority
		m.fn = func() { handler(&p) }
	}
	return m, true
}

func (l *Loop) dispatch(m message) {
	if m.fn == nil {
		return
	}
	l.processed.Add(1)
	m.fn()
}

// InvokeRequired reports whether the caller is off the loop goroutine.
func (l *Loop) InvokeRequired() bool {
	return !l.CurrentThreadIsLoopThread()
}

// CurrentThreadIsLoopThread reports whether the caller is the bound goroutine.
func (l *Loop) CurrentThreadIsLoopThread() bool {
	return goid.Current() == l.owner.Load()
}

// OnSignaled installs the wake handler. Only one handler may be installed at a time.
func (l *Loop) OnSignaled(handler core.SignalHandler) (core.Disposable, error) {
	if handler == nil {
		return nil, core.ErrArgumentMissing
	}
	if l.disposed.Load() {
		return nil, ErrLoopDisposed
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handler != nil {
		return nil, core.ErrLoopBound
	}
	l.handler = handler

	return core.NewDisposable(func() {
		l.mu.Lock()
		l.handler = nil
		l.mu.Unlock()
	})
}

// Pending returns the number of queued messages.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}

// Processed returns the number of messages dispatched so far.
func (l *Loop) Processed() int64 {
	return l.processed.Load()
}

// Done returns a channel closed when the loop is disposed.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Dispose stops every timer, drops queued messages and makes RunLoop return. It is
// safe to call from any goroutine, more than once.
func (l *Loop) Dispose() {
	if !l.disposed.CompareAndSwap(false, true) {
		return
	}

	l.mu.Lock()
	timers := make([]*loopTimer, 0, len(l.timers))
	for _, t := range l.timers {
		timers = append(timers, t)
	}
	dropped := len(l.messages)
	l.messages = nil
	l.wakePending = false
	l.handler = nil
	l.mu.Unlock()

	for _, t := range timers {
		t.stop()
	}
	close(l.done)

	l.logger.Debug("loop disposed",
		core.F("dropped_messages", dropped),
		core.F("timers", len(timers)),
	)
}

var _ core.PlatformEventLoop = (*Loop)(nil)

// =============================================================================
// Timers
// =============================================================================

type loopTimer struct {
	id       uint64
	loop     *Loop
	priority core.Priority
	onTick   func()
	pending  atomic.Bool
	quit     chan struct{}
	exited   chan struct{}
	once     sync.Once
}

// StartTimer posts a tick message every interval. A tick is skipped while the
// previous one is still queued.
func (l *Loop) StartTimer(priority core.Priority, interval time.Duration, onTick func()) (core.Disposable, error) {
	if onTick == nil {
		return nil, core.ErrArgumentMissing
	}
	if interval <= 0 {
		return nil, errors.New("goloop: timer interval must be positive")
	}

	l.mu.Lock()
	if l.disposed.Load() {
		l.mu.Unlock()
		return nil, ErrLoopDisposed
	}
	l.nextTimerID++
	t := &loopTimer{
		id:       l.nextTimerID,
		loop:     l,
		priority: priority,
		onTick:   onTick,
		quit:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
	l.timers[t.id] = t
	l.mu.Unlock()

	go t.run(interval)

	return core.NewDisposable(func() {
		l.mu.Lock()
		delete(l.timers, t.id)
		l.mu.Unlock()
		t.stop()
	})
}

func (t *loopTimer) run(interval time.Duration) {
	defer close(t.exited)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.quit:
			return
		case <-ticker.C:
			if !t.pending.CompareAndSwap(false, true) {
				continue
			}
			err := t.loop.post(message{
				kind:     messageTick,
				priority: t.priority,
				fn:       t.tick,
			})
			if err != nil {
				return
			}
		}
	}
}

func (t *loopTimer) tick() {
	t.pending.Store(false)
	select {
	case <-t.quit:
		return
	default:
	}
	t.onTick()
}

func (t *loopTimer) stop() {
	t.once.Do(func() {
		close(t.quit)
		<-t.exited
	})
}
