package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// State is the lifecycle state of a Dispatcher. It only moves forward.
type State int32

const (
	StateActive State = iota
	StateDisposing
	StateFinallyDisposed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateDisposing:
		return "disposing"
	case StateFinallyDisposed:
		return "finally_disposed"
	default:
		return "unknown"
	}
}

// Dispatcher schedules jobs onto the affinity goroutine of its platform loop.
//
// Any goroutine may Post or InvokeAsync. Blocking waits (Invoke, Await, Wait) pump the
// platform loop when called on the affinity goroutine, so jobs and native events keep
// running while the caller waits.
//
// A Dispatcher is created explicitly with NewDispatcher; there is no process-wide
// instance. Use FromContext inside a job to reach the dispatcher that runs it.
type Dispatcher struct {
	runner       *JobRunner
	platform     PlatformEventLoop
	subscription Disposable
	delays       *DelayManager

	name        string
	logger      Logger
	rejected    RejectedJobHandler
	metrics     Metrics
	pumpBackoff PumpBackoff

	state      atomic.Int32
	disposedCh chan struct{}
	disposeMu  sync.Mutex

	// ctx is cancelled by Dispose; every job context derives from it.
	ctx    context.Context
	cancel context.CancelFunc

	rejectedCount atomic.Int64
}

// NewDispatcher binds a dispatcher to platform. platform may be nil, in which case
// every goroutine has access and queued jobs only run through RunJobs, DoEvents or a
// blocking wait. A loop serves one dispatcher: binding a second one fails with
// ErrLoopBound.
func NewDispatcher(platform PlatformEventLoop, cfg *Config) (*Dispatcher, error) {
	c := cfg.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		runner:      NewJobRunner(platform, &c),
		platform:    platform,
		name:        c.Name,
		logger:      c.Logger,
		rejected:    c.RejectedJobHandler,
		metrics:     c.Metrics,
		pumpBackoff: c.PumpBackoff,
		disposedCh:  make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
	d.runner.ctx = context.WithValue(ctx, dispatcherKey, d)

	if platform != nil {
		sub, err := platform.OnSignaled(d.runner.handleSignal)
		if err != nil {
			cancel()
			return nil, err
		}
		d.subscription = sub
	} else {
		d.subscription = EmptyDisposable
	}

	d.delays = NewDelayManager(d.logger)

	d.logger.Info("dispatcher created",
		F("dispatcher", d.name),
		F("platform", platform != nil),
		F("panic_policy", c.PanicPolicy.String()),
	)
	return d, nil
}

// Name returns the name used in logs and metrics.
func (d *Dispatcher) Name() string {
	return d.name
}

// CheckAccess reports whether the caller runs on the affinity goroutine. Without a
// platform every caller has access.
func (d *Dispatcher) CheckAccess() bool {
	if d.platform == nil {
		return true
	}
	return d.platform.CurrentThreadIsLoopThread()
}

// VerifyAccess returns ErrInvalidThreadAccess when called off the affinity goroutine.
func (d *Dispatcher) VerifyAccess() error {
	if !d.CheckAccess() {
		return ErrInvalidThreadAccess
	}
	return nil
}

// Enqueue schedules a prepared job. It is the entry point shared by every posting
// operation and by the delay manager.
func (d *Dispatcher) Enqueue(job Job) error {
	if job == nil {
		return argumentMissing("job")
	}
	if d.IsDisposed() {
		d.reportRejected("disposed", 1)
		return ErrDispatcherDisposed
	}
	return d.runner.Enqueue(job)
}

// Post schedules action as a fire-and-forget job at priority.
func (d *Dispatcher) Post(action Action, priority Priority) error {
	if action == nil {
		return argumentMissing("action")
	}
	return d.Enqueue(newActionJob(action, priority, false))
}

// PostDelayed posts action at priority once delay has elapsed. The job is dropped if
// the dispatcher is disposed before it is due.
func (d *Dispatcher) PostDelayed(action Action, delay time.Duration, priority Priority) error {
	if action == nil {
		return argumentMissing("action")
	}
	if !priority.Valid() {
		return ErrInvalidPriority
	}
	if d.IsDisposed() {
		d.reportRejected("disposed", 1)
		return ErrDispatcherDisposed
	}
	if delay <= 0 {
		return d.Post(action, priority)
	}
	d.delays.AddDelayedJob(newActionJob(action, priority, false), delay, d)
	return nil
}

// RunJobs drains every queued job on the calling goroutine.
func (d *Dispatcher) RunJobs() {
	d.runner.Drain(MinValue)
}

// RunJobsFrom drains queued jobs whose priority is at least minimum.
func (d *Dispatcher) RunJobsFrom(minimum Priority) {
	d.runner.Drain(minimum)
}

// EnsurePriority runs every pending job with a priority strictly above current. For
// platforms without their own priority system this keeps a long-running job at
// current from starving more urgent work.
func (d *Dispatcher) EnsurePriority(current Priority) {
	if current >= MaxValue {
		return
	}
	d.runner.Drain(current + 1)
}

// EnsureCurrentPriority is EnsurePriority for the job that received ctx. Outside a
// job it does nothing.
func (d *Dispatcher) EnsureCurrentPriority(ctx context.Context) {
	if p, ok := PriorityFromContext(ctx); ok {
		d.EnsurePriority(p)
	}
}

// DoEvents pumps the platform loop once, or drains the queues when there is none.
func (d *Dispatcher) DoEvents() {
	if d.platform == nil {
		d.runner.Drain(MinValue)
		return
	}
	d.platform.DoEvents()
}

// StartTimer asks the platform to call onTick every interval. Each tick is posted as a
// job at priority, so ticks obey the same ordering as other work.
func (d *Dispatcher) StartTimer(priority Priority, interval time.Duration, onTick Action) (Disposable, error) {
	if onTick == nil {
		return nil, argumentMissing("onTick")
	}
	if !priority.Valid() {
		return nil, ErrInvalidPriority
	}
	if d.platform == nil {
		return nil, ErrNoPlatform
	}
	if d.IsDisposed() {
		return nil, ErrDispatcherDisposed
	}
	return d.platform.StartTimer(priority, interval, func() {
		_ = d.Post(onTick, priority)
	})
}

// Wait blocks for duration. On the affinity goroutine it keeps pumping.
func (d *Dispatcher) Wait(duration time.Duration) error {
	return AwaitDone(d, d.WaitAsync(duration))
}

// WaitAsync returns a future that resolves after duration. It fails with
// ErrDispatcherDisposed when the dispatcher is disposed first.
func (d *Dispatcher) WaitAsync(duration time.Duration) *Future[struct{}] {
	f := newFuture[struct{}]()
	if d.IsDisposed() {
		f.complete(struct{}{}, ErrDispatcherDisposed)
		return f
	}
	t := time.NewTimer(duration)
	go func() {
		select {
		case <-t.C:
			f.complete(struct{}{}, nil)
		case <-d.disposedCh:
			t.Stop()
			f.complete(struct{}{}, ErrDispatcherDisposed)
		}
	}()
	return f
}

// Dispose shuts the dispatcher down. It is idempotent and may be called from any
// goroutine, including from inside a job. Pending jobs are dropped and their futures
// stay unresolved; blocking waits return ErrShutdownWhileWaiting.
func (d *Dispatcher) Dispose() {
	if !d.state.CompareAndSwap(int32(StateActive), int32(StateDisposing)) {
		return
	}

	d.disposeMu.Lock()
	defer d.disposeMu.Unlock()

	d.subscription.Dispose()
	d.delays.Stop()
	if d.platform != nil {
		d.platform.Dispose()
	}

	if dropped := d.runner.ClearAll(); dropped > 0 {
		d.logger.Warn("pending jobs cleared on dispose",
			F("dispatcher", d.name),
			F("count", dropped),
		)
		d.reportRejected("cleared", dropped)
	}

	d.state.Store(int32(StateFinallyDisposed))
	close(d.disposedCh)
	d.cancel()

	d.logger.Info("dispatcher disposed", F("dispatcher", d.name))
}

// State returns the current lifecycle state.
func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

// IsDisposed reports whether Dispose has been called.
func (d *Dispatcher) IsDisposed() bool {
	return d.State() != StateActive
}

// Disposed returns a channel closed once disposal has finished.
func (d *Dispatcher) Disposed() <-chan struct{} {
	return d.disposedCh
}

// Stats returns a snapshot of the dispatcher's queues and counters.
func (d *Dispatcher) Stats() DispatcherStats {
	stats := DispatcherStats{
		Name:        d.name,
		State:       d.State(),
		Pending:     d.runner.Pending(),
		PendingAt:   make(map[Priority]int, priorityLevels),
		Executed:    d.runner.executed.Load(),
		Panicked:    d.runner.panicked.Load(),
		Rejected:    d.rejectedCount.Load(),
		Delayed:     d.delays.JobCount(),
		HasPlatform: d.platform != nil,
	}
	for _, p := range Priorities() {
		stats.PendingAt[p] = d.runner.PendingAt(p)
	}
	if last, ok := d.runner.history.Last(); ok {
		stats.LastJob = last.Name
		stats.LastJobAt = last.FinishedAt
	}
	return stats
}

// RecentJobs returns up to limit execution records, newest first.
func (d *Dispatcher) RecentJobs(limit int) []JobExecutionRecord {
	return d.runner.history.Recent(limit)
}

// LastJob returns the most recent execution record.
func (d *Dispatcher) LastJob() (JobExecutionRecord, bool) {
	return d.runner.history.Last()
}

func (d *Dispatcher) reportRejected(reason string, count int) {
	d.rejectedCount.Add(int64(count))
	d.metrics.RecordJobRejected(d.name, reason, count)
	d.rejected.HandleRejectedJob(d.name, reason, count)
}
