package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"
)

// JobRunner owns one FIFO queue per priority level and drains them highest level
// first. Any goroutine may Enqueue; only the affinity goroutine may Drain.
type JobRunner struct {
	queues   [priorityLevels]*JobQueue
	platform PlatformEventLoop

	// ctx is the parent of every job context; the dispatcher stores itself in it.
	ctx context.Context

	name         string
	panicPolicy  PanicPolicy
	panicHandler PanicHandler
	metrics      Metrics
	history      *executionHistory

	executed atomic.Int64
	panicked atomic.Int64
}

// NewJobRunner creates a runner that wakes platform when an empty level receives a
// job. platform may be nil, in which case jobs only run on explicit Drain calls.
func NewJobRunner(platform PlatformEventLoop, cfg *Config) *JobRunner {
	c := cfg.withDefaults()
	r := &JobRunner{
		platform:     platform,
		ctx:          context.Background(),
		name:         c.Name,
		panicPolicy:  c.PanicPolicy,
		panicHandler: c.PanicHandler,
		metrics:      c.Metrics,
		history:      newExecutionHistory(c.HistoryCapacity),
	}
	for i := range r.queues {
		r.queues[i] = NewJobQueue()
	}
	return r
}

// Enqueue appends job to the queue of its priority. Only the append that turns an
// empty level non-empty signals the platform; later appends rely on that wake.
func (r *JobRunner) Enqueue(job Job) error {
	if job == nil {
		return argumentMissing("job")
	}
	p := job.Priority()
	if !p.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidPriority, int(p))
	}

	q := r.queues[p]
	if q.Push(job) && r.platform != nil {
		r.platform.Signal(p)
	}
	r.metrics.RecordQueueDepth(r.name, p, q.Len())
	return nil
}

// Drain runs queued jobs whose priority is at least minimum until a full scan from
// MaxValue down to minimum finds nothing. Jobs enqueued by running jobs are picked up
// by the same call.
func (r *JobRunner) Drain(minimum Priority) {
	if minimum < MinValue {
		minimum = MinValue
	}
	for {
		job, ok := r.next(minimum)
		if !ok {
			return
		}
		r.runJob(job)
	}
}

func (r *JobRunner) next(minimum Priority) (Job, bool) {
	for p := MaxValue; p >= minimum; p-- {
		if job, ok := r.queues[p].Pop(); ok {
			r.metrics.RecordQueueDepth(r.name, p, r.queues[p].Len())
			return job, true
		}
	}
	return nil, false
}

// ClearAll drops every pending job without running it. Futures of dropped tracked
// jobs are never resolved.
func (r *JobRunner) ClearAll() int {
	dropped := 0
	for p, q := range r.queues {
		if n := q.Clear(); n > 0 {
			dropped += n
			r.metrics.RecordQueueDepth(r.name, Priority(p), 0)
		}
	}
	return dropped
}

// Pending returns the number of queued jobs across all levels.
func (r *JobRunner) Pending() int {
	total := 0
	for _, q := range r.queues {
		total += q.Len()
	}
	return total
}

// PendingAt returns the number of queued jobs at priority p.
func (r *JobRunner) PendingAt(p Priority) int {
	if !p.Valid() {
		return 0
	}
	return r.queues[p].Len()
}

// HighestPending returns the highest level that currently holds a job.
func (r *JobRunner) HighestPending() (Priority, bool) {
	for p := MaxValue; p >= MinValue; p-- {
		if !r.queues[p].IsEmpty() {
			return p, true
		}
	}
	return PriorityInvalid, false
}

// Rearm signals the platform when jobs are pending. A wake that was consumed by an
// outer drain which is now blocked in a wait would otherwise never be repeated,
// because Enqueue only signals on the empty-to-non-empty transition.
func (r *JobRunner) Rearm() {
	if r.platform == nil {
		return
	}
	if p, ok := r.HighestPending(); ok {
		r.platform.Signal(p)
	}
}

// handleSignal is subscribed to the platform's Signaled event.
func (r *JobRunner) handleSignal(_ *Priority) {
	r.Drain(MinValue)
}

func (r *JobRunner) runJob(job Job) {
	ctx := withJobPriority(r.ctx, job.Priority())
	startedAt := time.Now()
	panicked := true

	defer func() {
		var rec any
		if panicked {
			rec = recover()
		}

		finishedAt := time.Now()
		r.executed.Add(1)
		r.history.Add(JobExecutionRecord{
			JobID:          job.ID(),
			Name:           job.Name(),
			DispatcherName: r.name,
			Priority:       job.Priority(),
			Tracked:        job.Tracked(),
			StartedAt:      startedAt,
			FinishedAt:     finishedAt,
			Duration:       finishedAt.Sub(startedAt),
			Panicked:       rec != nil,
		})
		r.metrics.RecordJobDuration(r.name, job.Priority(), finishedAt.Sub(startedAt))

		// rec is nil on runtime.Goexit; nothing to report.
		if rec == nil {
			return
		}

		r.panicked.Add(1)
		r.metrics.RecordJobPanic(r.name, job.Priority(), rec)
		r.panicHandler.HandlePanic(ctx, r.name, job, rec, debug.Stack())
		if r.panicPolicy == PanicPolicyPropagate {
			panic(rec)
		}
	}()

	job.Run(ctx)
	panicked = false
}
