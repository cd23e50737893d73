package core

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// JobTarget accepts jobs released by the DelayManager.
type JobTarget interface {
	Enqueue(job Job) error
}

// DelayedJob represents a job scheduled for the future
type DelayedJob struct {
	RunAt  time.Time
	Job    Job
	Target JobTarget
	index  int // for heap interface
}

// DelayedJobHeap implements heap.Interface
type DelayedJobHeap []*DelayedJob

func (h DelayedJobHeap) Len() int           { return len(h) }
func (h DelayedJobHeap) Less(i, j int) bool { return h[i].RunAt.Before(h[j].RunAt) }
func (h DelayedJobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *DelayedJobHeap) Push(x any) {
	n := len(*h)
	item := x.(*DelayedJob)
	item.index = n
	*h = append(*h, item)
}

func (h *DelayedJobHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.index = -1
	*h = old[0 : n-1]
	return item
}

func (h *DelayedJobHeap) Peek() *DelayedJob {
	if len(*h) == 0 {
		return nil
	}
	return (*h)[0]
}

// DelayManager holds delayed jobs in a min-heap and enqueues them on their target
// when due. It owns one timer goroutine, started by NewDelayManager.
type DelayManager struct {
	pq       DelayedJobHeap
	mu       sync.Mutex
	wakeup   chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	logger   Logger
}

func NewDelayManager(logger Logger) *DelayManager {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	dm := &DelayManager{
		pq:     make(DelayedJobHeap, 0),
		wakeup: make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		logger: logger,
	}
	heap.Init(&dm.pq)
	go dm.loop()
	return dm
}

func (dm *DelayManager) AddDelayedJob(job Job, delay time.Duration, target JobTarget) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	item := &DelayedJob{
		RunAt:  time.Now().Add(delay),
		Job:    job,
		Target: target,
	}
	heap.Push(&dm.pq, item)

	if item.index == 0 {
		select {
		case dm.wakeup <- struct{}{}:
		default:
		}
	}
}

func (dm *DelayManager) loop() {
	defer close(dm.done)

	timer := time.NewTimer(time.Hour)
	timer.Stop()

	for {
		// Calculate next run time
		nextRun, ok := dm.calculateNextRun()
		if !ok {
			// No jobs, wait until woken
			nextRun = 1000 * time.Hour
		}

		timer.Reset(nextRun)

		select {
		case <-dm.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			dm.processExpiredJobs()
		case <-dm.wakeup:
			// New job added at the head, recalculate
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
	}
}

// calculateNextRun returns how long to wait for the earliest job; ok is false when
// the heap is empty. A zero duration means a job is already due.
func (dm *DelayManager) calculateNextRun() (time.Duration, bool) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	item := dm.pq.Peek()
	if item == nil {
		return 0, false
	}

	now := time.Now()
	if item.RunAt.Before(now) {
		return 0, true
	}
	return item.RunAt.Sub(now), true
}

// processExpiredJobs enqueues every due job. Jobs are collected under the lock and
// enqueued outside it.
func (dm *DelayManager) processExpiredJobs() {
	dm.mu.Lock()

	now := time.Now()
	var expired []*DelayedJob

	for dm.pq.Len() > 0 {
		item := dm.pq.Peek()
		if item.RunAt.After(now) {
			break
		}
		heap.Pop(&dm.pq)
		expired = append(expired, item)
	}

	dm.mu.Unlock()

	for _, item := range expired {
		if err := item.Target.Enqueue(item.Job); err != nil {
			dm.logger.Debug("delayed job dropped",
				F("job_id", item.Job.ID().String()),
				F("error", err),
			)
		}
	}
}

// Stop terminates the timer goroutine and drops pending delayed jobs.
func (dm *DelayManager) Stop() {
	dm.stopOnce.Do(func() {
		dm.cancel()
		<-dm.done

		// Clear pq to release all target references
		dm.mu.Lock()
		dm.pq = make(DelayedJobHeap, 0)
		heap.Init(&dm.pq)
		dm.mu.Unlock()
	})
}

func (dm *DelayManager) JobCount() int {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return len(dm.pq)
}
