package core

import "sync"

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

// JobQueue is the FIFO for a single priority level. Each level has its own mutex
// so producers posting at different priorities never contend.
type JobQueue struct {
	mu   sync.Mutex
	jobs []Job
}

func NewJobQueue() *JobQueue {
	return &JobQueue{
		jobs: make([]Job, 0, defaultQueueCap),
	}
}

// Push appends job and reports whether the queue was empty before the append.
func (q *JobQueue) Push(job Job) (wasEmpty bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	wasEmpty = len(q.jobs) == 0
	q.jobs = append(q.jobs, job)
	return wasEmpty
}

func (q *JobQueue) Pop() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return nil, false
	}

	job := q.jobs[0]
	// Zero out the element in the underlying array to prevent memory leak
	q.jobs[0] = nil
	q.jobs = q.jobs[1:]
	q.maybeCompactLocked()

	return job, true
}

func (q *JobQueue) maybeCompactLocked() {
	n := len(q.jobs)
	c := cap(q.jobs)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		q.jobs = make([]Job, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, defaultQueueCap), n)

	newSlice := make([]Job, n, newCap)
	copy(newSlice, q.jobs)
	q.jobs = newSlice
}

func (q *JobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func (q *JobQueue) IsEmpty() bool {
	return q.Len() == 0
}

// Clear drops every job without running it and returns how many were dropped.
func (q *JobQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.jobs)
	// Create a new slice to release all job references
	q.jobs = make([]Job, 0, defaultQueueCap)
	return n
}
