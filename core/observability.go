package core

import "time"

// JobExecutionRecord captures a completed job execution event.
type JobExecutionRecord struct {
	JobID          JobID
	Name           string
	DispatcherName string
	Priority       Priority
	Tracked        bool
	StartedAt      time.Time
	FinishedAt     time.Time
	Duration       time.Duration
	Panicked       bool
}

// DispatcherStats represents runtime observability state for a dispatcher.
type DispatcherStats struct {
	Name        string
	State       State
	Pending     int
	PendingAt   map[Priority]int
	Executed    int64
	Panicked    int64
	Rejected    int64
	Delayed     int
	LastJob     string
	LastJobAt   time.Time
	HasPlatform bool
}
