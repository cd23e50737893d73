package core

import (
	"context"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling panics of fire-and-forget jobs
// =============================================================================

// PanicHandler is called when a fire-and-forget job panics during a drain.
// Tracked jobs never reach it: their panics resolve the job's Future instead.
//
// Handlers run on the affinity goroutine, inside the drain that ran the job.
type PanicHandler interface {
	// HandlePanic is called when a job panics.
	//
	// Parameters:
	// - ctx: The context the job ran with (carries the dispatcher)
	// - dispatcherName: The name of the dispatcher that ran the job
	// - job: The job that panicked
	// - panicInfo: The value recovered from the job
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, dispatcherName string, job Job, panicInfo any, stackTrace []byte)
}

// LoggingPanicHandler reports panics through a Logger.
type LoggingPanicHandler struct {
	Logger Logger
}

// HandlePanic logs the panic at error level.
func (h *LoggingPanicHandler) HandlePanic(ctx context.Context, dispatcherName string, job Job, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Error("job panicked",
		F("dispatcher", dispatcherName),
		F("job", job.Name()),
		F("job_id", job.ID().String()),
		F("priority", job.Priority().String()),
		F("panic", panicInfo),
		F("stack", string(stackTrace)),
	)
}

// PanicPolicy decides what a drain does after a fire-and-forget job panics.
type PanicPolicy int

const (
	// PanicPolicyRecover reports the panic and keeps draining.
	PanicPolicyRecover PanicPolicy = iota

	// PanicPolicyPropagate reports the panic and then re-panics into whatever
	// called Drain (RunJobs, the platform loop, or a blocking wait).
	PanicPolicyPropagate
)

func (p PanicPolicy) String() string {
	switch p {
	case PanicPolicyRecover:
		return "recover"
	case PanicPolicyPropagate:
		return "propagate"
	default:
		return "unknown"
	}
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting job execution metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast; they are called from the drain loop.
type Metrics interface {
	// RecordJobDuration records how long a job took to execute.
	RecordJobDuration(dispatcherName string, priority Priority, duration time.Duration)

	// RecordJobPanic records that a job panicked during execution.
	RecordJobPanic(dispatcherName string, priority Priority, panicInfo any)

	// RecordQueueDepth records the depth of one priority level after an enqueue or dequeue.
	RecordQueueDepth(dispatcherName string, priority Priority, depth int)

	// RecordJobRejected records that a job was rejected or dropped.
	//
	// Parameters:
	// - reason: "disposed" for posts after Dispose, "cleared" for jobs dropped by a forced clear
	RecordJobRejected(dispatcherName string, reason string, count int)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordJobDuration(dispatcherName string, priority Priority, duration time.Duration) {
}

func (m *NilMetrics) RecordJobPanic(dispatcherName string, priority Priority, panicInfo any) {}

func (m *NilMetrics) RecordQueueDepth(dispatcherName string, priority Priority, depth int) {}

func (m *NilMetrics) RecordJobRejected(dispatcherName string, reason string, count int) {}

// =============================================================================
// RejectedJobHandler: Interface for handling rejected jobs
// =============================================================================

// RejectedJobHandler is called when a job is refused or dropped:
// - Post/InvokeAsync after the dispatcher was disposed ("disposed")
// - Pending jobs removed by a forced queue clear ("cleared")
type RejectedJobHandler interface {
	HandleRejectedJob(dispatcherName string, reason string, count int)
}

// LoggingRejectedJobHandler logs rejected jobs at warn level.
type LoggingRejectedJobHandler struct {
	Logger Logger
}

func (h *LoggingRejectedJobHandler) HandleRejectedJob(dispatcherName string, reason string, count int) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Warn("jobs rejected",
		F("dispatcher", dispatcherName),
		F("reason", reason),
		F("count", count),
	)
}

// =============================================================================
// Config: Configuration for Dispatcher
// =============================================================================

// Config holds configuration options for a Dispatcher.
// All handlers are optional; nil fields are replaced with defaults.
type Config struct {
	// Name labels logs and metrics. Defaults to "dispatcher".
	Name string

	// PanicPolicy applies to fire-and-forget jobs. Defaults to PanicPolicyRecover.
	PanicPolicy PanicPolicy

	// PanicHandler is called when a fire-and-forget job panics. Defaults to LoggingPanicHandler.
	PanicHandler PanicHandler

	// Metrics records job execution metrics. Defaults to NilMetrics.
	Metrics Metrics

	// RejectedJobHandler is called when jobs are rejected or dropped.
	// Defaults to LoggingRejectedJobHandler.
	RejectedJobHandler RejectedJobHandler

	// Logger defaults to NoOpLogger.
	Logger Logger

	// PumpBackoff bounds how long a blocking wait sleeps between pumps.
	PumpBackoff PumpBackoff

	// HistoryCapacity is the number of execution records kept. Defaults to 100.
	HistoryCapacity int
}

// DefaultConfig returns a config with default handlers.
func DefaultConfig() *Config {
	logger := NewNoOpLogger()
	return &Config{
		Name:               "dispatcher",
		PanicPolicy:        PanicPolicyRecover,
		PanicHandler:       &LoggingPanicHandler{Logger: logger},
		Metrics:            &NilMetrics{},
		RejectedJobHandler: &LoggingRejectedJobHandler{Logger: logger},
		Logger:             logger,
		PumpBackoff:        DefaultPumpBackoff(),
		HistoryCapacity:    defaultJobHistoryCapacity,
	}
}

// withDefaults returns a copy of cfg with every unset field filled in.
func (c *Config) withDefaults() Config {
	def := DefaultConfig()
	if c == nil {
		return *def
	}

	out := *c
	if out.Name == "" {
		out.Name = def.Name
	}
	if out.Logger == nil {
		out.Logger = def.Logger
	}
	if out.PanicHandler == nil {
		out.PanicHandler = &LoggingPanicHandler{Logger: out.Logger}
	}
	if out.Metrics == nil {
		out.Metrics = def.Metrics
	}
	if out.RejectedJobHandler == nil {
		out.RejectedJobHandler = &LoggingRejectedJobHandler{Logger: out.Logger}
	}
	if out.PumpBackoff == (PumpBackoff{}) {
		out.PumpBackoff = def.PumpBackoff
	}
	if out.HistoryCapacity <= 0 {
		out.HistoryCapacity = def.HistoryCapacity
	}
	return out
}
