package core

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger interface for structured logging
// Implementations can provide custom logging behavior (see the logging package for zap)
type Logger interface {
	// Debug logs a debug message with optional fields
	Debug(msg string, fields ...Field)

	// Info logs an info message with optional fields
	Info(msg string, fields ...Field)

	// Warn logs a warning message with optional fields
	Warn(msg string, fields ...Field)

	// Error logs an error message with optional fields
	Error(msg string, fields ...Field)
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value any
}

// F creates a new Field with the given key and value
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// DefaultLogger writes text records to stderr through log/slog.
type DefaultLogger struct {
	logger *slog.Logger
}

// NewDefaultLogger creates a new DefaultLogger at info level.
func NewDefaultLogger() *DefaultLogger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))
}

// NewSlogLogger adapts an existing slog.Logger.
func NewSlogLogger(l *slog.Logger) *DefaultLogger {
	if l == nil {
		l = slog.Default()
	}
	return &DefaultLogger{logger: l}
}

func (l *DefaultLogger) Debug(msg string, fields ...Field) {
	l.log(slog.LevelDebug, msg, fields...)
}

func (l *DefaultLogger) Info(msg string, fields ...Field) {
	l.log(slog.LevelInfo, msg, fields...)
}

func (l *DefaultLogger) Warn(msg string, fields ...Field) {
	l.log(slog.LevelWarn, msg, fields...)
}

func (l *DefaultLogger) Error(msg string, fields ...Field) {
	l.log(slog.LevelError, msg, fields...)
}

func (l *DefaultLogger) log(level slog.Level, msg string, fields ...Field) {
	attrs := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// NoOpLogger is a logger that discards all log messages
// Useful for tests or when logging is not desired
type NoOpLogger struct{}

// NewNoOpLogger creates a new NoOpLogger
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (l *NoOpLogger) Debug(msg string, fields ...Field) {}
func (l *NoOpLogger) Info(msg string, fields ...Field)  {}
func (l *NoOpLogger) Warn(msg string, fields ...Field)  {}
func (l *NoOpLogger) Error(msg string, fields ...Field) {}

// =============================================================================
// Pump Backoff
// =============================================================================

// PumpBackoff bounds CPU use of a blocking wait. After each pump that did not
// resolve the awaited future, the waiter sleeps (or wakes early on resolution) for
// a delay that grows from InitialDelay by BackoffRatio up to MaxDelay.
type PumpBackoff struct {
	// InitialDelay is the delay after the first unproductive pump
	InitialDelay time.Duration

	// MaxDelay caps the delay between pumps
	MaxDelay time.Duration

	// BackoffRatio is the multiplier for delay after each pump (e.g., 2.0 for exponential)
	// For example, with InitialDelay=100µs and BackoffRatio=2.0:
	// - Pump 1 delay: 100µs
	// - Pump 2 delay: 200µs
	// - Pump 3 delay: 400µs (capped by MaxDelay)
	BackoffRatio float64
}

// DefaultPumpBackoff keeps waits responsive while avoiding a tight spin.
func DefaultPumpBackoff() PumpBackoff {
	return PumpBackoff{
		InitialDelay: 50 * time.Microsecond,
		MaxDelay:     5 * time.Millisecond,
		BackoffRatio: 2.0,
	}
}

// calculateDelay calculates the delay for the given pump attempt (0-indexed)
func (p PumpBackoff) calculateDelay(attempt int) time.Duration {
	if p.InitialDelay <= 0 {
		return 0
	}

	delay := float64(p.InitialDelay)
	for i := 0; i < attempt; i++ {
		delay *= p.BackoffRatio
		if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
			break
		}
	}

	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	return time.Duration(delay)
}
