// Package logging provides a zap-backed core.Logger.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Swind/go-dispatcher/config"
	"github.com/Swind/go-dispatcher/core"
)

// Logger wraps zap.Logger and satisfies core.Logger.
type Logger struct {
	zap *zap.Logger
}

var _ core.Logger = (*Logger)(nil)

// New creates a new Logger from configuration.
func New(cfg config.LoggingConfig) (*Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoder zapcore.Encoder
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	var output zapcore.WriteSyncer
	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return nil, err
		}
		output = zapcore.AddSync(file)
	} else {
		output = zapcore.AddSync(os.Stdout)
	}

	return NewFromCore(zapcore.NewCore(encoder, output, level)), nil
}

// NewFromCore wraps an existing zapcore.Core.
func NewFromCore(c zapcore.Core) *Logger {
	return &Logger{zap: zap.New(c)}
}

// Zap returns the underlying zap logger.
func (l *Logger) Zap() *zap.Logger {
	return l.zap
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...core.Field) {
	l.zap.Debug(msg, toZap(fields)...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...core.Field) {
	l.zap.Info(msg, toZap(fields)...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...core.Field) {
	l.zap.Warn(msg, toZap(fields)...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...core.Field) {
	l.zap.Error(msg, toZap(fields)...)
}

// LogStats logs a dispatcher snapshot at info level.
func (l *Logger) LogStats(stats core.DispatcherStats) {
	pending := make(map[string]int, len(stats.PendingAt))
	for p, n := range stats.PendingAt {
		if n > 0 {
			pending[p.String()] = n
		}
	}
	l.zap.Info("dispatcher_stats",
		zap.String("dispatcher", stats.Name),
		zap.Stringer("state", stats.State),
		zap.Int("pending", stats.Pending),
		zap.Any("pending_by_priority", pending),
		zap.Int64("executed", stats.Executed),
		zap.Int64("panicked", stats.Panicked),
		zap.Int64("rejected", stats.Rejected),
		zap.Int("delayed", stats.Delayed),
		zap.String("last_job", stats.LastJob),
	)
}

// Close flushes any buffered log entries.
func (l *Logger) Close() error {
	return l.zap.Sync()
}

func toZap(fields []core.Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}
