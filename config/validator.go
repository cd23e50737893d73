package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Swind/go-dispatcher/core"
	"github.com/Swind/go-dispatcher/timer"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "dispatcher.pump_max_delay")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidLogFormats returns the list of valid log formats
func ValidLogFormats() []string {
	return []string{"console", "json"}
}

// ValidPanicPolicies returns the list of valid panic policies
func ValidPanicPolicies() []string {
	return []string{core.PanicPolicyRecover.String(), core.PanicPolicyPropagate.String()}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateDispatcher()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateMetrics()...)
	errors = append(errors, c.validateDemo()...)
	errors = append(errors, c.validateCron()...)

	return errors
}

func (c *Config) validateDispatcher() []ValidationError {
	var errors []ValidationError
	d := c.Dispatcher

	if strings.TrimSpace(d.Name) == "" {
		errors = append(errors, ValidationError{
			Field:   "dispatcher.name",
			Value:   d.Name,
			Message: "must not be empty",
		})
	}
	if !slices.Contains(ValidPanicPolicies(), strings.ToLower(d.PanicPolicy)) {
		errors = append(errors, ValidationError{
			Field:   "dispatcher.panic_policy",
			Value:   d.PanicPolicy,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidPanicPolicies(), ", ")),
		})
	}
	if d.PumpInitialDelay <= 0 {
		errors = append(errors, ValidationError{
			Field:   "dispatcher.pump_initial_delay",
			Value:   d.PumpInitialDelay,
			Message: "must be positive",
		})
	}
	if d.PumpMaxDelay < d.PumpInitialDelay {
		errors = append(errors, ValidationError{
			Field:   "dispatcher.pump_max_delay",
			Value:   d.PumpMaxDelay,
			Message: "must not be less than pump_initial_delay",
		})
	}
	if d.PumpBackoffRatio < 1 {
		errors = append(errors, ValidationError{
			Field:   "dispatcher.pump_backoff_ratio",
			Value:   d.PumpBackoffRatio,
			Message: "must be at least 1",
		})
	}
	if d.HistoryCapacity < 1 {
		errors = append(errors, ValidationError{
			Field:   "dispatcher.history_capacity",
			Value:   d.HistoryCapacity,
			Message: "must be positive",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}
	if !slices.Contains(ValidLogFormats(), c.Logging.Format) {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Value:   c.Logging.Format,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogFormats(), ", ")),
		})
	}

	return errors
}

func (c *Config) validateMetrics() []ValidationError {
	var errors []ValidationError

	if !c.Metrics.Enabled {
		return errors
	}
	if c.Metrics.Address == "" {
		errors = append(errors, ValidationError{
			Field:   "metrics.address",
			Value:   c.Metrics.Address,
			Message: "required when metrics are enabled",
		})
	}
	if c.Metrics.PollInterval <= 0 {
		errors = append(errors, ValidationError{
			Field:   "metrics.poll_interval",
			Value:   c.Metrics.PollInterval,
			Message: "must be positive",
		})
	}

	return errors
}

func (c *Config) validateDemo() []ValidationError {
	var errors []ValidationError

	if c.Demo.Producers < 0 {
		errors = append(errors, ValidationError{
			Field:   "demo.producers",
			Value:   c.Demo.Producers,
			Message: "must be non-negative",
		})
	}
	if c.Demo.PostInterval <= 0 {
		errors = append(errors, ValidationError{
			Field:   "demo.post_interval",
			Value:   c.Demo.PostInterval,
			Message: "must be positive",
		})
	}
	if c.Demo.TimerInterval <= 0 {
		errors = append(errors, ValidationError{
			Field:   "demo.timer_interval",
			Value:   c.Demo.TimerInterval,
			Message: "must be positive",
		})
	}
	if _, err := core.ParsePriority(c.Demo.TimerPriority); err != nil {
		errors = append(errors, ValidationError{
			Field:   "demo.timer_priority",
			Value:   c.Demo.TimerPriority,
			Message: err.Error(),
		})
	}

	return errors
}

func (c *Config) validateCron() []ValidationError {
	var errors []ValidationError

	for i, job := range c.Cron {
		field := fmt.Sprintf("cron[%d]", i)
		if job.Name == "" {
			errors = append(errors, ValidationError{
				Field:   field + ".name",
				Value:   job.Name,
				Message: "must not be empty",
			})
		}
		if err := timer.Validate(job.Expression); err != nil {
			errors = append(errors, ValidationError{
				Field:   field + ".expression",
				Value:   job.Expression,
				Message: err.Error(),
			})
		}
		if job.Priority == "" {
			continue
		}
		if _, err := core.ParsePriority(job.Priority); err != nil {
			errors = append(errors, ValidationError{
				Field:   field + ".priority",
				Value:   job.Priority,
				Message: err.Error(),
			})
		}
	}

	return errors
}
