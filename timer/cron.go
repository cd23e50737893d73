package timer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Swind/go-dispatcher/core"
)

// ErrCronStopped is returned by Next after the timer was stopped.
var ErrCronStopped = errors.New("timer: cron timer stopped")

// parser accepts an optional seconds field, so both "*/5 * * * *" and
// "*/30 * * * * *" are valid, as are descriptors like "@hourly" and "@every 2s".
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate reports whether expr is a valid cron expression.
func Validate(expr string) error {
	if expr == "" {
		return fmt.Errorf("cron expression cannot be empty")
	}
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression '%s': %w", expr, err)
	}
	return nil
}

// CronOptions tunes a CronTimer.
type CronOptions struct {
	// MaxRuns stops the timer after that many runs (0 = unlimited).
	MaxRuns int

	// Location evaluates the expression in this time zone. Defaults to time.Local.
	Location *time.Location

	// Logger reports scheduling failures. Defaults to a no-op logger.
	Logger core.Logger
}

// CronTimer runs a job on the dispatcher each time its cron schedule fires.
type CronTimer struct {
	d        *core.Dispatcher
	expr     string
	schedule cron.Schedule
	priority core.Priority
	action   core.Action
	opts     CronOptions

	mu      sync.Mutex
	next    time.Time
	runs    int
	stopped bool
}

// NewCron parses expr and schedules the first run of action on d.
func NewCron(d *core.Dispatcher, expr string, priority core.Priority, action core.Action, opts CronOptions) (*CronTimer, error) {
	if action == nil {
		return nil, core.ErrArgumentMissing
	}
	if err := Validate(expr); err != nil {
		return nil, err
	}
	schedule, _ := parser.Parse(expr)

	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = core.NewNoOpLogger()
	}

	c := &CronTimer{
		d:        d,
		expr:     expr,
		schedule: schedule,
		priority: priority,
		action:   action,
		opts:     opts,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.scheduleLocked(time.Now()); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *CronTimer) scheduleLocked(now time.Time) error {
	next := c.schedule.Next(now.In(c.opts.Location))
	if next.IsZero() {
		c.stopped = true
		return fmt.Errorf("cron expression '%s' never fires", c.expr)
	}
	c.next = next
	return c.d.PostDelayed(c.fire, next.Sub(now), c.priority)
}

func (c *CronTimer) fire(ctx context.Context) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.runs++
	done := c.opts.MaxRuns > 0 && c.runs >= c.opts.MaxRuns
	if done {
		c.stopped = true
	}
	c.mu.Unlock()

	c.action(ctx)

	if done {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	if err := c.scheduleLocked(time.Now()); err != nil {
		c.stopped = true
		c.opts.Logger.Warn("cron timer stopped",
			core.F("dispatcher", c.d.Name()),
			core.F("expression", c.expr),
			core.F("error", err),
		)
	}
}

// Next returns the time of the next scheduled run.
func (c *CronTimer) Next() (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return time.Time{}, ErrCronStopped
	}
	return c.next, nil
}

// Runs returns how many times the action has run.
func (c *CronTimer) Runs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs
}

// Expression returns the cron expression the timer was created with.
func (c *CronTimer) Expression() string {
	return c.expr
}

// Stop prevents further runs. A run already executing finishes normally.
func (c *CronTimer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
}
