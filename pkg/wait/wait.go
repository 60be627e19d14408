// Package wait polls driver state until a condition holds.
package wait

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

// Default timing values.
const (
	DefaultTimeout  = 15 * time.Second
	DefaultInterval = 500 * time.Millisecond
)

// Observer is notified once per Await with the outcome. err is nil on success.
type Observer func(condition string, elapsed time.Duration, err error)

// Engine polls conditions against one driver.
type Engine struct {
	driver   core.Driver
	logger   *zap.Logger
	observer Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithObserver installs an outcome hook, typically metrics.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// New creates an Engine for driver.
func New(driver core.Driver, opts ...Option) *Engine {
	e := &Engine{driver: driver, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Driver returns the driver the engine polls.
func (e *Engine) Driver() core.Driver {
	return e.driver
}

// Await checks cond immediately and then every interval until it holds.
//
// On timeout it returns *core.WaitTimeoutError with T <= Elapsed < T+interval:
// the last sleep is clipped to the remaining budget so the final check runs
// at the deadline. Transient driver errors count as "not yet". Any other
// error aborts the wait and is returned wrapped. Cancelling ctx interrupts
// the sleep and yields a WaitTimeoutError whose Cause is ctx.Err().
func (e *Engine) Await(ctx context.Context, cond Condition, timeout, interval time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	start := time.Now()
	deadline := start.Add(timeout)
	var lastErr error
	polls := 0

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		polls++
		ok, err := cond.Check(ctx, e.driver)
		if err == nil && ok {
			e.done(cond, start, polls, nil)
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return e.done(cond, start, polls, e.timeoutErr(cond, timeout, start, ctx.Err(), lastErr))
			}
			if !core.IsTransient(err) {
				return e.done(cond, start, polls, fmt.Errorf("wait for %s: %w", cond.Description, err))
			}
			lastErr = err
		}

		now := time.Now()
		remaining := deadline.Sub(now)
		if remaining <= 0 {
			return e.done(cond, start, polls, e.timeoutErr(cond, timeout, start, nil, lastErr))
		}
		sleep := interval
		if sleep > remaining {
			sleep = remaining
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(sleep)

		select {
		case <-ctx.Done():
			return e.done(cond, start, polls, e.timeoutErr(cond, timeout, start, ctx.Err(), lastErr))
		case <-timer.C:
		}
	}
}

func (e *Engine) timeoutErr(cond Condition, timeout time.Duration, start time.Time, cause, lastErr error) *core.WaitTimeoutError {
	return &core.WaitTimeoutError{
		Condition: cond.Description,
		Timeout:   timeout,
		Elapsed:   time.Since(start),
		Cause:     cause,
		LastErr:   lastErr,
	}
}

func (e *Engine) done(cond Condition, start time.Time, polls int, err error) error {
	elapsed := time.Since(start)
	if err != nil {
		e.logger.Debug("wait failed",
			zap.String("condition", cond.Description),
			zap.Duration("elapsed", elapsed),
			zap.Int("polls", polls),
			zap.Error(err))
	} else {
		e.logger.Debug("wait satisfied",
			zap.String("condition", cond.Description),
			zap.Duration("elapsed", elapsed),
			zap.Int("polls", polls))
	}
	if e.observer != nil {
		e.observer(cond.Description, elapsed, err)
	}
	return err
}
