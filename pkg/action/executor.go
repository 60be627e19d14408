// Package action performs UI actions behind precondition waits. It is the
// only path from page models to the driver.
package action

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/wait"
)

// DefaultTimeout bounds every precondition wait unless overridden.
const DefaultTimeout = wait.DefaultTimeout

// Script bodies used by the script helpers. arguments[0] is an element handle.
const (
	scriptClick      = "arguments[0].scrollIntoView(); arguments[0].click(); return true;"
	scriptPageSource = "return document.documentElement.outerHTML;"
)

// Executor runs click / type / read actions against one driver.
type Executor struct {
	driver   core.Driver
	waiter   *wait.Engine
	timeout  time.Duration
	interval time.Duration
	logger   *zap.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithTimeout overrides the precondition timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithInterval overrides the poll interval.
func WithInterval(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Executor. The driver is taken from waiter.
func New(waiter *wait.Engine, opts ...Option) *Executor {
	e := &Executor{
		driver:   waiter.Driver(),
		waiter:   waiter,
		timeout:  DefaultTimeout,
		interval: wait.DefaultInterval,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Timeout returns the precondition timeout.
func (e *Executor) Timeout() time.Duration { return e.timeout }

// Info returns the driver platform info.
func (e *Executor) Info() *core.PlatformInfo { return e.driver.Info() }

// Click waits until loc is clickable, then clicks the first displayed and
// enabled match.
func (e *Executor) Click(ctx context.Context, loc core.Locator) error {
	if err := e.precondition(ctx, "click", loc, wait.ClickableAt(loc)); err != nil {
		return err
	}
	el, err := wait.FirstClickable(ctx, e.driver, loc)
	if err != nil {
		return fmt.Errorf("click %s: %w", loc, err)
	}
	if el == nil {
		return fmt.Errorf("click %s: %w", loc, core.ErrElementNotInteractable)
	}
	if err := el.Click(ctx); err != nil {
		return fmt.Errorf("click %s: %w", loc, err)
	}
	e.logger.Debug("clicked", zap.Stringer("locator", loc))
	return nil
}

// TypeText waits for loc, clears it and sends text. Running it twice leaves
// the field holding text exactly once.
func (e *Executor) TypeText(ctx context.Context, loc core.Locator, text string) error {
	if err := e.precondition(ctx, "type_text", loc, wait.PresenceOf(loc)); err != nil {
		return err
	}
	el, err := e.first(ctx, loc)
	if err != nil {
		return fmt.Errorf("type_text %s: %w", loc, err)
	}
	if err := el.Clear(ctx); err != nil {
		return fmt.Errorf("type_text %s: clear: %w", loc, err)
	}
	if err := el.SendKeys(ctx, text); err != nil {
		return fmt.Errorf("type_text %s: %w", loc, err)
	}
	e.logger.Debug("typed", zap.Stringer("locator", loc), zap.Int("chars", len(text)))
	return nil
}

// ReadText waits for loc and returns its text.
func (e *Executor) ReadText(ctx context.Context, loc core.Locator) (string, error) {
	if err := e.precondition(ctx, "read_text", loc, wait.PresenceOf(loc)); err != nil {
		return "", err
	}
	el, err := e.first(ctx, loc)
	if err != nil {
		return "", fmt.Errorf("read_text %s: %w", loc, err)
	}
	text, err := el.Text(ctx)
	if err != nil {
		return "", fmt.Errorf("read_text %s: %w", loc, err)
	}
	return text, nil
}

// ReadAll returns the text of every current match of loc, without waiting.
func (e *Executor) ReadAll(ctx context.Context, loc core.Locator) ([]string, error) {
	els, err := e.driver.Find(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("read_all %s: %w", loc, err)
	}
	out := make([]string, 0, len(els))
	for _, el := range els {
		text, err := el.Text(ctx)
		if err != nil {
			return nil, fmt.Errorf("read_all %s: %w", loc, err)
		}
		out = append(out, text)
	}
	return out, nil
}

// ClickByScript waits for the index-th match of loc to be enabled, scrolls it
// into view and clicks it through the page's script engine.
func (e *Executor) ClickByScript(ctx context.Context, loc core.Locator, index int) error {
	if err := e.precondition(ctx, "click_script", loc, wait.EnabledAt(loc, index)); err != nil {
		return err
	}
	els, err := e.driver.Find(ctx, loc)
	if err != nil {
		return fmt.Errorf("click_script %s: %w", loc, err)
	}
	if index < 0 || index >= len(els) {
		return fmt.Errorf("click_script %s[%d]: %w", loc, index, core.ErrElementNotFound)
	}
	if _, err := e.driver.ExecuteScript(ctx, scriptClick, els[index]); err != nil {
		return fmt.Errorf("click_script %s[%d]: %w", loc, index, err)
	}
	e.logger.Debug("clicked by script", zap.Stringer("locator", loc), zap.Int("index", index))
	return nil
}

// Navigate loads url.
func (e *Executor) Navigate(ctx context.Context, url string) error {
	if err := e.driver.Navigate(ctx, url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// CurrentURL returns the current page address.
func (e *Executor) CurrentURL(ctx context.Context) (string, error) {
	return e.driver.CurrentURL(ctx)
}

// Count returns the number of current matches of loc. It does not wait.
func (e *Executor) Count(ctx context.Context, loc core.Locator) (int, error) {
	els, err := e.driver.Find(ctx, loc)
	if err != nil {
		if core.IsTransient(err) {
			return 0, nil
		}
		return 0, err
	}
	return len(els), nil
}

// IsPresent reports whether loc currently matches anything.
func (e *Executor) IsPresent(ctx context.Context, loc core.Locator) (bool, error) {
	n, err := e.Count(ctx, loc)
	return n > 0, err
}

// Await waits for cond with the executor timeout. A timeout is returned as
// a bare *core.WaitTimeoutError.
func (e *Executor) Await(ctx context.Context, cond wait.Condition) error {
	return e.waiter.Await(ctx, cond, e.timeout, e.interval)
}

// AwaitWithin waits for cond with an explicit timeout.
func (e *Executor) AwaitWithin(ctx context.Context, cond wait.Condition, timeout time.Duration) error {
	return e.waiter.Await(ctx, cond, timeout, e.interval)
}

// Screenshot captures the viewport as PNG.
func (e *Executor) Screenshot(ctx context.Context) ([]byte, error) {
	return e.driver.Screenshot(ctx)
}

// PageSource returns the serialized DOM.
func (e *Executor) PageSource(ctx context.Context) (string, error) {
	v, err := e.driver.ExecuteScript(ctx, scriptPageSource)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("page source: unexpected %T", v)
	}
	return s, nil
}

func (e *Executor) precondition(ctx context.Context, action string, loc core.Locator, cond wait.Condition) error {
	err := e.waiter.Await(ctx, cond, e.timeout, e.interval)
	if err == nil {
		return nil
	}
	var wte *core.WaitTimeoutError
	if errors.As(err, &wte) {
		return &core.ActionTimeoutError{Action: action, Locator: loc, Wait: wte}
	}
	return err
}

func (e *Executor) first(ctx context.Context, loc core.Locator) (core.ElementHandle, error) {
	els, err := e.driver.Find(ctx, loc)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, core.ErrElementNotFound
	}
	return els[0], nil
}
