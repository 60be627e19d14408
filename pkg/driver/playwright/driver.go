// Package playwright implements core.Driver on top of playwright-go. Calls
// into Playwright are not context-aware, so every operation checks ctx before
// it starts and bounds element actions with a short Playwright timeout.
package playwright

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	pw "github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

const driverName = "playwright"

// DefaultActionTimeout bounds a single element action inside Playwright.
// The executor above retries, so this stays short.
const DefaultActionTimeout = 2000.0 // ms

// Config configures the browser launch.
type Config struct {
	Browser      string // chromium (default), firefox, webkit
	Headless     bool
	WindowWidth  int
	WindowHeight int
	Args         []string
	// ActionTimeout in milliseconds; 0 means DefaultActionTimeout.
	ActionTimeout float64
	// Install downloads the browser driver when it is missing.
	Install bool
	// DriverDir overrides where the Playwright driver lives.
	DriverDir string
	Logger  *zap.Logger
}

// Driver drives one page in its own browser context.
type Driver struct {
	pw      *pw.Playwright
	browser pw.Browser
	page    pw.Page
	info    *core.PlatformInfo
	timeout float64
	logger  *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// New starts Playwright, launches the browser and opens a page.
func New(ctx context.Context, cfg Config) (*Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Browser == "" {
		cfg.Browser = "chromium"
	}
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = DefaultActionTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	runOpts := &pw.RunOptions{DriverDirectory: cfg.DriverDir, Browsers: []string{engine(cfg.Browser)}}
	if cfg.Install {
		if err := pw.Install(runOpts); err != nil {
			return nil, &core.DriverConnectionError{Driver: driverName, Op: "install", Cause: err}
		}
	}
	runtime, err := pw.Run(runOpts)
	if err != nil {
		return nil, &core.DriverConnectionError{Driver: driverName, Op: "start", Cause: err}
	}

	var bt pw.BrowserType
	switch engine(cfg.Browser) {
	case "chromium":
		bt = runtime.Chromium
	case "firefox":
		bt = runtime.Firefox
	case "webkit":
		bt = runtime.WebKit
	default:
		_ = runtime.Stop()
		return nil, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("playwright: unsupported browser %q", cfg.Browser))
	}

	browser, err := bt.Launch(pw.BrowserTypeLaunchOptions{
		Headless: pw.Bool(cfg.Headless),
		Args:     cfg.Args,
	})
	if err != nil {
		_ = runtime.Stop()
		return nil, core.ErrSessionNotCreated.WithCause(err)
	}

	opts := pw.BrowserNewContextOptions{}
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		opts.Viewport = &pw.Size{Width: cfg.WindowWidth, Height: cfg.WindowHeight}
	}
	bctx, err := browser.NewContext(opts)
	if err != nil {
		_ = browser.Close()
		_ = runtime.Stop()
		return nil, core.ErrSessionNotCreated.WithCause(err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = browser.Close()
		_ = runtime.Stop()
		return nil, core.ErrSessionNotCreated.WithCause(err)
	}

	d := &Driver{
		pw:      runtime,
		browser: browser,
		page:    page,
		timeout: cfg.ActionTimeout,
		logger:  cfg.Logger,
		info: &core.PlatformInfo{
			Driver:         driverName,
			Browser:        bt.Name(),
			BrowserVersion: browser.Version(),
			Headless:       cfg.Headless,
			WindowWidth:    cfg.WindowWidth,
			WindowHeight:   cfg.WindowHeight,
			SessionID:      uuid.NewString(),
		},
	}
	cfg.Logger.Info("playwright browser launched",
		zap.String("browser", d.info.Browser),
		zap.String("version", d.info.BrowserVersion),
		zap.Bool("headless", cfg.Headless))
	return d, nil
}

// engine maps browser names onto Playwright engines.
func engine(browser string) string {
	switch b := strings.ToLower(browser); b {
	case "chrome", "chromium", "edge":
		return "chromium"
	case "safari", "webkit":
		return "webkit"
	default:
		return b
	}
}

// Selector returns the Playwright selector for loc.
func Selector(loc core.Locator) (string, error) {
	v := loc.Value()
	switch loc.Strategy() {
	case core.StrategyID:
		return `css=[id="` + cssQuote(v) + `"]`, nil
	case core.StrategyClass:
		return `css=[class~="` + cssQuote(v) + `"]`, nil
	case core.StrategyCSS:
		return "css=" + v, nil
	case core.StrategyXPath:
		return "xpath=" + v, nil
	}
	return "", core.ErrInvalidConfig.WithMessage(fmt.Sprintf("playwright: unsupported locator %s", loc))
}

func cssQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// Find snapshots the current matches as element handles.
func (d *Driver) Find(ctx context.Context, loc core.Locator) ([]core.ElementHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sel, err := Selector(loc)
	if err != nil {
		return nil, err
	}
	handles, err := d.page.Locator(sel).ElementHandles()
	if err != nil {
		return nil, mapError("find", err)
	}
	out := make([]core.ElementHandle, len(handles))
	for i, h := range handles {
		out[i] = &Element{d: d, h: h}
	}
	return out, nil
}

// Navigate loads url and waits for the load event.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := d.page.Goto(url, pw.PageGotoOptions{WaitUntil: pw.WaitUntilStateLoad})
	return mapError("navigate", err)
}

// CurrentURL returns the page address.
func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if d.page.IsClosed() {
		return "", &core.DriverConnectionError{Driver: driverName, Op: "current_url", Cause: errors.New("page closed")}
	}
	return d.page.URL(), nil
}

// Screenshot captures the viewport as PNG.
func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	png, err := d.page.Screenshot(pw.PageScreenshotOptions{Type: pw.ScreenshotTypePng})
	return png, mapError("screenshot", err)
}

// ExecuteScript runs script as a function body with arguments bound to
// `arguments`. Element handles from this driver pass through as DOM nodes.
func (d *Driver) ExecuteScript(ctx context.Context, script string, args ...interface{}) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wire := make([]interface{}, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case *Element:
			if v.d != d {
				return nil, fmt.Errorf("playwright: argument %d belongs to another session", i)
			}
			wire[i] = v.h
		case core.ElementHandle:
			return nil, fmt.Errorf("playwright: argument %d is a foreign element handle %T", i, a)
		default:
			wire[i] = a
		}
	}
	expr := "(args) => (function() {\n" + script + "\n}).apply(null, args)"
	out, err := d.page.Evaluate(expr, wire)
	return out, mapError("execute_script", err)
}

// Close shuts the browser and the Playwright server once.
func (d *Driver) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = errors.Join(d.browser.Close(), d.pw.Stop())
		d.logger.Debug("playwright browser closed", zap.Error(d.closeErr))
	})
	return d.closeErr
}

// Info returns launch information.
func (d *Driver) Info() *core.PlatformInfo {
	return d.info
}

// Element wraps a Playwright element handle.
type Element struct {
	d *Driver
	h pw.ElementHandle
}

func (e *Element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapError("click", e.h.Click(pw.ElementHandleClickOptions{Timeout: pw.Float(e.d.timeout)}))
}

func (e *Element) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapError("clear", e.h.Fill("", pw.ElementHandleFillOptions{Timeout: pw.Float(e.d.timeout)}))
}

func (e *Element) SendKeys(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapError("send_keys", e.h.Type(text, pw.ElementHandleTypeOptions{Timeout: pw.Float(e.d.timeout)}))
}

// Text returns the rendered text, or the current value for form fields.
func (e *Element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tag, err := e.h.Evaluate("el => el.tagName.toLowerCase()")
	if err != nil {
		return "", mapError("text", err)
	}
	if tag == "input" || tag == "textarea" || tag == "select" {
		v, err := e.h.InputValue(pw.ElementHandleInputValueOptions{Timeout: pw.Float(e.d.timeout)})
		return v, mapError("text", err)
	}
	text, err := e.h.InnerText()
	return strings.TrimSpace(text), mapError("text", err)
}

func (e *Element) IsDisplayed(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, err := e.h.IsVisible()
	return ok, mapError("is_displayed", err)
}

func (e *Element) IsEnabled(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, err := e.h.IsEnabled()
	return ok, mapError("is_enabled", err)
}

// mapError sorts Playwright failures into the core taxonomy.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	wrapped := fmt.Errorf("%s: %w", op, err)
	switch {
	case strings.Contains(msg, "not attached to the DOM"),
		strings.Contains(msg, "Element is detached"):
		return core.ErrStaleElement.WithCause(wrapped)
	case errors.Is(err, pw.ErrTimeout),
		strings.Contains(msg, "not visible"),
		strings.Contains(msg, "not enabled"),
		strings.Contains(msg, "intercepts pointer events"):
		return core.ErrElementNotInteractable.WithCause(wrapped)
	case errors.Is(err, pw.ErrTargetClosed),
		strings.Contains(msg, "has been closed"):
		return &core.DriverConnectionError{Driver: driverName, Op: op, Cause: err}
	case strings.Contains(msg, "is not a valid selector"),
		strings.Contains(msg, "Unexpected token"):
		return core.ErrInvalidConfig.WithCause(wrapped)
	}
	return wrapped
}
