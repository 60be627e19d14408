package webdriver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

// Config configures a WebDriver session.
type Config struct {
	// ServerURL is the WebDriver endpoint, e.g. http://localhost:9515.
	ServerURL    string
	Browser      string // chrome (default), firefox, edge
	Headless     bool
	WindowWidth  int
	WindowHeight int
	// Args are extra browser command-line switches.
	Args       []string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Driver implements core.Driver over the W3C WebDriver protocol.
type Driver struct {
	client *Client
	info   *core.PlatformInfo
	logger *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// New opens a browser session on cfg.ServerURL.
func New(ctx context.Context, cfg Config) (*Driver, error) {
	if cfg.ServerURL == "" {
		return nil, core.ErrInvalidConfig.WithMessage("webdriver: server URL is required")
	}
	if cfg.Browser == "" {
		cfg.Browser = "chrome"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	caps, err := Capabilities(cfg)
	if err != nil {
		return nil, err
	}

	client := NewClient(cfg.ServerURL, cfg.HTTPClient)
	matched, err := client.Connect(ctx, caps)
	if err != nil {
		return nil, err
	}

	d := &Driver{
		client: client,
		logger: cfg.Logger,
		info: &core.PlatformInfo{
			Driver:       driverName,
			Browser:      cfg.Browser,
			Headless:     cfg.Headless,
			WindowWidth:  cfg.WindowWidth,
			WindowHeight: cfg.WindowHeight,
			SessionID:    client.SessionID(),
		},
	}
	if name, ok := matched["browserName"].(string); ok && name != "" {
		d.info.Browser = name
	}
	if v, ok := matched["browserVersion"].(string); ok {
		d.info.BrowserVersion = v
	}
	if p, ok := matched["platformName"].(string); ok {
		d.info.Platform = p
	}

	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		if err := client.SetWindowRect(ctx, cfg.WindowWidth, cfg.WindowHeight); err != nil {
			cfg.Logger.Warn("could not resize window", zap.Error(err))
		}
	}
	cfg.Logger.Info("webdriver session created",
		zap.String("session_id", d.info.SessionID),
		zap.String("browser", d.info.Browser),
		zap.String("version", d.info.BrowserVersion))
	return d, nil
}

// Find returns handles for every element matching loc.
func (d *Driver) Find(ctx context.Context, loc core.Locator) ([]core.ElementHandle, error) {
	using, value, err := translate(loc)
	if err != nil {
		return nil, err
	}
	ids, err := d.client.FindElements(ctx, using, value)
	if err != nil {
		// Some servers answer an empty query with "no such element".
		if errors.Is(err, core.ErrElementNotFound) {
			return []core.ElementHandle{}, nil
		}
		return nil, err
	}
	out := make([]core.ElementHandle, len(ids))
	for i, id := range ids {
		out[i] = &Element{client: d.client, id: id}
	}
	return out, nil
}

// translate maps a locator onto a W3C location strategy. ID and CLASS go
// through CSS attribute selectors so values never need escaping as
// identifiers.
func translate(loc core.Locator) (string, string, error) {
	v := loc.Value()
	switch loc.Strategy() {
	case core.StrategyID:
		return "css selector", `[id="` + cssQuote(v) + `"]`, nil
	case core.StrategyClass:
		return "css selector", `[class~="` + cssQuote(v) + `"]`, nil
	case core.StrategyCSS:
		return "css selector", v, nil
	case core.StrategyXPath:
		return "xpath", v, nil
	}
	return "", "", core.ErrInvalidConfig.WithMessage(fmt.Sprintf("webdriver: unsupported locator %s", loc))
}

func cssQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// Navigate loads url.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	return d.client.Navigate(ctx, url)
}

// CurrentURL returns the address of the current page.
func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	return d.client.CurrentURL(ctx)
}

// Screenshot returns the viewport as PNG.
func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	return d.client.Screenshot(ctx)
}

// ExecuteScript runs script as a function body. Element handles from this
// session may be passed in args.
func (d *Driver) ExecuteScript(ctx context.Context, script string, args ...interface{}) (interface{}, error) {
	wire := make([]interface{}, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case *Element:
			if v.client != d.client {
				return nil, fmt.Errorf("webdriver: argument %d belongs to another session", i)
			}
			wire[i] = v
		case core.ElementHandle:
			return nil, fmt.Errorf("webdriver: argument %d is a foreign element handle %T", i, a)
		default:
			wire[i] = a
		}
	}
	return d.client.Execute(ctx, script, wire)
}

// Close deletes the session. Only the first call talks to the server.
func (d *Driver) Close() error {
	d.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		d.closeErr = d.client.Disconnect(ctx)
		d.logger.Debug("webdriver session closed", zap.String("session_id", d.info.SessionID), zap.Error(d.closeErr))
	})
	return d.closeErr
}

// Info returns platform information captured at session start.
func (d *Driver) Info() *core.PlatformInfo {
	return d.info
}

// Element is a handle to one remote element.
type Element struct {
	client *Client
	id     string
}

// ID returns the server-side element reference.
func (e *Element) ID() string { return e.id }

// MarshalJSON encodes the handle as a W3C element reference, so it can be
// passed straight into script arguments.
func (e *Element) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{w3cElementKey: e.id})
}

func (e *Element) Click(ctx context.Context) error {
	return e.client.ClickElement(ctx, e.id)
}

func (e *Element) Clear(ctx context.Context) error {
	return e.client.ClearElement(ctx, e.id)
}

func (e *Element) SendKeys(ctx context.Context, text string) error {
	return e.client.SendKeys(ctx, e.id, text)
}

// Text returns the visible text, or the current value for inputs.
func (e *Element) Text(ctx context.Context) (string, error) {
	tag, err := e.client.ElementTagName(ctx, e.id)
	if err != nil {
		return "", err
	}
	if tag == "input" || tag == "textarea" {
		return e.client.ElementProperty(ctx, e.id, "value")
	}
	text, err := e.client.ElementText(ctx, e.id)
	return strings.TrimSpace(text), err
}

func (e *Element) IsDisplayed(ctx context.Context) (bool, error) {
	return e.client.IsElementDisplayed(ctx, e.id)
}

func (e *Element) IsEnabled(ctx context.Context) (bool, error) {
	return e.client.IsElementEnabled(ctx, e.id)
}
