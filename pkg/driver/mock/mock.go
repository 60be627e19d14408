// Package mock provides an in-process driver that simulates the demo
// storefront, so scenarios and page models can run without a browser.
package mock

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/jsengine"
)

// DefaultBaseURL is the address the simulated storefront answers on.
const DefaultBaseURL = "https://www.saucedemo.com"

var errUnreachable = errors.New("connection refused")

// Config configures mock driver behavior.
type Config struct {
	// BaseURL prefixes every reported page address.
	BaseURL string
	// LoginDelay is how long performance_glitch_user waits after submitting
	// the login form before the inventory appears. Zero means 500ms and a
	// negative value disables the delay.
	LoginDelay time.Duration
	// ActionDelay adds artificial latency to every click.
	ActionDelay time.Duration
	// Unreachable makes every call fail as if the driver endpoint is down.
	Unreachable bool
	Logger      *zap.Logger
}

// Driver is a simulated browser implementing core.Driver.
type Driver struct {
	cfg Config

	mu         sync.Mutex
	st         *store
	gen        int // bumped on every re-render; older handles are stale
	doc        *goquery.Document
	source     string
	pending    *pendingLogin
	closed     bool
	closeCount int
	js         *jsengine.Engine
	sessionID  string
}

type pendingLogin struct {
	user  string
	ready time.Time
}

// New creates a mock driver showing the login page.
func New(cfg Config) *Driver {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.LoginDelay == 0 {
		cfg.LoginDelay = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	d := &Driver{
		cfg:       cfg,
		st:        newStore(),
		js:        jsengine.New(jsengine.WithLogger(cfg.Logger)),
		sessionID: uuid.NewString(),
	}
	d.rerender()
	return d
}

// Find returns handles for every element matching loc on the current page.
func (d *Driver) Find(ctx context.Context, loc core.Locator) ([]core.ElementHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(ctx, "find"); err != nil {
		return nil, err
	}
	sel, err := d.query(loc)
	if err != nil {
		return nil, err
	}
	out := make([]core.ElementHandle, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &element{d: d, gen: d.gen, sel: s})
	})
	return out, nil
}

// Navigate loads rawURL. Addresses outside BaseURL resolve by path only.
func (d *Driver) Navigate(ctx context.Context, rawURL string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(ctx, "navigate"); err != nil {
		return err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	d.pending = nil
	d.st.route(u.Path)
	d.rerender()
	d.cfg.Logger.Debug("navigated", zap.String("url", rawURL), zap.String("page", pagePaths[d.st.page]))
	return nil
}

// CurrentURL returns the address of the page being shown.
func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(ctx, "current_url"); err != nil {
		return "", err
	}
	return d.cfg.BaseURL + pagePaths[d.st.page], nil
}

// Screenshot renders a small PNG whose fill identifies the page.
func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	d.mu.Lock()
	err := d.check(ctx, "screenshot")
	page := d.st.page
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}

	fill := pageColors[page]
	img := image.NewRGBA(image.Rect(0, 0, 64, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var pageColors = map[pageKind]color.RGBA{
	pageLogin:     {R: 0xe2, G: 0x23, B: 0x1a, A: 0xff},
	pageInventory: {R: 0x3d, G: 0xdc, B: 0x91, A: 0xff},
	pageCart:      {R: 0x13, G: 0x22, B: 0x32, A: 0xff},
	pageCheckout:  {R: 0x47, G: 0xc6, B: 0xcf, A: 0xff},
	pageNotFound:  {R: 0x80, G: 0x80, B: 0x80, A: 0xff},
}

// Close ends the session. Later calls fail with a connection error.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeCount++
	d.closed = true
	return nil
}

// CloseCount reports how many times Close was called.
func (d *Driver) CloseCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closeCount
}

// Info returns mock platform info.
func (d *Driver) Info() *core.PlatformInfo {
	return &core.PlatformInfo{
		Driver:       "mock",
		Browser:      "simulated",
		Platform:     "inproc",
		Headless:     true,
		WindowWidth:  1280,
		WindowHeight: 800,
		SessionID:    d.sessionID,
	}
}

// check must be called with d.mu held. It also completes a delayed login
// whose time has come.
func (d *Driver) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.cfg.Unreachable {
		return &core.DriverConnectionError{Driver: "mock", Op: op, Cause: errUnreachable}
	}
	if d.closed {
		return &core.DriverConnectionError{Driver: "mock", Op: op, Cause: errors.New("session closed")}
	}
	if d.pending != nil && !time.Now().Before(d.pending.ready) {
		d.st.enter(d.pending.user)
		d.pending = nil
		d.rerender()
	}
	return nil
}

func (d *Driver) rerender() {
	d.gen++
	d.source = d.st.render()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(d.source))
	if err != nil {
		// The renderer only emits well-formed markup.
		panic(err)
	}
	d.doc = doc
}

// dispatch applies the effect of activating s. Must be called with d.mu held.
func (d *Driver) dispatch(s *goquery.Selection) {
	action, _ := s.Attr("data-action")
	index := -1
	if v, ok := s.Attr("data-index"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			index = n
		}
	}
	st := d.st

	switch action {
	case "login":
		user, pass := st.form["user-name"], st.form["password"]
		if !st.login(user, pass) {
			break
		}
		if user == UserPerformanceGlitch && d.cfg.LoginDelay > 0 {
			d.pending = &pendingLogin{user: user, ready: time.Now().Add(d.cfg.LoginDelay)}
			return
		}
		st.enter(user)
	case "dismiss-error":
		st.errorMsg = ""
	case "add":
		st.addToCart(index)
	case "remove":
		st.removeFromCart(index)
	case "cart":
		st.page = pageCart
	case "continue", "all-items":
		st.page = pageInventory
		st.menuOpen = false
	case "checkout":
		st.page = pageCheckout
	case "cancel":
		st.page = pageCart
	case "menu":
		st.menuOpen = true
	case "logout":
		st.logout()
	case "reset":
		st.cart = make(map[int]bool)
		st.menuOpen = false
	default:
		return
	}
	d.cfg.Logger.Debug("dispatched", zap.String("action", action), zap.Int("index", index))
	d.rerender()
}
