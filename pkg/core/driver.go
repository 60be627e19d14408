package core

import (
	"context"
	"time"
)

// Driver is the boundary to a live browser.
// Implementations: WebDriver (HTTP), Playwright, in-memory mock.
// Only the ActionExecutor and WaitEngine call it; page models never do.
type Driver interface {
	// Find resolves loc against the current page. No match is an empty
	// slice and a nil error.
	Find(ctx context.Context, loc Locator) ([]ElementHandle, error)

	// Navigate loads url in the current window
	Navigate(ctx context.Context, url string) error

	// CurrentURL returns the address of the current page
	CurrentURL(ctx context.Context) (string, error)

	// Screenshot captures the viewport as PNG
	Screenshot(ctx context.Context) ([]byte, error)

	// ExecuteScript runs script synchronously in the page. ElementHandles
	// returned by Find may be passed as args.
	ExecuteScript(ctx context.Context, script string, args ...interface{}) (interface{}, error)

	// Close ends the browser session
	Close() error

	// Info returns browser/platform information
	Info() *PlatformInfo
}

// ElementHandle is a resolved element. It is valid until the page re-renders;
// after that every method fails with ErrStaleElement.
type ElementHandle interface {
	Click(ctx context.Context) error
	Clear(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error
	Text(ctx context.Context) (string, error)
	IsDisplayed(ctx context.Context) (bool, error)
	IsEnabled(ctx context.Context) (bool, error)
}

// PlatformInfo contains browser and driver details
type PlatformInfo struct {
	Driver         string `json:"driver"`                   // webdriver, playwright, mock
	Browser        string `json:"browser"`                  // chrome, firefox, chromium
	BrowserVersion string `json:"browserVersion,omitempty"` // e.g., "126.0"
	Platform       string `json:"platform,omitempty"`       // linux, mac, windows
	Headless       bool   `json:"headless"`
	WindowWidth    int    `json:"windowWidth,omitempty"`
	WindowHeight   int    `json:"windowHeight,omitempty"`
	SessionID      string `json:"sessionId,omitempty"`
}

// LogEntry represents a single log message captured during a record
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`  // debug, info, warn, error
	Source    string    `json:"source"` // browser, driver, runner
	Message   string    `json:"message"`
}
