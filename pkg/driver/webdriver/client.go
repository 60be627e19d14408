// Package webdriver implements core.Driver against a W3C WebDriver endpoint
// such as chromedriver, geckodriver or a Selenium grid.
package webdriver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

// W3C WebDriver element identifier key (standard constant)
const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

const driverName = "webdriver"

// Client handles HTTP communication with a WebDriver server.
type Client struct {
	serverURL string
	sessionID string
	client    *http.Client
}

// NewClient creates a client for serverURL. A nil httpClient gets a 60s
// request timeout.
func NewClient(serverURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		serverURL: strings.TrimSuffix(serverURL, "/"),
		client:    httpClient,
	}
}

// SessionID returns the current session, "" before Connect.
func (c *Client) SessionID() string { return c.sessionID }

// Connect creates a session and returns the capabilities the server matched.
func (c *Client) Connect(ctx context.Context, capabilities map[string]interface{}) (map[string]interface{}, error) {
	body := map[string]interface{}{
		"capabilities": map[string]interface{}{
			"alwaysMatch": capabilities,
		},
	}
	var value struct {
		SessionID    string                 `json:"sessionId"`
		Capabilities map[string]interface{} `json:"capabilities"`
	}
	if err := c.do(ctx, http.MethodPost, "/session", body, &value); err != nil {
		if errors.Is(err, core.ErrDriverUnreachable) {
			return nil, err
		}
		return nil, core.ErrSessionNotCreated.WithCause(err)
	}
	if value.SessionID == "" {
		return nil, core.ErrSessionNotCreated.WithMessage("no session ID in response")
	}
	c.sessionID = value.SessionID
	return value.Capabilities, nil
}

// Disconnect deletes the session.
func (c *Client) Disconnect(ctx context.Context) error {
	if c.sessionID == "" {
		return nil
	}
	err := c.do(ctx, http.MethodDelete, c.sessionPath(), nil, nil)
	c.sessionID = ""
	return err
}

// Element Operations

// FindElements returns the IDs of every match; no match is an empty slice.
func (c *Client) FindElements(ctx context.Context, using, value string) ([]string, error) {
	var refs []map[string]interface{}
	body := map[string]interface{}{"using": using, "value": value}
	if err := c.do(ctx, http.MethodPost, c.sessionPath()+"/elements", body, &refs); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		if id := extractElementID(ref); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ClickElement clicks an element.
func (c *Client) ClickElement(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, c.elementPath(id)+"/click", map[string]interface{}{}, nil)
}

// ClearElement clears an input.
func (c *Client) ClearElement(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, c.elementPath(id)+"/clear", map[string]interface{}{}, nil)
}

// SendKeys types text into an element.
func (c *Client) SendKeys(ctx context.Context, id, text string) error {
	return c.do(ctx, http.MethodPost, c.elementPath(id)+"/value", map[string]interface{}{"text": text}, nil)
}

// ElementText returns the rendered text.
func (c *Client) ElementText(ctx context.Context, id string) (string, error) {
	var text string
	err := c.do(ctx, http.MethodGet, c.elementPath(id)+"/text", nil, &text)
	return text, err
}

// ElementProperty returns a DOM property, "" when null.
func (c *Client) ElementProperty(ctx context.Context, id, name string) (string, error) {
	var v interface{}
	if err := c.do(ctx, http.MethodGet, c.elementPath(id)+"/property/"+name, nil, &v); err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	return fmt.Sprint(v), nil
}

// ElementTagName returns the lower-case tag name.
func (c *Client) ElementTagName(ctx context.Context, id string) (string, error) {
	var name string
	err := c.do(ctx, http.MethodGet, c.elementPath(id)+"/name", nil, &name)
	return strings.ToLower(name), err
}

// IsElementDisplayed checks visibility.
func (c *Client) IsElementDisplayed(ctx context.Context, id string) (bool, error) {
	var shown bool
	err := c.do(ctx, http.MethodGet, c.elementPath(id)+"/displayed", nil, &shown)
	return shown, err
}

// IsElementEnabled checks whether the element accepts input.
func (c *Client) IsElementEnabled(ctx context.Context, id string) (bool, error) {
	var enabled bool
	err := c.do(ctx, http.MethodGet, c.elementPath(id)+"/enabled", nil, &enabled)
	return enabled, err
}

// Navigation

// Navigate loads url.
func (c *Client) Navigate(ctx context.Context, url string) error {
	return c.do(ctx, http.MethodPost, c.sessionPath()+"/url", map[string]interface{}{"url": url}, nil)
}

// CurrentURL returns the address of the current page.
func (c *Client) CurrentURL(ctx context.Context) (string, error) {
	var url string
	err := c.do(ctx, http.MethodGet, c.sessionPath()+"/url", nil, &url)
	return url, err
}

// Screenshot returns the viewport as PNG.
func (c *Client) Screenshot(ctx context.Context) ([]byte, error) {
	var encoded string
	if err := c.do(ctx, http.MethodGet, c.sessionPath()+"/screenshot", nil, &encoded); err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// Source returns the serialized DOM.
func (c *Client) Source(ctx context.Context) (string, error) {
	var src string
	err := c.do(ctx, http.MethodGet, c.sessionPath()+"/source", nil, &src)
	return src, err
}

// Execute runs script synchronously. Args must already be JSON-ready.
func (c *Client) Execute(ctx context.Context, script string, args []interface{}) (interface{}, error) {
	if args == nil {
		args = []interface{}{}
	}
	var out interface{}
	err := c.do(ctx, http.MethodPost, c.sessionPath()+"/execute/sync", map[string]interface{}{
		"script": script,
		"args":   args,
	}, &out)
	return out, err
}

// SetWindowRect resizes the browser window.
func (c *Client) SetWindowRect(ctx context.Context, width, height int) error {
	return c.do(ctx, http.MethodPost, c.sessionPath()+"/window/rect", map[string]interface{}{
		"width":  width,
		"height": height,
	}, nil)
}

// HTTP Helpers

func (c *Client) sessionPath() string {
	return "/session/" + c.sessionID
}

func (c *Client) elementPath(id string) string {
	return c.sessionPath() + "/element/" + id
}

// wireError is the W3C error payload.
type wireError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// do sends one command and decodes the "value" member into out.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	op := strings.TrimPrefix(path, c.sessionPath())
	if op == "" {
		op = path
	}
	op = method + " " + op

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &core.DriverConnectionError{Driver: driverName, Op: op, Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &core.DriverConnectionError{Driver: driverName, Op: op, Cause: err}
	}

	var envelope struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		if resp.StatusCode >= 400 {
			return &core.DriverConnectionError{Driver: driverName, Op: op, Cause: fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))}
		}
		return fmt.Errorf("%s: parse response: %w", op, err)
	}

	if resp.StatusCode >= 400 {
		var we wireError
		_ = json.Unmarshal(envelope.Value, &we)
		if we.Error == "" {
			we.Error = http.StatusText(resp.StatusCode)
		}
		return mapError(op, we)
	}
	if out == nil || len(envelope.Value) == 0 || string(envelope.Value) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Value, out); err != nil {
		return fmt.Errorf("%s: decode value: %w", op, err)
	}
	return nil
}

// mapError translates W3C error codes into the core taxonomy.
func mapError(op string, we wireError) error {
	cause := fmt.Errorf("%s: %s: %s", op, we.Error, firstLine(we.Message))
	switch we.Error {
	case "no such element":
		return core.ErrElementNotFound.WithCause(cause)
	case "stale element reference":
		return core.ErrStaleElement.WithCause(cause)
	case "element not interactable", "element click intercepted":
		return core.ErrElementNotInteractable.WithCause(cause)
	case "invalid selector", "invalid argument":
		return core.ErrInvalidConfig.WithCause(cause)
	case "session not created":
		return core.ErrSessionNotCreated.WithCause(cause)
	case "invalid session id", "no such window":
		return &core.DriverConnectionError{Driver: driverName, Op: op, Cause: cause}
	}
	return cause
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func extractElementID(value map[string]interface{}) string {
	// W3C format
	if id, ok := value[w3cElementKey].(string); ok {
		return id
	}
	// Legacy format
	if id, ok := value["ELEMENT"].(string); ok {
		return id
	}
	return ""
}
