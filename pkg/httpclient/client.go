// Package httpclient is the retrying HTTP boundary used by API scenarios.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultMaxAttempts caps attempts per request, first try included.
const DefaultMaxAttempts = 3

// RetryStatuses are the response codes worth another attempt.
var RetryStatuses = map[int]bool{
	http.StatusUnauthorized:        true, // 401
	http.StatusForbidden:           true, // 403
	http.StatusRequestTimeout:      true, // 408
	http.StatusTooEarly:            true, // 425
	http.StatusTooManyRequests:     true, // 429
	http.StatusInternalServerError: true, // 500
	http.StatusBadGateway:          true, // 502
	http.StatusServiceUnavailable:  true, // 503
	http.StatusGatewayTimeout:      true, // 504
}

// Observer is told about every attempt. status is 0 on transport errors.
type Observer func(method string, status, attempt int, err error)

// Config configures a Client.
type Config struct {
	BaseURL         string
	Timeout         time.Duration // per attempt, default 30s
	MaxAttempts     int           // default DefaultMaxAttempts
	InitialInterval time.Duration // first backoff, default 500ms
	MaxInterval     time.Duration // default 5s
	RateLimit       float64       // requests per second, 0 disables
	Burst           int
	Headers         map[string]string
	Logger          *zap.Logger
	Observer        Observer
	Transport       http.RoundTripper
}

// Client sends requests with retry and optional rate limiting.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New creates a Client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 5 * time.Second
	}
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Transport: cfg.Transport},
		logger: cfg.Logger,
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c
}

// Request describes one call. Body may be nil, []byte, string, io.Reader or
// any value that is sent as JSON.
type Request struct {
	Method  string
	URL     string // absolute, or relative to Config.BaseURL
	Headers map[string]string
	Body    interface{}
	Timeout time.Duration // overrides Config.Timeout
}

// Response is the last response received.
type Response struct {
	Status   int
	Headers  http.Header
	Body     []byte
	Duration time.Duration // across all attempts
	Attempts int
}

// RetryExhaustedError is returned once every attempt failed.
type RetryExhaustedError struct {
	Attempts   int
	LastStatus int // 0 when the last attempt got no response
	LastErr    error
}

func (e *RetryExhaustedError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("request failed after %d attempts: %v", e.Attempts, e.LastErr)
	}
	return fmt.Sprintf("request failed after %d attempts: last status %d", e.Attempts, e.LastStatus)
}

func (e *RetryExhaustedError) Unwrap() error { return e.LastErr }

// statusError marks a retryable status for the backoff loop.
type statusError struct{ status int }

func (e *statusError) Error() string { return fmt.Sprintf("retryable status %d", e.status) }

// Do sends req, retrying transport errors and RetryStatuses with exponential
// backoff. On exhaustion it returns the last response (if any) together with
// a *RetryExhaustedError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	target := c.resolve(req.URL)
	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.InitialInterval
	policy.MaxInterval = c.cfg.MaxInterval
	policy.MaxElapsedTime = 0
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.cfg.MaxAttempts-1)), ctx)

	var (
		last     *Response
		attempts int
		lastErr  error
		start    = time.Now()
	)
	op := func() error {
		attempts++
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		resp, err := c.once(ctx, method, target, req, body, contentType)
		status := 0
		if resp != nil {
			status = resp.Status
		}
		if c.cfg.Observer != nil {
			c.cfg.Observer(method, status, attempts, err)
		}
		if err != nil {
			var perm *backoff.PermanentError
			if errors.As(err, &perm) {
				return err
			}
			lastErr = err
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		last, lastErr = resp, nil
		if RetryStatuses[resp.Status] {
			return &statusError{status: resp.Status}
		}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Debug("retrying request",
			zap.String("method", method), zap.String("url", target),
			zap.Int("attempt", attempts), zap.Duration("backoff", wait), zap.Error(err))
	}

	err = backoff.RetryNotify(op, retry, notify)
	if last != nil {
		last.Duration = time.Since(start)
		last.Attempts = attempts
	}
	if err == nil {
		return last, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return last, fmt.Errorf("%s %s: %w", method, target, ctxErr)
	}
	var se *statusError
	if !errors.As(err, &se) && lastErr == nil {
		return last, err
	}
	exhausted := &RetryExhaustedError{Attempts: attempts, LastErr: lastErr}
	if last != nil && lastErr == nil {
		exhausted.LastStatus = last.Status
	}
	c.logger.Warn("request exhausted retries",
		zap.String("method", method), zap.String("url", target),
		zap.Int("attempts", attempts), zap.Int("last_status", exhausted.LastStatus))
	return last, exhausted
}

func (c *Client) once(ctx context.Context, method, target string, req Request, body []byte, contentType string) (*Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	hreq, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	if contentType != "" {
		hreq.Header.Set("Content-Type", contentType)
	}
	hreq.Header.Set("Accept", "application/json")
	for k, v := range c.cfg.Headers {
		hreq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		hreq.Header.Set(k, v)
	}

	hresp, err := c.http.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer hresp.Body.Close()
	data, err := io.ReadAll(hresp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &Response{Status: hresp.StatusCode, Headers: hresp.Header, Body: data}, nil
}

func (c *Client) resolve(u string) string {
	if c.cfg.BaseURL == "" || strings.Contains(u, "://") {
		return u
	}
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.TrimLeft(u, "/")
}

func encodeBody(body interface{}) ([]byte, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return b, "application/octet-stream", nil
	case string:
		return []byte(b), "text/plain; charset=utf-8", nil
	case io.Reader:
		data, err := io.ReadAll(b)
		return data, "application/octet-stream", err
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("encode body: %w", err)
		}
		return data, "application/json", nil
	}
}
