package scenario

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/devicelab-dev/pageflow/pkg/core"
	"github.com/devicelab-dev/pageflow/pkg/executor"
	"github.com/devicelab-dev/pageflow/pkg/httpclient"
)

// APIName is the registry name of APIScenario.
const APIName = "api"

// blockedStatuses are what public demo APIs answer when they throttle or
// block automated clients.
var blockedStatuses = map[int]bool{
	http.StatusUnauthorized:    true,
	http.StatusForbidden:       true,
	http.StatusTooManyRequests: true,
}

// APIScenario sends one HTTP request per record:
//
//	method         GET when absent
//	path           resolved against the client base URL
//	body           any JSON value
//	expect_status  default 200
//	expect_keys    top-level keys the JSON body must have
//	max_ms         response time budget
type APIScenario struct {
	Client *httpclient.Client
	// SkipOnBlocked reports a record as SKIPPED when retries run out on
	// 401, 403 or 429.
	SkipOnBlocked bool
}

func (s *APIScenario) Name() string { return APIName }

func (s *APIScenario) Run(ctx context.Context, env *executor.Env, rec core.TestRecord) error {
	method := strings.ToUpper(rec.String("method"))
	if method == "" {
		method = http.MethodGet
	}
	path := rec.String("path")
	if path == "" {
		return &core.DataFormatError{Path: rec.Source(), Reason: fmt.Sprintf("record %s has no path", rec.CaseID())}
	}
	want := http.StatusOK
	if rec.Has("expect_status") {
		n, err := rec.Int("expect_status")
		if err != nil {
			return &core.DataFormatError{Path: rec.Source(), Reason: fmt.Sprintf("record %s: expect_status: %v", rec.CaseID(), err)}
		}
		want = n
	}

	req := httpclient.Request{Method: method, URL: path}
	if body, ok := rec.Get("body"); ok {
		req.Body = body
	}

	resp, err := s.Client.Do(ctx, req)
	if err != nil {
		var exhausted *httpclient.RetryExhaustedError
		switch {
		case !errors.As(err, &exhausted):
			return err
		case exhausted.LastErr == nil && resp != nil && resp.Status == want:
			// A retryable status can still be the expected one.
		case s.SkipOnBlocked && blockedStatuses[exhausted.LastStatus]:
			return core.Skip("endpoint blocked the client with %d after %d attempts", exhausted.LastStatus, exhausted.Attempts)
		default:
			return err
		}
	}
	env.Logger.Debug("api response",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.Status),
		zap.Int("attempts", resp.Attempts),
		zap.Duration("elapsed", resp.Duration),
	)

	if err := httpclient.ValidateStatus(resp, want); err != nil {
		return err
	}
	if keys := stringList(rec, "expect_keys"); len(keys) > 0 {
		if err := httpclient.ValidateJSONKeys(resp, keys...); err != nil {
			return err
		}
	}
	if rec.Has("max_ms") {
		ms, err := rec.Int("max_ms")
		if err != nil {
			return &core.DataFormatError{Path: rec.Source(), Reason: fmt.Sprintf("record %s: max_ms: %v", rec.CaseID(), err)}
		}
		if budget := time.Duration(ms) * time.Millisecond; resp.Duration > budget {
			return core.Mismatch("response time", budget, resp.Duration)
		}
	}
	return nil
}

// stringList reads a field holding a list, or a comma separated string.
func stringList(rec core.TestRecord, key string) []string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return nil
	}
	var out []string
	switch val := v.(type) {
	case []interface{}:
		for _, item := range val {
			out = append(out, fmt.Sprint(item))
		}
	case []string:
		out = append(out, val...)
	default:
		for _, part := range strings.Split(fmt.Sprint(val), ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
