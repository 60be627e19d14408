package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/devicelab-dev/pageflow/pkg/core"
)

func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, URL: url})
}

func (c *Client) Post(ctx context.Context, url string, body interface{}) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, URL: url, Body: body})
}

func (c *Client) Put(ctx context.Context, url string, body interface{}) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPut, URL: url, Body: body})
}

func (c *Client) Patch(ctx context.Context, url string, body interface{}) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPatch, URL: url, Body: body})
}

func (c *Client) Delete(ctx context.Context, url string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, URL: url})
}

// ValidateStatus fails unless resp carries one of want.
func ValidateStatus(resp *Response, want ...int) error {
	if resp == nil {
		return core.Failf("no response")
	}
	for _, w := range want {
		if resp.Status == w {
			return nil
		}
	}
	if len(want) == 1 {
		return core.Mismatch("unexpected status", want[0], resp.Status)
	}
	return core.Mismatch("unexpected status", want, resp.Status)
}

// ValidateJSONKeys fails unless the body is a JSON object holding every key.
func ValidateJSONKeys(resp *Response, keys ...string) error {
	var obj map[string]json.RawMessage
	if err := DecodeJSON(resp, &obj); err != nil {
		return core.Failf("body is not a JSON object: %v", err)
	}
	var missing []string
	for _, k := range keys {
		if _, ok := obj[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		present := make([]string, 0, len(obj))
		for k := range obj {
			present = append(present, k)
		}
		sort.Strings(present)
		return core.Mismatch("missing JSON keys", missing, present)
	}
	return nil
}

// DecodeJSON unmarshals the body into v.
func DecodeJSON(resp *Response, v interface{}) error {
	if resp == nil {
		return fmt.Errorf("no response")
	}
	return json.Unmarshal(resp.Body, v)
}
