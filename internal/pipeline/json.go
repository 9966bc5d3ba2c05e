package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fedtaxi/hojaruta/internal/apierr"
)

// NewJSONRequest builds a request with body encoded as JSON. A nil body sends none.
// The body is a bytes.Reader so the request can be replayed.
func NewJSONRequest(ctx context.Context, method, url string, body interface{}) (*http.Request, error) {
	var buf *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		buf = bytes.NewReader(b)
	}
	var req *http.Request
	var err error
	if buf != nil {
		req, err = http.NewRequestWithContext(ctx, method, url, buf)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, url, nil)
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if buf != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Decode turns a non-2xx response into an *apierr.Error, otherwise decodes the
// JSON body into out (skipped when out is nil). The body is always closed.
func Decode(resp *http.Response, out interface{}) error {
	if err := apierr.CheckResponse(resp); err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		path := ""
		if resp.Request != nil {
			path = resp.Request.URL.Path
		}
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
