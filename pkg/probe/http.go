package probe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// httpArgs is the decoded input of an HTTP probe call.
type httpArgs struct {
	Method  string            `mapstructure:"method"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
	Body    string            `mapstructure:"body"`
}

// HTTPProbe performs GET and POST requests against external services.
//
// Input keys: "url" (required), "method" (GET or POST, defaults to GET),
// "headers" (string map), "body" (string, POST payloads).
// Output keys: "status_code" (int), "headers" (string map), "body" (string).
// Non-2xx responses are results, not errors; callers inspect status_code.
type HTTPProbe struct {
	client *http.Client
}

// NewHTTPProbe creates an HTTP probe. Timeouts come from the call context.
func NewHTTPProbe() *HTTPProbe {
	return &HTTPProbe{client: &http.Client{}}
}

// Name returns "http".
func (h *HTTPProbe) Name() string {
	return "http"
}

// Call executes an HTTP request described by input.
func (h *HTTPProbe) Call(ctx context.Context, input map[string]any) (map[string]any, error) {
	var args httpArgs
	if err := mapstructure.Decode(input, &args); err != nil {
		return nil, fmt.Errorf("failed to decode http probe input: %w", err)
	}

	if args.URL == "" {
		return nil, fmt.Errorf("url parameter required")
	}

	method := strings.ToUpper(args.Method)
	if method == "" {
		method = http.MethodGet
	}
	if method != http.MethodGet && method != http.MethodPost {
		return nil, fmt.Errorf("unsupported HTTP method: %s (supported: GET, POST)", method)
	}

	var body io.Reader
	if args.Body != "" {
		body = bytes.NewBufferString(args.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, args.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range args.Headers {
		req.Header.Set(key, value)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	respHeaders := make(map[string]string, len(resp.Header))
	for key := range resp.Header {
		respHeaders[key] = resp.Header.Get(key)
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"headers":     respHeaders,
		"body":        string(respBody),
	}, nil
}
