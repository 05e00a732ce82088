// Package client talks to an astro server over its JSON API. It implements
// the stream opener and confirmation sender ports, so remote runs can be
// followed and answered exactly like local ones.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/rishimeka/astro/internal/logging"
	"github.com/rishimeka/astro/pkg/domain"
	"github.com/rishimeka/astro/pkg/validator"
)

// ValidationError reports the findings a save or run was rejected with.
type ValidationError struct {
	Findings []validator.Finding
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s (%d findings)", domain.ErrInvalidConstellation, len(e.Findings))
}

// Unwrap lets errors.Is match domain.ErrInvalidConstellation.
func (e *ValidationError) Unwrap() error {
	return domain.ErrInvalidConstellation
}

// RunDetail is a run summary plus its node records.
type RunDetail struct {
	Run   domain.RunRecord    `json:"run"`
	Nodes []domain.NodeRecord `json:"nodes"`
}

// ValidationResult reports validator findings for a stored constellation.
type ValidationResult struct {
	Valid    bool                `json:"valid"`
	Findings []validator.Finding `json:"findings"`
}

type startRunRequest struct {
	ConstellationID string `json:"constellation_id"`
	Input           string `json:"input,omitempty"`
}

type startRunResponse struct {
	RunID string `json:"run_id"`
}

type runList struct {
	Runs []domain.RunRecord `json:"runs"`
}

type constellationList struct {
	Constellations []domain.Constellation `json:"constellations"`
}

type validationBody struct {
	Error    string              `json:"error"`
	Findings []validator.Finding `json:"findings"`
}

// Client is a thin wrapper over the server's routes. It is safe for
// concurrent use.
type Client struct {
	base   string
	http   *http.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The default carries no
// timeout because event streams stay open for the lifetime of a run; callers
// wanting deadlines should scope them through the request context.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the transport logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client for the server at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:   strings.TrimRight(baseURL, "/"),
		http:   &http.Client{},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateConstellation saves a constellation. A graph with error-severity
// findings is rejected; the returned error unwraps to
// domain.ErrInvalidConstellation and carries the findings as a
// *ValidationError.
func (c *Client) CreateConstellation(ctx context.Context, constellation *domain.Constellation) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/constellations", constellation)
	if err != nil {
		return err
	}
	status, body, err := c.do(req, nil)
	switch {
	case status == http.StatusUnprocessableEntity:
		return validationError(body)
	case err != nil:
		return fmt.Errorf("create constellation: %w", err)
	}
	return nil
}

// Constellation fetches one stored constellation.
func (c *Client) Constellation(ctx context.Context, id string) (*domain.Constellation, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/constellations/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	var out domain.Constellation
	status, _, err := c.do(req, &out)
	switch {
	case status == http.StatusNotFound:
		return nil, fmt.Errorf("constellation %s: %w", id, domain.ErrConstellationNotFound)
	case err != nil:
		return nil, fmt.Errorf("get constellation: %w", err)
	}
	return &out, nil
}

// Constellations lists every stored constellation.
func (c *Client) Constellations(ctx context.Context) ([]domain.Constellation, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/constellations", nil)
	if err != nil {
		return nil, err
	}
	var out constellationList
	if _, _, err := c.do(req, &out); err != nil {
		return nil, fmt.Errorf("list constellations: %w", err)
	}
	return out.Constellations, nil
}

// DeleteConstellation removes a stored constellation.
func (c *Client) DeleteConstellation(ctx context.Context, id string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/constellations/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	status, _, err := c.do(req, nil)
	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("constellation %s: %w", id, domain.ErrConstellationNotFound)
	case err != nil:
		return fmt.Errorf("delete constellation: %w", err)
	}
	return nil
}

// Validate re-checks a stored constellation and returns its findings.
func (c *Client) Validate(ctx context.Context, id string) (ValidationResult, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/constellations/"+url.PathEscape(id)+"/validate", nil)
	if err != nil {
		return ValidationResult{}, err
	}
	var out ValidationResult
	status, _, err := c.do(req, &out)
	switch {
	case status == http.StatusNotFound:
		return ValidationResult{}, fmt.Errorf("constellation %s: %w", id, domain.ErrConstellationNotFound)
	case err != nil:
		return ValidationResult{}, fmt.Errorf("validate constellation: %w", err)
	}
	return out, nil
}

// StartRun asks the server to execute a stored constellation and returns the
// accepted run id. Progress arrives on the run's event stream.
func (c *Client) StartRun(ctx context.Context, constellationID, input string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/runs", startRunRequest{
		ConstellationID: constellationID,
		Input:           input,
	})
	if err != nil {
		return "", err
	}
	var out startRunResponse
	status, body, err := c.do(req, &out)
	switch {
	case status == http.StatusNotFound:
		return "", fmt.Errorf("constellation %s: %w", constellationID, domain.ErrConstellationNotFound)
	case status == http.StatusUnprocessableEntity:
		return "", validationError(body)
	case err != nil:
		return "", fmt.Errorf("start run: %w", err)
	}
	return out.RunID, nil
}

// Run fetches the stored summary and node records of a run.
func (c *Client) Run(ctx context.Context, runID string) (RunDetail, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/runs/"+url.PathEscape(runID), nil)
	if err != nil {
		return RunDetail{}, err
	}
	var out RunDetail
	status, _, err := c.do(req, &out)
	switch {
	case status == http.StatusNotFound:
		return RunDetail{}, fmt.Errorf("run %s: %w", runID, domain.ErrRunNotFound)
	case err != nil:
		return RunDetail{}, fmt.Errorf("get run: %w", err)
	}
	return out, nil
}

// Runs lists run summaries, most recent first.
func (c *Client) Runs(ctx context.Context) ([]domain.RunRecord, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/runs", nil)
	if err != nil {
		return nil, err
	}
	var out runList
	if _, _, err := c.do(req, &out); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out.Runs, nil
}

// DeleteRun removes a run and its node records.
func (c *Client) DeleteRun(ctx context.Context, runID string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/runs/"+url.PathEscape(runID), nil)
	if err != nil {
		return err
	}
	status, _, err := c.do(req, nil)
	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("run %s: %w", runID, domain.ErrRunNotFound)
	case err != nil:
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, payload)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do executes the request and decodes a 2xx response into out. On other
// statuses it returns the status code, the raw body for the caller to
// interpret, and an error summarizing both.
func (c *Client) do(req *http.Request, out any) (int, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return resp.StatusCode, nil, fmt.Errorf("decode response: %w", err)
			}
		}
		return resp.StatusCode, nil, nil
	}

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if readErr != nil {
		body = nil
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = resp.Status
	}
	c.logger.Debug("request failed", "method", req.Method, "url", req.URL.String(), "status", resp.StatusCode)
	return resp.StatusCode, body, fmt.Errorf("server returned %d: %s", resp.StatusCode, msg)
}

// validationError decodes a 422 body into a ValidationError. A body that
// does not parse still reports the sentinel, just without findings.
func validationError(body []byte) error {
	var vb validationBody
	if err := json.Unmarshal(body, &vb); err != nil {
		return &ValidationError{}
	}
	return &ValidationError{Findings: vb.Findings}
}
