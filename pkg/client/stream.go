package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rishimeka/astro/pkg/domain"
	"github.com/rishimeka/astro/pkg/ports"
)

var (
	_ ports.StreamOpener       = (*Client)(nil)
	_ ports.ConfirmationSender = (*Client)(nil)
)

// OpenRunStream subscribes to a run's event stream. The returned reader
// carries raw SSE bytes and stays open until the run terminates, the context
// ends, or the caller closes it.
func (c *Client) OpenRunStream(ctx context.Context, runID string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/runs/"+url.PathEscape(runID)+"/events", nil)
	if err != nil {
		return nil, fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open run stream: %w", err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, nil
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("run %s: %w", runID, domain.ErrRunNotFound)
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("open run stream: server returned %d", resp.StatusCode)
	}
}

// SendConfirmation delivers a proceed/cancel decision for a paused run.
func (c *Client) SendConfirmation(ctx context.Context, runID string, decision domain.ConfirmationDecision) (domain.ConfirmationAck, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/runs/"+url.PathEscape(runID)+"/confirm", decision)
	if err != nil {
		return domain.ConfirmationAck{}, err
	}
	var ack domain.ConfirmationAck
	status, _, err := c.do(req, &ack)
	switch {
	case status == http.StatusNotFound:
		return domain.ConfirmationAck{}, fmt.Errorf("run %s: %w", runID, domain.ErrRunNotFound)
	case status == http.StatusConflict:
		return domain.ConfirmationAck{}, fmt.Errorf("run %s: %w", runID, domain.ErrNoConfirmationPending)
	case err != nil:
		return domain.ConfirmationAck{}, fmt.Errorf("send confirmation: %w", err)
	}
	return ack, nil
}
