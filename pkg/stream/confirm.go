package stream

import (
	"context"
	"fmt"

	"github.com/rishimeka/astro/pkg/domain"
)

// Confirm delivers the user's decision for a run paused at a confirmation
// gate. It fails fast, before touching the network, when the run id is
// unknown to this client or no confirmation is pending.
//
// On proceed the optional additional context rides along with the decision
// and the local state optimistically flips back to running; the
// authoritative transition still arrives as a run_resumed event. On cancel
// no context is sent, the run is locally marked cancelled and no further
// events are processed for it.
func (c *Client) Confirm(ctx context.Context, runID string, proceed bool, additionalContext string) (domain.ConfirmationAck, error) {
	c.mu.Lock()
	s, ok := c.sessions[runID]
	if !ok {
		c.mu.Unlock()
		return domain.ConfirmationAck{}, fmt.Errorf("confirm %s: %w", runID, domain.ErrRunNotFound)
	}
	if s.state.AwaitingConfirmation == nil {
		c.mu.Unlock()
		return domain.ConfirmationAck{}, fmt.Errorf("confirm %s: %w", runID, domain.ErrNoConfirmationPending)
	}
	c.mu.Unlock()

	decision := domain.ConfirmationDecision{Proceed: proceed}
	if proceed {
		decision.AdditionalContext = additionalContext
	}

	ack, err := c.confirmer.SendConfirmation(ctx, runID, decision)
	if err != nil {
		return domain.ConfirmationAck{}, fmt.Errorf("send confirmation for %s: %w", runID, err)
	}

	c.mu.Lock()
	s.state.AwaitingConfirmation = nil
	if proceed {
		s.state.Status = domain.RunRunning
	} else {
		s.state.Status = domain.RunCancelled
		s.terminal = true
		if s.cancel != nil {
			s.cancel()
		}
		if s.rc != nil {
			_ = s.rc.Close()
		}
		if s.retryTimer != nil {
			s.retryTimer.Stop()
		}
	}
	st := s.state
	listener := s.listener
	c.mu.Unlock()

	if listener != nil {
		listener(st)
	}
	return ack, nil
}
