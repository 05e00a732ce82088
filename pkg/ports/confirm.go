package ports

import (
	"context"

	"github.com/rishimeka/astro/pkg/domain"
)

// ConfirmationSender delivers a proceed/cancel decision for a run paused on
// a confirmation-gated node. The acknowledgement is receipt only; the
// authoritative state transition still arrives on the event stream.
type ConfirmationSender interface {
	SendConfirmation(ctx context.Context, runID string, decision domain.ConfirmationDecision) (domain.ConfirmationAck, error)
}
