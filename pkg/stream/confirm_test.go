package stream_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rishimeka/astro/pkg/domain"
	"github.com/rishimeka/astro/pkg/stream"
)

// openGated drives a fresh subscription up to a pending confirmation on node
// "gate" and returns the write end of its transport.
func openGated(t *testing.T, c *stream.Client, pw *io.PipeWriter) {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, c.Open(ctx, "r1"))

	go func() {
		_, _ = pw.Write(sse("run_started", `{"run_id":"r1"}`))
		_, _ = pw.Write(sse("node_started", `{"run_id":"r1","node_id":"gate","star_id":"s-exec"}`))
		_, _ = pw.Write(sse("node_awaiting_confirmation", `{"run_id":"r1","node_id":"gate","prompt":"Proceed with deployment?"}`))
	}()

	require.Eventually(t, func() bool {
		st, ok := c.State("r1")
		return ok && st.AwaitingConfirmation != nil
	}, time.Second, 5*time.Millisecond)
}

func TestConfirmUnknownRunFailsFast(t *testing.T) {
	confirmer := &confirmerStub{}
	c := stream.New(&scriptedOpener{}, confirmer)

	_, err := c.Confirm(context.Background(), "ghost", true, "")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
	assert.Equal(t, 0, confirmer.callCount(), "nothing may be sent for an unknown run")
}

func TestConfirmWithoutPendingGateFailsFast(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	confirmer := &confirmerStub{}
	opener := &scriptedOpener{readers: []io.ReadCloser{pr}}
	c := stream.New(opener, confirmer)
	defer c.CloseAll()

	ctx := context.Background()
	require.NoError(t, c.Open(ctx, "r1"))

	go pw.Write(sse("run_started", `{"run_id":"r1"}`))
	require.Eventually(t, func() bool {
		st, ok := c.State("r1")
		return ok && st.Status == domain.RunRunning
	}, time.Second, 5*time.Millisecond)

	_, err := c.Confirm(ctx, "r1", true, "")
	assert.ErrorIs(t, err, domain.ErrNoConfirmationPending)
	assert.Equal(t, 0, confirmer.callCount())
}

func TestConfirmProceedResumesRun(t *testing.T) {
	pr, pw := io.Pipe()

	confirmer := &confirmerStub{ack: domain.ConfirmationAck{
		RunID:  "r1",
		Status: domain.RunRunning,
	}}
	opener := &scriptedOpener{readers: []io.ReadCloser{pr}}
	c := stream.New(opener, confirmer)
	defer c.CloseAll()

	openGated(t, c, pw)

	ctx := context.Background()
	ack, err := c.Confirm(ctx, "r1", true, "use the staging credentials")
	require.NoError(t, err)
	assert.Equal(t, domain.RunRunning, ack.Status)

	decision := confirmer.lastDecision()
	assert.True(t, decision.Proceed)
	assert.Equal(t, "use the staging credentials", decision.AdditionalContext)

	st, ok := c.State("r1")
	require.True(t, ok)
	assert.Equal(t, domain.RunRunning, st.Status, "proceed flips the state back to running")
	assert.Nil(t, st.AwaitingConfirmation)

	// The server's own resume and completion still apply.
	go func() {
		_, _ = pw.Write(sse("run_resumed", `{"run_id":"r1"}`))
		_, _ = pw.Write(sse("node_completed", `{"run_id":"r1","node_id":"gate","output":"deployed"}`))
		_, _ = pw.Write(sse("run_completed", `{"run_id":"r1","output":"deployed"}`))
	}()

	final, err := c.Wait(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, final.Status)
	assert.Equal(t, "deployed", final.FinalOutput)
	assert.Equal(t, domain.NodeCompleted, final.NodeStates["gate"].Status)
}

func TestConfirmCancelStopsLocally(t *testing.T) {
	pr, pw := io.Pipe()

	confirmer := &confirmerStub{ack: domain.ConfirmationAck{
		RunID:  "r1",
		Status: domain.RunCancelled,
	}}
	opener := &scriptedOpener{readers: []io.ReadCloser{pr}}
	c := stream.New(opener, confirmer)
	defer c.CloseAll()

	openGated(t, c, pw)

	ctx := context.Background()
	ack, err := c.Confirm(ctx, "r1", false, "this must never be sent")
	require.NoError(t, err)
	assert.Equal(t, domain.RunCancelled, ack.Status)

	decision := confirmer.lastDecision()
	assert.False(t, decision.Proceed)
	assert.Empty(t, decision.AdditionalContext, "cancel must not carry additional context")

	final, err := c.Wait(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunCancelled, final.Status)

	// A straggler event must not resurrect the run.
	_, _ = pw.Write(sse("node_completed", `{"run_id":"r1","node_id":"gate","output":"late"}`))
	time.Sleep(20 * time.Millisecond)

	st, _ := c.State("r1")
	assert.Equal(t, domain.RunCancelled, st.Status)
	assert.NotEqual(t, "late", st.NodeStates["gate"].Output)
	assert.Equal(t, 1, opener.openCount(), "no reconnection after a local cancel")
}

func TestConfirmSendFailureKeepsGate(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	confirmer := &confirmerStub{err: errors.New("boom")}
	opener := &scriptedOpener{readers: []io.ReadCloser{pr}}
	c := stream.New(opener, confirmer)
	defer c.CloseAll()

	openGated(t, c, pw)

	_, err := c.Confirm(context.Background(), "r1", true, "extra")
	require.Error(t, err)
	assert.ErrorContains(t, err, "boom")

	st, ok := c.State("r1")
	require.True(t, ok)
	assert.Equal(t, domain.RunAwaitingConfirmation, st.Status, "failed send leaves the gate pending")
	require.NotNil(t, st.AwaitingConfirmation)
	assert.Equal(t, "Proceed with deployment?", st.AwaitingConfirmation.Prompt)
	assert.Equal(t, "gate", st.AwaitingConfirmation.NodeID)
}
