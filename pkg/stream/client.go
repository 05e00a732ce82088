package stream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/rishimeka/astro/internal/logging"
	"github.com/rishimeka/astro/pkg/domain"
	"github.com/rishimeka/astro/pkg/ports"
	"github.com/rishimeka/astro/pkg/runstate"
)

// RetryPolicy bounds how stubbornly the client chases a lost transport.
type RetryPolicy struct {
	// MaxAttempts is the number of consecutive connection attempts allowed
	// without the stream delivering a single frame. Once reached, the run is
	// marked failed locally.
	MaxAttempts int
	// BaseDelay seeds the exponential backoff between attempts.
	BaseDelay time.Duration
}

// DefaultRetryPolicy waits 1s, then 2s, and gives up on the third loss.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}

// Backoff returns the wait before reconnect attempt n (1-based):
// BaseDelay doubled for each attempt after the first.
func (p RetryPolicy) Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	return p.BaseDelay << (n - 1)
}

// session bundles everything owned by one run subscription so that open,
// retry and close act on a single unit.
type session struct {
	runID    string
	state    domain.ExecutionState
	listener func(domain.ExecutionState)

	cancel     context.CancelFunc
	rc         io.ReadCloser
	retryTimer *time.Timer
	failures   int
	terminal   bool
	closed     bool

	done     chan struct{}
	doneOnce sync.Once
}

// Client maintains at most one live subscription per run id. Each decoded
// event is folded into that run's execution state, which remains readable
// through State even after the subscription ends.
type Client struct {
	opener    ports.StreamOpener
	confirmer ports.ConfirmationSender
	retry     RetryPolicy
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for dropped frames and transport loss.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRetryPolicy overrides the reconnection policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		if p.MaxAttempts > 0 {
			c.retry = p
		}
	}
}

// New creates a stream client over the given transport primitives. The
// confirmer is used by Confirm to deliver pause decisions.
func New(opener ports.StreamOpener, confirmer ports.ConfirmationSender, opts ...Option) *Client {
	c := &Client{
		opener:    opener,
		confirmer: confirmer,
		retry:     DefaultRetryPolicy,
		logger:    logging.NewNop(),
		sessions:  make(map[string]*session),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type openConfig struct {
	initial  *domain.ExecutionState
	listener func(domain.ExecutionState)
}

// OpenOption configures a single subscription.
type OpenOption func(*openConfig)

// WithInitialState seeds the subscription with a previously known state,
// typically built by runstate.Seed from persisted records. If the seeded
// status is already terminal no transport is opened at all; the state is
// simply kept for reading.
func WithInitialState(st domain.ExecutionState) OpenOption {
	return func(cfg *openConfig) {
		cfg.initial = &st
	}
}

// WithListener registers a callback invoked after every state change. The
// callback receives a snapshot and must not retain it across calls if it
// mutates; it is invoked from the subscription goroutine.
func WithListener(fn func(domain.ExecutionState)) OpenOption {
	return func(cfg *openConfig) {
		cfg.listener = fn
	}
}

// Open starts the subscription for a run. Any prior subscription for the
// same id is closed first, so at most one is live per run. Returns
// immediately; events are folded on a background goroutine.
func (c *Client) Open(ctx context.Context, runID string, opts ...OpenOption) error {
	if runID == "" {
		return fmt.Errorf("open stream: run id required")
	}

	var cfg openConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	initial := domain.NewExecutionState(runID)
	if cfg.initial != nil {
		initial = *cfg.initial
		if initial.RunID == "" {
			initial.RunID = runID
		}
	}

	c.mu.Lock()
	if prior, ok := c.sessions[runID]; ok {
		c.closeLocked(prior)
	}

	s := &session{
		runID:    runID,
		state:    initial,
		listener: cfg.listener,
		done:     make(chan struct{}),
	}
	c.sessions[runID] = s

	// A run already in a terminal state has nothing left to stream.
	if initial.Status.Terminal() {
		s.terminal = true
		s.closed = true
		c.mu.Unlock()
		c.finish(s)
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	c.mu.Unlock()

	go c.run(runCtx, s)
	return nil
}

// State returns the latest snapshot for a run. ok is false when the run id
// was never opened on this client.
func (c *Client) State(runID string) (domain.ExecutionState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[runID]
	if !ok {
		return domain.ExecutionState{}, false
	}
	return s.state, true
}

// Wait blocks until the run's subscription finishes, either because the run
// reached a terminal state or because it was closed, and returns the latest
// snapshot.
func (c *Client) Wait(ctx context.Context, runID string) (domain.ExecutionState, error) {
	c.mu.Lock()
	s, ok := c.sessions[runID]
	c.mu.Unlock()
	if !ok {
		return domain.ExecutionState{}, fmt.Errorf("wait for %s: %w", runID, domain.ErrRunNotFound)
	}

	select {
	case <-ctx.Done():
		return domain.ExecutionState{}, ctx.Err()
	case <-s.done:
	}

	st, _ := c.State(runID)
	return st, nil
}

// Close releases the subscription for a run. It is idempotent: repeated
// calls are safe, any in-flight read is aborted and any pending retry timer
// is cancelled. The last known state stays readable through State.
func (c *Client) Close(runID string) {
	c.mu.Lock()
	s, ok := c.sessions[runID]
	if ok {
		c.closeLocked(s)
	}
	c.mu.Unlock()
}

// CloseAll releases every subscription held by the client.
func (c *Client) CloseAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.sessions {
		c.closeLocked(s)
	}
}

func (c *Client) closeLocked(s *session) {
	if s.closed {
		return
	}
	s.closed = true
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

func (c *Client) finish(s *session) {
	s.doneOnce.Do(func() { close(s.done) })
}

// run owns the subscription lifecycle: connect, consume, and reconnect with
// backoff until the run terminates or the session is closed.
func (c *Client) run(ctx context.Context, s *session) {
	defer c.finish(s)

	for {
		rc, err := c.opener.OpenRunStream(ctx, s.runID)
		if err == nil {
			c.mu.Lock()
			if s.closed {
				c.mu.Unlock()
				_ = rc.Close()
				return
			}
			s.rc = rc
			c.mu.Unlock()

			readErr := c.consume(s, rc)
			_ = rc.Close()

			c.mu.Lock()
			s.rc = nil
			stop := s.closed || s.terminal
			c.mu.Unlock()
			if stop || ctx.Err() != nil {
				return
			}
			c.logger.Warn("run stream interrupted", "run_id", s.runID, "err", readErr)
		} else {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("run stream connect failed", "run_id", s.runID, "err", err)
		}

		c.mu.Lock()
		s.failures++
		failures := s.failures
		c.mu.Unlock()

		if failures >= c.retry.MaxAttempts {
			c.failConnection(s)
			return
		}
		if !c.waitBackoff(ctx, s, c.retry.Backoff(failures)) {
			return
		}
	}
}

// consume reads the transport until it ends, feeding every chunk through the
// frame decoder. It returns nil once a terminal event has been folded and
// the transport error otherwise.
func (c *Client) consume(s *session, rc io.ReadCloser) error {
	var dec Decoder
	buf := make([]byte, 4096)

	for {
		n, err := rc.Read(buf)
		if n > 0 {
			for _, frame := range dec.Feed(buf[:n]) {
				if c.apply(s, frame) {
					return nil
				}
			}
		}
		if err != nil {
			return err
		}
	}
}

// apply folds one decoded frame into the session state. Any frame, even an
// unknown one, proves the transport is healthy again and resets the retry
// counter. Returns true once the run is terminal.
func (c *Client) apply(s *session, frame Frame) bool {
	c.mu.Lock()
	s.failures = 0

	if s.closed || s.terminal {
		c.mu.Unlock()
		return true
	}
	if !domain.KnownEvent(domain.RunEventType(frame.Event)) {
		c.mu.Unlock()
		return false
	}

	ev, err := domain.DecodeRunEvent(frame.Event, frame.Data)
	if err != nil {
		c.mu.Unlock()
		c.logger.Warn("dropping malformed frame", "run_id", s.runID, "event", frame.Event, "err", err)
		return false
	}

	s.state = runstate.Next(s.state, ev)
	terminal := s.state.Status.Terminal()
	if terminal {
		s.terminal = true
	}
	st := s.state
	listener := s.listener
	c.mu.Unlock()

	if listener != nil {
		listener(st)
	}
	return terminal
}

// failConnection marks the run failed after the retry budget is spent.
func (c *Client) failConnection(s *session) {
	c.mu.Lock()
	s.state = runstate.Next(s.state, domain.RunEvent{
		Type:  domain.EventRunFailed,
		RunID: s.runID,
		Error: fmt.Sprintf("connection lost after %d retry attempts", c.retry.MaxAttempts),
	})
	s.terminal = true
	st := s.state
	listener := s.listener
	c.mu.Unlock()

	c.logger.Error("run stream retries exhausted", "run_id", s.runID, "max_attempts", c.retry.MaxAttempts)
	if listener != nil {
		listener(st)
	}
}

// waitBackoff sleeps for the retry delay. It returns false when the session
// is closed or its context ends first.
func (c *Client) waitBackoff(ctx context.Context, s *session, d time.Duration) bool {
	timer := time.NewTimer(d)

	c.mu.Lock()
	if s.closed {
		c.mu.Unlock()
		timer.Stop()
		return false
	}
	s.retryTimer = timer
	c.mu.Unlock()

	defer func() {
		timer.Stop()
		c.mu.Lock()
		s.retryTimer = nil
		c.mu.Unlock()
	}()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
