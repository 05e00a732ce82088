package http

import (
	"log/slog"
	"sync"

	"github.com/rishimeka/astro/internal/logging"
	"github.com/rishimeka/astro/pkg/domain"
	"github.com/rishimeka/astro/pkg/observability"
)

// subscriberBuffer bounds how far a slow viewer may lag before it starts
// losing events.
const subscriberBuffer = 16

// Hub fans run events out to SSE subscribers. It keeps the full event
// history of every in-flight run so a viewer that attaches mid-run replays
// what it missed before switching to live delivery; the snapshot and the
// channel registration happen under one lock, so the handoff has no gap and
// no duplicates.
//
// A terminal event closes every subscriber channel and drops the run's
// buffers. Viewers that arrive later are served from the run store instead.
type Hub struct {
	mu      sync.Mutex
	subs    map[string]map[chan domain.RunEvent]struct{}
	history map[string][]domain.RunEvent

	logger  *slog.Logger
	metrics *observability.Metrics
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubLogger sets the logger used for delivery diagnostics.
func WithHubLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithHubMetrics wires the subscriber gauge.
func WithHubMetrics(m *observability.Metrics) HubOption {
	return func(h *Hub) {
		h.metrics = m
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		subs:    make(map[string]map[chan domain.RunEvent]struct{}),
		history: make(map[string][]domain.RunEvent),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Broadcast records ev in the run's history and delivers it to every live
// subscriber. Delivery is non-blocking: a subscriber whose buffer is full
// loses the event rather than stalling the engine.
func (h *Hub) Broadcast(ev domain.RunEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.history[ev.RunID] = append(h.history[ev.RunID], ev)
	for ch := range h.subs[ev.RunID] {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("subscriber buffer full, dropping event",
				"run_id", ev.RunID, "event", string(ev.Type))
		}
	}

	if terminalEvent(ev) {
		for ch := range h.subs[ev.RunID] {
			close(ch)
			h.metrics.SubscriberRemoved()
		}
		delete(h.subs, ev.RunID)
		delete(h.history, ev.RunID)
	}
}

// Subscribe attaches a viewer to a run. The returned slice replays every
// event broadcast so far; events after the snapshot arrive on the channel,
// which the hub closes once the run terminates. cancel detaches the viewer
// and is safe to call after the hub has already closed the channel.
func (h *Hub) Subscribe(runID string) ([]domain.RunEvent, <-chan domain.RunEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan domain.RunEvent, subscriberBuffer)
	if h.subs[runID] == nil {
		h.subs[runID] = make(map[chan domain.RunEvent]struct{})
	}
	h.subs[runID][ch] = struct{}{}
	h.metrics.SubscriberAdded()

	replay := make([]domain.RunEvent, len(h.history[runID]))
	copy(replay, h.history[runID])

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		set, ok := h.subs[runID]
		if !ok {
			return
		}
		if _, ok := set[ch]; !ok {
			return
		}
		delete(set, ch)
		if len(set) == 0 {
			delete(h.subs, runID)
		}
		h.metrics.SubscriberRemoved()
	}
	return replay, ch, cancel
}

// Subscribers reports how many viewers are attached to the run.
func (h *Hub) Subscribers(runID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[runID])
}

func terminalEvent(ev domain.RunEvent) bool {
	return ev.Type == domain.EventRunCompleted || ev.Type == domain.EventRunFailed
}
