package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the prometheus instruments recorded during run execution.
// All metrics share the "astro" namespace.
type Metrics struct {
	runsStarted   *prometheus.CounterVec
	runsCompleted prometheus.Counter
	runsFailed    prometheus.Counter

	nodeDuration *prometheus.HistogramVec

	sseSubscribers prometheus.Gauge
}

// NewMetrics creates and registers the instruments with registry. A nil
// registry falls back to the default registerer.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		runsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "astro",
			Name:      "runs_started_total",
			Help:      "Runs started, by constellation.",
		}, []string{"constellation_id"}),

		runsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "astro",
			Name:      "runs_completed_total",
			Help:      "Runs that reached completed.",
		}),

		runsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "astro",
			Name:      "runs_failed_total",
			Help:      "Runs that reached failed or cancelled.",
		}),

		nodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "astro",
			Name:      "node_duration_seconds",
			Help:      "Star execution duration, including retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"star_type", "status"}),

		sseSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "astro",
			Name:      "sse_subscribers",
			Help:      "Active SSE event stream subscribers.",
		}),
	}
}

// RunStarted counts a new run for the given constellation.
func (m *Metrics) RunStarted(constellationID string) {
	if m == nil {
		return
	}
	m.runsStarted.WithLabelValues(constellationID).Inc()
}

// RunCompleted counts one successfully finished run.
func (m *Metrics) RunCompleted() {
	if m == nil {
		return
	}
	m.runsCompleted.Inc()
}

// RunFailed counts one run that ended failed or cancelled.
func (m *Metrics) RunFailed() {
	if m == nil {
		return
	}
	m.runsFailed.Inc()
}

// ObserveNode records one node execution with its final status.
func (m *Metrics) ObserveNode(starType, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.nodeDuration.WithLabelValues(starType, status).Observe(d.Seconds())
}

// SubscriberAdded increments the active SSE subscriber gauge.
func (m *Metrics) SubscriberAdded() {
	if m == nil {
		return
	}
	m.sseSubscribers.Inc()
}

// SubscriberRemoved decrements the active SSE subscriber gauge.
func (m *Metrics) SubscriberRemoved() {
	if m == nil {
		return
	}
	m.sseSubscribers.Dec()
}
