package observability_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rishimeka/astro/pkg/observability"
)

// gatherValues flattens a gathered registry into metric name → summed value.
func gatherValues(t *testing.T, registry *prometheus.Registry) map[string]float64 {
	t.Helper()

	families, err := registry.Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, f := range families {
		for _, m := range f.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				values[f.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[f.GetName()] += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				values[f.GetName()] += float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return values
}

func TestMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := observability.NewMetrics(registry)

	m.RunStarted("c1")
	m.RunStarted("c1")
	m.RunStarted("c2")
	m.RunCompleted()
	m.RunFailed()

	values := gatherValues(t, registry)
	assert.Equal(t, 3.0, values["astro_runs_started_total"])
	assert.Equal(t, 1.0, values["astro_runs_completed_total"])
	assert.Equal(t, 1.0, values["astro_runs_failed_total"])
}

func TestMetricsSubscriberGauge(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := observability.NewMetrics(registry)

	m.SubscriberAdded()
	m.SubscriberAdded()
	m.SubscriberRemoved()

	values := gatherValues(t, registry)
	assert.Equal(t, 1.0, values["astro_sse_subscribers"])
}

func TestMetricsNodeDuration(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := observability.NewMetrics(registry)

	m.ObserveNode("worker", "completed", 120*time.Millisecond)
	m.ObserveNode("worker", "failed", 50*time.Millisecond)
	m.ObserveNode("eval", "completed", 10*time.Millisecond)

	values := gatherValues(t, registry)
	assert.Equal(t, 3.0, values["astro_node_duration_seconds"])
}

func TestMetricsNilReceiverIsNoop(t *testing.T) {
	var m *observability.Metrics

	assert.NotPanics(t, func() {
		m.RunStarted("c1")
		m.RunCompleted()
		m.RunFailed()
		m.ObserveNode("worker", "completed", time.Second)
		m.SubscriberAdded()
		m.SubscriberRemoved()
	})
}
