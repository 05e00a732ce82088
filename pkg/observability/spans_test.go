package observability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/rishimeka/astro/pkg/domain"
	"github.com/rishimeka/astro/pkg/observability"
)

func newTestTracer(t *testing.T) (*tracetest.InMemoryExporter, *observability.SpanEmitter) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	return exporter, observability.NewSpanEmitter(tp.Tracer("test"))
}

func attributeMap(attrs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}

func TestSpanEmitterNodeEvent(t *testing.T) {
	exporter, emitter := newTestTracer(t)

	emitter.Emit(context.Background(), domain.RunEvent{
		Type:   domain.EventNodeStarted,
		RunID:  "r1",
		NodeID: "n1",
		StarID: "s1",
	})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "node_started", spans[0].Name)

	attrs := attributeMap(spans[0].Attributes)
	assert.Equal(t, "r1", attrs["astro.run_id"])
	assert.Equal(t, "n1", attrs["astro.node_id"])
	assert.Equal(t, "s1", attrs["astro.star_id"])
}

func TestSpanEmitterFailureStatus(t *testing.T) {
	exporter, emitter := newTestTracer(t)

	emitter.Emit(context.Background(), domain.RunEvent{
		Type:  domain.EventRunFailed,
		RunID: "r1",
		Error: "model unreachable",
	})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "model unreachable", spans[0].Status.Description)
}

func TestSpanEmitterRetryAttributes(t *testing.T) {
	exporter, emitter := newTestTracer(t)

	emitter.Emit(context.Background(), domain.RunEvent{
		Type:        domain.EventNodeRetrying,
		RunID:       "r1",
		NodeID:      "n1",
		Attempt:     2,
		MaxAttempts: 3,
		LastError:   "timeout",
	})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	attrs := attributeMap(spans[0].Attributes)
	assert.Equal(t, int64(2), attrs["astro.attempt"])
	assert.Equal(t, "timeout", attrs["astro.last_error"])
}
