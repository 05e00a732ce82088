package observability

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rishimeka/astro/pkg/domain"
)

// SpanEmitter turns run events into OpenTelemetry spans, one span per event.
// Events are points in time, so each span is ended immediately; failure
// events additionally carry an error status.
type SpanEmitter struct {
	tracer trace.Tracer
}

// NewSpanEmitter creates an emitter on the given tracer. A nil tracer uses
// the global provider's "astro" tracer.
func NewSpanEmitter(tracer trace.Tracer) *SpanEmitter {
	if tracer == nil {
		tracer = otel.Tracer("astro")
	}
	return &SpanEmitter{tracer: tracer}
}

// Emit records one event as a span.
func (s *SpanEmitter) Emit(ctx context.Context, ev domain.RunEvent) {
	if s == nil {
		return
	}

	_, span := s.tracer.Start(ctx, string(ev.Type))
	defer span.End()

	attrs := []attribute.KeyValue{
		attribute.String("astro.run_id", ev.RunID),
	}
	if ev.NodeID != "" {
		attrs = append(attrs, attribute.String("astro.node_id", ev.NodeID))
	}
	if ev.StarID != "" {
		attrs = append(attrs, attribute.String("astro.star_id", ev.StarID))
	}
	if ev.Attempt > 0 {
		attrs = append(attrs, attribute.Int("astro.attempt", ev.Attempt))
	}
	span.SetAttributes(attrs...)

	switch ev.Type {
	case domain.EventNodeFailed, domain.EventRunFailed:
		span.SetStatus(codes.Error, ev.Error)
		span.RecordError(errors.New(ev.Error))
	case domain.EventNodeRetrying:
		span.SetAttributes(attribute.String("astro.last_error", ev.LastError))
	}
}
