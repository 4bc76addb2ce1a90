package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"bandkeeper/internal/core"
	"bandkeeper/pkg/domain"
)

const instrumentationName = "bandkeeper/internal/core"

// Tracer adapts an OpenTelemetry tracer to core.Tracer.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer uses provider, or the global provider when nil.
func NewTracer(provider trace.TracerProvider) *Tracer {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &Tracer{tracer: provider.Tracer(instrumentationName)}
}

// Start implements core.Tracer.
func (t *Tracer) Start(ctx context.Context, operation string) (context.Context, core.TraceSpan) {
	ctx, span := t.tracer.Start(ctx, operation, trace.WithSpanKind(trace.SpanKindInternal))
	return ctx, otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) End(err error) {
	if err != nil {
		s.span.SetAttributes(attribute.String("bandkeeper.error_kind", string(domain.KindOf(err))))
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}
