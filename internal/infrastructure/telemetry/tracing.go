package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the default tracer name for business spans
const TracerName = "schoolerp-backend"

// StartSpan starts a new span with the given name. The caller is
// responsible for calling span.End() when the operation completes.
//
//	ctx, span := telemetry.StartSpan(ctx, "late_fee.sweep")
//	defer span.End()
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(TracerName)

	opts := []trace.SpanStartOption{
		trace.WithSpanKind(trace.SpanKindInternal),
	}
	if len(attrs) > 0 {
		opts = append(opts, trace.WithAttributes(attrs...))
	}
	return tracer.Start(ctx, spanName, opts...)
}

// RecordError records an error on the span and sets the span status to error.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetAttribute adds a single attribute to the span.
func SetAttribute(span trace.Span, key string, value interface{}) {
	if span == nil {
		return
	}
	span.SetAttributes(toAttribute(key, value))
}

// GetTraceID returns the trace ID from the current span in the context.
// Returns empty string if no span is present.
func GetTraceID(ctx context.Context) string {
	traceID := trace.SpanFromContext(ctx).SpanContext().TraceID()
	if !traceID.IsValid() {
		return ""
	}
	return traceID.String()
}

// toAttribute converts a key-value pair to an attribute.KeyValue
func toAttribute(key string, value interface{}) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
