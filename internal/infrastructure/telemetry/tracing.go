// Package telemetry provides OpenTelemetry tracing and metrics for the ledger.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the tracer used for command and store spans
	TracerName = "vextrus-ledger"
)

// SpanOption configures a span at start
type SpanOption func(*spanOptions)

type spanOptions struct {
	attributes []attribute.KeyValue
	kind       trace.SpanKind
}

// WithAttribute adds an attribute to the span
func WithAttribute(key string, value any) SpanOption {
	return func(opts *spanOptions) {
		opts.attributes = append(opts.attributes, toAttribute(key, value))
	}
}

// WithSpanKind sets the span kind
func WithSpanKind(kind trace.SpanKind) SpanOption {
	return func(opts *spanOptions) {
		opts.kind = kind
	}
}

// StartSpan starts a span on the global tracer provider. The caller ends it.
//
//	ctx, span := telemetry.StartSpan(ctx, "event_store.append")
//	defer span.End()
func StartSpan(ctx context.Context, spanName string, opts ...SpanOption) (context.Context, trace.Span) {
	options := &spanOptions{kind: trace.SpanKindInternal}
	for _, opt := range opts {
		opt(options)
	}

	startOpts := []trace.SpanStartOption{trace.WithSpanKind(options.kind)}
	if len(options.attributes) > 0 {
		startOpts = append(startOpts, trace.WithAttributes(options.attributes...))
	}
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, spanName, startOpts...)
}

// StartServiceSpan names the span {service}.{method}, e.g. "invoice.ApproveInvoice"
func StartServiceSpan(ctx context.Context, service, method string, opts ...SpanOption) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("%s.%s", service, method), opts...)
}

// SetAttributes adds alternating key/value pairs to span. Non-string keys are skipped.
func SetAttributes(span trace.Span, keyValues ...any) {
	if span == nil {
		return
	}
	span.SetAttributes(pairs(keyValues)...)
}

// RecordError records err on the span and marks the span failed
func RecordError(span trace.Span, err error, opts ...trace.EventOption) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err, opts...)
	span.SetStatus(codes.Error, err.Error())
}

// SetOK marks the span as successful
func SetOK(span trace.Span) {
	if span == nil {
		return
	}
	span.SetStatus(codes.Ok, "")
}

// AddEvent adds a time-stamped annotation to span
func AddEvent(span trace.Span, name string, keyValues ...any) {
	if span == nil {
		return
	}
	span.AddEvent(name, trace.WithAttributes(pairs(keyValues)...))
}

// GetTraceID returns the trace ID of the span in ctx, or "" when there is none
func GetTraceID(ctx context.Context) string {
	traceID := trace.SpanFromContext(ctx).SpanContext().TraceID()
	if !traceID.IsValid() {
		return ""
	}
	return traceID.String()
}

func pairs(keyValues []any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, toAttribute(key, keyValues[i+1]))
	}
	return attrs
}

func toAttribute(key string, value any) attribute.KeyValue {
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
	case []string:
		return attribute.StringSlice(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}

// Span attribute keys used by the event store and command handlers
const (
	SpanAttrAggregateID     = "aggregate_id"
	SpanAttrAggregateType   = "aggregate_type"
	SpanAttrTenantID        = "tenant_id"
	SpanAttrExpectedVersion = "expected_version"
	SpanAttrEventCount      = "event_count"
)
