package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys.
var (
	AttrAggregateID   = attribute.Key("aggregate.id")
	AttrAggregateType = attribute.Key("aggregate.type")
	AttrVersion       = attribute.Key("aggregate.version")

	AttrCommandType   = attribute.Key("command.type")
	AttrCommandID     = attribute.Key("command.id")
	AttrCorrelationID = attribute.Key("command.correlation_id")
	AttrRejectionCode = attribute.Key("command.rejection_code")

	AttrEventCount = attribute.Key("event.count")

	AttrOperation = attribute.Key("eventstore.operation")
)

// EndSpan ends a span, recording err if set.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// SetSpanError records an error on the span in ctx.
func SetSpanError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceID returns the trace ID in ctx, or "".
func TraceID(ctx context.Context) string {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

// CommandAttrs returns the attributes describing a command.
func CommandAttrs(commandType, commandID, correlationID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{AttrCommandType.String(commandType)}
	if commandID != "" {
		attrs = append(attrs, AttrCommandID.String(commandID))
	}
	if correlationID != "" {
		attrs = append(attrs, AttrCorrelationID.String(correlationID))
	}
	return attrs
}
