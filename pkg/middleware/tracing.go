package middleware

import (
	"context"
	"fmt"

	"github.com/plaenen/refactory/pkg/domain"
	"github.com/plaenen/refactory/pkg/eventsourcing"
	"github.com/plaenen/refactory/pkg/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware starts a span per command. A nil tracer uses the
// global provider. A rejected command leaves the span status unset and
// records the rejection code; only failures mark the span as an error.
func TracingMiddleware(tracer trace.Tracer) eventsourcing.CommandMiddleware {
	if tracer == nil {
		tracer = otel.Tracer(observability.InstrumentationName)
	}

	return func(next eventsourcing.CommandHandler) eventsourcing.CommandHandler {
		return eventsourcing.CommandHandlerFunc(func(ctx context.Context, cmd *eventsourcing.CommandEnvelope) ([]*domain.Event, error) {
			commandType := cmd.Command.CommandType()

			attrs := observability.CommandAttrs(commandType, cmd.Metadata.CommandID, cmd.Metadata.CorrelationID)
			attrs = append(attrs, observability.AttrAggregateID.String(cmd.AggregateID))
			if cmd.Metadata.PrincipalID != "" {
				attrs = append(attrs, attribute.String("command.principal_id", cmd.Metadata.PrincipalID))
			}

			spanCtx, span := tracer.Start(ctx, fmt.Sprintf("command.%s", commandType),
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(attrs...),
			)
			defer span.End()

			events, err := next.Handle(spanCtx, cmd)

			if code, ok := eventsourcing.RejectionCode(err); ok {
				span.SetAttributes(observability.AttrRejectionCode.String(code))
				span.AddEvent("command rejected", trace.WithAttributes(attribute.String("reason", err.Error())))
				return nil, err
			}
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}

			span.SetAttributes(observability.AttrEventCount.Int(len(events)))
			if len(events) > 0 {
				eventTypes := make([]string, len(events))
				for i, evt := range events {
					eventTypes[i] = evt.EventType
				}
				span.SetAttributes(
					attribute.StringSlice("event.types", eventTypes),
					observability.AttrVersion.Int64(events[len(events)-1].Version),
				)
			}

			span.SetStatus(codes.Ok, "")
			return events, nil
		})
	}
}
