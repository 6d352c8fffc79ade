package middleware

import (
	"context"
	"time"

	"github.com/plaenen/refactory/pkg/domain"
	"github.com/plaenen/refactory/pkg/eventsourcing"
	"github.com/plaenen/refactory/pkg/observability"
)

// MetricsMiddleware records the duration and outcome of every command.
func MetricsMiddleware(metrics *observability.Metrics) eventsourcing.CommandMiddleware {
	return func(next eventsourcing.CommandHandler) eventsourcing.CommandHandler {
		if metrics == nil {
			return next
		}
		return eventsourcing.CommandHandlerFunc(func(ctx context.Context, cmd *eventsourcing.CommandEnvelope) ([]*domain.Event, error) {
			start := time.Now()
			events, err := next.Handle(ctx, cmd)

			outcome := observability.OutcomeAccepted
			code, rejected := eventsourcing.RejectionCode(err)
			switch {
			case rejected:
				outcome = observability.OutcomeRejected
			case err != nil:
				outcome = observability.OutcomeFailed
			}
			metrics.RecordCommand(ctx, cmd.Command.CommandType(), time.Since(start), outcome, code)

			return events, err
		})
	}
}
