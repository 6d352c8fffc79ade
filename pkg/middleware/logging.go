package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/plaenen/refactory/pkg/domain"
	"github.com/plaenen/refactory/pkg/eventsourcing"
)

// LoggingMiddleware logs command execution with timing information using slog.
// Rejections are expected outcomes and are logged at warn level.
func LoggingMiddleware(logger *slog.Logger) eventsourcing.CommandMiddleware {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next eventsourcing.CommandHandler) eventsourcing.CommandHandler {
		return eventsourcing.CommandHandlerFunc(func(ctx context.Context, cmd *eventsourcing.CommandEnvelope) ([]*domain.Event, error) {
			start := time.Now()
			commandType := cmd.Command.CommandType()

			logger.DebugContext(ctx, "Executing command",
				slog.String("command_type", commandType),
				slog.String("command_id", cmd.Metadata.CommandID),
				slog.String("aggregate_id", cmd.AggregateID),
				slog.String("principal_id", cmd.Metadata.PrincipalID),
				slog.String("correlation_id", cmd.Metadata.CorrelationID),
			)

			events, err := next.Handle(ctx, cmd)
			duration := time.Since(start)

			if code, ok := eventsourcing.RejectionCode(err); ok {
				logger.WarnContext(ctx, "Command rejected",
					slog.String("command_type", commandType),
					slog.String("command_id", cmd.Metadata.CommandID),
					slog.String("rejection_code", code),
					slog.String("reason", err.Error()),
				)
				return nil, err
			}
			if err != nil {
				logger.ErrorContext(ctx, "Command execution failed",
					slog.String("command_type", commandType),
					slog.String("command_id", cmd.Metadata.CommandID),
					slog.Int64("duration_ms", duration.Milliseconds()),
					slog.String("error", err.Error()),
				)
				return nil, err
			}

			logger.InfoContext(ctx, "Command executed",
				slog.String("command_type", commandType),
				slog.String("command_id", cmd.Metadata.CommandID),
				slog.Int("events_count", len(events)),
				slog.Int64("duration_ms", duration.Milliseconds()),
			)

			return events, nil
		})
	}
}
