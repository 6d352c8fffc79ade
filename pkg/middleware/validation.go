package middleware

import (
	"context"
	"fmt"

	"github.com/plaenen/refactory/pkg/domain"
	"github.com/plaenen/refactory/pkg/eventsourcing"
)

// Validator defines the interface for validating commands.
type Validator interface {
	// Validate validates a command and returns an error if invalid.
	Validate(cmd eventsourcing.Command) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(cmd eventsourcing.Command) error

// Validate implements Validator.
func (f ValidatorFunc) Validate(cmd eventsourcing.Command) error {
	return f(cmd)
}

// ValidationMiddleware validates command payloads before they are handled.
// Failures wrap eventsourcing.ErrInvalidCommand.
func ValidationMiddleware(validator Validator) eventsourcing.CommandMiddleware {
	return func(next eventsourcing.CommandHandler) eventsourcing.CommandHandler {
		return eventsourcing.CommandHandlerFunc(func(ctx context.Context, cmd *eventsourcing.CommandEnvelope) ([]*domain.Event, error) {
			if err := validator.Validate(cmd.Command); err != nil {
				return nil, fmt.Errorf("%w: %w", eventsourcing.ErrInvalidCommand, err)
			}
			return next.Handle(ctx, cmd)
		})
	}
}

// SelfValidating is implemented by commands that can check themselves.
type SelfValidating interface {
	Validate() error
}

// SelfValidator validates commands implementing SelfValidating and passes
// everything else through.
var SelfValidator = ValidatorFunc(func(cmd eventsourcing.Command) error {
	if v, ok := cmd.(SelfValidating); ok {
		return v.Validate()
	}
	return nil
})
