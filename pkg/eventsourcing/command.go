// Package eventsourcing routes commands through middleware to their
// handlers and publishes the events they produce.
package eventsourcing

import (
	"context"

	"github.com/plaenen/refactory/pkg/domain"
)

// Command represents an intention to change the system state.
type Command interface {
	// CommandType returns the name handlers are registered under.
	CommandType() string
}

// CommandEnvelope wraps a command with its metadata.
type CommandEnvelope struct {
	// AggregateID is the aggregate the command targets.
	AggregateID string
	Command     Command
	Metadata    domain.CommandMetadata
}

// NewCommandEnvelope wraps cmd for aggregateID. Missing metadata is filled
// in by the bus.
func NewCommandEnvelope(aggregateID string, cmd Command) *CommandEnvelope {
	return &CommandEnvelope{AggregateID: aggregateID, Command: cmd}
}

// WithPrincipal sets the principal issuing the command.
func (e *CommandEnvelope) WithPrincipal(principalID string) *CommandEnvelope {
	e.Metadata.PrincipalID = principalID
	return e
}

// WithCorrelationID sets the correlation ID shared by related commands.
func (e *CommandEnvelope) WithCorrelationID(correlationID string) *CommandEnvelope {
	e.Metadata.CorrelationID = correlationID
	return e
}

// CommandHandler processes a command and returns produced events.
type CommandHandler interface {
	Handle(ctx context.Context, cmd *CommandEnvelope) ([]*domain.Event, error)
}

// CommandHandlerFunc is a function adapter for CommandHandler.
type CommandHandlerFunc func(ctx context.Context, cmd *CommandEnvelope) ([]*domain.Event, error)

// Handle implements CommandHandler.
func (f CommandHandlerFunc) Handle(ctx context.Context, cmd *CommandEnvelope) ([]*domain.Event, error) {
	return f(ctx, cmd)
}

// CommandMiddleware wraps command handlers with cross-cutting concerns.
type CommandMiddleware func(CommandHandler) CommandHandler
