package eventsourcing

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/plaenen/refactory/pkg/domain"
	"github.com/plaenen/refactory/pkg/messaging"
)

// CommandBus routes commands to their handlers. It runs one command at a
// time, so handlers never observe each other's partial work.
type CommandBus struct {
	handlers   map[string]CommandHandler
	middleware []CommandMiddleware
	eventBus   messaging.EventBus
	onPublish  func(ctx context.Context, events []*domain.Event)
	mu         sync.RWMutex
	// exec holds one token; whoever holds it is executing a command.
	exec chan struct{}
}

// BusOption configures a CommandBus.
type BusOption func(*CommandBus)

// WithEventBus publishes produced events to bus after each command.
func WithEventBus(bus messaging.EventBus) BusOption {
	return func(b *CommandBus) {
		b.eventBus = bus
	}
}

// WithPublishHook calls fn after events were published successfully.
func WithPublishHook(fn func(ctx context.Context, events []*domain.Event)) BusOption {
	return func(b *CommandBus) {
		b.onPublish = fn
	}
}

// NewCommandBus creates a command bus.
func NewCommandBus(opts ...BusOption) *CommandBus {
	b := &CommandBus{
		handlers: make(map[string]CommandHandler),
		exec:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register registers a handler for a command type. Registering a type
// twice is a programming error and panics.
func (b *CommandBus) Register(commandType string, handler CommandHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.handlers[commandType]; exists {
		panic(fmt.Sprintf("handler already registered for command type: %s", commandType))
	}
	b.handlers[commandType] = handler
}

// Use adds middleware to the pipeline. The first added is outermost.
func (b *CommandBus) Use(middleware CommandMiddleware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middleware = append(b.middleware, middleware)
}

// Send runs a command and returns the events it produced. Missing
// command and correlation IDs and the timestamp are filled in.
//
// Handler errors are returned wrapped; business rejections stay
// detectable with errors.Is and errors.As. If publishing fails the
// events are still returned together with ErrPublishFailed, since they
// are already stored.
func (b *CommandBus) Send(ctx context.Context, cmd *CommandEnvelope) ([]*domain.Event, error) {
	if cmd == nil || cmd.Command == nil {
		return nil, ErrInvalidCommand
	}
	if cmd.AggregateID == "" {
		return nil, fmt.Errorf("%w: missing aggregate id", ErrInvalidCommand)
	}

	commandType := cmd.Command.CommandType()

	b.mu.RLock()
	handler, exists := b.handlers[commandType]
	middleware := b.middleware
	b.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrCommandNotFound, commandType)
	}

	fillMetadata(&cmd.Metadata)

	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}

	select {
	case b.exec <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-b.exec }()

	events, err := handler.Handle(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("command %s failed: %w", commandType, err)
	}

	// Published while still holding the token so the bus sees events in
	// the order they were stored.
	if b.eventBus != nil && len(events) > 0 {
		if err := b.eventBus.Publish(events); err != nil {
			return events, fmt.Errorf("%w: %w", ErrPublishFailed, err)
		}
		if b.onPublish != nil {
			b.onPublish(ctx, events)
		}
	}

	return events, nil
}

// RegisteredCommands returns the registered command types, sorted.
func (b *CommandBus) RegisteredCommands() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	types := make([]string, 0, len(b.handlers))
	for t := range b.handlers {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

func fillMetadata(m *domain.CommandMetadata) {
	if m.CommandID == "" {
		m.CommandID = uuid.NewString()
	}
	if m.CorrelationID == "" {
		m.CorrelationID = m.CommandID
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = domain.Now()
	}
}
