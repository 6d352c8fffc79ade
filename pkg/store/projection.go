package store

import (
	"context"
	"fmt"

	"github.com/plaenen/refactory/pkg/domain"
)

// Projection builds a read model from the global event log.
type Projection interface {
	// Name returns the unique name of this projection.
	Name() string

	// Handle processes one stored event.
	Handle(ctx context.Context, event *domain.Event) error

	// Reset clears the read model before a rebuild.
	Reset(ctx context.Context) error
}

// EventHandlerFunc handles one event type inside a projection.
type EventHandlerFunc func(ctx context.Context, event *domain.Event) error

// HandlerProjection dispatches events to handlers by event type.
// Events without a handler are skipped.
type HandlerProjection struct {
	name     string
	handlers map[string]EventHandlerFunc
	reset    func(context.Context) error
}

// NewHandlerProjection creates an empty projection named name.
func NewHandlerProjection(name string) *HandlerProjection {
	return &HandlerProjection{
		name:     name,
		handlers: make(map[string]EventHandlerFunc),
	}
}

// On registers handler for eventType.
func (p *HandlerProjection) On(eventType string, handler EventHandlerFunc) *HandlerProjection {
	p.handlers[eventType] = handler
	return p
}

// OnReset registers the function called by Reset.
func (p *HandlerProjection) OnReset(reset func(context.Context) error) *HandlerProjection {
	p.reset = reset
	return p
}

func (p *HandlerProjection) Name() string { return p.name }

func (p *HandlerProjection) Handle(ctx context.Context, event *domain.Event) error {
	handler, ok := p.handlers[event.EventType]
	if !ok {
		return nil
	}
	return handler(ctx, event)
}

func (p *HandlerProjection) Reset(ctx context.Context) error {
	if p.reset == nil {
		return nil
	}
	return p.reset(ctx)
}

// Projector feeds stored events to a projection, resuming from its checkpoint.
type Projector struct {
	eventStore  EventStore
	checkpoints CheckpointStore
	batchSize   int
}

// NewProjector creates a projector reading batchSize events per query.
func NewProjector(eventStore EventStore, checkpoints CheckpointStore, batchSize int) *Projector {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Projector{
		eventStore:  eventStore,
		checkpoints: checkpoints,
		batchSize:   batchSize,
	}
}

// CatchUp processes every event after the projection's checkpoint and
// returns the number of events handled. The checkpoint is saved after
// each batch.
func (p *Projector) CatchUp(ctx context.Context, projection Projection) (int, error) {
	checkpoint, err := p.checkpoints.Load(projection.Name())
	if err != nil {
		return 0, fmt.Errorf("failed to load checkpoint for %s: %w", projection.Name(), err)
	}

	handled := 0
	for {
		if err := ctx.Err(); err != nil {
			return handled, err
		}

		events, err := p.eventStore.LoadAllEvents(checkpoint.Position, p.batchSize)
		if err != nil {
			return handled, fmt.Errorf("failed to load events after %d: %w", checkpoint.Position, err)
		}
		if len(events) == 0 {
			return handled, nil
		}

		for _, event := range events {
			if err := projection.Handle(ctx, event); err != nil {
				return handled, fmt.Errorf("projection %s failed on event %s: %w", projection.Name(), event.ID, err)
			}
			checkpoint.Position = event.Position
			checkpoint.LastEventID = event.ID
			handled++
		}

		checkpoint.UpdatedAt = domain.Now()
		if err := p.checkpoints.Save(checkpoint); err != nil {
			return handled, fmt.Errorf("failed to save checkpoint for %s: %w", projection.Name(), err)
		}

		if len(events) < p.batchSize {
			return handled, nil
		}
	}
}

// Rebuild resets the projection and its checkpoint, then catches up from
// the start of the log.
func (p *Projector) Rebuild(ctx context.Context, projection Projection) (int, error) {
	if err := projection.Reset(ctx); err != nil {
		return 0, fmt.Errorf("failed to reset %s: %w", projection.Name(), err)
	}
	if err := p.checkpoints.Delete(projection.Name()); err != nil {
		return 0, fmt.Errorf("failed to delete checkpoint for %s: %w", projection.Name(), err)
	}
	return p.CatchUp(ctx, projection)
}
