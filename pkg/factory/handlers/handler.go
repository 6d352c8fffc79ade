// Package handlers runs factory commands against a stored stream: the
// factory is rebuilt by replaying its full history, one command is
// executed, and the events it appended are saved.
package handlers

import (
	"context"
	"fmt"

	"github.com/plaenen/refactory/pkg/domain"
	"github.com/plaenen/refactory/pkg/eventsourcing"
	"github.com/plaenen/refactory/pkg/factory"
	"github.com/plaenen/refactory/pkg/store"
)

// Handler executes factory commands.
type Handler struct {
	repo *store.Repository[*factory.Factory]
	opts []factory.Option
}

// New creates a handler storing factories in es. opts are applied to
// every factory the handler loads.
func New(es store.EventStore, opts ...factory.Option) *Handler {
	h := &Handler{opts: opts}
	h.repo = store.NewRepository(es,
		func(id string) *factory.Factory {
			return factory.New(id, h.opts...)
		},
		func(id string, history []*domain.Event) (*factory.Factory, error) {
			return factory.FromHistory(id, history, h.opts...)
		},
	)
	return h
}

// Commands lists the command types the handler serves.
func Commands() []eventsourcing.Command {
	return []eventsourcing.Command{
		factory.AssignEmployee{},
		factory.TransferShipmentToCargoBay{},
		factory.UnloadShipmentFromCargoBay{},
		factory.ProduceCar{},
	}
}

// Register registers the handler for every factory command on bus.
func (h *Handler) Register(bus *eventsourcing.CommandBus) {
	for _, cmd := range Commands() {
		bus.Register(cmd.CommandType(), h)
	}
}

// Handle implements eventsourcing.CommandHandler. Rejections are returned
// unchanged and nothing is saved.
func (h *Handler) Handle(ctx context.Context, cmd *eventsourcing.CommandEnvelope) ([]*domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := h.repo.LoadOrNew(cmd.AggregateID)
	if err != nil {
		return nil, err
	}

	f.SetCommandMetadata(cmd.Metadata)
	if _, err := f.Execute(cmd.Command); err != nil {
		return nil, err
	}

	events := f.UncommittedEvents()
	if err := h.repo.Save(f); err != nil {
		return nil, fmt.Errorf("failed to save factory %s: %w", cmd.AggregateID, err)
	}
	return events, nil
}

// Load rebuilds the factory with the given id from its stored history.
// A factory without history is returned empty.
func (h *Handler) Load(ctx context.Context, id string) (*factory.Factory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.repo.LoadOrNew(id)
}
