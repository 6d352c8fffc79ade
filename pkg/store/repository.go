package store

import (
	"errors"
	"fmt"

	"github.com/plaenen/refactory/pkg/domain"
)

// ErrStoreClosed is returned by stores after Close.
var ErrStoreClosed = errors.New("event store is closed")

// Repository loads aggregates by replaying their full stream and saves
// their uncommitted events.
type Repository[T domain.Aggregate] struct {
	eventStore   EventStore
	newAggregate func(id string) T
	rehydrate    func(id string, history []*domain.Event) (T, error)
}

// NewRepository creates a repository.
// newAggregate creates an aggregate with no history.
// rehydrate rebuilds an aggregate from its complete stored stream.
func NewRepository[T domain.Aggregate](
	eventStore EventStore,
	newAggregate func(id string) T,
	rehydrate func(id string, history []*domain.Event) (T, error),
) *Repository[T] {
	return &Repository[T]{
		eventStore:   eventStore,
		newAggregate: newAggregate,
		rehydrate:    rehydrate,
	}
}

// Load loads an aggregate by ID from the event store.
// Returns domain.ErrAggregateNotFound if the stream is empty.
func (r *Repository[T]) Load(id string) (T, error) {
	var zero T

	events, err := r.eventStore.LoadEvents(id, 0)
	if err != nil {
		return zero, fmt.Errorf("failed to load events: %w", err)
	}
	if len(events) == 0 {
		return zero, domain.ErrAggregateNotFound
	}

	aggregate, err := r.rehydrate(id, events)
	if err != nil {
		return zero, fmt.Errorf("failed to rehydrate %s: %w", id, err)
	}
	return aggregate, nil
}

// LoadOrNew loads an aggregate, or returns a fresh one if it has no events.
func (r *Repository[T]) LoadOrNew(id string) (T, error) {
	aggregate, err := r.Load(id)
	if errors.Is(err, domain.ErrAggregateNotFound) {
		return r.newAggregate(id), nil
	}
	return aggregate, err
}

// Save persists an aggregate's uncommitted events.
func (r *Repository[T]) Save(aggregate T) error {
	uncommitted := aggregate.UncommittedEvents()
	if len(uncommitted) == 0 {
		return nil
	}

	// Version before the new events
	expectedVersion := aggregate.Version() - int64(len(uncommitted))

	if err := r.eventStore.AppendEvents(aggregate.ID(), expectedVersion, uncommitted); err != nil {
		return fmt.Errorf("failed to append events: %w", err)
	}

	aggregate.ClearUncommittedEvents()
	return nil
}

// Exists checks if an aggregate exists in the event store.
func (r *Repository[T]) Exists(id string) (bool, error) {
	version, err := r.eventStore.GetAggregateVersion(id)
	if err != nil {
		return false, fmt.Errorf("failed to check aggregate existence: %w", err)
	}
	return version > 0, nil
}
