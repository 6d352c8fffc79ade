package store

import (
	"fmt"

	"github.com/plaenen/refactory/pkg/domain"
)

// EventStore defines the interface for persisting and retrieving events.
type EventStore interface {
	// AppendEvents appends events to an aggregate's stream atomically.
	// Returns domain.ErrConcurrencyConflict if expectedVersion doesn't match current version.
	AppendEvents(aggregateID string, expectedVersion int64, events []*domain.Event) error

	// LoadEvents loads all events for an aggregate starting after afterVersion.
	LoadEvents(aggregateID string, afterVersion int64) ([]*domain.Event, error)

	// LoadAllEvents loads events from all aggregates in the order they were appended,
	// starting after fromPosition. A limit of zero or less means no limit.
	LoadAllEvents(fromPosition int64, limit int) ([]*domain.Event, error)

	// GetAggregateVersion returns the current version of an aggregate.
	// Returns 0 if the aggregate doesn't exist.
	GetAggregateVersion(aggregateID string) (int64, error)

	// Close closes the event store and releases resources.
	Close() error
}

// ValidateAppend checks that events continue the stream of aggregateID
// from expectedVersion without gaps.
func ValidateAppend(aggregateID string, expectedVersion int64, events []*domain.Event) error {
	for i, event := range events {
		if event == nil {
			return fmt.Errorf("%w: nil event at index %d", domain.ErrInvalidVersion, i)
		}
		if event.AggregateID != aggregateID {
			return fmt.Errorf("event %s belongs to aggregate %s, not %s", event.ID, event.AggregateID, aggregateID)
		}
		if want := expectedVersion + int64(i) + 1; event.Version != want {
			return fmt.Errorf("%w: event %s has version %d, expected %d", domain.ErrInvalidVersion, event.ID, event.Version, want)
		}
	}
	return nil
}
