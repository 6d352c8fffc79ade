// Package messaging defines how stored events are published to other processes.
package messaging

import (
	"slices"

	"github.com/plaenen/refactory/pkg/domain"
)

// EventBus defines the interface for publishing and subscribing to events.
type EventBus interface {
	// Publish publishes events to all subscribers.
	Publish(events []*domain.Event) error

	// Subscribe subscribes to events matching the filter.
	// The handler is called for each event.
	Subscribe(filter EventFilter, handler EventHandler) (Subscription, error)

	// Close closes the event bus and releases resources.
	Close() error
}

// DurableSubscriber is implemented by buses whose subscriptions can resume
// under a name, picking up events published while nobody was subscribed.
type DurableSubscriber interface {
	SubscribeDurable(name string, filter EventFilter, handler EventHandler) (Subscription, error)
}

// EventFilter defines criteria for filtering events.
type EventFilter struct {
	// AggregateTypes filters by aggregate type (empty = all types)
	AggregateTypes []string

	// EventTypes filters by event type (empty = all types)
	EventTypes []string
}

// Matches reports whether event passes the filter.
func (f EventFilter) Matches(event *domain.Event) bool {
	if len(f.AggregateTypes) > 0 && !slices.Contains(f.AggregateTypes, event.AggregateType) {
		return false
	}
	if len(f.EventTypes) > 0 && !slices.Contains(f.EventTypes, event.EventType) {
		return false
	}
	return true
}

// EventHandler processes an event.
// Return an error to nack the event (it will be redelivered based on bus configuration).
type EventHandler func(event *domain.Event) error

// Subscription represents an active event subscription.
type Subscription interface {
	// Unsubscribe stops receiving events and cleans up resources.
	Unsubscribe() error
}
