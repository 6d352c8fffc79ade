package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/plaenen/refactory/pkg/idgen"
)

// Aggregate defines the persistence contract shared by event-sourced aggregates.
type Aggregate interface {
	// ID returns the unique identifier of the aggregate.
	ID() string

	// Type returns the type name of the aggregate.
	Type() string

	// Version returns the current version of the aggregate.
	Version() int64

	// UncommittedEvents returns events that have been applied but not yet persisted.
	UncommittedEvents() []*Event

	// ClearUncommittedEvents clears the uncommitted events after they've been persisted.
	ClearUncommittedEvents()
}

// AggregateRoot provides base functionality for all aggregates.
// Use this as an embedded type in your aggregate implementations.
type AggregateRoot struct {
	id                string
	aggregateType     string
	version           int64
	uncommittedEvents []*Event
	metadata          CommandMetadata // Current command being processed
}

// NewAggregateRoot creates a new aggregate root with the given ID and type.
func NewAggregateRoot(id, aggregateType string) AggregateRoot {
	return AggregateRoot{
		id:                id,
		aggregateType:     aggregateType,
		uncommittedEvents: make([]*Event, 0),
	}
}

// ID returns the aggregate's unique identifier.
func (a *AggregateRoot) ID() string {
	return a.id
}

// Type returns the aggregate's type name.
func (a *AggregateRoot) Type() string {
	return a.aggregateType
}

// Version returns the aggregate's current version.
func (a *AggregateRoot) Version() int64 {
	return a.version
}

// UncommittedEvents returns events that haven't been persisted yet.
func (a *AggregateRoot) UncommittedEvents() []*Event {
	out := make([]*Event, len(a.uncommittedEvents))
	copy(out, a.uncommittedEvents)
	return out
}

// ClearUncommittedEvents clears the uncommitted events list.
func (a *AggregateRoot) ClearUncommittedEvents() {
	a.uncommittedEvents = make([]*Event, 0)
}

// SetCommandMetadata sets the metadata of the command about to be processed.
// Event IDs become deterministic when the metadata carries a command ID.
func (a *AggregateRoot) SetCommandMetadata(metadata CommandMetadata) {
	a.metadata = metadata
}

// Raise records an already encoded event as uncommitted and bumps the version.
func (a *AggregateRoot) Raise(eventType string, data []byte) *Event {
	var eventID string
	if a.metadata.CommandID != "" {
		eventID = GenerateDeterministicEventID(a.metadata.CommandID, a.id, len(a.uncommittedEvents))
	} else {
		eventID = idgen.MustGenerateSortableID()
	}

	evt := &Event{
		ID:            eventID,
		AggregateID:   a.id,
		AggregateType: a.aggregateType,
		EventType:     eventType,
		Version:       a.version + 1,
		Timestamp:     Now(),
		Data:          data,
		Metadata:      a.metadata.EventMetadata(),
	}

	a.uncommittedEvents = append(a.uncommittedEvents, evt)
	a.version++

	return evt
}

// LoadFromHistory moves the version forward to the last replayed event.
func (a *AggregateRoot) LoadFromHistory(events []*Event) {
	for _, evt := range events {
		if evt.Version > a.version {
			a.version = evt.Version
		}
	}
}

// SetVersion sets the version after replaying a stream that carries no envelope versions.
func (a *AggregateRoot) SetVersion(version int64) {
	a.version = version
}

// GenerateDeterministicEventID generates a deterministic event ID from command context.
// The same command always produces the same event IDs.
func GenerateDeterministicEventID(commandID, aggregateID string, sequence int) string {
	h := sha256.New()
	h.Write([]byte(fmt.Sprintf("%s:%s:%d", commandID, aggregateID, sequence)))
	return hex.EncodeToString(h.Sum(nil))[:32] // 128 bits
}

// TimeFunc is a function that returns the current time.
// This can be overridden for testing.
var TimeFunc = time.Now

// Now returns the current time using the configured TimeFunc.
func Now() time.Time {
	return TimeFunc()
}
