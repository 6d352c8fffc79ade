package domain

import (
	"time"
)

// Event represents a domain event that has occurred in the system.
// Events are immutable facts about state changes.
type Event struct {
	// ID is the unique identifier for this event
	ID string

	// AggregateID is the identifier of the aggregate this event belongs to
	AggregateID string

	// AggregateType is the type name of the aggregate (e.g., "Factory")
	AggregateType string

	// EventType is the fully qualified type name of the event (e.g., "factory.EmployeeAssigned")
	EventType string

	// Version is the version number of the aggregate after applying this event
	Version int64

	// Position is the global position assigned by the event store (0 until persisted)
	Position int64

	// Timestamp is when the event was created
	Timestamp time.Time

	// Data is the serialized protobuf payload of the event
	Data []byte

	// Metadata contains additional contextual information
	Metadata EventMetadata
}

// EventMetadata contains contextual information about an event.
type EventMetadata struct {
	// CausationID is the ID of the command that caused this event
	CausationID string

	// CorrelationID is used to trace related events across commands
	CorrelationID string

	// PrincipalID is the identifier of the principal (user, service, system) who triggered this event
	PrincipalID string

	// Custom allows for application-specific metadata
	Custom map[string]string
}
