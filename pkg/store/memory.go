package store

import (
	"fmt"
	"sync"

	"github.com/plaenen/refactory/pkg/domain"
)

// MemoryEventStore keeps streams in process memory. It is safe for
// concurrent use and is intended for tests and single-run tools.
type MemoryEventStore struct {
	mu      sync.RWMutex
	streams map[string][]*domain.Event
	log     []*domain.Event
	closed  bool
}

// NewMemoryEventStore creates an empty in-memory event store.
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{
		streams: make(map[string][]*domain.Event),
	}
}

// AppendEvents implements EventStore.
func (s *MemoryEventStore) AppendEvents(aggregateID string, expectedVersion int64, events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	if err := ValidateAppend(aggregateID, expectedVersion, events); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	current := int64(len(s.streams[aggregateID]))
	if current != expectedVersion {
		return fmt.Errorf("%w: aggregate %s is at version %d, expected %d",
			domain.ErrConcurrencyConflict, aggregateID, current, expectedVersion)
	}

	for _, event := range events {
		stored := *event
		stored.Position = int64(len(s.log)) + 1
		s.streams[aggregateID] = append(s.streams[aggregateID], &stored)
		s.log = append(s.log, &stored)
	}
	return nil
}

// LoadEvents implements EventStore.
func (s *MemoryEventStore) LoadEvents(aggregateID string, afterVersion int64) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var events []*domain.Event
	for _, event := range s.streams[aggregateID] {
		if event.Version > afterVersion {
			events = append(events, copyEvent(event))
		}
	}
	return events, nil
}

// LoadAllEvents implements EventStore.
func (s *MemoryEventStore) LoadAllEvents(fromPosition int64, limit int) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var events []*domain.Event
	for _, event := range s.log {
		if event.Position <= fromPosition {
			continue
		}
		if limit > 0 && len(events) >= limit {
			break
		}
		events = append(events, copyEvent(event))
	}
	return events, nil
}

// GetAggregateVersion implements EventStore.
func (s *MemoryEventStore) GetAggregateVersion(aggregateID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrStoreClosed
	}
	return int64(len(s.streams[aggregateID])), nil
}

// Close implements EventStore.
func (s *MemoryEventStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func copyEvent(event *domain.Event) *domain.Event {
	c := *event
	c.Data = append([]byte(nil), event.Data...)
	return &c
}
