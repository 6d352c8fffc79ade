package observability

import (
	"context"
	"time"

	"github.com/plaenen/refactory/pkg/domain"
	"github.com/plaenen/refactory/pkg/store"
	"go.opentelemetry.io/otel/trace"
)

var _ store.EventStore = (*InstrumentedEventStore)(nil)

// InstrumentedEventStore wraps an event store with spans and latency metrics.
type InstrumentedEventStore struct {
	next    store.EventStore
	tracer  trace.Tracer
	metrics *Metrics
}

// InstrumentEventStore wraps next using tel's tracer and metrics.
func InstrumentEventStore(next store.EventStore, tel *Telemetry) *InstrumentedEventStore {
	return &InstrumentedEventStore{
		next:    next,
		tracer:  tel.Tracer(),
		metrics: tel.Metrics,
	}
}

func (s *InstrumentedEventStore) observe(operation string, eventCount int, fn func() error) error {
	_, span := s.tracer.Start(context.Background(), "eventstore."+operation,
		trace.WithAttributes(AttrOperation.String(operation)),
	)
	start := time.Now()
	err := fn()
	s.metrics.RecordEventStoreOperation(context.Background(), operation, time.Since(start), eventCount)
	EndSpan(span, err)
	return err
}

func (s *InstrumentedEventStore) AppendEvents(aggregateID string, expectedVersion int64, events []*domain.Event) error {
	return s.observe("append", len(events), func() error {
		return s.next.AppendEvents(aggregateID, expectedVersion, events)
	})
}

func (s *InstrumentedEventStore) LoadEvents(aggregateID string, afterVersion int64) (events []*domain.Event, err error) {
	err = s.observe("load", 0, func() error {
		events, err = s.next.LoadEvents(aggregateID, afterVersion)
		return err
	})
	return events, err
}

func (s *InstrumentedEventStore) LoadAllEvents(fromPosition int64, limit int) (events []*domain.Event, err error) {
	err = s.observe("load_all", 0, func() error {
		events, err = s.next.LoadAllEvents(fromPosition, limit)
		return err
	})
	return events, err
}

func (s *InstrumentedEventStore) GetAggregateVersion(aggregateID string) (version int64, err error) {
	err = s.observe("version", 0, func() error {
		version, err = s.next.GetAggregateVersion(aggregateID)
		return err
	})
	return version, err
}

func (s *InstrumentedEventStore) Close() error {
	return s.next.Close()
}
