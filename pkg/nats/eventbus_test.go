package nats_test

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/plaenen/refactory/pkg/domain"
	"github.com/plaenen/refactory/pkg/messaging"
	natspkg "github.com/plaenen/refactory/pkg/nats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func factoryEvent(id, eventType string) *domain.Event {
	return &domain.Event{
		ID:            id,
		AggregateID:   "factory-1",
		AggregateType: "Factory",
		EventType:     eventType,
		Version:       1,
		Timestamp:     time.Now().UTC(),
		Data:          []byte("payload"),
		Metadata:      domain.EventMetadata{CorrelationID: "corr-1"},
	}
}

func receive(t *testing.T, ch <-chan *domain.Event) *domain.Event {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for event")
		return nil
	}
}

func assertSilent(t *testing.T, ch <-chan *domain.Event) {
	t.Helper()
	select {
	case event := <-ch:
		t.Errorf("unexpected event %s", event.ID)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestEmbeddedNATSEventBus(t *testing.T) {
	bus, srv, err := natspkg.NewEmbeddedEventBus()
	require.NoError(t, err)
	defer srv.Shutdown()
	defer bus.Close()

	t.Run("publish and subscribe", func(t *testing.T) {
		received := make(chan *domain.Event, 1)
		sub, err := bus.Subscribe(messaging.EventFilter{AggregateTypes: []string{"Factory"}},
			func(event *domain.Event) error {
				received <- event
				return nil
			})
		require.NoError(t, err)
		defer sub.Unsubscribe()

		sent := factoryEvent("evt-1", "factory.EmployeeAssigned")
		require.NoError(t, bus.Publish([]*domain.Event{sent}))

		got := receive(t, received)
		assert.Equal(t, sent.ID, got.ID)
		assert.Equal(t, sent.AggregateID, got.AggregateID)
		assert.Equal(t, sent.Data, got.Data)
		assert.Equal(t, sent.Metadata, got.Metadata)
	})

	t.Run("republished events are deduplicated", func(t *testing.T) {
		received := make(chan *domain.Event, 10)
		sub, err := bus.Subscribe(messaging.EventFilter{}, func(event *domain.Event) error {
			received <- event
			return nil
		})
		require.NoError(t, err)
		defer sub.Unsubscribe()

		event := factoryEvent("evt-dup", "factory.CarProduced")
		require.NoError(t, bus.Publish([]*domain.Event{event}))
		require.NoError(t, bus.Publish([]*domain.Event{event}))

		receive(t, received)
		assertSilent(t, received)
	})

	t.Run("event type filter", func(t *testing.T) {
		received := make(chan *domain.Event, 10)
		sub, err := bus.Subscribe(messaging.EventFilter{
			EventTypes: []string{"factory.CarProduced", "factory.CurseWordUttered"},
		}, func(event *domain.Event) error {
			received <- event
			return nil
		})
		require.NoError(t, err)
		defer sub.Unsubscribe()

		require.NoError(t, bus.Publish([]*domain.Event{
			factoryEvent("evt-f1", "factory.EmployeeAssigned"),
			factoryEvent("evt-f2", "factory.CurseWordUttered"),
		}))

		assert.Equal(t, "evt-f2", receive(t, received).ID)
		assertSilent(t, received)
	})

	t.Run("failed handler is redelivered", func(t *testing.T) {
		var attempts atomic.Int32
		received := make(chan *domain.Event, 1)
		sub, err := bus.Subscribe(messaging.EventFilter{AggregateTypes: []string{"Factory"}},
			func(event *domain.Event) error {
				if attempts.Add(1) == 1 {
					return errors.New("not yet")
				}
				received <- event
				return nil
			})
		require.NoError(t, err)
		defer sub.Unsubscribe()

		require.NoError(t, bus.Publish([]*domain.Event{factoryEvent("evt-retry", "factory.CarProduced")}))

		assert.Equal(t, "evt-retry", receive(t, received).ID)
		assert.GreaterOrEqual(t, attempts.Load(), int32(2))
	})
}

func TestDurableSubscriptionResumes(t *testing.T) {
	bus, srv, err := natspkg.NewEmbeddedEventBus()
	require.NoError(t, err)
	defer srv.Shutdown()
	defer bus.Close()

	filter := messaging.EventFilter{AggregateTypes: []string{"Factory"}}
	received := make(chan *domain.Event, 10)
	collect := func(event *domain.Event) error {
		received <- event
		return nil
	}

	sub, err := bus.SubscribeDurable("production log", filter, collect)
	require.NoError(t, err)
	require.NoError(t, bus.Publish([]*domain.Event{factoryEvent("evt-d1", "factory.CarProduced")}))
	assert.Equal(t, "evt-d1", receive(t, received).ID)
	require.NoError(t, sub.Unsubscribe())

	require.NoError(t, bus.Publish([]*domain.Event{factoryEvent("evt-d2", "factory.CarProduced")}))
	assertSilent(t, received)

	sub, err = bus.SubscribeDurable("production log", filter, collect)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	assert.Equal(t, "evt-d2", receive(t, received).ID, "missed event is delivered on resume")
	assertSilent(t, received)

	_, err = bus.SubscribeDurable("", filter, collect)
	assert.Error(t, err)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "events.Factory.factory_CarProduced",
		natspkg.Subject(&domain.Event{AggregateType: "Factory", EventType: "factory.CarProduced"}))
}
