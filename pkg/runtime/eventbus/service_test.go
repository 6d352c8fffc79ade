package eventbus_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/plaenen/refactory/pkg/domain"
	"github.com/plaenen/refactory/pkg/messaging"
	natsbus "github.com/plaenen/refactory/pkg/nats"
	"github.com/plaenen/refactory/pkg/runner"
	"github.com/plaenen/refactory/pkg/runtime/embeddednats"
	"github.com/plaenen/refactory/pkg/runtime/eventbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceBeforeStart(t *testing.T) {
	svc := eventbus.New()
	assert.ErrorIs(t, svc.Publish([]*domain.Event{{ID: "e1"}}), eventbus.ErrNotConnected)
	assert.ErrorIs(t, svc.HealthCheck(context.Background()), eventbus.ErrNotConnected)
	_, err := svc.SubscribeDurable("log", messaging.EventFilter{}, func(*domain.Event) error { return nil })
	assert.ErrorIs(t, err, eventbus.ErrNotConnected)
	assert.NoError(t, svc.Stop(context.Background()))
}

func TestServiceConcurrentUse(t *testing.T) {
	ctx := context.Background()
	server := embeddednats.New()
	require.NoError(t, server.Start(ctx))
	defer server.Stop(ctx)

	svc := eventbus.New(
		eventbus.WithConfig(natsbus.TestConfig("")),
		eventbus.WithURLFunc(server.URL),
	)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				_ = svc.Publish([]*domain.Event{{ID: "e", AggregateType: "Factory", EventType: "factory.CarProduced"}})
				_ = svc.HealthCheck(ctx)
			}
		}()
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Start(ctx))
		require.NoError(t, svc.HealthCheck(ctx))
		require.NoError(t, svc.Stop(ctx))
	}
	close(stop)
	wg.Wait()

	assert.ErrorIs(t, svc.Publish(nil), eventbus.ErrNotConnected)
}

func TestServiceWithEmbeddedServer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := embeddednats.New()
	bus := eventbus.New(
		eventbus.WithConfig(natsbus.TestConfig("")),
		eventbus.WithURLFunc(server.URL),
	)

	received := make(chan *domain.Event, 1)
	ready := runner.ServiceFunc{
		ServiceName: "publisher",
		StartFunc: func(context.Context) error {
			_, err := bus.Subscribe(messaging.EventFilter{AggregateTypes: []string{"Factory"}}, func(e *domain.Event) error {
				received <- e
				return nil
			})
			if err != nil {
				return err
			}
			return bus.Publish([]*domain.Event{{
				ID:            "event-1",
				AggregateID:   "factory-1",
				AggregateType: "Factory",
				EventType:     "factory.EmployeeAssigned",
				Version:       1,
			}})
		},
	}

	r := runner.New([]runner.Service{server, bus, ready}, runner.WithSignalHandling(false))
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case e := <-received:
		assert.Equal(t, "event-1", e.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}

	require.NoError(t, r.HealthCheck(ctx))

	cancel()
	require.NoError(t, <-done)
}
