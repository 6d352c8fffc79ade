package rpc_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"github.com/plaenen/refactory/pkg/domain"
	"github.com/plaenen/refactory/pkg/eventsourcing"
	"github.com/plaenen/refactory/pkg/factory"
	"github.com/plaenen/refactory/pkg/factory/handlers"
	"github.com/plaenen/refactory/pkg/messaging"
	"github.com/plaenen/refactory/pkg/middleware"
	"github.com/plaenen/refactory/pkg/store"
	"github.com/plaenen/refactory/pkg/transport/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingBus struct{}

func (failingBus) Publish([]*domain.Event) error { return errors.New("nats down") }
func (failingBus) Subscribe(messaging.EventFilter, messaging.EventHandler) (messaging.Subscription, error) {
	return nil, errors.New("nats down")
}
func (failingBus) Close() error { return nil }

func newClient(t *testing.T, opts ...eventsourcing.BusOption) *rpc.Client {
	t.Helper()
	h := handlers.New(store.NewMemoryEventStore())
	bus := eventsourcing.NewCommandBus(opts...)
	bus.Use(middleware.ValidationMiddleware(middleware.SelfValidator))
	h.Register(bus)

	mux := http.NewServeMux()
	mux.Handle(rpc.NewHandler(bus, h, rpc.WithDefaultFactoryID("main")).Routes())
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return rpc.NewClient(server.Client(), server.URL, rpc.WithPrincipal("tester"))
}

func TestCommandsOverTheWire(t *testing.T) {
	ctx := context.Background()
	client := newClient(t)

	result, err := client.AssignEmployee(ctx, "", "yoda")
	require.NoError(t, err)
	require.Len(t, result.Events, 1)
	assert.Equal(t, "new factory worker joins our forces: 'yoda'", result.Events[0].Description)
	assert.True(t, result.Published)

	result, err = client.TransferShipmentToCargoBay(ctx, "", "model T kit",
		factory.CarPart{Name: factory.PartWheels, Quantity: 6},
		factory.CarPart{Name: factory.PartEngine, Quantity: 1},
		factory.CarPart{Name: factory.PartBitsAndPieces, Quantity: 2},
	)
	require.NoError(t, err)
	require.Len(t, result.Events, 1)
	assert.Equal(t, int64(2), result.Events[0].Version)

	_, err = client.UnloadShipmentFromCargoBay(ctx, "", "yoda")
	require.NoError(t, err)
	_, err = client.ProduceCar(ctx, "", "yoda", "Model T")
	require.NoError(t, err)

	history, err := client.History(ctx, "main")
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, factory.EventTypeCarProduced, history[3].Type)
	assert.Equal(t, "Employee: 'yoda' produced a 'Model T'", history[3].Description)

	state, err := client.State(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "main", state.FactoryID)
	assert.Equal(t, int64(4), state.Version)
	assert.Equal(t, []string{"yoda"}, state.Employees)
	assert.Equal(t, []string{"yoda"}, state.UnloadedToday)
	assert.Equal(t, []string{"yoda"}, state.ProducedToday)
	assert.Equal(t, 1, state.PendingShipments)
	assert.Equal(t, factory.Inventory{Wheels: 6, Engines: 1, BitsAndPieces: 2}, state.Inventory)
}

func TestRejectionsSurviveTheWire(t *testing.T) {
	ctx := context.Background()
	client := newClient(t)

	_, err := client.TransferShipmentToCargoBay(ctx, "", "early", factory.CarPart{Name: factory.PartWheels, Quantity: 1})
	assert.ErrorIs(t, err, factory.ErrNoStaff)

	_, err = client.AssignEmployee(ctx, "", "yoda")
	require.NoError(t, err)
	_, err = client.AssignEmployee(ctx, "", "yoda")
	require.ErrorIs(t, err, factory.ErrDuplicateEmployee)
	assert.Equal(t, "the name of 'yoda' only one employee can have", err.Error())

	_, err = client.ProduceCar(ctx, "", "yoda", "Model A")
	assert.ErrorIs(t, err, factory.ErrUnsupportedModel)

	history, err := client.History(ctx, "")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestFactoriesAreSeparate(t *testing.T) {
	ctx := context.Background()
	client := newClient(t)

	_, err := client.AssignEmployee(ctx, "north", "yoda")
	require.NoError(t, err)
	_, err = client.AssignEmployee(ctx, "south", "yoda")
	require.NoError(t, err)

	history, err := client.History(ctx, "main")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestInvalidArguments(t *testing.T) {
	ctx := context.Background()
	client := newClient(t)

	_, err := client.AssignEmployee(ctx, "", "  ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_argument")

	_, err = client.AssignEmployee(ctx, "", "yoda")
	require.NoError(t, err)
	_, err = client.TransferShipmentToCargoBay(ctx, "", "broken", factory.CarPart{Name: factory.PartWheels, Quantity: -3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_argument")
}

func TestPublishFailureStillSucceeds(t *testing.T) {
	client := newClient(t, eventsourcing.WithEventBus(failingBus{}))

	result, err := client.AssignEmployee(context.Background(), "", "yoda")
	require.NoError(t, err)
	assert.False(t, result.Published)
	assert.Len(t, result.Events, 1)
}

func TestConnectOptionsLimitRequestSize(t *testing.T) {
	h := handlers.New(store.NewMemoryEventStore())
	bus := eventsourcing.NewCommandBus()
	h.Register(bus)

	mux := http.NewServeMux()
	mux.Handle(rpc.NewHandler(bus, h, rpc.WithConnectOptions(connect.WithReadMaxBytes(256))).Routes())
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	client := rpc.NewClient(server.Client(), server.URL)

	ctx := context.Background()
	_, err := client.AssignEmployee(ctx, "", "yoda")
	require.NoError(t, err)

	parts := make([]factory.CarPart, 50)
	for i := range parts {
		parts[i] = factory.CarPart{Name: factory.PartWheels, Quantity: 1}
	}
	_, err = client.TransferShipmentToCargoBay(ctx, "", "oversized", parts...)
	require.Error(t, err)
	assert.Equal(t, connect.CodeResourceExhausted, connect.CodeOf(err))

	history, err := client.History(ctx, "")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
