package handlers_test

import (
	"context"
	"testing"

	"github.com/plaenen/refactory/pkg/eventsourcing"
	"github.com/plaenen/refactory/pkg/factory"
	"github.com/plaenen/refactory/pkg/factory/handlers"
	"github.com/plaenen/refactory/pkg/middleware"
	"github.com/plaenen/refactory/pkg/store"
	"github.com/plaenen/refactory/pkg/store/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const factoryID = "factory-1"

func newBus(t *testing.T, es store.EventStore, opts ...factory.Option) *eventsourcing.CommandBus {
	t.Helper()
	bus := eventsourcing.NewCommandBus()
	handlers.New(es, opts...).Register(bus)
	return bus
}

func send(t *testing.T, bus *eventsourcing.CommandBus, cmd eventsourcing.Command) error {
	t.Helper()
	_, err := bus.Send(context.Background(), eventsourcing.NewCommandEnvelope(factoryID, cmd))
	return err
}

func TestRegister(t *testing.T) {
	bus := newBus(t, store.NewMemoryEventStore())
	assert.Equal(t, []string{
		"factory.AssignEmployee",
		"factory.ProduceCar",
		"factory.TransferShipmentToCargoBay",
		"factory.UnloadShipmentFromCargoBay",
	}, bus.RegisteredCommands())
}

func TestHandlerPersistsAcrossCommands(t *testing.T) {
	es := store.NewMemoryEventStore()
	bus := newBus(t, es)

	require.NoError(t, send(t, bus, factory.AssignEmployee{EmployeeName: "yoda"}))
	require.NoError(t, send(t, bus, factory.TransferShipmentToCargoBay{
		ShipmentName: "model T kit",
		Parts: []factory.CarPart{
			{Name: factory.PartWheels, Quantity: 6},
			{Name: factory.PartEngine, Quantity: 1},
			{Name: factory.PartBitsAndPieces, Quantity: 2},
		},
	}))
	require.NoError(t, send(t, bus, factory.ProduceCar{EmployeeName: "yoda", CarModel: "Model T"}))

	version, err := es.GetAggregateVersion(factoryID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), version)

	f, err := handlers.New(es).Load(context.Background(), factoryID)
	require.NoError(t, err)
	assert.True(t, f.State().HasProducedCarToday("yoda"))
	assert.Equal(t, 3, f.Journal().Len())
}

func TestHandlerRejectionSavesNothing(t *testing.T) {
	es := store.NewMemoryEventStore()
	bus := newBus(t, es)

	require.NoError(t, send(t, bus, factory.AssignEmployee{EmployeeName: "yoda"}))
	err := send(t, bus, factory.AssignEmployee{EmployeeName: "yoda"})
	assert.ErrorIs(t, err, factory.ErrDuplicateEmployee)

	err = send(t, bus, factory.AssignEmployee{EmployeeName: "bender"})
	assert.ErrorIs(t, err, factory.ErrForbiddenEmployeeName)

	events, err := es.LoadEvents(factoryID, 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestHandlerReturnsStoredEnvelopes(t *testing.T) {
	es := store.NewMemoryEventStore()
	bus := newBus(t, es)
	require.NoError(t, send(t, bus, factory.AssignEmployee{EmployeeName: "yoda"}))

	env := eventsourcing.NewCommandEnvelope(factoryID, factory.TransferShipmentToCargoBay{
		ShipmentName: "big one",
		Parts:        []factory.CarPart{{Name: factory.PartWheels, Quantity: 11}},
	}).WithPrincipal("dock-7")
	events, err := bus.Send(context.Background(), env)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, factory.EventTypeShipmentTransferredToCargoBay, events[0].EventType)
	assert.Equal(t, factory.EventTypeCurseWordUttered, events[1].EventType)
	assert.Equal(t, []int64{2, 3}, []int64{events[0].Version, events[1].Version})
	for _, e := range events {
		assert.Equal(t, env.Metadata.CommandID, e.Metadata.CausationID)
		assert.Equal(t, "dock-7", e.Metadata.PrincipalID)
	}
}

func TestHandlerReportsWork(t *testing.T) {
	var work []string
	bus := newBus(t, store.NewMemoryEventStore(), factory.WithWorkObserver(func(kind factory.WorkKind, description string) {
		work = append(work, string(kind)+": "+description)
	}))

	require.NoError(t, send(t, bus, factory.AssignEmployee{EmployeeName: "yoda"}))
	assert.Error(t, send(t, bus, factory.UnloadShipmentFromCargoBay{EmployeeName: "yoda"}))
	assert.Equal(t, []string{"paperwork: Assign employee to the factory"}, work)
}

func TestHandlerWithSQLite(t *testing.T) {
	ctx := context.Background()
	es, err := sqlite.NewEventStore(sqlite.WithMemoryDatabase())
	require.NoError(t, err)
	defer es.Close()

	bus := newBus(t, es)
	require.NoError(t, send(t, bus, factory.AssignEmployee{EmployeeName: "yoda"}))
	require.NoError(t, send(t, bus, factory.AssignEmployee{EmployeeName: "luke"}))
	assert.ErrorIs(t, send(t, bus, factory.UnloadShipmentFromCargoBay{EmployeeName: "luke"}), factory.ErrCargoBayEmpty)

	f, err := handlers.New(es).Load(ctx, factoryID)
	require.NoError(t, err)
	assert.Equal(t, []string{"yoda", "luke"}, f.State().EmployeeNames())
	assert.Equal(t, int64(2), f.Version())
}

func TestHandlerUnknownCommand(t *testing.T) {
	h := handlers.New(store.NewMemoryEventStore())
	bus := eventsourcing.NewCommandBus()
	bus.Register("factory.Demolish", h)

	_, err := bus.Send(context.Background(), eventsourcing.NewCommandEnvelope(factoryID, demolish{}))
	assert.ErrorIs(t, err, factory.ErrUnknownCommand)
}

type demolish struct{}

func (demolish) CommandType() string { return "factory.Demolish" }

func TestHandlerQuantityRange(t *testing.T) {
	transfer := func(quantity int) factory.TransferShipmentToCargoBay {
		return factory.TransferShipmentToCargoBay{
			ShipmentName: "wheels",
			Parts:        []factory.CarPart{{Name: factory.PartWheels, Quantity: quantity}},
		}
	}

	t.Run("replay keeps the largest quantity", func(t *testing.T) {
		es := store.NewMemoryEventStore()
		bus := newBus(t, es)
		require.NoError(t, send(t, bus, factory.AssignEmployee{EmployeeName: "yoda"}))
		require.NoError(t, send(t, bus, transfer(factory.MaxPartQuantity)))

		f, err := handlers.New(es).Load(context.Background(), factoryID)
		require.NoError(t, err)
		assert.Equal(t, factory.MaxPartQuantity, f.State().Inventory().Wheels)
	})

	t.Run("validation middleware refuses larger quantities", func(t *testing.T) {
		es := store.NewMemoryEventStore()
		bus := newBus(t, es)
		bus.Use(middleware.ValidationMiddleware(middleware.SelfValidator))
		require.NoError(t, send(t, bus, factory.AssignEmployee{EmployeeName: "yoda"}))

		err := send(t, bus, transfer(9007199254740993))
		assert.ErrorIs(t, err, eventsourcing.ErrInvalidCommand)

		events, err := es.LoadEvents(factoryID, 0)
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})

	t.Run("the aggregate refuses them without middleware", func(t *testing.T) {
		es := store.NewMemoryEventStore()
		bus := newBus(t, es)
		require.NoError(t, send(t, bus, factory.AssignEmployee{EmployeeName: "yoda"}))

		err := send(t, bus, transfer(factory.MaxPartQuantity+1))
		var verr *factory.ValidationError
		assert.ErrorAs(t, err, &verr)

		events, err := es.LoadEvents(factoryID, 0)
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})
}
