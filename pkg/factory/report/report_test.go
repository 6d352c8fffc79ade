package report_test

import (
	"context"
	"testing"

	"github.com/plaenen/refactory/pkg/domain"
	"github.com/plaenen/refactory/pkg/factory"
	"github.com/plaenen/refactory/pkg/factory/report"
	"github.com/plaenen/refactory/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func produce(t *testing.T, es store.EventStore, id string) {
	t.Helper()
	f := factory.New(id)
	_, err := f.AssignEmployee("yoda")
	require.NoError(t, err)
	_, err = f.AssignEmployee("luke")
	require.NoError(t, err)
	_, err = f.TransferShipmentToCargoBay("model T kit",
		factory.CarPart{Name: factory.PartWheels, Quantity: 12},
		factory.CarPart{Name: factory.PartEngine, Quantity: 2},
		factory.CarPart{Name: factory.PartBitsAndPieces, Quantity: 4},
	)
	require.NoError(t, err)
	_, err = f.ProduceCar("yoda", "Model T")
	require.NoError(t, err)
	_, err = f.ProduceCar("luke", "Model T")
	require.NoError(t, err)
	require.NoError(t, es.AppendEvents(id, 0, f.UncommittedEvents()))
}

func TestReport(t *testing.T) {
	ctx := context.Background()
	es := store.NewMemoryEventStore()
	produce(t, es, "factory-1")

	r := report.New()
	projector := store.NewProjector(es, store.NewMemoryCheckpointStore(), 10)

	handled, err := projector.CatchUp(ctx, r.Projection())
	require.NoError(t, err)
	assert.Equal(t, 6, handled)

	s, ok := r.Factory("factory-1")
	require.True(t, ok)
	assert.Equal(t, 2, s.Employees)
	assert.Equal(t, 1, s.ShipmentsReceived)
	assert.Equal(t, 18, s.PartsReceived)
	assert.Equal(t, 1, s.CursesHeard)
	assert.Equal(t, 2, s.CarsProduced)
	assert.Equal(t, map[string]int{"yoda": 1, "luke": 1}, s.CarsByEmployee)

	t.Run("summaries are copies", func(t *testing.T) {
		s.CarsByEmployee["yoda"] = 99
		again, _ := r.Factory("factory-1")
		assert.Equal(t, 1, again.CarsByEmployee["yoda"])
	})

	t.Run("rebuild does not double count", func(t *testing.T) {
		produce(t, es, "factory-2")
		_, err := projector.Rebuild(ctx, r.Projection())
		require.NoError(t, err)

		all := r.Factories()
		require.Len(t, all, 2)
		assert.Equal(t, "factory-1", all[0].FactoryID)
		assert.Equal(t, 2, all[0].CarsProduced)
		assert.Equal(t, 2, all[1].CarsProduced)
	})

	t.Run("other aggregates are ignored", func(t *testing.T) {
		require.NoError(t, r.Apply(&domain.Event{AggregateType: "Warehouse", EventType: "warehouse.Opened"}))
		assert.Len(t, r.Factories(), 2)
	})

	t.Run("corrupt payload fails", func(t *testing.T) {
		err := r.Apply(&domain.Event{
			AggregateID:   "factory-3",
			AggregateType: factory.AggregateType,
			EventType:     "factory.Exploded",
		})
		assert.ErrorIs(t, err, factory.ErrUnknownEvent)
	})
}
