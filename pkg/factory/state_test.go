package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// strayEvent satisfies Event without having an applier.
type strayEvent struct{}

func (strayEvent) String() string    { return "stray" }
func (strayEvent) EventType() string { return "factory.Stray" }
func (strayEvent) factoryEvent()     {}

func sampleHistory() []Event {
	return []Event{
		EmployeeAssigned{EmployeeName: "yoda"},
		EmployeeAssigned{EmployeeName: "luke"},
		ShipmentTransferredToCargoBay{
			ShipmentName: "model T spare parts",
			Parts: []CarPart{
				{Name: PartWheels, Quantity: 20},
				{Name: PartEngine, Quantity: 7},
				{Name: PartBitsAndPieces, Quantity: 2},
			},
		},
		CurseWordUttered{Word: CurseWord, Meaning: CurseWordMeaning},
		ShipmentUnloadedFromCargoBay{EmployeeName: "luke"},
		CarProduced{EmployeeName: "yoda", CarModel: "Model T"},
	}
}

func TestApply_PerVariantEffects(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		check func(t *testing.T, s State)
	}{
		{
			name:  "employee assigned",
			event: EmployeeAssigned{EmployeeName: "yoda"},
			check: func(t *testing.T, s State) {
				assert.Equal(t, []string{"yoda"}, s.EmployeeNames())
			},
		},
		{
			name:  "shipment transferred",
			event: ShipmentTransferredToCargoBay{ShipmentName: "chassis", Parts: []CarPart{{Name: "chassis", Quantity: 4}}},
			check: func(t *testing.T, s State) {
				assert.Equal(t, [][]CarPart{{{Name: "chassis", Quantity: 4}}}, s.ShipmentsPendingUnload())
			},
		},
		{
			name:  "curse word has no effect",
			event: CurseWordUttered{Word: "x", Meaning: "y"},
			check: func(t *testing.T, s State) {
				assert.Equal(t, EmptyState(), s)
			},
		},
		{
			name:  "shipment unloaded",
			event: ShipmentUnloadedFromCargoBay{EmployeeName: "luke"},
			check: func(t *testing.T, s State) {
				assert.True(t, s.HasUnloadedToday("luke"))
				assert.Zero(t, s.PendingShipmentCount())
			},
		},
		{
			name:  "car produced",
			event: CarProduced{EmployeeName: "yoda", CarModel: "Model T"},
			check: func(t *testing.T, s State) {
				assert.True(t, s.HasProducedCarToday("yoda"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Apply(EmptyState(), tt.event)
			require.NoError(t, err)
			tt.check(t, s)
		})
	}
}

func TestApply_UnknownEventFailsFast(t *testing.T) {
	for _, e := range []Event{strayEvent{}, nil, &EmployeeAssigned{EmployeeName: "yoda"}} {
		_, err := Apply(EmptyState(), e)
		assert.ErrorIs(t, err, ErrUnknownEvent)
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	before, err := Rebuild(sampleHistory()[:3])
	require.NoError(t, err)
	snapshot, err := Rebuild(sampleHistory()[:3])
	require.NoError(t, err)

	_, err = Apply(before, EmployeeAssigned{EmployeeName: "leia"})
	require.NoError(t, err)
	_, err = Apply(before, ShipmentTransferredToCargoBay{ShipmentName: "more", Parts: []CarPart{{Name: PartWheels, Quantity: 1}}})
	require.NoError(t, err)

	assert.Equal(t, snapshot, before)
}

func TestState_AccessorsReturnCopies(t *testing.T) {
	s, err := Rebuild(sampleHistory())
	require.NoError(t, err)

	names := s.EmployeeNames()
	names[0] = "vader"
	shipments := s.ShipmentsPendingUnload()
	shipments[0][0].Quantity = 0

	assert.Equal(t, []string{"yoda", "luke"}, s.EmployeeNames())
	assert.Equal(t, 20, s.Inventory().Wheels)
}

func TestRebuild(t *testing.T) {
	t.Run("is deterministic", func(t *testing.T) {
		a, err := Rebuild(sampleHistory())
		require.NoError(t, err)
		b, err := Rebuild(sampleHistory())
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("folds every event in order", func(t *testing.T) {
		s, err := Rebuild(sampleHistory())
		require.NoError(t, err)
		assert.Equal(t, []string{"yoda", "luke"}, s.EmployeeNames())
		assert.Equal(t, 1, s.PendingShipmentCount())
		assert.Equal(t, []string{"luke"}, s.EmployeesUnloadedToday())
		assert.Equal(t, []string{"yoda"}, s.EmployeesProducedCarToday())
	})

	t.Run("unknown event yields no partial state", func(t *testing.T) {
		history := append(sampleHistory()[:2], strayEvent{})
		s, err := Rebuild(history)
		assert.ErrorIs(t, err, ErrUnknownEvent)
		assert.Equal(t, EmptyState(), s)
	})

	t.Run("empty history", func(t *testing.T) {
		s, err := Rebuild(nil)
		require.NoError(t, err)
		assert.Equal(t, EmptyState(), s)
	})
}

func TestInventory(t *testing.T) {
	history := []Event{
		ShipmentTransferredToCargoBay{ShipmentName: "a", Parts: []CarPart{
			{Name: PartWheels, Quantity: 4},
			{Name: "Wheels", Quantity: 100},
			{Name: PartEngine, Quantity: 1},
		}},
		ShipmentTransferredToCargoBay{ShipmentName: "b", Parts: []CarPart{
			{Name: PartWheels, Quantity: 2},
			{Name: PartBitsAndPieces, Quantity: 1},
			{Name: "chassis", Quantity: 4},
		}},
	}
	s, err := Rebuild(history)
	require.NoError(t, err)

	inv := s.Inventory()
	assert.Equal(t, Inventory{Wheels: 6, Engines: 1, BitsAndPieces: 1}, inv)
	assert.False(t, inv.CanBuildModelT())

	inv.BitsAndPieces++
	assert.True(t, inv.CanBuildModelT())
}
