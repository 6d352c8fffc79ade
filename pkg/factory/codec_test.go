package factory_test

import (
	"testing"

	"github.com/plaenen/refactory/pkg/domain"
	"github.com/plaenen/refactory/pkg/factory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestCodecRoundTrip(t *testing.T) {
	events := []factory.Event{
		factory.EmployeeAssigned{EmployeeName: "yoda"},
		factory.ShipmentTransferredToCargoBay{ShipmentName: "parts", Parts: modelTParts()},
		factory.CurseWordUttered{Word: factory.CurseWord, Meaning: factory.CurseWordMeaning},
		factory.ShipmentUnloadedFromCargoBay{EmployeeName: "luke"},
		factory.CarProduced{EmployeeName: "yoda", CarModel: "Model T"},
	}

	for _, event := range events {
		t.Run(event.EventType(), func(t *testing.T) {
			data, err := factory.EncodeEvent(event)
			require.NoError(t, err)

			again, err := factory.EncodeEvent(event)
			require.NoError(t, err)
			assert.Equal(t, data, again, "encoding is deterministic")

			decoded, err := factory.DecodeEvent(event.EventType(), data)
			require.NoError(t, err)
			assert.Equal(t, event, decoded)
		})
	}
}

func TestCodecQuantityBoundary(t *testing.T) {
	event := factory.ShipmentTransferredToCargoBay{
		ShipmentName: "parts",
		Parts:        []factory.CarPart{{Name: factory.PartWheels, Quantity: factory.MaxPartQuantity}},
	}
	data, err := factory.EncodeEvent(event)
	require.NoError(t, err)
	decoded, err := factory.DecodeEvent(event.EventType(), data)
	require.NoError(t, err)
	assert.Equal(t, event, decoded)

	event.Parts[0].Quantity = factory.MaxPartQuantity + 1
	_, err = factory.EncodeEvent(event)
	var verr *factory.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestDecodeEvent(t *testing.T) {
	t.Run("unknown type", func(t *testing.T) {
		_, err := factory.DecodeEvent("factory.Unknown", nil)
		assert.ErrorIs(t, err, factory.ErrUnknownEvent)
	})

	t.Run("quantity outside the exact range", func(t *testing.T) {
		for _, quantity := range []float64{-1, 2.5, factory.MaxPartQuantity + 1, 9007199254740993} {
			payload, err := structpb.NewStruct(map[string]any{
				"shipment_name": "parts",
				"parts":         []any{map[string]any{"name": factory.PartWheels, "quantity": quantity}},
			})
			require.NoError(t, err)
			data, err := proto.Marshal(payload)
			require.NoError(t, err)

			_, err = factory.DecodeEvent(factory.EventTypeShipmentTransferredToCargoBay, data)
			var verr *factory.ValidationError
			assert.ErrorAs(t, err, &verr, "quantity %v", quantity)
		}
	})

	t.Run("corrupt payload", func(t *testing.T) {
		_, err := factory.DecodeEvent(factory.EventTypeEmployeeAssigned, []byte{0xff, 0xff, 0xff})
		assert.Error(t, err)
	})
}

func TestDecodeEnvelopes(t *testing.T) {
	f := factory.New("factory-1")
	_, err := f.AssignEmployee("yoda")
	require.NoError(t, err)
	_, err = f.TransferShipmentToCargoBay("parts", modelTParts()...)
	require.NoError(t, err)

	events, err := factory.DecodeEnvelopes(f.UncommittedEvents())
	require.NoError(t, err)
	assert.Equal(t, f.Journal().Events(), events)

	_, err = factory.DecodeEnvelopes([]*domain.Event{{ID: "x", EventType: "factory.Unknown"}})
	assert.ErrorIs(t, err, factory.ErrUnknownEvent)
}
