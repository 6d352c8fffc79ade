package factory

import (
	"fmt"
	"math"

	"github.com/plaenen/refactory/pkg/domain"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

var marshalOptions = proto.MarshalOptions{Deterministic: true}

// EncodeEvent serializes an event payload as a google.protobuf.Struct.
func EncodeEvent(event Event) ([]byte, error) {
	fields, err := eventFields(event)
	if err != nil {
		return nil, err
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build payload for %s: %w", event.EventType(), err)
	}
	data, err := marshalOptions.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", event.EventType(), err)
	}
	return data, nil
}

// DecodeEvent restores an event from its type name and serialized payload.
func DecodeEvent(eventType string, data []byte) (Event, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", eventType, err)
	}
	f := s.GetFields()

	switch eventType {
	case EventTypeEmployeeAssigned:
		return EmployeeAssigned{EmployeeName: f["employee_name"].GetStringValue()}, nil
	case EventTypeShipmentTransferredToCargoBay:
		parts, err := decodeParts(f["parts"].GetListValue())
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", eventType, err)
		}
		return ShipmentTransferredToCargoBay{
			ShipmentName: f["shipment_name"].GetStringValue(),
			Parts:        parts,
		}, nil
	case EventTypeCurseWordUttered:
		return CurseWordUttered{
			Word:    f["word"].GetStringValue(),
			Meaning: f["meaning"].GetStringValue(),
		}, nil
	case EventTypeShipmentUnloadedFromCargoBay:
		return ShipmentUnloadedFromCargoBay{EmployeeName: f["employee_name"].GetStringValue()}, nil
	case EventTypeCarProduced:
		return CarProduced{
			EmployeeName: f["employee_name"].GetStringValue(),
			CarModel:     f["car_model"].GetStringValue(),
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, eventType)
}

// DecodeEnvelopes decodes stored envelopes in order.
func DecodeEnvelopes(envelopes []*domain.Event) ([]Event, error) {
	events := make([]Event, 0, len(envelopes))
	for _, env := range envelopes {
		e, err := DecodeEvent(env.EventType, env.Data)
		if err != nil {
			return nil, fmt.Errorf("event %s (version %d): %w", env.ID, env.Version, err)
		}
		events = append(events, e)
	}
	return events, nil
}

func eventFields(event Event) (map[string]any, error) {
	switch e := event.(type) {
	case EmployeeAssigned:
		return map[string]any{"employee_name": e.EmployeeName}, nil
	case ShipmentTransferredToCargoBay:
		if err := validateQuantities(e.Parts); err != nil {
			return nil, err
		}
		parts := make([]any, len(e.Parts))
		for i, p := range e.Parts {
			parts[i] = map[string]any{"name": p.Name, "quantity": p.Quantity}
		}
		return map[string]any{"shipment_name": e.ShipmentName, "parts": parts}, nil
	case CurseWordUttered:
		return map[string]any{"word": e.Word, "meaning": e.Meaning}, nil
	case ShipmentUnloadedFromCargoBay:
		return map[string]any{"employee_name": e.EmployeeName}, nil
	case CarProduced:
		return map[string]any{"employee_name": e.EmployeeName, "car_model": e.CarModel}, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownEvent, event)
}

// decodeParts accepts only whole quantities within 0..MaxPartQuantity, the
// range float64 carries exactly.
func decodeParts(list *structpb.ListValue) ([]CarPart, error) {
	values := list.GetValues()
	parts := make([]CarPart, 0, len(values))
	for i, v := range values {
		f := v.GetStructValue().GetFields()
		q := f["quantity"].GetNumberValue()
		if q != math.Trunc(q) || q < 0 || q > MaxPartQuantity {
			return nil, &ValidationError{
				Field:   fmt.Sprintf("parts[%d].quantity", i),
				Message: fmt.Sprintf("must be a whole number between 0 and %d", MaxPartQuantity),
			}
		}
		parts = append(parts, CarPart{
			Name:     f["name"].GetStringValue(),
			Quantity: int(q),
		})
	}
	return parts, nil
}
