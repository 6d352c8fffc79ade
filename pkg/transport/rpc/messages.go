// Package rpc exposes the factory over connect unary procedures. Messages
// are google.protobuf.Struct values, so no generated code is needed.
package rpc

import (
	"fmt"
	"math"

	"github.com/plaenen/refactory/pkg/domain"
	"github.com/plaenen/refactory/pkg/factory"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified service name.
const ServiceName = "factory.v1.FactoryService"

// Procedure paths.
const (
	ProcedureAssignEmployee             = "/" + ServiceName + "/AssignEmployee"
	ProcedureTransferShipmentToCargoBay = "/" + ServiceName + "/TransferShipmentToCargoBay"
	ProcedureUnloadShipmentFromCargoBay = "/" + ServiceName + "/UnloadShipmentFromCargoBay"
	ProcedureProduceCar                 = "/" + ServiceName + "/ProduceCar"
	ProcedureHistory                    = "/" + ServiceName + "/History"
	ProcedureState                      = "/" + ServiceName + "/State"
)

// Request and response headers.
const (
	RejectionCodeHeader = "X-Rejection-Code"
	PrincipalHeader     = "X-Principal-Id"
)

// EventView describes one event of a factory's history.
type EventView struct {
	Type        string
	Version     int64
	Description string
}

// StateView is the current state of a factory.
type StateView struct {
	FactoryID        string
	Version          int64
	Employees        []string
	PendingShipments int
	UnloadedToday    []string
	ProducedToday    []string
	Inventory        factory.Inventory
}

// CommandResult is the outcome of an accepted command.
type CommandResult struct {
	Events []EventView
	// Published is false when the events were stored but the event bus
	// did not take them.
	Published bool
}

// EventViews describes stored envelopes.
func EventViews(envelopes []*domain.Event) ([]EventView, error) {
	views := make([]EventView, 0, len(envelopes))
	for _, env := range envelopes {
		e, err := factory.DecodeEvent(env.EventType, env.Data)
		if err != nil {
			return nil, err
		}
		views = append(views, EventView{Type: env.EventType, Version: env.Version, Description: e.String()})
	}
	return views, nil
}

// JournalViews describes a journal. Versions count from 1.
func JournalViews(events []factory.Event) []EventView {
	views := make([]EventView, len(events))
	for i, e := range events {
		views[i] = EventView{Type: e.EventType(), Version: int64(i + 1), Description: e.String()}
	}
	return views
}

func encodeEventViews(views []EventView) []any {
	list := make([]any, len(views))
	for i, v := range views {
		list[i] = map[string]any{
			"type":        v.Type,
			"version":     v.Version,
			"description": v.Description,
		}
	}
	return list
}

func decodeEventViews(list *structpb.ListValue) []EventView {
	values := list.GetValues()
	views := make([]EventView, 0, len(values))
	for _, v := range values {
		f := v.GetStructValue().GetFields()
		views = append(views, EventView{
			Type:        f["type"].GetStringValue(),
			Version:     int64(f["version"].GetNumberValue()),
			Description: f["description"].GetStringValue(),
		})
	}
	return views
}

func encodeResult(result CommandResult) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"events":    encodeEventViews(result.Events),
		"published": result.Published,
	})
}

func decodeResult(s *structpb.Struct) CommandResult {
	f := s.GetFields()
	return CommandResult{
		Events:    decodeEventViews(f["events"].GetListValue()),
		Published: f["published"].GetBoolValue(),
	}
}

func encodeState(v StateView) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"factory_id":        v.FactoryID,
		"version":           v.Version,
		"employees":         stringList(v.Employees),
		"pending_shipments": v.PendingShipments,
		"unloaded_today":    stringList(v.UnloadedToday),
		"produced_today":    stringList(v.ProducedToday),
		"inventory": map[string]any{
			"wheels":          v.Inventory.Wheels,
			"engines":         v.Inventory.Engines,
			"bits_and_pieces": v.Inventory.BitsAndPieces,
		},
	})
}

func decodeState(s *structpb.Struct) StateView {
	f := s.GetFields()
	inv := f["inventory"].GetStructValue().GetFields()
	return StateView{
		FactoryID:        f["factory_id"].GetStringValue(),
		Version:          int64(f["version"].GetNumberValue()),
		Employees:        stringValues(f["employees"].GetListValue()),
		PendingShipments: int(f["pending_shipments"].GetNumberValue()),
		UnloadedToday:    stringValues(f["unloaded_today"].GetListValue()),
		ProducedToday:    stringValues(f["produced_today"].GetListValue()),
		Inventory: factory.Inventory{
			Wheels:        int(inv["wheels"].GetNumberValue()),
			Engines:       int(inv["engines"].GetNumberValue()),
			BitsAndPieces: int(inv["bits_and_pieces"].GetNumberValue()),
		},
	}
}

func stringList(values []string) []any {
	list := make([]any, len(values))
	for i, v := range values {
		list[i] = v
	}
	return list
}

func stringValues(list *structpb.ListValue) []string {
	values := list.GetValues()
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, v.GetStringValue())
	}
	return out
}

func encodeParts(parts []factory.CarPart) []any {
	list := make([]any, len(parts))
	for i, p := range parts {
		list[i] = map[string]any{"name": p.Name, "quantity": p.Quantity}
	}
	return list
}

func decodeParts(list *structpb.ListValue) ([]factory.CarPart, error) {
	values := list.GetValues()
	parts := make([]factory.CarPart, 0, len(values))
	for i, v := range values {
		f := v.GetStructValue().GetFields()
		q := f["quantity"].GetNumberValue()
		if q != math.Trunc(q) || q > factory.MaxPartQuantity {
			return nil, fmt.Errorf("parts[%d].quantity must be a whole number", i)
		}
		parts = append(parts, factory.CarPart{Name: f["name"].GetStringValue(), Quantity: int(q)})
	}
	return parts, nil
}
