package factory

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// Event type names, used as envelope types by the event store.
const (
	EventTypeEmployeeAssigned              = "factory.EmployeeAssigned"
	EventTypeShipmentTransferredToCargoBay = "factory.ShipmentTransferredToCargoBay"
	EventTypeCurseWordUttered              = "factory.CurseWordUttered"
	EventTypeShipmentUnloadedFromCargoBay  = "factory.ShipmentUnloadedFromCargoBay"
	EventTypeCarProduced                   = "factory.CarProduced"
)

// Event is something that has already happened to the factory.
// The set of variants is closed: only types in this package implement it.
type Event interface {
	fmt.Stringer

	// EventType returns the stable type name of the event.
	EventType() string

	factoryEvent()
}

// MaxPartQuantity is the largest quantity a single part line may carry.
// Quantities up to it survive the stored encoding exactly.
const MaxPartQuantity = math.MaxInt32

// CarPart is a quantity of a named part. Parts have no identity.
type CarPart struct {
	Name     string
	Quantity int
}

// EmployeeAssigned records that an employee joined the factory.
type EmployeeAssigned struct {
	EmployeeName string
}

// ShipmentTransferredToCargoBay records a shipment placed in the cargo bay.
type ShipmentTransferredToCargoBay struct {
	ShipmentName string
	Parts        []CarPart
}

// CurseWordUttered is informational and carries no state effect.
type CurseWordUttered struct {
	Word    string
	Meaning string
}

// ShipmentUnloadedFromCargoBay records that an employee unloaded the cargo bay.
type ShipmentUnloadedFromCargoBay struct {
	EmployeeName string
}

// CarProduced records that an employee built a car.
type CarProduced struct {
	EmployeeName string
	CarModel     string
}

func (EmployeeAssigned) factoryEvent()              {}
func (ShipmentTransferredToCargoBay) factoryEvent() {}
func (CurseWordUttered) factoryEvent()              {}
func (ShipmentUnloadedFromCargoBay) factoryEvent()  {}
func (CarProduced) factoryEvent()                   {}

// cloneEvent returns e with no memory shared with the original.
func cloneEvent(e Event) Event {
	if s, ok := e.(ShipmentTransferredToCargoBay); ok {
		s.Parts = slices.Clone(s.Parts)
		return s
	}
	return e
}

func cloneEvents(events []Event) []Event {
	if events == nil {
		return nil
	}
	out := make([]Event, len(events))
	for i, e := range events {
		out[i] = cloneEvent(e)
	}
	return out
}

func (EmployeeAssigned) EventType() string { return EventTypeEmployeeAssigned }
func (ShipmentTransferredToCargoBay) EventType() string {
	return EventTypeShipmentTransferredToCargoBay
}
func (CurseWordUttered) EventType() string             { return EventTypeCurseWordUttered }
func (ShipmentUnloadedFromCargoBay) EventType() string { return EventTypeShipmentUnloadedFromCargoBay }
func (CarProduced) EventType() string                  { return EventTypeCarProduced }

func (e EmployeeAssigned) String() string {
	return fmt.Sprintf("new factory worker joins our forces: '%s'", e.EmployeeName)
}

func (e ShipmentTransferredToCargoBay) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Shipment '%s' transferred to cargo bay:\n", e.ShipmentName)
	for _, p := range e.Parts {
		fmt.Fprintf(&b, "     %s %d pcs\n", p.Name, p.Quantity)
	}
	return b.String()
}

func (e CurseWordUttered) String() string {
	return fmt.Sprintf("'%s' was heard within the walls. It meant:\n    '%s'", e.Word, e.Meaning)
}

func (e ShipmentUnloadedFromCargoBay) String() string {
	return fmt.Sprintf("Employee: '%s' unloaded all shipments in the cargo bay", e.EmployeeName)
}

func (e CarProduced) String() string {
	return fmt.Sprintf("Employee: '%s' produced a '%s'", e.EmployeeName, e.CarModel)
}
