package factory

import (
	"fmt"
	"slices"
)

// State is the projection the factory evaluates its rules against.
// It is only ever produced by EmptyState, Apply and Rebuild.
type State struct {
	employeeNames             []string
	shipmentsPendingUnload    [][]CarPart
	employeesUnloadedToday    []string
	employeesProducedCarToday []string
}

// EmptyState returns the state of a factory with no history.
func EmptyState() State {
	return State{}
}

// Apply returns the state that results from event happening in state.
// The input state is not modified. Unknown event variants fail with
// ErrUnknownEvent.
func Apply(state State, event Event) (State, error) {
	switch e := event.(type) {
	case EmployeeAssigned:
		state.employeeNames = appendCopy(state.employeeNames, e.EmployeeName)
	case ShipmentTransferredToCargoBay:
		next := make([][]CarPart, len(state.shipmentsPendingUnload), len(state.shipmentsPendingUnload)+1)
		copy(next, state.shipmentsPendingUnload)
		state.shipmentsPendingUnload = append(next, slices.Clone(e.Parts))
	case CurseWordUttered:
	case ShipmentUnloadedFromCargoBay:
		// Pending shipments stay in place: they double as the available inventory.
		state.employeesUnloadedToday = appendCopy(state.employeesUnloadedToday, e.EmployeeName)
	case CarProduced:
		state.employeesProducedCarToday = appendCopy(state.employeesProducedCarToday, e.EmployeeName)
	default:
		return state, fmt.Errorf("%w: %T", ErrUnknownEvent, event)
	}
	return state, nil
}

// Rebuild folds events, in order, over the empty state.
func Rebuild(events []Event) (State, error) {
	state := EmptyState()
	for i, e := range events {
		next, err := Apply(state, e)
		if err != nil {
			return EmptyState(), fmt.Errorf("apply event %d: %w", i, err)
		}
		state = next
	}
	return state, nil
}

// EmployeeNames returns the assigned employees in assignment order.
func (s State) EmployeeNames() []string {
	return slices.Clone(s.employeeNames)
}

// ShipmentsPendingUnload returns every transferred shipment in transfer order.
func (s State) ShipmentsPendingUnload() [][]CarPart {
	out := make([][]CarPart, len(s.shipmentsPendingUnload))
	for i, parts := range s.shipmentsPendingUnload {
		out[i] = slices.Clone(parts)
	}
	return out
}

// EmployeesUnloadedToday returns employees who unloaded the cargo bay.
func (s State) EmployeesUnloadedToday() []string {
	return slices.Clone(s.employeesUnloadedToday)
}

// EmployeesProducedCarToday returns employees who built a car.
func (s State) EmployeesProducedCarToday() []string {
	return slices.Clone(s.employeesProducedCarToday)
}

// HasEmployee reports whether name is assigned to the factory.
func (s State) HasEmployee(name string) bool {
	return slices.Contains(s.employeeNames, name)
}

// HasUnloadedToday reports whether name already unloaded the cargo bay.
func (s State) HasUnloadedToday(name string) bool {
	return slices.Contains(s.employeesUnloadedToday, name)
}

// HasProducedCarToday reports whether name already built a car.
func (s State) HasProducedCarToday(name string) bool {
	return slices.Contains(s.employeesProducedCarToday, name)
}

// PendingShipmentCount returns the number of shipments in the cargo bay.
func (s State) PendingShipmentCount() int {
	return len(s.shipmentsPendingUnload)
}

// appendCopy appends v to a fresh copy of list so states never share backing arrays.
func appendCopy(list []string, v string) []string {
	out := make([]string, len(list), len(list)+1)
	copy(out, list)
	return append(out, v)
}
