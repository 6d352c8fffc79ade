package factory

import (
	"errors"
	"fmt"
)

// ErrUnknownCommand is returned by Execute for commands the factory does not handle.
var ErrUnknownCommand = errors.New("unknown factory command")

// AssignEmployee asks the factory to take on a new employee.
type AssignEmployee struct {
	EmployeeName string
}

// TransferShipmentToCargoBay asks the factory to accept a shipment.
type TransferShipmentToCargoBay struct {
	ShipmentName string
	Parts        []CarPart
}

// UnloadShipmentFromCargoBay asks an employee to unload the cargo bay.
type UnloadShipmentFromCargoBay struct {
	EmployeeName string
}

// ProduceCar asks an employee to build a car.
type ProduceCar struct {
	EmployeeName string
	CarModel     string
}

func (AssignEmployee) CommandType() string             { return "factory.AssignEmployee" }
func (TransferShipmentToCargoBay) CommandType() string { return "factory.TransferShipmentToCargoBay" }
func (UnloadShipmentFromCargoBay) CommandType() string { return "factory.UnloadShipmentFromCargoBay" }
func (ProduceCar) CommandType() string                 { return "factory.ProduceCar" }

// Execute dispatches a command value to its handler.
func (f *Factory) Execute(cmd any) ([]Event, error) {
	switch c := cmd.(type) {
	case AssignEmployee:
		return f.AssignEmployee(c.EmployeeName)
	case TransferShipmentToCargoBay:
		return f.TransferShipmentToCargoBay(c.ShipmentName, c.Parts...)
	case UnloadShipmentFromCargoBay:
		return f.UnloadShipmentFromCargoBay(c.EmployeeName)
	case ProduceCar:
		return f.ProduceCar(c.EmployeeName, c.CarModel)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
}

// AssignEmployee assigns a uniquely named employee to the factory.
func (f *Factory) AssignEmployee(employeeName string) ([]Event, error) {
	if f.state.HasEmployee(employeeName) {
		return nil, reject(ErrDuplicateEmployee, "the name of '%s' only one employee can have", employeeName)
	}
	if employeeName == forbiddenEmployeeName {
		return nil, reject(ErrForbiddenEmployeeName, "Guys with the name '%s' are trouble.", employeeName)
	}

	f.work(Paperwork, "Assign employee to the factory")
	return f.record(EmployeeAssigned{EmployeeName: employeeName})
}

// TransferShipmentToCargoBay accepts a shipment into the cargo bay. Large
// shipments also make somebody curse, recorded in the same invocation.
// Quantities outside 0..MaxPartQuantity fail with a *ValidationError.
func (f *Factory) TransferShipmentToCargoBay(shipmentName string, parts ...CarPart) ([]Event, error) {
	if err := validateQuantities(parts); err != nil {
		return nil, err
	}
	if len(f.state.employeeNames) == 0 {
		return nil, reject(ErrNoStaff, "There has to be somebody at factory in order to accept shipment")
	}
	if len(parts) == 0 {
		return nil, reject(ErrEmptyShipment, "Empty shipments are not accepted!")
	}
	if f.state.PendingShipmentCount() > maxPendingShipments {
		return nil, reject(ErrCargoBayFull, "More than two shipments can't fit into this cargo bay :(")
	}

	f.work(RealWork, "opening cargo bay doors")

	events := []Event{ShipmentTransferredToCargoBay{
		ShipmentName: shipmentName,
		Parts:        append([]CarPart(nil), parts...),
	}}

	total := 0
	for _, p := range parts {
		total += p.Quantity
	}
	if total > curseThreshold {
		events = append(events, CurseWordUttered{Word: CurseWord, Meaning: CurseWordMeaning})
	}

	return f.record(events...)
}

// UnloadShipmentFromCargoBay lets an employee unload the cargo bay once.
// Unloading does not remove shipments; they remain the factory's inventory.
func (f *Factory) UnloadShipmentFromCargoBay(employeeName string) ([]Event, error) {
	if f.state.PendingShipmentCount() == 0 {
		return nil, reject(ErrCargoBayEmpty, "There are no shipments to unload in this cargo bay :(")
	}
	if f.state.HasUnloadedToday(employeeName) {
		return nil, reject(ErrAlreadyUnloadedToday, "'%s' has already unloaded a cargo bay today, find someone else", employeeName)
	}

	f.work(RealWork, "'%s' is working on unloading the cargo bay", employeeName)
	return f.record(ShipmentUnloadedFromCargoBay{EmployeeName: employeeName})
}

// ProduceCar lets an employee build one car. Parts are counted across all
// pending shipments and are not consumed.
func (f *Factory) ProduceCar(employeeName, carModel string) ([]Event, error) {
	if carModel != supportedCarModel {
		return nil, reject(ErrUnsupportedModel, "'%s' is not a car we can make. Can only make a '%s' :(", carModel, supportedCarModel)
	}
	if f.state.HasProducedCarToday(employeeName) {
		return nil, reject(ErrAlreadyProducedToday, "'%s' has already produced a car today, find someone else", employeeName)
	}
	if !f.state.Inventory().CanBuildModelT() {
		return nil, reject(ErrInsufficientParts, "We do not have enough parts to build a '%s'", carModel)
	}

	f.work(RealWork, "'%s' is building a '%s'", employeeName, carModel)
	return f.record(CarProduced{EmployeeName: employeeName, CarModel: carModel})
}
