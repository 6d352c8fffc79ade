package factory

import (
	"fmt"

	"github.com/asaskevich/govalidator"
)

// maxNameLength bounds employee, shipment, part and model names.
const maxNameLength = 64

// ValidationError reports a malformed command payload. It is raised before
// the aggregate sees the command and is not a business rejection.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func validateName(field, value string) error {
	if govalidator.IsNull(value) || govalidator.HasWhitespaceOnly(value) {
		return &ValidationError{Field: field, Message: "is required"}
	}
	if !govalidator.StringLength(value, "1", fmt.Sprint(maxNameLength)) {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be at most %d characters", maxNameLength)}
	}
	return nil
}

func validateQuantity(field string, quantity int) error {
	if quantity < 0 {
		return &ValidationError{Field: field, Message: "must not be negative"}
	}
	if quantity > MaxPartQuantity {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be at most %d", MaxPartQuantity)}
	}
	return nil
}

// validateQuantities enforces the CarPart quantity range.
func validateQuantities(parts []CarPart) error {
	for i, p := range parts {
		if err := validateQuantity(fmt.Sprintf("parts[%d].quantity", i), p.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the payload shape.
func (c AssignEmployee) Validate() error {
	return validateName("employee_name", c.EmployeeName)
}

// Validate checks the payload shape. An empty parts list is left to the
// aggregate, which rejects it as EmptyShipment.
func (c TransferShipmentToCargoBay) Validate() error {
	if err := validateName("shipment_name", c.ShipmentName); err != nil {
		return err
	}
	for i, p := range c.Parts {
		field := fmt.Sprintf("parts[%d]", i)
		if err := validateName(field+".name", p.Name); err != nil {
			return err
		}
		if err := validateQuantity(field+".quantity", p.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the payload shape.
func (c UnloadShipmentFromCargoBay) Validate() error {
	return validateName("employee_name", c.EmployeeName)
}

// Validate checks the payload shape. Unsupported models are left to the
// aggregate, which rejects them as UnsupportedModel.
func (c ProduceCar) Validate() error {
	if err := validateName("employee_name", c.EmployeeName); err != nil {
		return err
	}
	return validateName("car_model", c.CarModel)
}
