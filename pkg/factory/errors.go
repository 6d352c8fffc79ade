package factory

import (
	"errors"
	"fmt"
)

// ErrUnknownEvent is returned when an event has no applier. It signals a
// programming or data defect, never a business rejection.
var ErrUnknownEvent = errors.New("unknown factory event")

// Rejection codes.
const (
	CodeDuplicateEmployee     = "DUPLICATE_EMPLOYEE"
	CodeForbiddenEmployeeName = "FORBIDDEN_EMPLOYEE_NAME"
	CodeNoStaff               = "NO_STAFF"
	CodeEmptyShipment         = "EMPTY_SHIPMENT"
	CodeCargoBayFull          = "CARGO_BAY_FULL"
	CodeCargoBayEmpty         = "CARGO_BAY_EMPTY"
	CodeAlreadyUnloadedToday  = "ALREADY_UNLOADED_TODAY"
	CodeUnsupportedModel      = "UNSUPPORTED_MODEL"
	CodeAlreadyProducedToday  = "ALREADY_PRODUCED_TODAY"
	CodeInsufficientParts     = "INSUFFICIENT_PARTS"
)

// Rejection is a business rule refusing a command. A rejected command
// leaves the journal and state untouched.
type Rejection struct {
	Code    string
	Message string
}

func (r *Rejection) Error() string {
	return r.Message
}

// RejectionCode returns the wire code of the rejection.
func (r *Rejection) RejectionCode() string {
	return r.Code
}

// Is matches any rejection carrying the same code, so callers can use
// errors.Is(err, factory.ErrCargoBayFull) against a detailed rejection.
func (r *Rejection) Is(target error) bool {
	var other *Rejection
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == r.Code
}

// Sentinel rejections, one per kind.
var (
	ErrDuplicateEmployee     = &Rejection{Code: CodeDuplicateEmployee, Message: "employee name already taken"}
	ErrForbiddenEmployeeName = &Rejection{Code: CodeForbiddenEmployeeName, Message: "employee name is not allowed"}
	ErrNoStaff               = &Rejection{Code: CodeNoStaff, Message: "no employees at the factory"}
	ErrEmptyShipment         = &Rejection{Code: CodeEmptyShipment, Message: "shipment has no parts"}
	ErrCargoBayFull          = &Rejection{Code: CodeCargoBayFull, Message: "cargo bay is full"}
	ErrCargoBayEmpty         = &Rejection{Code: CodeCargoBayEmpty, Message: "cargo bay is empty"}
	ErrAlreadyUnloadedToday  = &Rejection{Code: CodeAlreadyUnloadedToday, Message: "employee already unloaded today"}
	ErrUnsupportedModel      = &Rejection{Code: CodeUnsupportedModel, Message: "car model is not supported"}
	ErrAlreadyProducedToday  = &Rejection{Code: CodeAlreadyProducedToday, Message: "employee already produced a car today"}
	ErrInsufficientParts     = &Rejection{Code: CodeInsufficientParts, Message: "not enough parts"}
)

var rejectionsByCode = map[string]*Rejection{
	CodeDuplicateEmployee:     ErrDuplicateEmployee,
	CodeForbiddenEmployeeName: ErrForbiddenEmployeeName,
	CodeNoStaff:               ErrNoStaff,
	CodeEmptyShipment:         ErrEmptyShipment,
	CodeCargoBayFull:          ErrCargoBayFull,
	CodeCargoBayEmpty:         ErrCargoBayEmpty,
	CodeAlreadyUnloadedToday:  ErrAlreadyUnloadedToday,
	CodeUnsupportedModel:      ErrUnsupportedModel,
	CodeAlreadyProducedToday:  ErrAlreadyProducedToday,
	CodeInsufficientParts:     ErrInsufficientParts,
}

// RejectionByCode returns the sentinel rejection for a wire code.
func RejectionByCode(code string) (*Rejection, bool) {
	r, ok := rejectionsByCode[code]
	return r, ok
}

// IsRejection reports whether err is a business rejection and returns it.
func IsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

func reject(sentinel *Rejection, format string, args ...any) *Rejection {
	return &Rejection{Code: sentinel.Code, Message: fmt.Sprintf(format, args...)}
}
