package eventsourcing

import "errors"

var (
	// ErrCommandNotFound is returned when a command handler is not registered.
	ErrCommandNotFound = errors.New("command handler not found")

	// ErrInvalidCommand is returned when a command is invalid.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrPublishFailed is returned when events were stored but could not be
	// handed to the event bus.
	ErrPublishFailed = errors.New("failed to publish events")
)

// Rejected is implemented by errors that represent an expected business
// refusal rather than a failure.
type Rejected interface {
	error
	RejectionCode() string
}

// RejectionCode returns the code of the first rejection in err's chain.
func RejectionCode(err error) (string, bool) {
	var r Rejected
	if errors.As(err, &r) {
		return r.RejectionCode(), true
	}
	return "", false
}
