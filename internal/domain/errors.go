package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict means a concurrent writer updated the record first.
	// The caller must re-read and retry.
	ErrConflict = errors.New("record was modified concurrently")
)

// ValidationError rejects a request before any state change.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// InvalidTransitionError rejects an action that is not legal from the
// record's current status. No side effect has occurred.
type InvalidTransitionError struct {
	Action string
	From   OverstayStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s an overstay in status %s", e.Action, e.From)
}

// GatewayError wraps a payment gateway failure. Transient failures
// (network, timeout) are eligible for retry; terminal failures (declined,
// no payment method) count toward escalation.
type GatewayError struct {
	Transient bool
	Reason    string
	Err       error
}

func (e *GatewayError) Error() string {
	kind := "terminal"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("gateway %s failure: %s", kind, e.Reason)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
