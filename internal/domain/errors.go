package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Input validation errors raised by constructors.
var (
	ErrInvalidID          = errors.New("invalid id")
	ErrInvalidCode        = errors.New("invalid code")
	ErrInvalidName        = errors.New("invalid name")
	ErrInvalidDescription = errors.New("invalid description")
	ErrInvalidKind        = errors.New("invalid process kind")
	ErrInvalidUnitType    = errors.New("invalid unit type")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidHierarchy   = errors.New("invalid unit hierarchy")
)

// Workflow errors surfaced to callers of lifecycle operations.
var (
	ErrInvalidState      = errors.New("invalid state")
	ErrValidationFailed  = errors.New("validation failed")
	ErrAccessDenied      = errors.New("access denied")
	ErrInvariantViolated = errors.New("invariant violated")
)

// ValidationError carries every offending item found by a guard.
type ValidationError struct {
	Message string
	Items   []string
}

// NewValidationError constructs a validation error over the given items.
func NewValidationError(message string, items ...string) *ValidationError {
	return &ValidationError{
		Message: strings.TrimSpace(message),
		Items:   append([]string(nil), items...),
	}
}

// Error implements error.
func (e *ValidationError) Error() string {
	msg := ErrValidationFailed.Error()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if len(e.Items) > 0 {
		msg += " (" + strings.Join(e.Items, "; ") + ")"
	}
	return msg
}

// Unwrap exposes ErrValidationFailed to errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// TransitionError reports an operation attempted from a state that does not allow it.
type TransitionError struct {
	Operation Operation
	From      SubprocessState
	Allowed   []SubprocessState
}

// Error implements error.
func (e *TransitionError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("%s: %s is not allowed from %s", ErrInvalidState, e.Operation, e.From)
	}
	allowed := make([]string, 0, len(e.Allowed))
	for _, state := range e.Allowed {
		allowed = append(allowed, string(state))
	}
	return fmt.Sprintf("%s: %s is not allowed from %s (allowed: %s)", ErrInvalidState, e.Operation, e.From, strings.Join(allowed, ", "))
}

// Unwrap exposes ErrInvalidState to errors.Is.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidState
}
