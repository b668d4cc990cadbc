package app

import (
	"errors"

	"github.com/hylla/sgc/internal/domain"
)

// ErrNotFound and related errors describe persistence outcomes.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("concurrent modification")
)

// ErrorClass maps an error onto a stable label for metrics and exit reporting.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, domain.ErrValidationFailed):
		return "validation_failed"
	case errors.Is(err, domain.ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, domain.ErrInvariantViolated):
		return "invariant_violated"
	default:
		return "error"
	}
}
