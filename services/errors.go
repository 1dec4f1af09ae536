package services

import (
	"errors"
	"fmt"

	"github.com/Dosada05/matchday/models"
	"github.com/Dosada05/matchday/repositories"
)

// Kind errors. Every error returned by a service wraps exactly one of these,
// which is what the HTTP layer maps to a status code.
var (
	ErrAccessDenied           = errors.New("access denied")
	ErrNotFound               = errors.New("requested resource not found")
	ErrValidationFailed       = errors.New("validation failed")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrConflict               = errors.New("conflict")
	ErrStorage                = errors.New("storage error")
)

// Ошибки периодов и жизненного цикла матча
var (
	ErrPeriodNotFound      = newError(ErrNotFound, "Period not found")
	ErrPeriodAlreadyActive = newError(ErrInvalidStateTransition, "another period is already active")
	ErrPeriodAlreadyEnded  = newError(ErrInvalidStateTransition, "Period is already ended")
	ErrPeriodNeverStarted  = newError(ErrInvalidStateTransition, "Cannot end period that was never started")
)

var (
	ErrMatchNotFound  = newError(ErrNotFound, "match not found")
	ErrTeamNotFound   = newError(ErrNotFound, "team not found")
	ErrPlayerNotFound = newError(ErrNotFound, "player not found")
	ErrEventNotFound  = newError(ErrNotFound, "match event not found")
)

// kindError carries its own message while still matching its kind.
type kindError struct {
	kind error
	msg  string
}

func newError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// Kind is the machine-readable category of a service error.
type Kind string

const (
	KindAccessDenied Kind = "access_denied"
	KindNotFound     Kind = "not_found"
	KindInvalidInput Kind = "invalid_input"
	KindInvalidState Kind = "invalid_state_transition"
	KindConflict     Kind = "conflict"
	KindStorage      Kind = "storage_error"
	KindUnknown      Kind = "internal"
)

// ErrorKind classifies err. Transition errors from the models package count
// as invalid state transitions without further wrapping.
func ErrorKind(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAccessDenied):
		return KindAccessDenied
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidationFailed):
		return KindInvalidInput
	case errors.Is(err, ErrInvalidStateTransition), errors.Is(err, models.ErrInvalidTransition):
		return KindInvalidState
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrStorage):
		return KindStorage
	}
	return KindUnknown
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidationFailed, fmt.Sprintf(format, args...))
}

// storageError wraps a repository failure. Constraint violations become
// conflicts so callers can tell them apart from outages.
func storageError(op string, err error) error {
	switch {
	case errors.Is(err, repositories.ErrDuplicateKey):
		return fmt.Errorf("%w: %s: already exists", ErrConflict, op)
	case errors.Is(err, repositories.ErrForeignKey):
		return fmt.Errorf("%w: %s: referenced record does not exist", ErrValidationFailed, op)
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
