package domain

import (
	"fmt"

	"pcbooking/internal/models"

	"github.com/cockroachdb/errors"
)

var (
	ErrValidation             = errors.New("validation failed")
	ErrPastDate               = errors.New("start date is in the past")
	ErrConflict               = errors.New("resource already booked for the requested period")
	ErrUnauthorized           = errors.New("pin or reservation id incorrect")
	ErrNotFound               = errors.New("reservation not found")
	ErrInvalidExtension       = errors.New("invalid extension")
	ErrStoreUnavailable       = errors.New("reservation store unavailable")
	ErrConcurrentModification = errors.New("reservation was modified concurrently")
	ErrTooManyAttempts        = errors.New("too many pin attempts, try again later")
)

// ValidationError names the offending request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func NewValidationError(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ConflictError reports the reservation that blocks a create or extend.
type ConflictError struct {
	Blocking models.ConflictInfo
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("resource already booked by %s from %s to %s",
		e.Blocking.BookedBy, e.Blocking.StartDate, e.Blocking.EndDate)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

func NewConflictError(blocking *models.Reservation) error {
	return &ConflictError{Blocking: blocking.Conflict()}
}

// IsDomainError reports whether err is one of the expected outcomes above
// rather than an infrastructure failure.
func IsDomainError(err error) bool {
	for _, target := range []error{
		ErrValidation, ErrPastDate, ErrConflict, ErrUnauthorized, ErrNotFound,
		ErrInvalidExtension, ErrStoreUnavailable, ErrConcurrentModification, ErrTooManyAttempts,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Unavailable marks an infrastructure failure as ErrStoreUnavailable while
// keeping the original cause for logs. Domain errors pass through untouched.
func Unavailable(err error) error {
	if err == nil || IsDomainError(err) {
		return err
	}
	return errors.Mark(errors.Wrap(err, "reservation store"), ErrStoreUnavailable)
}
