package appointment

import "errors"

var (
	ErrNotFound          = errors.New("appointment not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrValidation        = errors.New("validation failed")
	// ErrConflict is returned when the version check fails, meaning another
	// writer changed the appointment after the caller read it.
	ErrConflict = errors.New("appointment was modified concurrently")
)
