package symptomreport

import "errors"

var (
	ErrNotFound          = errors.New("symptom report not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("symptom report was modified concurrently")
)
