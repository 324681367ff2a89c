package notification

import "errors"

var (
	ErrNotFound   = errors.New("notification not found")
	ErrValidation = errors.New("validation failed")
)
