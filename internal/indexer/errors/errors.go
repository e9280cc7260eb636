package errors

import "errors"

var (
	ErrNotFound     = errors.New("activity not found")
	ErrInvalidEvent = errors.New("invalid booking event")
)
