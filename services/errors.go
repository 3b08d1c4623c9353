package services

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation reports a task or account request with missing or invalid fields.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound reports a record that is not visible to the caller.
	ErrNotFound = errors.New("not found")
	// ErrNoEligibleTasks reports a plan request whose categories hold no incomplete tasks.
	ErrNoEligibleTasks = errors.New("no incomplete tasks in those categories")
	// ErrMalformedResponse reports a text-generation reply in neither the success nor the error shape.
	ErrMalformedResponse = errors.New("unknown response format")
	// ErrEmailTaken reports a signup for an email that is already registered.
	ErrEmailTaken = errors.New("email is already registered")
)

// GenerationError is an explicit error payload returned by the text-generation endpoint.
type GenerationError struct {
	Model      string
	StatusCode int
	Message    string
}

func (e *GenerationError) Error() string {
	return e.Message
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
