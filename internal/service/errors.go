package service

import (
	"errors"
	"fmt"
)

// ErrForbidden is returned when the actor may not touch the requested record.
var ErrForbidden = errors.New("forbidden")

// ValidationError indicates that the caller supplied unusable input.
type ValidationError struct {
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return e.Message
}

func invalidf(format string, args ...any) error {
	return ValidationError{Message: fmt.Sprintf(format, args...)}
}
