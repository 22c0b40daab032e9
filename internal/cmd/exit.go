package cmd

import (
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
)

// ExitError carries the foundry exit code a failed command terminates with.
type ExitError struct {
	// Code is a foundry exit code, e.g. foundry.ExitInvalidArgument.
	Code foundry.ExitCode

	// Message is the user-facing summary printed before the cause.
	Message string

	// Err is the underlying failure, if any.
	Err error
}

// Error renders "Message: cause", or just Message when there is no cause.
func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *ExitError) Unwrap() error {
	return e.Err
}

func exitError(code foundry.ExitCode, message string, err error) error {
	return &ExitError{Code: code, Message: message, Err: err}
}
