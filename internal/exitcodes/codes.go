package exitcodes

import (
	"context"
	"errors"
)

// Exit codes of the cryptobar command.
const (
	Success = 0

	// GeneralError indicates a general/unknown error
	GeneralError = 1

	// InvalidArgs indicates invalid flags, arguments or configuration
	InvalidArgs = 2

	// PreconditionFailed indicates a precondition was not met
	// (e.g., another update already running)
	PreconditionFailed = 3

	// NetworkError indicates the release host or artifact could not be reached
	NetworkError = 4

	// ProcessError indicates an external tool or the relaunch failed
	ProcessError = 5

	// ValidationError indicates the release was unusable (e.g., no installer asset)
	ValidationError = 6

	// Cancelled indicates the run was interrupted (SIGINT/SIGTERM)
	Cancelled = 130
)

// CodeForError returns the exit code carried by err. Interrupted runs map
// to Cancelled; anything without an explicit code is GeneralError.
func CodeForError(err error) int {
	if err == nil {
		return Success
	}

	var ec *ErrorWithCode
	if errors.As(err, &ec) {
		return ec.Code
	}
	if errors.Is(err, context.Canceled) {
		return Cancelled
	}
	return GeneralError
}
