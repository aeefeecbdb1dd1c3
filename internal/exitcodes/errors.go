package exitcodes

import "fmt"

// ErrorWithCode attaches a process exit code to an error. Message is shown
// to the user; Cause, if any, stays reachable through errors.Is/As.
type ErrorWithCode struct {
	Code    int
	Message string
	Cause   error
}

func (e *ErrorWithCode) Error() string {
	switch {
	case e.Cause == nil:
		return e.Message
	case e.Message == "":
		return e.Cause.Error()
	default:
		return e.Message + ": " + e.Cause.Error()
	}
}

func (e *ErrorWithCode) Unwrap() error { return e.Cause }

// NewErrorf returns an error without cause.
func NewErrorf(code int, format string, args ...any) *ErrorWithCode {
	return &ErrorWithCode{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError tags cause with code.
func WrapError(code int, message string, cause error) *ErrorWithCode {
	return &ErrorWithCode{Code: code, Message: message, Cause: cause}
}

// InvalidArgsErrorf reports bad flags, arguments or configuration.
func InvalidArgsErrorf(format string, args ...any) *ErrorWithCode {
	return NewErrorf(InvalidArgs, format, args...)
}

// PreconditionErrorf reports a missing prerequisite such as a log file that
// was never written.
func PreconditionErrorf(format string, args ...any) *ErrorWithCode {
	return NewErrorf(PreconditionFailed, format, args...)
}
