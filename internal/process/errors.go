package process

import (
	"errors"
	"fmt"
)

// ErrorCode classifies executor failures.
type ErrorCode string

// ErrorCode constants for executor errors.
const (
	ErrLaunch          ErrorCode = "LAUNCH_FAILED"
	ErrIO              ErrorCode = "IO"
	ErrHandler         ErrorCode = "HANDLER"
	ErrTimeout         ErrorCode = "TIMEOUT"
	ErrInterrupted     ErrorCode = "INTERRUPTED"
	ErrIllegalState    ErrorCode = "ILLEGAL_STATE"
	ErrUnexpected      ErrorCode = "UNEXPECTED"
	ErrInvalidArgument ErrorCode = "INVALID_ARGUMENT"
)

// Error is returned by every Executor operation that fails.
// For ErrHandler the Cause is the error returned by the caller's hook, so
// errors.As reaches the caller's own error type.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func newError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HasCode checks if the error matches a specific code.
func (e *Error) HasCode(code ErrorCode) bool {
	return e.Code == code
}

// HasCode reports whether the outermost *Error in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// CodeOf returns the code of the outermost *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func IsLaunch(err error) bool       { return HasCode(err, ErrLaunch) }
func IsIO(err error) bool           { return HasCode(err, ErrIO) }
func IsHandler(err error) bool      { return HasCode(err, ErrHandler) }
func IsTimeout(err error) bool      { return HasCode(err, ErrTimeout) }
func IsInterrupted(err error) bool  { return HasCode(err, ErrInterrupted) }
func IsIllegalState(err error) bool { return HasCode(err, ErrIllegalState) }
func IsUnexpected(err error) bool   { return HasCode(err, ErrUnexpected) }

// surface prepares a task failure for Join. IO, handler and unexpected
// errors pass through, anything else is wrapped as unexpected.
func surface(name string, err error) error {
	switch CodeOf(err) {
	case ErrIO, ErrHandler, ErrUnexpected:
		return err
	default:
		return newError(ErrUnexpected, "output handling of external process "+name, err)
	}
}
