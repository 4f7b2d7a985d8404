package bridge

import (
	"errors"
	"fmt"
)

// Sentinel errors for branching on failure kind with errors.Is.
var (
	// ErrValidation indicates the caller supplied invalid or missing input.
	ErrValidation = errors.New("validation failed")

	// ErrAuthenticationRequired indicates an operation needs an access token that is not set.
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrRemote indicates the API returned a non-success status or could not be reached.
	ErrRemote = errors.New("remote error")
)

// ValidationError is returned before any network call when input is invalid.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Message
}

// Is reports whether target is ErrValidation or a ValidationError for the same field.
func (e *ValidationError) Is(target error) bool {
	if target == ErrValidation {
		return true
	}
	t, ok := target.(*ValidationError)
	if !ok {
		return false
	}
	return t.Field == "" || t.Field == e.Field
}

func newValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// AuthenticationRequiredError is returned when no access token is available.
type AuthenticationRequiredError struct {
	Operation string
}

// Error implements the error interface.
func (e *AuthenticationRequiredError) Error() string {
	return fmt.Sprintf("%s: no access token, call Authenticate or ExchangeCode first or set an access token", e.Operation)
}

// Is reports whether target is ErrAuthenticationRequired.
func (e *AuthenticationRequiredError) Is(target error) bool {
	if target == ErrAuthenticationRequired {
		return true
	}
	_, ok := target.(*AuthenticationRequiredError)
	return ok
}

// RemoteError represents a failed API call. StatusCode is zero when the
// request never produced a response.
//
// Message holds the server-provided error message verbatim, or the
// operation's generic message when the server gave none. Error() prefixes it
// with the operation and status for logs; read Message to show the server
// text unchanged.
type RemoteError struct {
	Operation  string
	StatusCode int
	Code       string
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	switch {
	case e.Cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.Operation, e.Message, e.Cause)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s (%d): %s", e.Operation, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Operation, e.Message)
	}
}

// Unwrap returns the underlying cause.
func (e *RemoteError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrRemote or a RemoteError with the same code.
func (e *RemoteError) Is(target error) bool {
	if target == ErrRemote {
		return true
	}
	t, ok := target.(*RemoteError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// IsValidation returns true if err is a validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsAuthenticationRequired returns true if err was caused by a missing access token.
func IsAuthenticationRequired(err error) bool {
	return errors.Is(err, ErrAuthenticationRequired)
}

// IsRemote returns true if err came from the API or the transport.
func IsRemote(err error) bool {
	return errors.Is(err, ErrRemote)
}
