package api

import (
	"errors"
	"fmt"
)

// ErrorKind classifies backend failures for recovery decisions.
type ErrorKind string

const (
	// ErrKindTransient covers rejected requests and non-2xx responses.
	// Recovered locally: sends roll back, destructive operations leave
	// state untouched.
	ErrKindTransient ErrorKind = "transient"

	// ErrKindServer covers 2xx envelopes carrying success:false. Treated
	// identically to transient failures by callers.
	ErrKindServer ErrorKind = "server"
)

// Error is the typed failure returned by every client method.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("api error (%s, %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("api error (%s): %s", e.Kind, e.Message)
}

// AsError unwraps err into an *Error, or nil when it is not one.
func AsError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}

// IsTransient reports whether err is a transient network-level failure.
func IsTransient(err error) bool {
	apiErr := AsError(err)
	return apiErr != nil && apiErr.Kind == ErrKindTransient
}

// IsServerLogic reports whether err is a success:false envelope from the
// backend.
func IsServerLogic(err error) bool {
	apiErr := AsError(err)
	return apiErr != nil && apiErr.Kind == ErrKindServer
}

func transientErr(status int, msg string) *Error {
	return &Error{Kind: ErrKindTransient, Status: status, Message: msg}
}

func serverErr(status int, msg string) *Error {
	if msg == "" {
		msg = "backend reported failure"
	}
	return &Error{Kind: ErrKindServer, Status: status, Message: msg}
}
