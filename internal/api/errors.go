// internal/api/errors.go
package api

import (
	"errors"
	"fmt"
)

// The command client sorts every failure into one of four kinds, so
// callers can decide between "fix the input", "show the message",
// "wait for reconnect", and "tear the session down".

// ValidationError is a local rejection raised before any network call:
// bad card ranks for an interrupt type, a missing identity before a
// guarded action, a malformed room code.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// RequestError means the server answered with a non-success result
// (room not found on create, not your turn, invalid play). The message
// is surfaced verbatim to the UI; canonical state is left untouched.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("request failed (%d): %s", e.Status, e.Message)
	}
	return "request failed: " + e.Message
}

// TransportError means the request never completed: connection refused,
// timeout, malformed response body. Identity is deliberately not torn
// down; a later reconnect may recover the session.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// InvalidSessionError means the server reports that the room or player
// this client believes it is no longer exists. It is the one error that
// forces a full reset of identity, snapshot, and interrupt state.
type InvalidSessionError struct {
	Message string
}

func (e *InvalidSessionError) Error() string {
	return "session invalid: " + e.Message
}

// IsInvalidSession reports whether err (anywhere in its chain) is an
// InvalidSessionError.
func IsInvalidSession(err error) bool {
	var ise *InvalidSessionError
	return errors.As(err, &ise)
}
