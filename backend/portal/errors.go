package portal

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled reports that the user dismissed the broker dialog.
	// It is a normal completion, not a failure.
	ErrCancelled = errors.New("portal: request cancelled by user")

	// ErrAlreadyActive rejects a start while a request is outstanding.
	ErrAlreadyActive = errors.New("portal: already active")

	// ErrStopped is returned by a start that was overtaken by stop.
	ErrStopped = errors.New("portal: session stopped")

	// ErrOptionMismatch rejects options declared for another capability.
	ErrOptionMismatch = errors.New("portal: options do not belong to capability")
)

// TransportError means the broker could not be reached or rejected the call.
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("portal: %s failed: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ResponseError is a completed request that ended neither in success nor
// in a user cancellation.
type ResponseError struct {
	Handle RequestHandle
	Code   ResponseCode
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("portal: request %s ended with response code %d", e.Handle, e.Code)
}

type DecodeErrorKind string

const (
	UnknownVariant DecodeErrorKind = "unknown variant"
	WrongType      DecodeErrorKind = "wrong type"
	MissingKey     DecodeErrorKind = "missing key"
	Malformed      DecodeErrorKind = "malformed"
)

// DecodeError reports an unexpected payload shape.
type DecodeError struct {
	Capability Capability
	Key        string
	Kind       DecodeErrorKind
	Value      any
	Err        error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("portal: decode %s", e.Kind)
	if e.Capability != "" {
		msg += " in " + string(e.Capability)
	}
	if e.Key != "" {
		msg += fmt.Sprintf(" for %q", e.Key)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(": %v", e.Value)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }
