package protocol

import (
	"errors"
	"fmt"
)

// Error kinds returned to protocol callers.
var (
	// ErrInvalidArgument is returned for malformed addresses, handles and digits.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotAvailable is returned when the channel state does not allow the request.
	ErrNotAvailable = errors.New("not available")

	// ErrNotImplemented is returned for requests the bridge does not support.
	ErrNotImplemented = errors.New("not implemented")

	// ErrPermissionDenied is returned when removing a handle the channel does not own.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrDisconnected is returned when a pending request is canceled by teardown.
	ErrDisconnected = errors.New("disconnected")
)

// Error is a protocol error with a human readable message.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Errorf builds an *Error of the given kind.
func Errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Message returns the human readable part of err.
func Message(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// Canceled is the error delivered to completions dropped by teardown.
func Canceled() error {
	return Errorf(ErrDisconnected, "Internal error - request canceled")
}
