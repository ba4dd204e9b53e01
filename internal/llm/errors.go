package llm

import (
	"context"
	"errors"
)

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotRunning
	ErrTypeTimeout
	ErrTypeCanceled
	ErrTypeModelNotFound
	ErrTypeInvalidResponse
	ErrTypeStream
)

// ClientError represents an error talking to the model server.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

func isType(err error, t ErrorType) bool {
	var clientErr *ClientError
	return errors.As(err, &clientErr) && clientErr.Type == t
}

// IsNotRunning reports whether the server could not be reached.
func IsNotRunning(err error) bool { return isType(err, ErrTypeNotRunning) }

// IsModelNotFound reports whether the server does not know the requested model.
func IsModelNotFound(err error) bool { return isType(err, ErrTypeModelNotFound) }

// IsTimeout reports whether the request ran out of time.
func IsTimeout(err error) bool { return isType(err, ErrTypeTimeout) }

// transportError classifies a failure of the HTTP round trip itself.
func transportError(err error) *ClientError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	case errors.Is(err, context.Canceled):
		return &ClientError{Type: ErrTypeCanceled, Message: "request canceled", Cause: err}
	default:
		return &ClientError{Type: ErrTypeNotRunning, Message: "model server is not reachable", Cause: err}
	}
}
