package room

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrNotConnected is returned when publishing without a connection.
	ErrNotConnected = errors.New("room: not connected")

	// ErrAlreadyConnected is returned when Connect is called twice.
	ErrAlreadyConnected = errors.New("room: already connected")

	// ErrMissingURL is returned when no room URL is configured.
	ErrMissingURL = errors.New("room: URL required")

	// ErrMissingToken is returned when no access token is configured.
	ErrMissingToken = errors.New("room: access token required")
)

// ConnectionError wraps a transport failure.
type ConnectionError struct {
	Message   string
	Err       error
	Retryable bool
}

// NewConnectionError creates a connection error.
func NewConnectionError(message string, err error, retryable bool) *ConnectionError {
	return &ConnectionError{Message: message, Err: err, Retryable: retryable}
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("room: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("room: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether reconnecting may help.
func (e *ConnectionError) IsRetryable() bool {
	return e.Retryable
}
