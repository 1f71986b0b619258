package convo

import (
	"errors"
	"fmt"
)

// Sentinel errors for store operations.
var (
	// ErrSessionNotFound is returned when a session has no stored row.
	ErrSessionNotFound = errors.New("convo: session not found")

	// ErrNoEmail is returned when no email is recorded for a session.
	ErrNoEmail = errors.New("convo: no email recorded for session")

	// ErrClosed is returned when a manager or store is used after Close.
	ErrClosed = errors.New("convo: closed")

	// ErrInvalidRole is returned when a message carries an unknown role.
	ErrInvalidRole = errors.New("convo: invalid role")
)

// StoreError wraps a storage backend failure with operation context.
type StoreError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("convo store: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
