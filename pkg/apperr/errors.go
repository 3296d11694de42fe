// Package apperr defines the error taxonomy shared by the membership
// services. Callers match with errors.Is / errors.As; nothing here is
// fatal to the process.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the user, subscription, payment or code is absent.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCode covers unknown and already-used activation codes alike.
	ErrInvalidCode = errors.New("invalid activation code")
	// ErrInvalidTransition is returned for payment status regressions and unknown plans.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrInvalidArgument rejects malformed input before any store access.
	ErrInvalidArgument = errors.New("invalid argument")
)

// PersistenceError wraps a store failure. The enclosing transaction is
// always rolled back when one of these is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// TransportError wraps an email or chat delivery failure; the
// notification stays pending for the next dispatch pass.
type TransportError struct {
	Channel   string
	Recipient string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s to %s: %v", e.Channel, e.Recipient, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// InvalidTransition wraps ErrInvalidTransition with detail.
func InvalidTransition(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransition, fmt.Sprintf(format, args...))
}

// InvalidArgument wraps ErrInvalidArgument with detail.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// NotFound wraps ErrNotFound with the missing entity name.
func NotFound(entity string) error {
	return fmt.Errorf("%s %w", entity, ErrNotFound)
}

func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
