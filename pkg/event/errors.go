/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package event

import (
	"errors"
	"fmt"
)

var (
	// ErrResourceExhausted is returned when no more registrations can be
	// accepted, either because the ID space ran out or the configured
	// capacity was reached.
	ErrResourceExhausted = errors.New("event: resource exhausted")

	// ErrInvalidHandle is returned for IDs the base never issued, and for
	// any operation on a destroyed base.
	ErrInvalidHandle = errors.New("event: invalid handle")

	// ErrDoubleDestroy is returned by Destroy on an already destroyed base.
	ErrDoubleDestroy = errors.New("event: base already destroyed")

	// ErrSchedulerUnavailable wraps failures of the underlying scheduler.
	ErrSchedulerUnavailable = errors.New("event: scheduler unavailable")

	// ErrReentrant is returned when Run or Loop is called while the base is
	// already dispatching.
	ErrReentrant = errors.New("event: loop already running")

	// ErrInvalidArgument is returned for malformed registrations.
	ErrInvalidArgument = errors.New("event: invalid argument")

	// ErrCallbackPanic is the cause of a CallbackFault produced by a panic.
	ErrCallbackPanic = errors.New("event: callback panicked")
)

// CallbackFault reports a handler that returned an error or panicked.
// The dispatch loop stops and returns the fault from Run.
type CallbackFault struct {
	ID    ID
	Err   error
	Panic any
	Stack []byte
}

func (f *CallbackFault) Error() string {
	if f.Panic != nil {
		return fmt.Sprintf("event %d: callback panicked: %v", f.ID, f.Panic)
	}
	return fmt.Sprintf("event %d: callback failed: %v", f.ID, f.Err)
}

// Unwrap returns the handler error, or ErrCallbackPanic for panics.
func (f *CallbackFault) Unwrap() error {
	if f.Panic != nil {
		return ErrCallbackPanic
	}
	return f.Err
}
