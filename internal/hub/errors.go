package hub

import (
	"fmt"

	"github.com/juju/errors"
)

// Sentinel errors for the hub. Match them with errors.Is; returned errors
// carry extra context.
const (
	// ErrInvalidChannel is returned when a pattern or handle argument is not a string
	// or a subscription handle.
	ErrInvalidChannel = errors.ConstError("invalid channel")

	// ErrInvalidCallback is returned when a callback argument cannot be invoked.
	ErrInvalidCallback = errors.ConstError("invalid callback")

	// ErrCallbackPanic identifies a recovered callback panic.
	ErrCallbackPanic = errors.ConstError("callback panicked")
)

// PanicError describes a callback that panicked during delivery.
type PanicError struct {
	// HandleID is the ID of the subscription whose callback panicked.
	HandleID string

	// Pattern is the pattern the callback was subscribed to.
	Pattern string

	// Channel is the published channel being delivered.
	Channel string

	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the time of the panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("callback %s for pattern %q panicked on channel %q: %v",
		e.HandleID, e.Pattern, e.Channel, e.Value)
}

// Is allows errors.Is to match PanicError with ErrCallbackPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrCallbackPanic
}
