package dispatcher

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrInterrupted is returned by a suspension point when the calling
	// Context was interrupted, either before the call or while it waited.
	ErrInterrupted = errors.New("dispatcher: interrupted")

	// ErrDispatcherClosed is returned when a Dispatcher, or a primitive bound
	// to one, is used after Close has started.
	ErrDispatcherClosed = errors.New("dispatcher: closed")

	// ErrOperationPending indicates a second wait in a direction that already
	// has a waiter, or closing a primitive that another Context waits on.
	ErrOperationPending = errors.New("dispatcher: operation already pending")

	// ErrNotMainContext is returned by Close when called from a spawned
	// Context.
	ErrNotMainContext = errors.New("dispatcher: must be called from the main context")

	// ErrWrongGoroutine is the panic value raised, when thread checks are
	// enabled, by API calls made off the current Context's goroutine.
	ErrWrongGoroutine = errors.New("dispatcher: called from a goroutine that is not the current context")

	// ErrUnsupportedPlatform is returned by New where no reactor exists.
	ErrUnsupportedPlatform = errors.New("dispatcher: platform not supported")

	ErrConnectionClosed = errors.New("dispatcher: connection closed")
	ErrListenerClosed   = errors.New("dispatcher: listener closed")

	// ErrInvalidAddress is returned by ParseIPAddress for anything other
	// than strict dotted-decimal IPv4.
	ErrInvalidAddress = errors.New("dispatcher: invalid ipv4 address")

	// ErrNoAddress is returned by Resolver.Resolve when a host has no IPv4
	// addresses.
	ErrNoAddress = errors.New("dispatcher: no ipv4 address for host")

	errReactorClosed = errors.New("dispatcher: reactor closed")
)

// OpError wraps an operating system failure with the operation that
// produced it.
type OpError struct {
	Err error
	Op  string
}

func (e *OpError) Error() string {
	return fmt.Sprintf("dispatcher: %s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func newOpError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Err: err}
}

// PanicError is logged when a spawned procedure panics. The Context
// recovers, finishes normally and returns to the pool.
type PanicError struct {
	Value any
}

func (e PanicError) Error() string {
	return fmt.Sprintf("dispatcher: procedure panicked: %v", e.Value)
}

// Unwrap exposes a panic value that is itself an error.
func (e PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}
