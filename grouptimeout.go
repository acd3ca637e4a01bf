package dispatcher

import (
	"errors"
	"time"
)

// ContextGroupTimeout interrupts a ContextGroup once a timeout elapses,
// unless closed first. It runs a helper Context in a private group.
type ContextGroupTimeout struct {
	working *ContextGroup
	fired   bool
}

// NewContextGroupTimeout starts the timeout for group.
func NewContextGroupTimeout(d *Dispatcher, group *ContextGroup, timeout time.Duration) *ContextGroupTimeout {
	t := &ContextGroupTimeout{working: NewContextGroup(d)}
	timer := NewTimer(d)
	t.working.Spawn(func() {
		if err := timer.Sleep(timeout); err != nil {
			if !errors.Is(err, ErrInterrupted) {
				d.logger.Warning().
					Err(err).
					Log("group timeout sleep failed")
			}
			return
		}
		t.fired = true
		group.Interrupt()
	})
	return t
}

// Fired reports whether the timeout elapsed and interrupted the group.
func (t *ContextGroupTimeout) Fired() bool {
	return t.fired
}

// Close cancels the timeout if it has not fired, and waits for the helper
// Context to finish.
func (t *ContextGroupTimeout) Close() error {
	return t.working.Close()
}
