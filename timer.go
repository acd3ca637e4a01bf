package dispatcher

import (
	"time"
)

// Timer suspends the current Context for a duration. Each Sleep borrows a
// reactor timer from the Dispatcher's pool and always returns it, including
// when interrupted.
type Timer struct {
	dispatcher *Dispatcher
	sleeping   bool
}

// NewTimer creates a Timer on d.
func NewTimer(d *Dispatcher) *Timer {
	return &Timer{dispatcher: d}
}

// Sleep suspends the current Context for duration. Non-positive durations
// still suspend, for the shortest interval the reactor supports. It returns
// ErrInterrupted if the Context is interrupted before or during the sleep.
func (t *Timer) Sleep(duration time.Duration) error {
	d := t.dispatcher
	d.checkThread()
	if err := d.usable(); err != nil {
		return err
	}
	if t.sleeping {
		return ErrOperationPending
	}
	if d.Interrupted() {
		return ErrInterrupted
	}
	if duration <= 0 {
		// a zero timerfd value disarms instead of firing
		duration = time.Nanosecond
	}

	id, err := d.getTimer()
	if err != nil {
		return err
	}
	defer d.pushTimer(id)

	t.sleeping = true
	defer func() { t.sleeping = false }()

	return d.waitTimer(id, duration)
}
