package dispatcher

// Event is a manual-reset event. Waiters suspend until it is set; Set wakes
// all of them at once and the event stays set until Clear.
type Event struct {
	dispatcher *Dispatcher
	waiters    []*operation
	state      bool
}

// NewEvent creates a cleared Event on d.
func NewEvent(d *Dispatcher) *Event {
	return &Event{dispatcher: d}
}

// Get reports whether the event is set.
func (e *Event) Get() bool {
	e.dispatcher.checkThread()
	return e.state
}

// Set sets the event and queues every waiter.
func (e *Event) Set() {
	e.dispatcher.checkThread()
	e.state = true
	waiters := e.waiters
	e.waiters = nil
	for _, op := range waiters {
		e.dispatcher.complete(op)
	}
}

// Clear resets the event. Contexts already woken by Set still return
// successfully.
func (e *Event) Clear() {
	e.dispatcher.checkThread()
	e.state = false
}

// Wait suspends the current Context until the event is set. It returns
// ErrInterrupted if the Context is interrupted first.
func (e *Event) Wait() error {
	d := e.dispatcher
	d.checkThread()
	if err := d.usable(); err != nil {
		return err
	}
	if d.Interrupted() {
		return ErrInterrupted
	}
	if e.state {
		return nil
	}

	op := &operation{ctx: d.current, event: e, kind: opEvent}
	e.waiters = append(e.waiters, op)
	return d.suspend(op)
}

func (e *Event) unlink(op *operation) {
	for i, w := range e.waiters {
		if w == op {
			copy(e.waiters[i:], e.waiters[i+1:])
			e.waiters[len(e.waiters)-1] = nil
			e.waiters = e.waiters[:len(e.waiters)-1]
			return
		}
	}
}
