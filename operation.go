package dispatcher

import (
	"time"
)

type opKind uint8

const (
	opRead opKind = iota
	opWrite
	opTimer
	opEvent
)

// operation records one pending suspension. It acts as the cancellation
// token of the wait: interrupting the waiting Context looks it up through
// Context.wait and releases whatever registration it describes.
type operation struct {
	ctx   *Context
	event *Event
	// id is the descriptor for socket waits, the timer id for timer waits
	id     int
	events IOEvents
	kind   opKind
	// done is set once the registration is gone, either because it fired or
	// because it was released
	done        bool
	interrupted bool
}

// fdSlot pairs the read and write waiters sharing one registration.
type fdSlot struct {
	read       *operation
	write      *operation
	registered bool
}

func (s *fdSlot) interest() IOEvents {
	var events IOEvents
	if s.read != nil {
		events |= EventRead
	}
	if s.write != nil {
		events |= EventWrite
	}
	return events
}

// registry indexes pending waits by descriptor and by timer id.
type registry struct {
	sockets []fdSlot
	timers  []*operation
}

func (r *registry) slot(fd int) *fdSlot {
	if fd < 0 || fd >= len(r.sockets) {
		return nil
	}
	return &r.sockets[fd]
}

func (r *registry) ensureSocket(fd int) {
	if fd >= len(r.sockets) {
		sockets := make([]fdSlot, fd*2+1)
		copy(sockets, r.sockets)
		r.sockets = sockets
	}
}

func (r *registry) ensureTimer(id int) {
	if id >= len(r.timers) {
		timers := make([]*operation, id*2+1)
		copy(timers, r.timers)
		r.timers = timers
	}
}

// registerFD adds a descriptor to the reactor with no interest.
func (d *Dispatcher) registerFD(fd int) error {
	if err := d.usable(); err != nil {
		return err
	}
	d.registry.ensureSocket(fd)
	if err := d.reactor.addFD(fd); err != nil {
		return err
	}
	d.registry.sockets[fd] = fdSlot{registered: true}
	return nil
}

// unregisterFD removes a descriptor, failing if a Context waits on it.
func (d *Dispatcher) unregisterFD(fd int) error {
	slot := d.registry.slot(fd)
	if slot == nil || !slot.registered {
		return nil
	}
	if slot.read != nil || slot.write != nil {
		return ErrOperationPending
	}
	*slot = fdSlot{}
	if d.closed {
		// the reactor is gone, and with it every registration
		return nil
	}
	return d.reactor.removeFD(fd)
}

// waitFD suspends the current Context until fd is ready in the direction
// of kind, which must be opRead or opWrite.
func (d *Dispatcher) waitFD(fd int, kind opKind) error {
	slot := d.registry.slot(fd)
	if slot == nil || !slot.registered {
		return ErrConnectionClosed
	}

	ref := &slot.read
	if kind == opWrite {
		ref = &slot.write
	}
	if *ref != nil {
		return ErrOperationPending
	}

	op := &operation{ctx: d.current, id: fd, kind: kind}
	*ref = op
	if err := d.reactor.armFD(fd, slot.interest()); err != nil {
		*ref = nil
		return err
	}

	return d.suspend(op)
}

// waitTimer arms timer id and suspends the current Context until it fires.
func (d *Dispatcher) waitTimer(id int, duration time.Duration) error {
	d.registry.ensureTimer(id)
	if d.registry.timers[id] != nil {
		return ErrOperationPending
	}

	op := &operation{ctx: d.current, id: id, kind: opTimer}
	d.registry.timers[id] = op
	if err := d.reactor.armTimer(id, duration); err != nil {
		d.registry.timers[id] = nil
		return err
	}

	return d.suspend(op)
}

// suspend parks the current Context on op, which must already be
// registered. The registration is always gone when suspend returns.
func (d *Dispatcher) suspend(op *operation) error {
	c := d.current
	c.wait = op
	err := d.dispatch()
	c.wait = nil
	if !op.done {
		d.release(op)
	}
	if err != nil {
		return err
	}
	if op.interrupted {
		return ErrInterrupted
	}
	return nil
}

// cancelWait interrupts a pending wait and queues its Context.
func (d *Dispatcher) cancelWait(op *operation) {
	op.ctx.wait = nil
	op.interrupted = true
	if !op.done {
		d.release(op)
	}
	d.PushContext(op.ctx)
}

// release drops the registration behind op without resuming anything.
func (d *Dispatcher) release(op *operation) {
	op.done = true
	switch op.kind {
	case opRead, opWrite:
		slot := d.registry.slot(op.id)
		if slot == nil {
			return
		}
		if slot.read == op {
			slot.read = nil
		}
		if slot.write == op {
			slot.write = nil
		}
		if slot.registered && d.err == nil {
			d.rearm(op.id, slot)
		}
	case opTimer:
		d.registry.timers[op.id] = nil
		if d.err == nil {
			if err := d.reactor.disarmTimer(op.id); err != nil {
				d.logger.Warning().
					Int("timer", op.id).
					Err(err).
					Log("failed to disarm timer")
			}
		}
	case opEvent:
		op.event.unlink(op)
	}
}

// rearm sets the reactor interest of fd to its remaining waiters. If that
// fails the waiters are resumed, so their retry surfaces the error instead
// of hanging.
func (d *Dispatcher) rearm(fd int, slot *fdSlot) {
	err := d.reactor.armFD(fd, slot.interest())
	if err == nil {
		return
	}
	d.logRearmFailure(fd, err)
	for _, op := range [...]*operation{slot.read, slot.write} {
		if op != nil {
			d.complete(op)
		}
	}
	slot.read, slot.write = nil, nil
}

func (d *Dispatcher) socketReady(fd int, events IOEvents) {
	slot := d.registry.slot(fd)
	if slot == nil || !slot.registered {
		return
	}

	if events&(EventRead|EventError|EventHangup) != 0 && slot.read != nil {
		op := slot.read
		slot.read = nil
		op.events = events
		d.complete(op)
	}
	if events&(EventWrite|EventError|EventHangup) != 0 && slot.write != nil {
		op := slot.write
		slot.write = nil
		op.events = events
		d.complete(op)
	}

	if slot.read != nil || slot.write != nil {
		d.rearm(fd, slot)
	}
}

func (d *Dispatcher) timerReady(id int) {
	if id < 0 || id >= len(d.registry.timers) {
		return
	}
	op := d.registry.timers[id]
	if op == nil {
		return
	}
	d.registry.timers[id] = nil
	op.events = EventRead
	d.complete(op)
}

// complete resumes the Context of an operation whose registration fired.
// From here on the wait can no longer be cancelled: an interrupt arriving
// before the Context runs sets its sticky flag instead, and the operation
// reports its real result.
func (d *Dispatcher) complete(op *operation) {
	op.done = true
	if op.ctx.wait == op {
		op.ctx.wait = nil
	}
	d.PushContext(op.ctx)
}
