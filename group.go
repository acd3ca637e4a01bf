package dispatcher

import (
	"errors"

	"github.com/eapache/queue"
)

var errWaitOwnGroup = errors.New("dispatcher: context cannot wait on its own group")

// ContextGroup is a set of Contexts spawned together. It can interrupt all
// of its members, and lets another Context wait until every member has
// finished. A group holds no resources of its own: it exists while it has
// members.
type ContextGroup struct {
	dispatcher *Dispatcher
	first      *Context
	last       *Context
	waiters    *queue.Queue // of *Context
}

// NewContextGroup creates an empty group on d.
func NewContextGroup(d *Dispatcher) *ContextGroup {
	return &ContextGroup{
		dispatcher: d,
		waiters:    queue.New(),
	}
}

// Spawn runs procedure on a new member Context. It never blocks. Spawning
// after the Dispatcher is closed panics with ErrDispatcherClosed.
func (g *ContextGroup) Spawn(procedure func()) {
	g.dispatcher.checkThread()
	g.spawn(procedure)
}

func (g *ContextGroup) spawn(procedure func()) {
	d := g.dispatcher
	if d.closed {
		panic(ErrDispatcherClosed)
	}

	c := d.reusableContext()
	c.procedure = procedure
	c.group = g
	c.groupPrev = g.last
	c.groupNext = nil
	c.release = false
	// a Context spawned during Close must unwind promptly
	c.interrupted = d.closing

	if g.last != nil {
		g.last.groupNext = c
	} else {
		g.first = c
		d.groups[g] = struct{}{}
	}
	g.last = c

	d.running++
	d.PushContext(c)
}

// remove unlinks a finished member. The last member's removal moves every
// waiter to the ready queue.
func (g *ContextGroup) remove(c *Context) {
	if c.groupPrev != nil {
		c.groupPrev.groupNext = c.groupNext
	} else {
		g.first = c.groupNext
	}
	if c.groupNext != nil {
		c.groupNext.groupPrev = c.groupPrev
	} else {
		g.last = c.groupPrev
	}
	c.group, c.groupPrev, c.groupNext = nil, nil, nil

	if g.first != nil {
		return
	}
	delete(g.dispatcher.groups, g)
	for g.waiters.Length() != 0 {
		g.dispatcher.PushContext(g.waiters.Remove().(*Context))
	}
}

// Interrupt interrupts every member.
func (g *ContextGroup) Interrupt() {
	g.dispatcher.checkThread()
	g.interrupt()
}

func (g *ContextGroup) interrupt() {
	for c := g.first; c != nil; c = c.groupNext {
		g.dispatcher.interrupt(c)
	}
}

// Wait suspends the current Context until the group has no members. It is
// not a cancellable suspension point: an interrupt delivered meanwhile stays
// pending for the caller's next one.
func (g *ContextGroup) Wait() error {
	g.dispatcher.checkThread()
	if err := g.dispatcher.usable(); err != nil {
		return err
	}
	return g.wait()
}

func (g *ContextGroup) wait() error {
	d := g.dispatcher
	if g.first == nil {
		return nil
	}
	if d.current.group == g {
		return errWaitOwnGroup
	}
	g.waiters.Add(d.current)
	return d.dispatch()
}

// Close interrupts every member and waits for the group to empty.
func (g *ContextGroup) Close() error {
	g.Interrupt()
	return g.Wait()
}

// Len returns the number of members.
func (g *ContextGroup) Len() int {
	n := 0
	for c := g.first; c != nil; c = c.groupNext {
		n++
	}
	return n
}
