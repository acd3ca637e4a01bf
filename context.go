package dispatcher

import (
	"bytes"
	"runtime"
	"strconv"
)

// Context is a cooperatively scheduled task. Each Context owns a goroutine
// that only runs while the Context is current; control moves between
// Contexts by handing a token over their wake channels, so exactly one of
// them executes at any instant.
//
// A Context is obtained from [Dispatcher.CurrentContext] and is only
// meaningful to the Dispatcher that created it.
type Context struct {
	dispatcher *Dispatcher
	procedure  func()
	wake       chan struct{}

	// wait is the pending suspension, nil unless parked on a socket, timer
	// or event
	wait *operation

	group     *ContextGroup
	groupPrev *Context
	groupNext *Context

	gid uint64

	interrupted  bool
	inReadyQueue bool

	// terminate asks a pooled goroutine to exit, release marks a Context
	// that will not return to the pool
	terminate bool
	release   bool
}

func newContext(d *Dispatcher) *Context {
	return &Context{
		dispatcher: d,
		wake:       make(chan struct{}, 1),
	}
}

// Group returns the group the Context is running in, or nil for the main
// Context.
func (c *Context) Group() *ContextGroup {
	return c.group
}

// contextProcedure is the body of every spawned Context's goroutine. The
// goroutine survives across procedures, parking in the reuse pool between
// them.
func (d *Dispatcher) contextProcedure(c *Context) {
	defer d.workers.Done()

	if d.threadChecks {
		c.gid = getGoroutineID()
	}

	for {
		<-c.wake
		if c.terminate {
			return
		}

		d.runProcedure(c)
		d.finishContext(c)

		next, err := d.nextContext()
		if err != nil {
			// the main Context surfaces the fatal error
			next = d.main
		}

		release := c.release
		d.current = next
		next.wake <- struct{}{}
		if release {
			return
		}
	}
}

func (d *Dispatcher) runProcedure(c *Context) {
	defer func() {
		if r := recover(); r != nil {
			d.logPanic(PanicError{Value: r})
		}
	}()
	c.procedure()
}

// finishContext detaches a Context whose procedure has returned, then either
// pools it or marks it for release.
func (d *Dispatcher) finishContext(c *Context) {
	c.procedure = nil
	c.wait = nil
	d.running--

	if g := c.group; g != nil {
		g.remove(c)
	}

	if d.maxReusableContexts > 0 && len(d.reusable) >= d.maxReusableContexts {
		c.release = true
		return
	}
	d.reusable = append(d.reusable, c)
}

// reusableContext pops the reuse pool, starting a new goroutine only when
// the pool is empty.
func (d *Dispatcher) reusableContext() *Context {
	if n := len(d.reusable); n > 0 {
		c := d.reusable[n-1]
		d.reusable[n-1] = nil
		d.reusable = d.reusable[:n-1]
		return c
	}

	c := newContext(d)
	d.workers.Add(1)
	go d.contextProcedure(c)
	d.logger.Debug().
		Int("running", d.running).
		Log("context created")
	return c
}

// switchTo makes next current and parks the calling Context until it is
// resumed.
func (d *Dispatcher) switchTo(next *Context) {
	prev := d.current
	if next == prev {
		return
	}
	d.current = next
	next.wake <- struct{}{}
	<-prev.wake
}

func (d *Dispatcher) checkThread() {
	if d.threadChecks && getGoroutineID() != d.current.gid {
		panic(ErrWrongGoroutine)
	}
}

// getGoroutineID parses the id from the "goroutine N [status]:" header of
// the calling goroutine's stack trace.
func getGoroutineID() uint64 {
	var buf [64]byte
	header := bytes.TrimPrefix(buf[:runtime.Stack(buf[:], false)], []byte("goroutine "))
	if i := bytes.IndexByte(header, ' '); i >= 0 {
		header = header[:i]
	}
	id, _ := strconv.ParseUint(string(header), 10, 64)
	return id
}
