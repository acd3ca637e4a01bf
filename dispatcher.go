package dispatcher

import (
	"errors"
	"sync"

	"github.com/eapache/queue"
	"github.com/joeycumines/logiface"
)

// Dispatcher is a single-threaded cooperative scheduler. It multiplexes
// Contexts over one reactor, resuming a Context only when the socket, timer
// or event it waits on becomes ready.
//
// The goroutine calling New becomes the main Context. All methods except
// RemoteSpawn must be called from the current Context, and Close from the
// main Context.
type Dispatcher struct {
	logger  *logiface.Logger[logiface.Event]
	reactor reactor
	err     error // sticky, set when the reactor fails

	main    *Context
	current *Context
	group   *ContextGroup // default group, used by Spawn

	ready  *queue.Queue // of *Context
	groups map[*ContextGroup]struct{}

	reusable []*Context
	timers   []int

	registry registry
	events   []readyEvent

	remote struct {
		sync.Mutex
		queue  *queue.Queue // of func()
		closed bool
	}

	workers sync.WaitGroup

	running             int
	maxReusableContexts int
	maxPooledTimers     int

	threadChecks bool
	closing      bool
	closed       bool
}

// Stats is a snapshot of scheduler bookkeeping.
type Stats struct {
	// Running counts spawned Contexts whose procedure has not returned.
	Running int
	// Ready is the length of the ready queue.
	Ready            int
	ReusableContexts int
	PooledTimers     int
	// Groups counts ContextGroups with at least one member.
	Groups int
}

// New creates a Dispatcher. The calling goroutine becomes its main Context.
// Failure to create the reactor or its wakeup source is reported as an
// error, with every partially acquired resource released.
func New(opts ...Option) (*Dispatcher, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	r, err := newReactor(cfg.eventBatchSize)
	if err != nil {
		return nil, err
	}

	d := &Dispatcher{
		logger:              cfg.logger,
		reactor:             r,
		ready:               queue.New(),
		groups:              make(map[*ContextGroup]struct{}),
		events:              make([]readyEvent, cfg.eventBatchSize),
		maxReusableContexts: cfg.maxReusableContexts,
		maxPooledTimers:     cfg.maxPooledTimers,
		threadChecks:        cfg.threadChecks,
	}
	d.remote.queue = queue.New()

	d.main = newContext(d)
	if d.threadChecks {
		d.main.gid = getGoroutineID()
	}
	d.current = d.main
	d.group = NewContextGroup(d)

	return d, nil
}

// Spawn schedules procedure on a new or reused Context in the default group.
// It never blocks. Spawning after Close panics with ErrDispatcherClosed.
func (d *Dispatcher) Spawn(procedure func()) {
	d.group.Spawn(procedure)
}

// Yield lets every other ready Context run. It first collects the readiness
// events that are already available without blocking, then, if anything is
// ready, queues the caller behind it and dispatches.
func (d *Dispatcher) Yield() error {
	d.checkThread()
	if err := d.usable(); err != nil {
		return err
	}

	for {
		n, err := d.poll(0)
		if err != nil {
			return d.fail(err)
		}
		if n == 0 {
			break
		}
	}

	if d.ready.Length() != 0 {
		d.PushContext(d.current)
		return d.dispatch()
	}
	return nil
}

// Dispatch suspends the current Context and resumes the next ready one,
// blocking in the reactor while none is ready. The caller must already be
// registered somewhere it will be resumed from, e.g. via PushContext.
//
// A reactor failure is fatal to the Dispatcher: it is returned here and
// from every later suspension point.
func (d *Dispatcher) Dispatch() error {
	d.checkThread()
	if err := d.usable(); err != nil {
		return err
	}
	return d.dispatch()
}

func (d *Dispatcher) dispatch() error {
	next, err := d.nextContext()
	if err != nil {
		return err
	}
	d.switchTo(next)
	// only set if the resume came from a Context that hit a fatal error
	return d.err
}

func (d *Dispatcher) nextContext() (*Context, error) {
	for {
		if d.err != nil {
			return nil, d.err
		}
		if d.ready.Length() != 0 {
			c := d.ready.Remove().(*Context)
			c.inReadyQueue = false
			return c, nil
		}
		if _, err := d.poll(-1); err != nil {
			return nil, d.fail(err)
		}
	}
}

func (d *Dispatcher) fail(err error) error {
	if d.err == nil {
		d.err = err
		d.logFatal(err)
	}
	return d.err
}

// poll waits on the reactor once, converting the delivered events into
// ready Contexts. Remote spawns are processed before anything else in the
// batch.
func (d *Dispatcher) poll(timeoutMs int) (int, error) {
	n, err := d.reactor.wait(d.events, timeoutMs)
	if err != nil {
		return 0, err
	}
	events := d.events[:n]

	for _, ev := range events {
		if ev.kind == readyWake {
			d.drainRemote()
			break
		}
	}

	for _, ev := range events {
		switch ev.kind {
		case readySocket:
			d.socketReady(ev.id, ev.events)
		case readyTimer:
			d.timerReady(ev.id)
		}
	}

	return n, nil
}

// CurrentContext returns the running Context.
func (d *Dispatcher) CurrentContext() *Context {
	d.checkThread()
	return d.current
}

// PushContext appends c to the ready queue, unless it is already queued.
func (d *Dispatcher) PushContext(c *Context) {
	d.checkThread()
	if c.inReadyQueue {
		return
	}
	c.inReadyQueue = true
	d.ready.Add(c)
}

// Interrupt interrupts the current Context. The flag is consumed by its next
// suspension point, or by Interrupted.
func (d *Dispatcher) Interrupt() {
	d.checkThread()
	d.interrupt(d.current)
}

// InterruptContext interrupts c. A pending wait is cancelled immediately and
// c is queued to observe ErrInterrupted. Otherwise c's sticky flag is set for
// its next suspension point.
func (d *Dispatcher) InterruptContext(c *Context) {
	d.checkThread()
	d.interrupt(c)
}

func (d *Dispatcher) interrupt(c *Context) {
	if op := c.wait; op != nil {
		d.cancelWait(op)
		return
	}
	c.interrupted = true
}

// Interrupted reports and clears the current Context's interrupted flag.
func (d *Dispatcher) Interrupted() bool {
	d.checkThread()
	if d.current.interrupted {
		d.current.interrupted = false
		return true
	}
	return false
}

// RemoteSpawn schedules procedure from any goroutine. It wakes a Dispatcher
// blocked in its reactor, and the procedure is spawned in submission order
// ahead of other events in that wake.
func (d *Dispatcher) RemoteSpawn(procedure func()) error {
	d.remote.Lock()
	defer d.remote.Unlock()
	if d.remote.closed {
		return ErrDispatcherClosed
	}
	d.remote.queue.Add(procedure)
	if d.remote.queue.Length() > 1 {
		// the first submission's wakeup has not been consumed yet
		return nil
	}
	return d.reactor.wakeup()
}

func (d *Dispatcher) takeRemote() []func() {
	d.remote.Lock()
	defer d.remote.Unlock()
	q := d.remote.queue
	if q.Length() == 0 {
		return nil
	}
	procedures := make([]func(), 0, q.Length())
	for q.Length() != 0 {
		procedures = append(procedures, q.Remove().(func()))
	}
	return procedures
}

func (d *Dispatcher) drainRemote() {
	for _, procedure := range d.takeRemote() {
		d.group.spawn(procedure)
	}
}

// getTimer returns a reactor timer from the pool, creating one if empty.
func (d *Dispatcher) getTimer() (int, error) {
	if n := len(d.timers); n > 0 {
		id := d.timers[n-1]
		d.timers = d.timers[:n-1]
		return id, nil
	}
	return d.reactor.newTimer()
}

func (d *Dispatcher) pushTimer(id int) {
	if d.closed || (d.maxPooledTimers > 0 && len(d.timers) >= d.maxPooledTimers) {
		if err := d.reactor.closeTimer(id); err != nil {
			d.logger.Warning().
				Int("timer", id).
				Err(err).
				Log("failed to close timer")
		}
		return
	}
	d.timers = append(d.timers, id)
}

// Stats returns a snapshot of the scheduler's bookkeeping.
func (d *Dispatcher) Stats() Stats {
	d.checkThread()
	return Stats{
		Running:          d.running,
		Ready:            d.ready.Length(),
		ReusableContexts: len(d.reusable),
		PooledTimers:     len(d.timers),
		Groups:           len(d.groups),
	}
}

func (d *Dispatcher) usable() error {
	if d.closed {
		return ErrDispatcherClosed
	}
	return d.err
}

// Close interrupts every live Context and waits for all of them to finish,
// then releases pooled goroutines and timers, and the reactor. It must be
// called from the main Context. Procedures submitted via RemoteSpawn before
// Close are still run, starting interrupted.
//
// After a fatal reactor error, Contexts parked in waits can never be resumed;
// their goroutines are abandoned and the fatal error is returned.
func (d *Dispatcher) Close() error {
	d.checkThread()
	if d.closing || d.closed {
		return ErrDispatcherClosed
	}
	if d.current != d.main {
		return ErrNotMainContext
	}
	d.closing = true

	d.logger.Info().
		Int("running", d.running).
		Int("groups", len(d.groups)).
		Log("closing dispatcher")

	d.drainGroups()

	d.remote.Lock()
	d.remote.closed = true
	d.remote.Unlock()

	// submissions that raced the close
	if procedures := d.takeRemote(); len(procedures) != 0 {
		for _, procedure := range procedures {
			d.group.spawn(procedure)
		}
		d.drainGroups()
	}

	d.closed = true

	for _, c := range d.reusable {
		c.terminate = true
		c.wake <- struct{}{}
	}
	d.reusable = nil
	if d.err == nil {
		d.workers.Wait()
	}

	var errs []error
	errs = append(errs, d.err)
	for _, id := range d.timers {
		if err := d.reactor.closeTimer(id); err != nil {
			errs = append(errs, err)
		}
	}
	d.timers = nil
	if err := d.reactor.close(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// drainGroups interrupts and waits on every live group until none remain.
// Contexts spawned meanwhile start interrupted.
func (d *Dispatcher) drainGroups() {
	for g := range d.groups {
		g.interrupt()
	}
	for len(d.groups) != 0 && d.err == nil {
		for g := range d.groups {
			_ = g.wait()
			break
		}
	}
}
