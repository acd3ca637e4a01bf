// Package dispatcher implements a cooperative, single-threaded I/O
// scheduler.
//
// A [Dispatcher] runs many logical tasks, called Contexts, one at a time.
// Code running in a Context calls APIs that look blocking, such as
// [Connection.Read], [Listener.Accept], [Connector.Connect] and
// [Timer.Sleep]. Each call tries the underlying operation first. Only when it
// would block does it register with the Dispatcher's reactor (epoll on
// Linux, kqueue on darwin) and suspend, letting other Contexts run until the
// reactor reports readiness.
//
// # Scheduling
//
// Exactly one Context executes at any instant. Switching happens only at
// suspension points: a socket, timer or event wait, [Dispatcher.Yield],
// [Dispatcher.Dispatch] or [ContextGroup.Wait]. The ready queue is FIFO, and
// Contexts woken by the reactor are queued in the order their events were
// delivered. Procedures submitted with [Dispatcher.RemoteSpawn], the only
// method safe to call from other goroutines, are spawned ahead of the other
// events of the wake that delivers them.
//
// Each Context is backed by a goroutine that only runs while the Context is
// current. Finished Contexts are pooled and reused by later spawns.
//
// # Cancellation
//
// Cancellation is explicit. [Dispatcher.InterruptContext] cancels a pending
// wait immediately, and the suspended call returns [ErrInterrupted] after
// releasing its registration. Interrupting a Context that is not suspended
// sets a sticky flag consumed by its next suspension point. There are no
// implicit timeouts: race a [Timer] against the operation, or use
// [ContextGroupTimeout].
//
// # Shutdown
//
// [Dispatcher.Close] interrupts every live Context and waits for all of
// them to unwind before releasing the reactor. Afterwards the ready queue is
// empty and no Context is running.
//
// # Example
//
//	d, err := dispatcher.New()
//	if err != nil {
//		return err
//	}
//	defer d.Close()
//
//	group := dispatcher.NewContextGroup(d)
//	group.Spawn(func() {
//		if err := dispatcher.NewTimer(d).Sleep(10 * time.Millisecond); err == nil {
//			fmt.Println("slept")
//		}
//	})
//	_ = group.Wait()
package dispatcher
