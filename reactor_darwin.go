//go:build darwin

package dispatcher

import (
	"time"

	"golang.org/x/sys/unix"
)

// kqueueReactor uses per-filter one-shot kevents, a self-pipe for wakeups
// and EVFILT_TIMER timers. Timer ids are kevent idents private to the timer
// filter, so they never collide with descriptors.
type kqueueReactor struct {
	eventBuf  []unix.Kevent_t
	kq        int
	wakeRead  int
	wakeWrite int
	nextTimer int
	closed    bool
}

func newReactor(batchSize int) (reactor, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, newOpError("kqueue", err)
	}
	unix.CloseOnExec(kq)

	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		_ = unix.Close(kq)
		return nil, newOpError("pipe", err)
	}
	cleanup := func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
		_ = unix.Close(kq)
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			cleanup()
			return nil, newOpError("fcntl", err)
		}
	}

	r := &kqueueReactor{
		kq:        kq,
		wakeRead:  fds[0],
		wakeWrite: fds[1],
		eventBuf:  make([]unix.Kevent_t, batchSize),
	}

	// level triggered, drained on each delivery
	if err := r.kevent(unix.Kevent_t{
		Ident:  uint64(fds[0]),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD | unix.EV_ENABLE,
	}); err != nil {
		cleanup()
		return nil, err
	}

	return r, nil
}

func (r *kqueueReactor) kevent(changes ...unix.Kevent_t) error {
	for {
		_, err := unix.Kevent(r.kq, changes, nil, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return newOpError("kevent", err)
		}
		return nil
	}
}

// addFD is a no-op, kqueue filters are added when armed.
func (r *kqueueReactor) addFD(int) error {
	if r.closed {
		return errReactorClosed
	}
	return nil
}

func (r *kqueueReactor) armFD(fd int, events IOEvents) error {
	if r.closed {
		return errReactorClosed
	}
	filters := [...]struct {
		filter int16
		event  IOEvents
	}{
		{unix.EVFILT_READ, EventRead},
		{unix.EVFILT_WRITE, EventWrite},
	}
	for _, f := range filters {
		kev := unix.Kevent_t{Ident: uint64(fd), Filter: f.filter}
		if events&f.event != 0 {
			kev.Flags = unix.EV_ADD | unix.EV_ENABLE | unix.EV_ONESHOT
			if err := r.kevent(kev); err != nil {
				return err
			}
			continue
		}
		kev.Flags = unix.EV_DELETE
		if err := r.kevent(kev); err != nil && !isNotFound(err) {
			return err
		}
	}
	return nil
}

func (r *kqueueReactor) removeFD(fd int) error {
	return r.armFD(fd, 0)
}

func (r *kqueueReactor) newTimer() (int, error) {
	if r.closed {
		return -1, errReactorClosed
	}
	r.nextTimer++
	return r.nextTimer, nil
}

func (r *kqueueReactor) armTimer(id int, d time.Duration) error {
	if r.closed {
		return errReactorClosed
	}
	return r.kevent(unix.Kevent_t{
		Ident:  uint64(id),
		Filter: unix.EVFILT_TIMER,
		Flags:  unix.EV_ADD | unix.EV_ENABLE | unix.EV_ONESHOT,
		Fflags: unix.NOTE_NSECONDS,
		Data:   d.Nanoseconds(),
	})
}

func (r *kqueueReactor) disarmTimer(id int) error {
	if r.closed {
		return errReactorClosed
	}
	err := r.kevent(unix.Kevent_t{
		Ident:  uint64(id),
		Filter: unix.EVFILT_TIMER,
		Flags:  unix.EV_DELETE,
	})
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

func (r *kqueueReactor) closeTimer(id int) error {
	if r.closed {
		return nil
	}
	return r.disarmTimer(id)
}

func (r *kqueueReactor) wait(events []readyEvent, timeoutMs int) (int, error) {
	if r.closed {
		return 0, errReactorClosed
	}

	buf := r.eventBuf
	if len(events) < len(buf) {
		buf = buf[:len(events)]
	}

	var ts *unix.Timespec
	if timeoutMs >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMs) * int64(time.Millisecond))
		ts = &t
	}

	n, err := unix.Kevent(r.kq, nil, buf, ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, newOpError("kevent", err)
	}

	for i := 0; i < n; i++ {
		kev := &buf[i]
		switch {
		case kev.Filter == unix.EVFILT_TIMER:
			events[i] = readyEvent{kind: readyTimer, id: int(kev.Ident), events: EventRead}
		case kev.Filter == unix.EVFILT_READ && int(kev.Ident) == r.wakeRead:
			r.drainWake()
			events[i] = readyEvent{kind: readyWake}
		default:
			events[i] = readyEvent{kind: readySocket, id: int(kev.Ident), events: keventToEvents(kev)}
		}
	}

	return n, nil
}

func (r *kqueueReactor) drainWake() {
	var buf [64]byte
	for {
		_, err := unix.Read(r.wakeRead, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return
		}
	}
}

func (r *kqueueReactor) wakeup() error {
	for {
		_, err := unix.Write(r.wakeWrite, []byte{1})
		switch err {
		case nil, unix.EAGAIN:
			// a full pipe already has a wakeup pending
			return nil
		case unix.EINTR:
			continue
		default:
			return newOpError("pipe write", err)
		}
	}
}

func (r *kqueueReactor) close() error {
	if r.closed {
		return errReactorClosed
	}
	r.closed = true
	_ = unix.Close(r.wakeRead)
	_ = unix.Close(r.wakeWrite)
	if err := unix.Close(r.kq); err != nil {
		return newOpError("close", err)
	}
	return nil
}

func isNotFound(err error) bool {
	if op, ok := err.(*OpError); ok {
		err = op.Err
	}
	return err == unix.ENOENT
}

// keventToEvents converts kqueue event to IOEvents.
func keventToEvents(kev *unix.Kevent_t) IOEvents {
	var events IOEvents
	switch kev.Filter {
	case unix.EVFILT_READ:
		events |= EventRead
	case unix.EVFILT_WRITE:
		events |= EventWrite
	}
	if kev.Flags&unix.EV_ERROR != 0 {
		events |= EventError
	}
	if kev.Flags&unix.EV_EOF != 0 {
		events |= EventHangup
	}
	return events
}
