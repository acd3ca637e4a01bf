//go:build linux

package dispatcher

import (
	"encoding/binary"
	"time"

	"golang.org/x/sys/unix"
)

type fdKind uint8

const (
	fdUnused fdKind = iota
	fdSocket
	fdTimer
	fdWake
)

// epollReactor uses one-shot epoll registrations, an eventfd for wakeups and
// timerfd timers. Timer ids are the timerfd descriptors.
type epollReactor struct {
	kinds    []fdKind // indexed by fd, grows on demand
	eventBuf []unix.EpollEvent
	epfd     int
	wakeFd   int
	closed   bool
}

func newReactor(batchSize int) (reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, newOpError("epoll_create1", err)
	}

	wakeFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, newOpError("eventfd", err)
	}

	r := &epollReactor{
		epfd:     epfd,
		wakeFd:   wakeFd,
		eventBuf: make([]unix.EpollEvent, batchSize),
	}

	// level triggered, drained on each delivery
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &ev); err != nil {
		_ = unix.Close(wakeFd)
		_ = unix.Close(epfd)
		return nil, newOpError("epoll_ctl", err)
	}
	r.setKind(wakeFd, fdWake)

	return r, nil
}

func (r *epollReactor) setKind(fd int, kind fdKind) {
	if fd >= len(r.kinds) {
		kinds := make([]fdKind, fd*2+1)
		copy(kinds, r.kinds)
		r.kinds = kinds
	}
	r.kinds[fd] = kind
}

func (r *epollReactor) kind(fd int) fdKind {
	if fd < 0 || fd >= len(r.kinds) {
		return fdUnused
	}
	return r.kinds[fd]
}

func (r *epollReactor) addFD(fd int) error {
	if r.closed {
		return errReactorClosed
	}
	ev := unix.EpollEvent{Events: unix.EPOLLONESHOT, Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return newOpError("epoll_ctl", err)
	}
	r.setKind(fd, fdSocket)
	return nil
}

func (r *epollReactor) armFD(fd int, events IOEvents) error {
	if r.closed {
		return errReactorClosed
	}
	ev := unix.EpollEvent{Events: eventsToEpoll(events) | unix.EPOLLONESHOT, Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return newOpError("epoll_ctl", err)
	}
	return nil
}

func (r *epollReactor) removeFD(fd int) error {
	if r.closed {
		return errReactorClosed
	}
	r.setKind(fd, fdUnused)
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return newOpError("epoll_ctl", err)
	}
	return nil
}

func (r *epollReactor) newTimer() (int, error) {
	if r.closed {
		return -1, errReactorClosed
	}
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		return -1, newOpError("timerfd_create", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLONESHOT, Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		_ = unix.Close(fd)
		return -1, newOpError("epoll_ctl", err)
	}
	r.setKind(fd, fdTimer)
	return fd, nil
}

func (r *epollReactor) armTimer(id int, d time.Duration) error {
	if r.closed {
		return errReactorClosed
	}
	spec := unix.ItimerSpec{Value: unix.NsecToTimespec(d.Nanoseconds())}
	if err := unix.TimerfdSettime(id, 0, &spec, nil); err != nil {
		return newOpError("timerfd_settime", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLONESHOT, Fd: int32(id)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, id, &ev); err != nil {
		return newOpError("epoll_ctl", err)
	}
	return nil
}

func (r *epollReactor) disarmTimer(id int) error {
	if r.closed {
		return errReactorClosed
	}
	var spec unix.ItimerSpec
	if err := unix.TimerfdSettime(id, 0, &spec, nil); err != nil {
		return newOpError("timerfd_settime", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLONESHOT, Fd: int32(id)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, id, &ev); err != nil {
		return newOpError("epoll_ctl", err)
	}
	r.drain(id)
	return nil
}

func (r *epollReactor) closeTimer(id int) error {
	r.setKind(id, fdUnused)
	// closing the descriptor also drops the epoll registration
	if err := unix.Close(id); err != nil {
		return newOpError("close", err)
	}
	return nil
}

func (r *epollReactor) wait(events []readyEvent, timeoutMs int) (int, error) {
	if r.closed {
		return 0, errReactorClosed
	}

	buf := r.eventBuf
	if len(events) < len(buf) {
		buf = buf[:len(events)]
	}

	n, err := unix.EpollWait(r.epfd, buf, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, newOpError("epoll_wait", err)
	}

	for i := 0; i < n; i++ {
		fd := int(buf[i].Fd)
		switch r.kind(fd) {
		case fdWake:
			r.drain(fd)
			events[i] = readyEvent{kind: readyWake}
		case fdTimer:
			r.drain(fd)
			events[i] = readyEvent{kind: readyTimer, id: fd, events: EventRead}
		default:
			events[i] = readyEvent{kind: readySocket, id: fd, events: epollToEvents(buf[i].Events)}
		}
	}

	return n, nil
}

// drain consumes the 8 byte counter of an eventfd or timerfd.
func (r *epollReactor) drain(fd int) {
	var buf [8]byte
	for {
		_, err := unix.Read(fd, buf[:])
		if err != unix.EINTR {
			return
		}
	}
}

func (r *epollReactor) wakeup() error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	for {
		_, err := unix.Write(r.wakeFd, buf[:])
		switch err {
		case nil, unix.EAGAIN:
			// EAGAIN means the counter is saturated, so a wakeup is pending
			return nil
		case unix.EINTR:
			continue
		default:
			return newOpError("eventfd write", err)
		}
	}
}

func (r *epollReactor) close() error {
	if r.closed {
		return errReactorClosed
	}
	r.closed = true
	err1 := unix.Close(r.wakeFd)
	err2 := unix.Close(r.epfd)
	if err1 != nil {
		return newOpError("close", err1)
	}
	return newOpError("close", err2)
}

var epollFlags = [...]struct {
	event IOEvents
	flag  uint32
}{
	{EventRead, unix.EPOLLIN},
	{EventWrite, unix.EPOLLOUT},
	{EventError, unix.EPOLLERR},
	{EventHangup, unix.EPOLLHUP},
}

// eventsToEpoll maps interest; epoll always reports errors and hangups.
func eventsToEpoll(events IOEvents) uint32 {
	var flags uint32
	for _, f := range epollFlags {
		if events&f.event != 0 {
			flags |= f.flag
		}
	}
	return flags &^ (unix.EPOLLERR | unix.EPOLLHUP)
}

func epollToEvents(flags uint32) IOEvents {
	var events IOEvents
	for _, f := range epollFlags {
		if flags&f.flag != 0 {
			events |= f.event
		}
	}
	return events
}
