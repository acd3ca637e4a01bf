package dispatcher

import (
	"time"
)

// IOEvents represents readiness conditions on a descriptor.
type IOEvents uint32

const (
	// EventRead indicates the descriptor is ready for reading.
	EventRead IOEvents = 1 << iota
	// EventWrite indicates the descriptor is ready for writing.
	EventWrite
	// EventError indicates an error condition on the descriptor.
	EventError
	// EventHangup indicates the peer closed its end of the connection.
	EventHangup
)

type readyKind uint8

const (
	readySocket readyKind = iota
	readyTimer
	readyWake
)

// readyEvent is one notification delivered by a reactor wait. For sockets id
// is the descriptor, for timers it is the timer id, for the wakeup source it
// is unused.
type readyEvent struct {
	id     int
	events IOEvents
	kind   readyKind
}

// reactor is the readiness facility of one platform. Socket registrations
// are one-shot: after an event is delivered, interest must be re-armed.
// Every method is called from the goroutine of the current Context, except
// wakeup, which may be called from anywhere.
type reactor interface {
	// addFD registers fd with no interest.
	addFD(fd int) error
	// armFD sets the interest of a registered fd to exactly events, which
	// may be zero.
	armFD(fd int, events IOEvents) error
	removeFD(fd int) error

	newTimer() (int, error)
	armTimer(id int, d time.Duration) error
	disarmTimer(id int) error
	closeTimer(id int) error

	// wait blocks for up to timeoutMs (-1 for no limit, 0 to poll), filling
	// events. An interrupted system call reports zero events and no error.
	wait(events []readyEvent, timeoutMs int) (int, error)

	// wakeup causes a concurrent or subsequent wait to report a readyWake
	// event.
	wakeup() error

	close() error
}
