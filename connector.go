//go:build linux || darwin

package dispatcher

import (
	"golang.org/x/sys/unix"
)

// Connector establishes outbound TCP connections on a Dispatcher.
type Connector struct {
	dispatcher *Dispatcher
	connecting bool
}

// NewConnector creates a Connector on d.
func NewConnector(d *Dispatcher) *Connector {
	return &Connector{dispatcher: d}
}

// Connect opens a connection to addr:port, suspending until the handshake
// completes. A handshake that finishes with a pending socket error fails
// with an *OpError wrapping that error.
func (c *Connector) Connect(addr IPAddress, port uint16) (*Connection, error) {
	d := c.dispatcher
	d.checkThread()
	if err := d.usable(); err != nil {
		return nil, err
	}
	if c.connecting {
		return nil, ErrOperationPending
	}
	if d.Interrupted() {
		return nil, ErrInterrupted
	}

	fd, err := newSocket()
	if err != nil {
		return nil, err
	}

	err = unix.Connect(fd, &unix.SockaddrInet4{Port: int(port), Addr: addr.As4()})
	switch err {
	case nil:
		if err := d.registerFD(fd); err != nil {
			_ = unix.Close(fd)
			return nil, err
		}
		return newConnection(d, fd), nil
	case unix.EINPROGRESS, unix.EINTR:
	default:
		_ = unix.Close(fd)
		return nil, newOpError("connect", err)
	}

	if err := d.registerFD(fd); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	fail := func(err error) (*Connection, error) {
		_ = d.unregisterFD(fd)
		_ = unix.Close(fd)
		return nil, err
	}

	c.connecting = true
	defer func() { c.connecting = false }()

	if err := d.waitFD(fd, opWrite); err != nil {
		return fail(err)
	}

	soErr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return fail(newOpError("getsockopt", err))
	}
	if soErr != 0 {
		return fail(newOpError("connect", unix.Errno(soErr)))
	}

	return newConnection(d, fd), nil
}
