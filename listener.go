//go:build linux || darwin

package dispatcher

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Listener accepts TCP connections on a Dispatcher.
type Listener struct {
	dispatcher *Dispatcher
	fd         int
}

// NewListener binds and listens on addr:port. Port 0 picks an ephemeral
// port, see Address.
func NewListener(d *Dispatcher, addr IPAddress, port uint16) (*Listener, error) {
	d.checkThread()
	if err := d.usable(); err != nil {
		return nil, err
	}

	fd, err := newSocket()
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*Listener, error) {
		_ = unix.Close(fd)
		return nil, err
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fail(newOpError("setsockopt", err))
	}
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: int(port), Addr: addr.As4()}); err != nil {
		return fail(newOpError("bind", err))
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		return fail(newOpError("listen", err))
	}
	if err := d.registerFD(fd); err != nil {
		return fail(err)
	}

	return &Listener{dispatcher: d, fd: fd}, nil
}

// Accept suspends until a connection arrives and returns it, bound to the
// same Dispatcher.
func (l *Listener) Accept() (*Connection, error) {
	d := l.dispatcher
	d.checkThread()
	if err := d.usable(); err != nil {
		return nil, err
	}
	if l.fd < 0 {
		return nil, ErrListenerClosed
	}
	if d.Interrupted() {
		return nil, ErrInterrupted
	}

	for {
		fd, err := acceptSocket(l.fd)
		switch err {
		case nil:
			if err := d.registerFD(fd); err != nil {
				_ = unix.Close(fd)
				return nil, err
			}
			return newConnection(d, fd), nil
		case unix.EINTR, unix.ECONNABORTED:
			continue
		case unix.EAGAIN:
		default:
			if _, ok := err.(*OpError); ok {
				return nil, err
			}
			return nil, newOpError("accept", err)
		}

		if err := d.waitFD(l.fd, opRead); err != nil {
			return nil, err
		}
	}
}

// Address returns the bound address and port.
func (l *Listener) Address() (IPAddress, uint16, error) {
	l.dispatcher.checkThread()
	if l.fd < 0 {
		return 0, 0, ErrListenerClosed
	}
	sa, err := unix.Getsockname(l.fd)
	if err != nil {
		return 0, 0, newOpError("getsockname", err)
	}
	return sockaddrToIP(sa)
}

// Close stops listening. It fails with ErrOperationPending while a Context
// is suspended in Accept.
func (l *Listener) Close() error {
	l.dispatcher.checkThread()
	if l.fd < 0 {
		return ErrListenerClosed
	}
	uerr := l.dispatcher.unregisterFD(l.fd)
	if uerr == ErrOperationPending {
		return uerr
	}
	err := unix.Close(l.fd)
	l.fd = -1
	return errors.Join(uerr, newOpError("close", err))
}
