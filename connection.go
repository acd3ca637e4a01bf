//go:build linux || darwin

package dispatcher

import (
	"errors"
	"io"

	"golang.org/x/sys/unix"
)

// Connection is a TCP stream bound to a Dispatcher. Read and Write suspend
// the calling Context while the socket would block. One Context may read
// while another writes, but each direction admits a single waiter.
type Connection struct {
	dispatcher *Dispatcher
	fd         int
}

var _ io.ReadWriteCloser = (*Connection)(nil)

func newConnection(d *Dispatcher, fd int) *Connection {
	return &Connection{dispatcher: d, fd: fd}
}

func (c *Connection) usable() error {
	c.dispatcher.checkThread()
	if err := c.dispatcher.usable(); err != nil {
		return err
	}
	if c.fd < 0 {
		return ErrConnectionClosed
	}
	return nil
}

// Read reads up to len(p) bytes, suspending until at least one byte is
// available. It returns io.EOF once the peer has closed its side, and
// ErrInterrupted if the Context is interrupted.
func (c *Connection) Read(p []byte) (int, error) {
	if err := c.usable(); err != nil {
		return 0, err
	}
	d := c.dispatcher
	if d.Interrupted() {
		return 0, ErrInterrupted
	}
	if len(p) == 0 {
		return 0, nil
	}

	for {
		n, err := unix.Read(c.fd, p)
		switch err {
		case nil:
			if n == 0 {
				return 0, io.EOF
			}
			return n, nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
		default:
			return 0, newOpError("read", err)
		}

		if err := d.waitFD(c.fd, opRead); err != nil {
			return 0, err
		}
	}
}

// Write writes all of p, suspending whenever the socket buffer is full. On
// failure it reports how much was written. An empty p shuts down the write
// side of the connection, so the peer reads EOF once it has drained the
// data already sent.
func (c *Connection) Write(p []byte) (int, error) {
	if err := c.usable(); err != nil {
		return 0, err
	}
	d := c.dispatcher
	if d.Interrupted() {
		return 0, ErrInterrupted
	}

	if len(p) == 0 {
		if err := unix.Shutdown(c.fd, unix.SHUT_WR); err != nil {
			return 0, newOpError("shutdown", err)
		}
		return 0, nil
	}

	var written int
	for written < len(p) {
		n, err := unix.SendmsgN(c.fd, p[written:], nil, nil, sendFlags)
		switch err {
		case nil:
			written += n
			continue
		case unix.EINTR:
			continue
		case unix.EAGAIN:
		default:
			return written, newOpError("write", err)
		}

		if err := d.waitFD(c.fd, opWrite); err != nil {
			return written, err
		}
	}
	return written, nil
}

// PeerAddress returns the remote address and port.
func (c *Connection) PeerAddress() (IPAddress, uint16, error) {
	if err := c.usable(); err != nil {
		return 0, 0, err
	}
	sa, err := unix.Getpeername(c.fd)
	if err != nil {
		return 0, 0, newOpError("getpeername", err)
	}
	return sockaddrToIP(sa)
}

// Close releases the socket. It fails with ErrOperationPending while another
// Context is suspended on the connection.
func (c *Connection) Close() error {
	c.dispatcher.checkThread()
	if c.fd < 0 {
		return ErrConnectionClosed
	}
	uerr := c.dispatcher.unregisterFD(c.fd)
	if uerr == ErrOperationPending {
		return uerr
	}
	err := unix.Close(c.fd)
	c.fd = -1
	return errors.Join(uerr, newOpError("close", err))
}

func sockaddrToIP(sa unix.Sockaddr) (IPAddress, uint16, error) {
	sa4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return 0, 0, ErrInvalidAddress
	}
	return IPAddressFrom4(sa4.Addr), uint16(sa4.Port), nil
}
