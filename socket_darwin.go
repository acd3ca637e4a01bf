//go:build darwin

package dispatcher

import (
	"golang.org/x/sys/unix"
)

// writes rely on SO_NOSIGPIPE instead
const sendFlags = 0

func newSocket() (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, newOpError("socket", err)
	}
	if err := prepareSocket(fd); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

func acceptSocket(fd int) (int, error) {
	nfd, _, err := unix.Accept(fd)
	if err != nil {
		return -1, err
	}
	if err := prepareSocket(nfd); err != nil {
		_ = unix.Close(nfd)
		return -1, err
	}
	return nfd, nil
}

func prepareSocket(fd int) error {
	unix.CloseOnExec(fd)
	if err := unix.SetNonblock(fd, true); err != nil {
		return newOpError("fcntl", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_NOSIGPIPE, 1); err != nil {
		return newOpError("setsockopt", err)
	}
	return nil
}
