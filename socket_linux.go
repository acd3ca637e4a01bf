//go:build linux

package dispatcher

import (
	"golang.org/x/sys/unix"
)

const sendFlags = unix.MSG_NOSIGNAL

func newSocket() (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, newOpError("socket", err)
	}
	return fd, nil
}

func acceptSocket(fd int) (int, error) {
	nfd, _, err := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	return nfd, err
}
