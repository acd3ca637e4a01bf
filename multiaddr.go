package dispatcher

import (
	"fmt"
	"strconv"

	ma "github.com/multiformats/go-multiaddr"
)

// Multiaddr formats addr and port as /ip4/<addr>/tcp/<port>.
func Multiaddr(addr IPAddress, port uint16) (ma.Multiaddr, error) {
	return ma.NewMultiaddr(fmt.Sprintf("/ip4/%s/tcp/%d", addr, port))
}

// SplitMultiaddr extracts the IPv4 address and TCP port of a multiaddr such
// as /ip4/127.0.0.1/tcp/8080. Other components are ignored.
func SplitMultiaddr(m ma.Multiaddr) (IPAddress, uint16, error) {
	host, err := m.ValueForProtocol(ma.P_IP4)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %s: %w", ErrInvalidAddress, m, err)
	}
	addr, err := ParseIPAddress(host)
	if err != nil {
		return 0, 0, err
	}
	portStr, err := m.ValueForProtocol(ma.P_TCP)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %s: %w", ErrInvalidAddress, m, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %s: %w", ErrInvalidAddress, m, err)
	}
	return addr, uint16(port), nil
}
