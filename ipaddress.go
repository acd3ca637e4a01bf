package dispatcher

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// IPAddress is an IPv4 address in host byte order.
type IPAddress uint32

// IPv4 builds an address from its four octets.
func IPv4(a, b, c, d byte) IPAddress {
	return IPAddressFrom4([4]byte{a, b, c, d})
}

// IPAddressFrom4 converts network byte order octets.
func IPAddressFrom4(b [4]byte) IPAddress {
	return IPAddress(binary.BigEndian.Uint32(b[:]))
}

// ParseIPAddress parses strict dotted-decimal notation: exactly four
// decimal octets, each at most 255, without leading zeros.
func ParseIPAddress(s string) (IPAddress, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil || !addr.Is4() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return IPAddressFrom4(addr.As4()), nil
}

// As4 returns the octets in network byte order.
func (a IPAddress) As4() [4]byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(a))
	return b
}

func (a IPAddress) addr() netip.Addr {
	return netip.AddrFrom4(a.As4())
}

func (a IPAddress) String() string {
	return a.addr().String()
}

// IsLoopback reports whether a is in 127.0.0.0/8.
func (a IPAddress) IsLoopback() bool {
	return a.addr().IsLoopback()
}

// IsPrivate reports whether a is in 10.0.0.0/8, 172.16.0.0/12 or
// 192.168.0.0/16.
func (a IPAddress) IsPrivate() bool {
	return a.addr().IsPrivate()
}
