//go:build linux || darwin

package dispatcher

import (
	ma "github.com/multiformats/go-multiaddr"
)

// ListenMultiaddr is NewListener for an /ip4/.../tcp/... address.
func ListenMultiaddr(d *Dispatcher, m ma.Multiaddr) (*Listener, error) {
	addr, port, err := SplitMultiaddr(m)
	if err != nil {
		return nil, err
	}
	return NewListener(d, addr, port)
}

// ConnectMultiaddr dials an /ip4/.../tcp/... address.
func (c *Connector) ConnectMultiaddr(m ma.Multiaddr) (*Connection, error) {
	addr, port, err := SplitMultiaddr(m)
	if err != nil {
		return nil, err
	}
	return c.Connect(addr, port)
}

// Multiaddr returns the bound address of the listener.
func (l *Listener) Multiaddr() (ma.Multiaddr, error) {
	addr, port, err := l.Address()
	if err != nil {
		return nil, err
	}
	return Multiaddr(addr, port)
}

// RemoteMultiaddr returns the peer address of the connection.
func (c *Connection) RemoteMultiaddr() (ma.Multiaddr, error) {
	addr, port, err := c.PeerAddress()
	if err != nil {
		return nil, err
	}
	return Multiaddr(addr, port)
}
