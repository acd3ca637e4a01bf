//go:build linux || darwin

package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiaddr_ListenConnect(t *testing.T) {
	d := newTestDispatcher(t)
	bind, err := Multiaddr(loopback, 0)
	require.NoError(t, err)
	l, err := ListenMultiaddr(d, bind)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	target, err := l.Multiaddr()
	require.NoError(t, err)
	_, port, err := SplitMultiaddr(target)
	require.NoError(t, err)
	require.NotZero(t, port)

	g := NewContextGroup(d)
	g.Spawn(func() {
		conn, err := l.Accept()
		if assert.NoError(t, err) {
			_ = conn.Close()
		}
	})

	conn, err := NewConnector(d).ConnectMultiaddr(target)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, g.Wait())

	remote, err := conn.RemoteMultiaddr()
	require.NoError(t, err)
	assert.True(t, remote.Equal(target))
}
