//go:build linux || darwin

package dispatcher

import (
	"bytes"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/require"
)

var loopback = IPv4(127, 0, 0, 1)

// newTestDispatcher creates a Dispatcher owned by the test goroutine, closed
// on cleanup.
func newTestDispatcher(t *testing.T, opts ...Option) *Dispatcher {
	t.Helper()
	d, err := New(append([]Option{WithThreadChecks(true)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// newBufferLogger returns a stumpy JSON logger writing to the returned
// buffer.
func newBufferLogger() (*logiface.Logger[logiface.Event], *bytes.Buffer) {
	var buf bytes.Buffer
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(
			stumpy.WithWriter(&buf),
			stumpy.WithTimeField(``),
		),
		stumpy.L.WithLevel(logiface.LevelDebug),
	).Logger()
	return logger, &buf
}

// listen opens a loopback listener on an ephemeral port.
func listen(t *testing.T, d *Dispatcher) (*Listener, uint16) {
	t.Helper()
	l, err := NewListener(d, loopback, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	_, port, err := l.Address()
	require.NoError(t, err)
	require.NotZero(t, port)
	return l, port
}

// connPair returns both ends of a loopback connection.
func connPair(t *testing.T, d *Dispatcher) (server, client *Connection) {
	t.Helper()
	l, port := listen(t, d)

	var acceptErr error
	g := NewContextGroup(d)
	g.Spawn(func() {
		server, acceptErr = l.Accept()
	})

	client, err := NewConnector(d).Connect(loopback, port)
	require.NoError(t, err)
	require.NoError(t, g.Wait())
	require.NoError(t, acceptErr)

	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})
	return server, client
}

// collectReady polls the reactor without dispatching until some Context is
// ready to resume.
func collectReady(t *testing.T, d *Dispatcher) {
	t.Helper()
	for i := 0; i < 200 && d.Stats().Ready == 0; i++ {
		_, err := d.poll(0)
		require.NoError(t, err)
		if d.Stats().Ready == 0 {
			time.Sleep(5 * time.Millisecond)
		}
	}
	require.Equal(t, 1, d.Stats().Ready)
}

// registeredFDs counts descriptors registered with the reactor.
func registeredFDs(d *Dispatcher) int {
	n := 0
	for _, slot := range d.registry.sockets {
		if slot.registered {
			n++
		}
	}
	return n
}

// failingRemoveReactor reports err from removeFD after removing the
// descriptor.
type failingRemoveReactor struct {
	reactor
	err error
}

func (r failingRemoveReactor) removeFD(fd int) error {
	_ = r.reactor.removeFD(fd)
	return r.err
}
