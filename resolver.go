package dispatcher

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net"
)

// Resolver looks up IPv4 addresses without blocking the Dispatcher. The
// lookup runs on a helper goroutine and its result is handed back through
// RemoteSpawn.
type Resolver struct {
	dispatcher *Dispatcher
	lookup     func(ctx context.Context, host string) ([]net.IP, error)
}

// NewResolver creates a Resolver using net.DefaultResolver.
func NewResolver(d *Dispatcher) *Resolver {
	return &Resolver{
		dispatcher: d,
		lookup: func(ctx context.Context, host string) ([]net.IP, error) {
			return net.DefaultResolver.LookupIP(ctx, "ip4", host)
		},
	}
}

// Resolve returns one IPv4 address of host, chosen at random when there
// are several. Dotted-decimal input is parsed without a lookup. The
// calling Context suspends until the lookup finishes, and interrupting it
// cancels the lookup and returns ErrInterrupted.
func (r *Resolver) Resolve(host string) (IPAddress, error) {
	d := r.dispatcher
	d.checkThread()
	if err := d.usable(); err != nil {
		return 0, err
	}
	if d.Interrupted() {
		return 0, ErrInterrupted
	}
	if addr, err := ParseIPAddress(host); err == nil {
		return addr, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		done      = NewEvent(d)
		addresses []IPAddress
		lookupErr error
	)
	go func() {
		ips, err := r.lookup(ctx, host)
		// dropped if the dispatcher closed meanwhile, nothing waits then
		_ = d.RemoteSpawn(func() {
			lookupErr = err
			for _, ip := range ips {
				if ip4 := ip.To4(); ip4 != nil {
					addresses = append(addresses, IPAddressFrom4([4]byte(ip4)))
				}
			}
			done.Set()
		})
	}()

	if err := done.Wait(); err != nil {
		return 0, err
	}
	if lookupErr != nil {
		return 0, fmt.Errorf("dispatcher: resolve %q: %w", host, lookupErr)
	}
	if len(addresses) == 0 {
		return 0, fmt.Errorf("%w: %q", ErrNoAddress, host)
	}
	return addresses[rand.IntN(len(addresses))], nil
}
