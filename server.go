//go:build linux || darwin

package dispatcher

import (
	"errors"
	"fmt"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// Handler serves one accepted connection. The connection is closed when the
// handler returns.
type Handler func(conn *Connection)

// Server runs an accept loop on a Listener, serving each connection on its
// own Context. Optionally, peers are rate limited per IP address.
type Server struct {
	dispatcher *Dispatcher
	listener   *Listener
	handler    Handler
	limiter    *catrate.Limiter
	logger     *logiface.Logger[logiface.Event]
	handlers   *ContextGroup
	runner     *Context
	stopping   bool
}

type serverOptions struct {
	limiter *catrate.Limiter
	logger  *logiface.Logger[logiface.Event]
}

// ServerOption configures a Server.
type ServerOption interface {
	applyServer(*serverOptions) error
}

type serverOptionImpl struct {
	applyServerFunc func(*serverOptions) error
}

func (o *serverOptionImpl) applyServer(opts *serverOptions) error {
	return o.applyServerFunc(opts)
}

// WithRateLimit limits accepted connections per peer IP address, using
// sliding windows keyed by duration, e.g. {time.Second: 5, time.Minute: 60}.
// Connections over the limit are closed as soon as they are accepted.
func WithRateLimit(rates map[time.Duration]int) ServerOption {
	return &serverOptionImpl{func(opts *serverOptions) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("dispatcher: invalid rate limit: %v", r)
			}
		}()
		opts.limiter = catrate.NewLimiter(rates)
		return nil
	}}
}

// WithServerLogger sets the server's logger. It defaults to the
// Dispatcher's.
func WithServerLogger(logger *logiface.Logger[logiface.Event]) ServerOption {
	return &serverOptionImpl{func(opts *serverOptions) error {
		opts.logger = logger
		return nil
	}}
}

// NewServer creates a Server serving listener with handler.
func NewServer(d *Dispatcher, listener *Listener, handler Handler, opts ...ServerOption) (*Server, error) {
	if listener == nil || handler == nil {
		return nil, errors.New("dispatcher: server requires a listener and a handler")
	}
	cfg := &serverOptions{logger: d.logger}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyServer(cfg); err != nil {
			return nil, err
		}
	}
	return &Server{
		dispatcher: d,
		listener:   listener,
		handler:    handler,
		limiter:    cfg.limiter,
		logger:     cfg.logger,
		handlers:   NewContextGroup(d),
	}, nil
}

// Run accepts connections until Stop is called, or the calling Context is
// interrupted otherwise. Before returning, every handler is interrupted and
// waited for. Run returns nil after Stop, and the error that ended the
// accept loop otherwise.
func (s *Server) Run() error {
	d := s.dispatcher
	if s.runner != nil {
		return ErrOperationPending
	}
	s.runner = d.CurrentContext()
	s.stopping = false
	defer func() { s.runner = nil }()

	s.logger.Info().
		Stringer("addr", s.address()).
		Log("server started")

	err := s.acceptLoop()
	if s.stopping && errors.Is(err, ErrInterrupted) {
		err = nil
	}

	if cerr := s.handlers.Close(); cerr != nil && err == nil {
		err = cerr
	}

	s.logger.Info().
		Err(err).
		Log("server stopped")
	return err
}

func (s *Server) acceptLoop() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}

		addr, _, err := conn.PeerAddress()
		if err != nil {
			_ = conn.Close()
			continue
		}
		if next, ok := s.limiter.Allow(addr); !ok {
			s.logger.Debug().
				Stringer("peer", addr).
				Time("next", next).
				Log("peer rate limited")
			_ = conn.Close()
			continue
		}

		s.handlers.Spawn(func() {
			defer conn.Close()
			s.handler(conn)
		})
	}
}

func (s *Server) address() IPAddress {
	addr, _, _ := s.listener.Address()
	return addr
}

// Stop ends a running Run. It must be called from another Context.
func (s *Server) Stop() {
	if s.runner == nil {
		return
	}
	s.stopping = true
	s.dispatcher.InterruptContext(s.runner)
}

// Handlers returns the number of connections being served.
func (s *Server) Handlers() int {
	return s.handlers.Len()
}
