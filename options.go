package dispatcher

import (
	"errors"

	"github.com/joeycumines/logiface"
)

const defaultEventBatchSize = 16

// dispatcherOptions holds configuration options for Dispatcher creation.
type dispatcherOptions struct {
	logger              *logiface.Logger[logiface.Event]
	eventBatchSize      int
	maxReusableContexts int
	maxPooledTimers     int
	threadChecks        bool
}

// Option configures a Dispatcher instance.
type Option interface {
	applyDispatcher(*dispatcherOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyDispatcherFunc func(*dispatcherOptions) error
}

func (o *optionImpl) applyDispatcher(opts *dispatcherOptions) error {
	return o.applyDispatcherFunc(opts)
}

// WithLogger sets the structured logger. A nil logger disables logging,
// which is also the default.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *dispatcherOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithEventBatchSize sets how many readiness events are collected per
// reactor wait. Defaults to 16.
func WithEventBatchSize(n int) Option {
	return &optionImpl{func(opts *dispatcherOptions) error {
		if n <= 0 {
			return errors.New("dispatcher: event batch size must be positive")
		}
		opts.eventBatchSize = n
		return nil
	}}
}

// WithMaxReusableContexts bounds the pool of finished Contexts kept for
// reuse. Zero (the default) means unbounded, matching the behavior of keeping
// every Context until the Dispatcher is closed. Contexts that finish while the
// pool is full release their goroutine.
func WithMaxReusableContexts(n int) Option {
	return &optionImpl{func(opts *dispatcherOptions) error {
		if n < 0 {
			return errors.New("dispatcher: max reusable contexts must not be negative")
		}
		opts.maxReusableContexts = n
		return nil
	}}
}

// WithMaxPooledTimers bounds the pool of reactor timer handles. Zero (the
// default) means unbounded.
func WithMaxPooledTimers(n int) Option {
	return &optionImpl{func(opts *dispatcherOptions) error {
		if n < 0 {
			return errors.New("dispatcher: max pooled timers must not be negative")
		}
		opts.maxPooledTimers = n
		return nil
	}}
}

// WithThreadChecks enables verification that every call is made from the
// goroutine of the current Context. Violations panic with ErrWrongGoroutine.
// The check costs a runtime.Stack call per operation, so it is meant for
// tests and debugging.
func WithThreadChecks(enabled bool) Option {
	return &optionImpl{func(opts *dispatcherOptions) error {
		opts.threadChecks = enabled
		return nil
	}}
}

// resolveOptions applies Option instances to dispatcherOptions.
func resolveOptions(opts []Option) (*dispatcherOptions, error) {
	cfg := &dispatcherOptions{
		eventBatchSize: defaultEventBatchSize,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyDispatcher(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
