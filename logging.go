package dispatcher

import (
	"github.com/joeycumines/logiface"
)

// The logger field is nil unless WithLogger was used. logiface builders are
// nil-safe, so call sites never need to check.

func (d *Dispatcher) logPanic(err PanicError) {
	d.logger.Err().
		Err(err).
		Log("procedure panicked")
}

func (d *Dispatcher) logFatal(err error) {
	d.logger.Err().
		Err(err).
		Int("running", d.running).
		Log("reactor failed, dispatcher is unusable")
}

func (d *Dispatcher) logRearmFailure(fd int, err error) {
	d.logger.Warning().
		Int("fd", fd).
		Err(err).
		Log("failed to re-arm descriptor")
}

// Logger returns the configured logger, which may be nil.
func (d *Dispatcher) Logger() *logiface.Logger[logiface.Event] {
	return d.logger
}
