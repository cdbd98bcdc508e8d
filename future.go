package after

import (
	"errors"
	"log/slog"
	"sync"
)

// Called when a Future settles with an error and no rejection observer was
// ever attached to it. Replace this to customize how stray rejections are
// reported. The Context attaches a no-op observer to every awaitable before
// handing it to the host, so scheduled awaitables never end up here.
var UnobservedRejection = func(err error) {
	slog.Warn("background future rejected with no observer", "error", err)
}

// Future stands for a unit of background work which will either resolve or
// reject. It settles at most once; settling it again is a no-op.
type Future struct {
	mutex     sync.Mutex
	done      chan struct{}
	err       error
	settled   bool
	observers []func(error)
}

// Creates a new, unsettled future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Done is closed once the future has settled, successfully or not.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Returns the rejection error, or nil if the future resolved or has not
// settled yet.
func (f *Future) Err() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.err
}

// Settles the future successfully.
func (f *Future) Resolve() {
	f.settle(nil)
}

// Settles the future with err.
func (f *Future) Reject(err error) {
	if err == nil {
		panic(errors.New("Invalid nil error passed to Future.Reject"))
	}
	f.settle(err)
}

// OnReject registers fn to be invoked with the rejection error should the
// future settle unsuccessfully. Registering any observer before the future
// settles, even one which does nothing, marks the rejection channel as
// consumed and suppresses the UnobservedRejection report.
func (f *Future) OnReject(fn func(error)) {
	f.mutex.Lock()
	if !f.settled {
		f.observers = append(f.observers, fn)
		f.mutex.Unlock()
		return
	}
	err := f.err
	f.mutex.Unlock()
	if err != nil {
		fn(err)
	}
}

func (f *Future) settle(err error) {
	f.mutex.Lock()
	if f.settled {
		f.mutex.Unlock()
		return
	}
	f.settled = true
	f.err = err
	observers := f.observers
	f.observers = nil
	f.mutex.Unlock()

	close(f.done)
	if err == nil {
		return
	}
	if len(observers) == 0 {
		UnobservedRejection(err)
		return
	}
	for _, fn := range observers {
		fn(err)
	}
}

// Blocks until f settles and returns its rejection error, if any. A nil
// future is treated as already resolved.
func await(f *Future) error {
	if f == nil {
		return nil
	}
	<-f.Done()
	return f.Err()
}
