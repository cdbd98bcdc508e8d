package after

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// CacheScope is an ambient scope the host may optionally supply. When
// present, both the main handler body and the deferred drain batch execute
// inside it.
type CacheScope interface {
	Run(fn func())
}

// Bindings are the host capabilities a Context is constructed with. They
// are immutable after New.
type Bindings struct {
	// BackgroundExecute registers work as outstanding so the host defers
	// its own teardown until work settles. Required for any scheduling.
	BackgroundExecute func(work *Future)

	// OnTransportClose registers a one-shot callback invoked once the
	// response has been fully flushed to the client. Required for
	// scheduling callback tasks.
	OnTransportClose func(fn func())

	// CacheScope is optional.
	CacheScope CacheScope
}

type contextState int

const (
	stateIdle contextState = iota
	stateRunning
	stateDraining
	stateSpent
)

// Context schedules deferred tasks for a single request. The request
// pipeline constructs one per incoming request, calls Run around the main
// handler, and drains the queued callbacks exactly once after the
// transport-close signal fires. Once drained, the context is spent and
// rejects further scheduling.
type Context struct {
	bindings Bindings
	logger   *slog.Logger

	mutex   sync.Mutex
	state   contextState
	scope   *Scope
	pending []callback
}

// Creates a deferred task context with the given host bindings.
func New(bindings Bindings) *Context {
	return &Context{
		bindings: bindings,
		logger:   slog.Default(),
	}
}

// Sets the logger used to report deferred callback failures. Defaults to
// slog.Default.
func (c *Context) Logger(logger *slog.Logger) *Context {
	if logger == nil {
		panic(errors.New("Invalid nil logger passed to Context.Logger"))
	}
	c.logger = logger
	return c
}

// Run establishes scope as the active request scope for the duration of
// body and returns body's result. When a cache scope binding is present,
// body additionally executes inside it. No task classification happens
// here.
//
// Run fails with ErrNested while the context is draining, and with an
// internal-defect error once it is spent.
func (c *Context) Run(scope *Scope, body func() error) error {
	if scope == nil {
		panic(errors.New("Invalid nil scope passed to Context.Run"))
	}

	c.mutex.Lock()
	switch c.state {
	case stateDraining:
		c.mutex.Unlock()
		return ErrNested
	case stateSpent:
		c.mutex.Unlock()
		return newInternalError("Run called on a context that has already drained")
	}
	c.state = stateRunning
	c.scope = scope
	scope.sched = c
	c.mutex.Unlock()

	if c.bindings.CacheScope == nil {
		return body()
	}
	var err error
	c.bindings.CacheScope.Run(func() {
		err = body()
	})
	return err
}

// Schedule classifies task and either forwards it to the host's background
// execution primitive (awaitables) or queues it to run once the response
// has been flushed (callbacks). It returns synchronously in every case,
// whether the task was forwarded, queued, or rejected.
//
// Accepted callback shapes are func(), func() error, func() *Future, and
// the same three taking a *Scope, which receives the restricted view active
// during draining. Anything else fails with ErrTaskType.
func (c *Context) Schedule(task interface{}) error {
	kind, fut, cb := classify(task)
	switch kind {
	case taskAwaitable:
		return c.scheduleAwaitable(fut)
	case taskCallback:
		return c.scheduleCallback(cb)
	default:
		return fmt.Errorf("Cannot schedule a value of type %T: %w", task, ErrTaskType)
	}
}

func (c *Context) scheduleAwaitable(fut *Future) error {
	c.mutex.Lock()
	spent := c.state >= stateDraining
	c.mutex.Unlock()
	if spent {
		return ErrNested
	}
	if c.bindings.BackgroundExecute == nil {
		return missingCapability("BackgroundExecute")
	}

	// Consume the rejection channel exactly once before handoff, so a
	// rejected awaitable never surfaces as an unobserved rejection in the
	// host.
	fut.OnReject(func(error) {})
	c.bindings.BackgroundExecute(fut)
	tasksScheduled.WithLabelValues("awaitable").Inc()
	return nil
}

func (c *Context) scheduleCallback(cb callback) error {
	c.mutex.Lock()
	if c.state >= stateDraining {
		c.mutex.Unlock()
		return ErrNested
	}
	c.pending = append(c.pending, cb)
	first := len(c.pending) == 1
	c.mutex.Unlock()

	tasksScheduled.WithLabelValues("callback").Inc()
	if !first {
		return nil
	}

	// The drain job is registered once, on the empty to non-empty
	// transition. A missing capability is surfaced here, synchronously,
	// rather than by silently dropping work later; the callback itself
	// stays queued.
	if c.bindings.BackgroundExecute == nil {
		return missingCapability("BackgroundExecute")
	}
	if c.bindings.OnTransportClose == nil {
		return missingCapability("OnTransportClose")
	}

	// The joined batch is represented to the host as a single outstanding
	// unit of background work, so the host's lifetime extends until every
	// queued callback has settled.
	batch := NewFuture()
	batch.OnReject(func(error) {})
	c.bindings.BackgroundExecute(batch)
	c.bindings.OnTransportClose(func() {
		c.drain(batch)
	})
	return nil
}

// drain runs the single draining pass: all queued callbacks fire
// concurrently under the restricted scope view, the pass joins on the whole
// set, and the context becomes spent.
func (c *Context) drain(batch *Future) {
	c.mutex.Lock()
	if c.state >= stateDraining {
		c.mutex.Unlock()
		return
	}
	scope := c.scope
	pending := c.pending
	c.state = stateDraining
	c.pending = nil
	c.mutex.Unlock()

	if scope == nil {
		err := newInternalError("Draining started with no request scope ever established")
		c.logger.Error("cannot drain deferred callbacks", "error", err)
		c.mutex.Lock()
		c.state = stateSpent
		c.mutex.Unlock()
		batch.Reject(err)
		return
	}

	view := scope.restricted()
	run := func() {
		var group sync.WaitGroup
		for _, cb := range pending {
			group.Add(1)
			go func(cb callback) {
				defer group.Done()
				c.invoke(view, cb)
			}(cb)
		}
		group.Wait()
	}
	if c.bindings.CacheScope != nil {
		c.bindings.CacheScope.Run(run)
	} else {
		run()
	}

	c.mutex.Lock()
	c.state = stateSpent
	c.mutex.Unlock()
	drainsCompleted.Inc()
	batch.Resolve()
}

// invoke runs one deferred callback, isolating its failure from the rest of
// the batch. The response has already been sent, so failures are observable
// only through the logger.
func (c *Context) invoke(view *Scope, cb callback) {
	defer func() {
		if p := recover(); p != nil {
			callbackFailures.Inc()
			c.logger.Error("deferred callback panicked",
				"panic", p,
				"stack", string(debug.Stack()))
		}
	}()
	if err := cb(view); err != nil {
		callbackFailures.Inc()
		c.logger.Error("deferred callback failed", "error", err)
	}
}
