// Package interrupts manages operator interrupt (Ctrl-C) delivery for the
// host.
//
// An interrupt has two effects: it cancels the contexts of in-flight script
// executions, and it leaves a pending flag the host's own control flow can
// consume. Delivery can be suspended in a counted, nestable scope; while
// suspended, interrupts are retained and delivered when the last scope is
// released. The event-polling callback runs under such a scope so that
// draining host events cannot trigger a nested interrupt cycle from inside
// the callback.
package interrupts

import (
	"context"
	"errors"
	"sync"
)

// ErrInterrupted is returned by CheckPending when an interrupt was
// delivered and not yet consumed.
var ErrInterrupted = errors.New("interrupted")

// Controller tracks interrupt state for the process.
type Controller struct {
	mu        sync.Mutex
	suspended int
	pending   bool
	retained  bool
	targets   map[uint64]context.CancelFunc
	nextID    uint64
}

// NewController creates a Controller with delivery enabled.
func NewController() *Controller {
	return &Controller{
		targets: make(map[uint64]context.CancelFunc),
	}
}

// Interrupt records an operator interrupt. If delivery is not suspended it
// fires immediately, cancelling all registered targets; otherwise it is
// retained and fires when the last suspension is released.
func (c *Controller) Interrupt() {
	c.mu.Lock()
	if c.suspended > 0 {
		c.retained = true
		c.mu.Unlock()
		return
	}
	c.pending = true
	targets := c.drainTargetsLocked()
	c.mu.Unlock()

	for _, cancel := range targets {
		cancel()
	}
}

// drainTargetsLocked removes and returns all registered cancel functions.
// Callers must hold c.mu.
func (c *Controller) drainTargetsLocked() []context.CancelFunc {
	if len(c.targets) == 0 {
		return nil
	}
	targets := make([]context.CancelFunc, 0, len(c.targets))
	for id, cancel := range c.targets {
		targets = append(targets, cancel)
		delete(c.targets, id)
	}
	return targets
}

// Suspend disables interrupt delivery until the returned resume function is
// called. Scopes nest; delivery resumes when the outermost scope releases,
// at which point a retained interrupt fires. The resume function is
// idempotent and must be called on every exit path.
func (c *Controller) Suspend() (resume func()) {
	c.mu.Lock()
	c.suspended++
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(c.release)
	}
}

func (c *Controller) release() {
	c.mu.Lock()
	c.suspended--
	fire := c.suspended == 0 && c.retained
	var targets []context.CancelFunc
	if fire {
		c.retained = false
		c.pending = true
		targets = c.drainTargetsLocked()
	}
	c.mu.Unlock()

	for _, cancel := range targets {
		cancel()
	}
}

// Suspended reports whether delivery is currently suspended.
func (c *Controller) Suspended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suspended > 0
}

// Interrupted reports whether a delivered interrupt is pending, without
// consuming it.
func (c *Controller) Interrupted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// CheckPending consumes a delivered interrupt, returning ErrInterrupted if
// one was pending. While delivery is suspended it always returns nil.
func (c *Controller) CheckPending() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.suspended > 0 || !c.pending {
		return nil
	}
	c.pending = false
	return ErrInterrupted
}

// Register adds a cancel function to be invoked when an interrupt is
// delivered, typically the cancel of an in-flight script context. The
// returned function unregisters it; call it once the execution completes.
func (c *Controller) Register(cancel context.CancelFunc) (unregister func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.targets[id] = cancel
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.targets, id)
		c.mu.Unlock()
	}
}

// WatchContext derives a context from parent that is cancelled when an
// interrupt is delivered. The returned stop function releases the
// registration and must be called when the execution completes.
func (c *Controller) WatchContext(parent context.Context) (ctx context.Context, stop func()) {
	ctx, cancel := context.WithCancel(parent)
	unregister := c.Register(cancel)
	return ctx, func() {
		unregister()
		cancel()
	}
}
