package luart

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// defaultIdleTick bounds how long a pending call can sit undelivered while
// the executor is idle between operations.
const defaultIdleTick = 25 * time.Millisecond

// Call represents a Lua operation to be executed on the owner goroutine.
type Call struct {
	// Fn receives the LState and performs all Lua operations.
	Fn func(L *lua.LState) error

	// Result receives the outcome; closed after the result is sent.
	Result chan error
}

// Executor serializes all Lua operations through a single goroutine.
//
// gopher-lua's LState is not goroutine-safe, so every operation is
// marshalled to the goroutine running Run. That goroutine is the
// interpreter's main thread for the purposes of the host's event polling.
//
// Beyond the keyed queue, the Executor provides a pending-call facility:
// AddPendingCall queues a function from any goroutine, without touching any
// interpreter state, to run on the owner goroutine at the next safe point.
// Safepoint drains the queue; it is invoked between queued operations, on
// an idle tick, and from every host-module bridge crossing during script
// execution.
type Executor struct {
	L     *lua.LState
	queue chan *Call

	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once

	pendingMu  sync.Mutex
	pending    []func(*lua.LState)
	hasPending atomic.Bool

	idleTick time.Duration
}

// NewExecutor creates an Executor for the given Lua state. queueSize
// determines how many operations can be buffered; values <= 0 default
// to 100.
func NewExecutor(L *lua.LState, queueSize int) *Executor {
	if queueSize <= 0 {
		queueSize = 100
	}
	return &Executor{
		L:        L,
		queue:    make(chan *Call, queueSize),
		done:     make(chan struct{}),
		idleTick: defaultIdleTick,
	}
}

// Run processes Lua operations until the context is cancelled or Close is
// called. MUST be called from the goroutine that owns the Lua state; all
// queued operations and pending calls execute here.
func (e *Executor) Run(ctx context.Context) {
	ticker := time.NewTicker(e.idleTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.drainQueue(ctx.Err())
			return
		case <-e.done:
			e.drainQueue(ErrExecutorClosed)
			return
		case <-ticker.C:
			e.Safepoint()
		case call, ok := <-e.queue:
			if !ok {
				return
			}
			e.Safepoint()
			err := e.executeCall(call)
			select {
			case call.Result <- err:
			default:
			}
			close(call.Result)
			e.Safepoint()
		}
	}
}

// executeCall runs a single Lua operation with panic recovery.
func (e *Executor) executeCall(call *Call) (err error) {
	defer func() {
		if r := recover(); r != nil {
			switch v := r.(type) {
			case error:
				err = v
			case string:
				err = errors.New(v)
			default:
				err = errors.New("lua panic")
			}
		}
	}()
	return call.Fn(e.L)
}

// drainQueue fails remaining queued calls with the given error.
func (e *Executor) drainQueue(err error) {
	for {
		select {
		case call, ok := <-e.queue:
			if !ok {
				return
			}
			select {
			case call.Result <- err:
			default:
			}
			close(call.Result)
		default:
			return
		}
	}
}

// Execute runs a Lua operation synchronously on the owner goroutine,
// blocking until it completes or ctx is cancelled.
func (e *Executor) Execute(ctx context.Context, fn func(L *lua.LState) error) error {
	if e.closed.Load() {
		return ErrExecutorClosed
	}

	call := &Call{
		Fn:     fn,
		Result: make(chan error, 1),
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrExecutorClosed
	case e.queue <- call:
	}

	select {
	case <-ctx.Done():
		// The call stays queued and will still run; we just stop waiting.
		return ctx.Err()
	case err, ok := <-call.Result:
		if !ok {
			return ErrExecutorClosed
		}
		return err
	}
}

// ExecuteAsync queues a Lua operation without waiting for completion.
func (e *Executor) ExecuteAsync(fn func(L *lua.LState) error) error {
	if e.closed.Load() {
		return ErrExecutorClosed
	}

	call := &Call{
		Fn:     fn,
		Result: make(chan error, 1),
	}

	select {
	case <-e.done:
		return ErrExecutorClosed
	case e.queue <- call:
		go func() {
			<-call.Result // drain to avoid leaking the result sender
		}()
		return nil
	default:
		return ErrQueueFull
	}
}

// AddPendingCall queues fn to run on the owner goroutine at the next safe
// point. Safe to call from any goroutine; never blocks on interpreter
// state and takes no interpreter-level lock.
//
// Delivery is best-effort: fn runs once the owner goroutine reaches a safe
// point, which requires the executor (and any script it is running) to keep
// making progress. A panic inside fn is contained and does not unwind into
// Lua frames.
func (e *Executor) AddPendingCall(fn func(L *lua.LState)) error {
	if e.closed.Load() {
		return ErrExecutorClosed
	}

	e.pendingMu.Lock()
	e.pending = append(e.pending, fn)
	e.pendingMu.Unlock()
	e.hasPending.Store(true)
	return nil
}

// Safepoint runs any queued pending calls. MUST be called only from the
// owner goroutine. The fast path is a single atomic load, cheap enough to
// call from every bridge crossing.
func (e *Executor) Safepoint() {
	if !e.hasPending.Load() {
		return
	}

	e.pendingMu.Lock()
	pending := e.pending
	e.pending = nil
	e.hasPending.Store(false)
	e.pendingMu.Unlock()

	for _, fn := range pending {
		e.runPendingCall(fn)
	}
}

// runPendingCall executes one pending call, containing any panic.
func (e *Executor) runPendingCall(fn func(*lua.LState)) {
	defer func() {
		_ = recover()
	}()
	fn(e.L)
}

// Close stops the executor and prevents new operations. In-flight
// operations complete with ErrExecutorClosed.
func (e *Executor) Close() {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		close(e.done)
	})
}

// IsClosed reports whether the executor has been closed.
func (e *Executor) IsClosed() bool {
	return e.closed.Load()
}
