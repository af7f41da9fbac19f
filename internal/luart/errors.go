package luart

import "errors"

// Sentinel errors for the Lua runtime.
var (
	// ErrStateClosed is returned when operating on a closed State.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrExecutorClosed is returned when operating on a closed Executor.
	ErrExecutorClosed = errors.New("lua executor is closed")

	// ErrQueueFull is returned when the executor queue cannot accept more work.
	ErrQueueFull = errors.New("lua executor queue is full")
)
