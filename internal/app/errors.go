package app

import "errors"

// Application errors.
var (
	// ErrAlreadyRunning is returned when Run is called while a script is
	// in flight.
	ErrAlreadyRunning = errors.New("a script is already running")

	// ErrInterrupted is returned when a script run was stopped by an
	// operator interrupt.
	ErrInterrupted = errors.New("script interrupted")
)
