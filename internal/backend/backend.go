// Package backend abstracts the terminal the host runs in: a status line
// for script feedback and a stream of input events. The demo host only
// needs enough surface to stay visibly responsive while a script runs.
package backend

// EventType identifies a backend event.
type EventType int

// Backend event types.
const (
	// EventNone is an event of no interest to the host.
	EventNone EventType = iota
	// EventKey is a key press.
	EventKey
	// EventResize is a terminal resize.
	EventResize
	// EventInterrupt is an operator interrupt (Ctrl-C).
	EventInterrupt
	// EventClosed signals the backend has shut down.
	EventClosed
)

// Key identifies a non-rune key.
type Key int

// Keys the host reacts to.
const (
	KeyNone Key = iota
	KeyRune
	KeyEnter
	KeyEscape
)

// Event is a single backend event.
type Event struct {
	Type   EventType
	Key    Key
	Rune   rune
	Width  int
	Height int
}

// Backend is the terminal surface the host renders to and reads input from.
type Backend interface {
	// Init takes over the terminal.
	Init() error

	// Shutdown restores the terminal. Unblocks a concurrent PollEvent,
	// which then returns an EventClosed event.
	Shutdown()

	// Size returns the terminal dimensions.
	Size() (int, int)

	// PollEvent blocks until the next event.
	PollEvent() Event

	// SetStatus replaces the status line content.
	SetStatus(text string)

	// Show flushes pending drawing to the terminal.
	Show()
}
