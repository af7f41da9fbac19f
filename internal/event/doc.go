// Package event provides the host's event machinery: a bounded pump that
// collects events from any goroutine and delivers them synchronously when
// the host drains it.
//
// Unlike a push-style bus with its own worker pool, the pump is drained
// explicitly via ProcessPending. That call is the host's single
// event-processing hook: the application invokes it from its own control
// flow when idle, and the eventpoll subsystem injects it into the Lua
// interpreter's owner goroutine while a script is running. Handlers
// therefore always execute on whichever goroutine is draining, and must not
// assume any particular one.
package event
