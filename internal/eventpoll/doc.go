// Package eventpoll keeps the host's event processing alive while Lua code
// is executing.
//
// The host normally drains its event pump at convenient points in its own
// control flow. Once a long-running script enters the Lua VM, those points
// stop being reached: the interpreter does not yield back to the host until
// the script completes. eventpoll bridges that gap by periodically injecting
// a poll callback onto the interpreter's owner goroutine through a
// thread-safe scheduling port (see Scheduler).
//
// The mechanism has three parts:
//
//   - Signal: a mutex-guarded boolean with test-and-clear semantics that
//     communicates "another polling cycle is wanted" between goroutines.
//   - A throttling goroutine that wakes on a fixed interval, collects the
//     signal, and schedules the poll callback when it was set.
//   - The poll callback itself, which runs on the interpreter's owner
//     goroutine, processes pending host events, and re-arms the signal.
//
// The callback cannot simply reschedule itself: the scheduling port runs
// injected work very eagerly relative to script execution, and a
// self-rescheduling callback would crowd out the script entirely. Routing
// the reschedule through the throttled goroutine bounds the injection rate
// to one callback per interval. Conversely, once the interpreter stops
// running injected work (the script has finished), nothing re-arms the
// signal and the throttling goroutine goes quiet on its own, waking only to
// observe a cleared flag.
//
// The throttling goroutine is started once, detached, and runs for the life
// of the process. It is intentionally never joined or cancelled: when idle
// its cost is one mutex-guarded boolean check per interval.
package eventpoll
