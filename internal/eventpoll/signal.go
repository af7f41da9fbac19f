package eventpoll

import "sync"

// Signal is the shared flag used to request another polling cycle.
//
// The poll callback running on the interpreter's owner goroutine sets the
// flag; the throttling goroutine collects it. Both operations hold the
// mutex, so no torn value is ever observed and a request is never consumed
// twice. Bursts of requests between collections collapse to one, which is
// correct: each poll callback processes whatever is pending at the time it
// runs, not a per-request unit of work.
type Signal struct {
	mu        sync.Mutex
	requested bool
}

// NewSignal creates a Signal with the request flag already set.
//
// Starting armed means the very first throttling tick schedules a poll
// callback before any script has run. That one startup injection is
// harmless (the callback is idempotent) and primes the cycle: without it,
// nothing would ever schedule the first callback that does the first re-arm.
func NewSignal() *Signal {
	return &Signal{requested: true}
}

// Request marks that another polling cycle is wanted. Idempotent; calling
// it repeatedly between collections is the same as calling it once.
func (s *Signal) Request() {
	s.mu.Lock()
	s.requested = true
	s.mu.Unlock()
}

// Collect atomically reads and clears the request flag, returning the value
// read. This is the only operation that clears the flag.
func (s *Signal) Collect() bool {
	s.mu.Lock()
	requested := s.requested
	s.requested = false
	s.mu.Unlock()
	return requested
}
