package eventpoll

import "time"

// DefaultInterval is the throttle interval between scheduling attempts.
// It must be long enough not to perturb script throughput and short enough
// that the host stays responsive to an operator (interrupts, UI updates).
const DefaultInterval = 250 * time.Millisecond

// Scheduler is the injection port: it causes fn to run later on the
// interpreter's owner goroutine at a point the interpreter judges safe.
//
// Implementations must be callable from any goroutine without holding any
// interpreter-level lock. No delivery-time guarantee is required beyond
// "eventually, if the interpreter keeps running injected work".
type Scheduler interface {
	Schedule(fn func()) error
}

// Suspender temporarily disables delivery of host interrupts. Suspend
// returns the function that releases the suspension; callers must invoke it
// on every exit path.
type Suspender interface {
	Suspend() (resume func())
}

// Poller owns the throttled polling cycle: a perpetual background goroutine
// that rate-limits injection of the poll callback, and the callback itself.
type Poller struct {
	signal   *Signal
	sched    Scheduler
	process  func()
	suspend  Suspender
	interval time.Duration
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the throttle interval. Values <= 0 keep the default.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithSuspender sets the interrupt suspender acquired for the duration of
// each poll callback. Without one, interrupts stay enabled during polling.
func WithSuspender(s Suspender) Option {
	return func(p *Poller) {
		p.suspend = s
	}
}

// New creates a Poller that injects via sched and processes host events by
// calling process. The signal starts armed, so the first tick after Start
// schedules a callback unconditionally.
func New(sched Scheduler, process func(), opts ...Option) *Poller {
	p := &Poller{
		signal:   NewSignal(),
		sched:    sched,
		process:  process,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the throttling goroutine. The goroutine is detached: no
// handle is retained and there is no stop path short of process exit.
//
// Start is NOT idempotent. Calling it more than once starts multiple
// throttling goroutines; call it exactly once during host setup.
func (p *Poller) Start() {
	go p.run()
}

// run is the throttling loop. The sleep is the sole rate limit: the
// scheduling port runs injected work far more eagerly than once per
// interval, so the decision to inject at all is made here, at most once per
// tick, and only while poll callbacks keep re-arming the signal.
func (p *Poller) run() {
	for {
		time.Sleep(p.interval)

		if p.signal.Collect() {
			// A schedule failure is not retried: the signal is already
			// cleared, which is the same steady state as an idle
			// interpreter. Any later callback that does run re-arms the
			// signal and restores the cycle.
			_ = p.sched.Schedule(p.pollEvents)
		}
	}
}

// pollEvents is the injected poll callback. It runs on the interpreter's
// owner goroutine, interleaved with script execution.
//
// The re-arm is deferred first so it happens on every exit path; missing it
// even once would leave the whole mechanism idle forever. Interrupt
// delivery is suspended for the duration so that processing host events
// cannot trigger a nested interrupt cycle from inside the callback.
func (p *Poller) pollEvents() {
	defer p.signal.Request()

	if p.suspend != nil {
		resume := p.suspend.Suspend()
		defer resume()
	}

	protect(p.process)
}

// protect runs fn and contains any panic, so a failure in host event
// processing cannot unwind through interpreter frames. Reports whether fn
// completed normally.
func protect(fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	fn()
	return true
}
