package event

import (
	"sync"
	"sync/atomic"
)

// DefaultQueueSize is the pump's default buffered capacity.
const DefaultQueueSize = 256

// Stats is a snapshot of pump counters.
type Stats struct {
	Posted        uint64
	Delivered     uint64
	Dropped       uint64
	HandlerErrors uint64
	HandlerPanics uint64
}

// Subscription identifies a registered handler so it can be removed.
type Subscription struct {
	id    uint64
	topic string
}

type subscriber struct {
	id uint64
	fn HandlerFunc
}

// Pump is a bounded, thread-safe event queue drained explicitly by the
// host. Post never blocks: when the queue is full the event is dropped and
// counted, because a stalled producer (often the input goroutine) is worse
// than a lost event for an interactive host.
type Pump struct {
	queue chan Event

	mu       sync.RWMutex
	handlers map[string][]subscriber
	nextID   uint64

	posted        atomic.Uint64
	delivered     atomic.Uint64
	dropped       atomic.Uint64
	handlerErrors atomic.Uint64
	handlerPanics atomic.Uint64
}

// PumpOption configures a Pump.
type PumpOption func(*pumpConfig)

type pumpConfig struct {
	queueSize int
}

// WithQueueSize sets the buffered capacity. Values <= 0 keep the default.
func WithQueueSize(n int) PumpOption {
	return func(c *pumpConfig) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// NewPump creates an empty pump.
func NewPump(opts ...PumpOption) *Pump {
	cfg := pumpConfig{queueSize: DefaultQueueSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Pump{
		queue:    make(chan Event, cfg.queueSize),
		handlers: make(map[string][]subscriber),
	}
}

// Post enqueues an event from any goroutine. Reports whether the event was
// accepted; false means the queue was full and the event was dropped.
func (p *Pump) Post(ev Event) bool {
	select {
	case p.queue <- ev:
		p.posted.Add(1)
		return true
	default:
		p.dropped.Add(1)
		return false
	}
}

// Subscribe registers fn for events on topic. Use TopicAll to receive every
// event. Returns the Subscription used to unsubscribe.
func (p *Pump) Subscribe(topic string, fn HandlerFunc) Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	sub := Subscription{id: p.nextID, topic: topic}
	p.handlers[topic] = append(p.handlers[topic], subscriber{id: sub.id, fn: fn})
	return sub
}

// Unsubscribe removes a previously registered handler. Unknown
// subscriptions are ignored.
func (p *Pump) Unsubscribe(sub Subscription) {
	p.mu.Lock()
	defer p.mu.Unlock()

	subs := p.handlers[sub.topic]
	for i, s := range subs {
		if s.id == sub.id {
			p.handlers[sub.topic] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// ProcessPending drains the queue, dispatching each event synchronously to
// its topic's handlers and the TopicAll handlers. Returns the number of
// events processed. Safe to call from any goroutine, but the expectation is
// a single drainer at a time (the host's event-processing hook).
func (p *Pump) ProcessPending() int {
	n := 0
	for {
		select {
		case ev := <-p.queue:
			p.dispatch(ev)
			n++
		default:
			return n
		}
	}
}

// Pending returns the number of queued events.
func (p *Pump) Pending() int {
	return len(p.queue)
}

// dispatch delivers one event to all matching handlers with per-handler
// panic recovery.
func (p *Pump) dispatch(ev Event) {
	p.mu.RLock()
	subs := make([]subscriber, 0, len(p.handlers[ev.Topic])+len(p.handlers[TopicAll]))
	subs = append(subs, p.handlers[ev.Topic]...)
	if ev.Topic != TopicAll {
		subs = append(subs, p.handlers[TopicAll]...)
	}
	p.mu.RUnlock()

	for _, s := range subs {
		p.deliver(s, ev)
	}
	p.delivered.Add(1)
}

func (p *Pump) deliver(s subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			p.handlerPanics.Add(1)
		}
	}()
	if err := s.fn(ev); err != nil {
		p.handlerErrors.Add(1)
	}
}

// Stats returns a snapshot of the pump counters.
func (p *Pump) Stats() Stats {
	return Stats{
		Posted:        p.posted.Load(),
		Delivered:     p.delivered.Load(),
		Dropped:       p.dropped.Load(),
		HandlerErrors: p.handlerErrors.Load(),
		HandlerPanics: p.handlerPanics.Load(),
	}
}
