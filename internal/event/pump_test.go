package event

import (
	"errors"
	"sync"
	"testing"
)

func TestPumpPostAndProcess(t *testing.T) {
	p := NewPump()

	var got []Event
	p.Subscribe(TopicStatus, func(ev Event) error {
		got = append(got, ev)
		return nil
	})

	p.Post(New(TopicStatus, "one"))
	p.Post(New(TopicStatus, "two"))
	p.Post(New(TopicKey, 'x')) // different topic, no handler

	if n := p.ProcessPending(); n != 3 {
		t.Errorf("ProcessPending = %d, want 3", n)
	}
	if len(got) != 2 {
		t.Fatalf("handler received %d events, want 2", len(got))
	}
	if got[0].Payload != "one" || got[1].Payload != "two" {
		t.Errorf("payloads = %v, %v", got[0].Payload, got[1].Payload)
	}
}

func TestPumpProcessPendingEmpty(t *testing.T) {
	p := NewPump()
	if n := p.ProcessPending(); n != 0 {
		t.Errorf("ProcessPending on empty pump = %d, want 0", n)
	}
}

func TestPumpWildcardSubscription(t *testing.T) {
	p := NewPump()

	count := 0
	p.Subscribe(TopicAll, func(Event) error {
		count++
		return nil
	})

	p.Post(New(TopicKey, nil))
	p.Post(New(TopicResize, nil))
	p.Post(New(TopicScript, nil))
	p.ProcessPending()

	if count != 3 {
		t.Errorf("wildcard handler saw %d events, want 3", count)
	}
}

func TestPumpUnsubscribe(t *testing.T) {
	p := NewPump()

	count := 0
	sub := p.Subscribe(TopicKey, func(Event) error {
		count++
		return nil
	})

	p.Post(New(TopicKey, nil))
	p.ProcessPending()

	p.Unsubscribe(sub)
	p.Post(New(TopicKey, nil))
	p.ProcessPending()

	if count != 1 {
		t.Errorf("handler ran %d times, want 1", count)
	}

	// Unsubscribing twice is harmless.
	p.Unsubscribe(sub)
}

func TestPumpOverflowDrops(t *testing.T) {
	p := NewPump(WithQueueSize(2))

	if !p.Post(New(TopicKey, 1)) {
		t.Error("first post should be accepted")
	}
	if !p.Post(New(TopicKey, 2)) {
		t.Error("second post should be accepted")
	}
	if p.Post(New(TopicKey, 3)) {
		t.Error("post beyond capacity should be dropped")
	}

	stats := p.Stats()
	if stats.Posted != 2 {
		t.Errorf("Posted = %d, want 2", stats.Posted)
	}
	if stats.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", stats.Dropped)
	}
	if p.Pending() != 2 {
		t.Errorf("Pending = %d, want 2", p.Pending())
	}
}

func TestPumpHandlerErrorCounted(t *testing.T) {
	p := NewPump()
	p.Subscribe(TopicKey, func(Event) error {
		return errors.New("handler failed")
	})

	p.Post(New(TopicKey, nil))
	p.ProcessPending()

	if got := p.Stats().HandlerErrors; got != 1 {
		t.Errorf("HandlerErrors = %d, want 1", got)
	}
}

func TestPumpHandlerPanicContained(t *testing.T) {
	p := NewPump()
	p.Subscribe(TopicKey, func(Event) error {
		panic("handler panic")
	})

	var after bool
	p.Subscribe(TopicKey, func(Event) error {
		after = true
		return nil
	})

	p.Post(New(TopicKey, nil))
	p.ProcessPending()

	if !after {
		t.Error("a panicking handler stopped delivery to later handlers")
	}
	if got := p.Stats().HandlerPanics; got != 1 {
		t.Errorf("HandlerPanics = %d, want 1", got)
	}
}

func TestPumpConcurrentPost(t *testing.T) {
	p := NewPump(WithQueueSize(1024))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				p.Post(New(TopicScript, j))
			}
		}()
	}
	wg.Wait()

	total := 0
	for p.Pending() > 0 {
		total += p.ProcessPending()
	}
	if total != 800 {
		t.Errorf("processed %d events, want 800", total)
	}
}
