package event

import "time"

// Topics used by the host. Scripts may emit their own topics through the
// bridge; these are the ones the host itself produces or watches.
const (
	// TopicKey is terminal key input.
	TopicKey = "input.key"
	// TopicResize is a terminal resize.
	TopicResize = "input.resize"
	// TopicStatus is a script status-line update.
	TopicStatus = "script.status"
	// TopicScript is a script-emitted event (host.emit).
	TopicScript = "script.emit"
	// TopicAll subscribes to every topic.
	TopicAll = "*"
)

// Event is a single host event.
type Event struct {
	Topic   string
	Payload any
	Time    time.Time
}

// New creates an Event for topic with the given payload, stamped with the
// current time.
func New(topic string, payload any) Event {
	return Event{
		Topic:   topic,
		Payload: payload,
		Time:    time.Now(),
	}
}

// ScriptPayload is the payload of a TopicScript event: the script-chosen
// topic plus whatever table it passed to host.emit.
type ScriptPayload struct {
	Topic  string
	Fields map[string]any
}

// HandlerFunc processes one event. A non-nil error is counted in the pump
// stats but does not stop delivery to other handlers.
type HandlerFunc func(ev Event) error
