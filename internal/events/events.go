// Package events fans pipeline events (calls started, replies, failures,
// query timeouts) out to subscribers: websocket clients, an MQTT broker, or
// an in-memory recorder in tests.
package events

import (
	"sync"
	"time"
)

// Event names.
const (
	Submitted = "submitted"
	Replied   = "replied"
	Failed    = "failed"
	TimedOut  = "timed_out"
)

// Event is a single pipeline event.
type Event struct {
	Name       string    `json:"name" msgpack:"name"`
	RequestID  string    `json:"request_id,omitempty" msgpack:"request_id,omitempty"`
	Prompt     string    `json:"prompt,omitempty" msgpack:"prompt,omitempty"`
	Reply      string    `json:"reply,omitempty" msgpack:"reply,omitempty"`
	Error      string    `json:"error,omitempty" msgpack:"error,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty" msgpack:"duration_ms,omitempty"`
	At         time.Time `json:"at" msgpack:"at"`
}

// Publisher receives events. Implementations must not block the caller for
// long and must not panic.
type Publisher interface {
	Publish(Event)
}

// Nop drops events.
type Nop struct{}

func (Nop) Publish(Event) {}

// Multi publishes to every non-nil publisher in order.
type Multi []Publisher

func (m Multi) Publish(e Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(e)
		}
	}
}

// MemoryPublisher stores events in-memory for tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) Publish(e Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// Names returns the names of recorded events in order.
func (p *MemoryPublisher) Names() []string {
	evts := p.Events()
	out := make([]string, len(evts))
	for i, e := range evts {
		out[i] = e.Name
	}
	return out
}
