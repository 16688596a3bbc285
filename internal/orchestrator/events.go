package orchestrator

import (
	"sync"
	"time"

	"ecordtopo/internal/domain"
)

// EventType names a lifecycle event.
type EventType string

const (
	EventDomainTransition EventType = "domain_transition"
	EventDomainFailed     EventType = "domain_failed"
	EventDocumentExported EventType = "document_exported"
)

// Event is one lifecycle step of one domain. Seq and Time are stamped by the
// bus on publish; Seq starts at 1 and increases by one per event.
type Event struct {
	Seq      uint64       `json:"seq"`
	Time     time.Time    `json:"time"`
	Type     EventType    `json:"type"`
	DomainID int          `json:"domain"`
	From     domain.State `json:"from,omitempty"`
	To       domain.State `json:"to,omitempty"`
	Phase    string       `json:"phase,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// EventBus fans lifecycle events out to subscriber channels. Sends never
// block: a full subscriber misses the event.
type EventBus struct {
	mu          sync.Mutex
	seq         uint64
	subscribers []chan<- Event
	now         func() time.Time
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{now: time.Now}
}

// Subscribe adds a subscriber to receive events
func (eb *EventBus) Subscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers = append(eb.subscribers, ch)
}

// Unsubscribe removes ch. The channel is not closed.
func (eb *EventBus) Unsubscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for i, sub := range eb.subscribers {
		if sub == ch {
			eb.subscribers = append(eb.subscribers[:i], eb.subscribers[i+1:]...)
			return
		}
	}
}

// Publish stamps event and sends it to every subscriber. A nil bus drops it.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.seq++
	event.Seq = eb.seq
	if eb.now != nil {
		event.Time = eb.now().UTC()
	} else {
		event.Time = time.Now().UTC()
	}
	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
