package orchestrator

import (
	"testing"
	"time"
)

func TestEventBusStampsEvents(t *testing.T) {
	bus := NewEventBus()
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	bus.now = func() time.Time { return fixed }

	ch := make(chan Event, 4)
	bus.Subscribe(ch)
	bus.Publish(Event{Type: EventDomainTransition, DomainID: 1})
	bus.Publish(Event{Type: EventDomainFailed, DomainID: 2, Seq: 99})

	first, second := <-ch, <-ch
	if first.Seq != 1 || second.Seq != 2 {
		t.Errorf("seq = %d, %d, want 1, 2", first.Seq, second.Seq)
	}
	if !first.Time.Equal(fixed) || first.Time.Location() != time.UTC {
		t.Errorf("time = %v, want %v in UTC", first.Time, fixed)
	}
}

func TestEventBusSkipsFullSubscriber(t *testing.T) {
	bus := NewEventBus()
	full := make(chan Event)
	ok := make(chan Event, 1)
	bus.Subscribe(full)
	bus.Subscribe(ok)

	done := make(chan struct{})
	go func() {
		bus.Publish(Event{Type: EventDocumentExported, DomainID: 1})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	if ev := <-ok; ev.DomainID != 1 {
		t.Errorf("event = %+v", ev)
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	a := make(chan Event, 1)
	b := make(chan Event, 1)
	bus.Subscribe(a)
	bus.Subscribe(b)
	bus.Unsubscribe(a)

	bus.Publish(Event{Type: EventDomainTransition, DomainID: 3})
	if len(a) != 0 {
		t.Error("unsubscribed channel received an event")
	}
	if len(b) != 1 {
		t.Error("remaining subscriber missed the event")
	}
}

func TestNilEventBus(t *testing.T) {
	var bus *EventBus
	bus.Publish(Event{Type: EventDomainTransition})
}
