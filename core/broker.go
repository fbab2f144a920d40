package core

import (
	"sync"

	"ytpulse/models"
)

// EventBroker fans alert events out to live subscribers (the websocket
// feed). Slow subscribers drop events rather than stall the alert sweep.
type EventBroker struct {
	mu   sync.Mutex
	subs map[chan models.AlertEvent]struct{}
}

func NewEventBroker() *EventBroker {
	return &EventBroker{subs: make(map[chan models.AlertEvent]struct{})}
}

// Subscribe registers a new listener. The returned channel is buffered;
// call the cancel func to detach.
func (b *EventBroker) Subscribe() (<-chan models.AlertEvent, func()) {
	ch := make(chan models.AlertEvent, 16)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber with room in its buffer.
func (b *EventBroker) Publish(event models.AlertEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
