package service

import (
	"sync"
	"sync/atomic"
)

// subscriberBuffer is the number of events a subscriber may fall behind by
// before further events are dropped for it.
const subscriberBuffer = 16

// Event is a change notification published on an EventBus.
type Event struct {
	Resource string // e.g. "map", "apartments"
	Action   string // e.g. "state", "popup", "reloaded"
	ID       string // resource ID, such as the map container
	Payload  any
}

// EventBus fans events out to subscribers. Publishing never blocks; events
// for a full subscriber are dropped and counted.
type EventBus struct {
	mu      sync.RWMutex
	subs    map[chan Event]map[string]bool // nil filter receives everything
	closed  bool
	dropped atomic.Int64
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan Event]map[string]bool)}
}

// Publish delivers e to every subscriber interested in e.Resource.
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch, filter := range b.subs {
		if filter != nil && !filter[e.Resource] {
			continue
		}
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribe returns a buffered channel receiving events for the named
// resources, or for all resources when none are named. On a closed bus the
// channel is returned already closed.
func (b *EventBus) Subscribe(resources ...string) chan Event {
	ch := make(chan Event, subscriberBuffer)
	var filter map[string]bool
	if len(resources) > 0 {
		filter = make(map[string]bool, len(resources))
		for _, r := range resources {
			filter[r] = true
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[ch] = filter
	return ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown channels
// are ignored so callers may unsubscribe twice.
func (b *EventBus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	_, ok := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Close closes every subscriber channel. Later publishes are no-ops.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
	}
	b.subs = map[chan Event]map[string]bool{}
}

// Dropped reports how many deliveries were skipped for slow subscribers.
func (b *EventBus) Dropped() int64 {
	return b.dropped.Load()
}
