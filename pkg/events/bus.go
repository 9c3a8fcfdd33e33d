package events

import (
	"log/slog"
	"sync"
	"time"
)

// subscriberBuffer is the per-subscriber channel capacity. A subscriber
// that falls more than this far behind starts losing events.
const subscriberBuffer = 64

// Bus is an in-process publish/subscribe fanout over named channels.
// All methods are safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[int64]chan Event
	nextID int64
	closed bool
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string]map[int64]chan Event),
	}
}

// Subscribe registers a new subscriber on a channel and returns its
// subscription ID plus the event stream. The stream is closed on
// Unsubscribe or Bus Close. Subscribing to a closed bus returns an
// already-closed stream.
func (b *Bus) Subscribe(channel string) (int64, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan Event)
		close(ch)
		return 0, ch
	}

	b.nextID++
	id := b.nextID
	ch := make(chan Event, subscriberBuffer)
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[int64]chan Event)
	}
	b.subs[channel][id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its stream. Unknown
// channel/ID pairs are ignored.
func (b *Bus) Unsubscribe(channel string, id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subs[channel]
	if !ok {
		return
	}
	ch, ok := subs[id]
	if !ok {
		return
	}
	delete(subs, id)
	if len(subs) == 0 {
		delete(b.subs, channel)
	}
	close(ch)
}

// Publish delivers an event to every subscriber of the channel without
// blocking. Events for full subscriber buffers are dropped with a warning.
// A zero Timestamp is stamped with the current time. Publishing to a
// channel with no subscribers or to a closed bus is a no-op.
func (b *Bus) Publish(channel string, evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	// Sends are non-blocking, so holding the read lock for the whole
	// fanout is fine and keeps Unsubscribe's close from racing a send.
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for id, ch := range b.subs[channel] {
		select {
		case ch <- evt:
		default:
			slog.Warn("Dropping event for lagging subscriber",
				"channel", channel, "type", evt.Type, "subscriber_id", id)
		}
	}
}

// Close shuts the bus down: every subscriber stream is closed and further
// publishes are discarded. Safe to call more than once.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for channel, subs := range b.subs {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
		}
		delete(b.subs, channel)
	}
}

// SubscriberCount returns the number of subscribers on a channel.
func (b *Bus) SubscriberCount(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[channel])
}
