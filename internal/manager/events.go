package manager

import (
	"sync"
	"time"
)

// EventType names a lifecycle transition published on the Bus.
type EventType string

const (
	EventCreated      EventType = "created"
	EventUpdated      EventType = "updated"
	EventDeleted      EventType = "deleted"
	EventConnecting   EventType = "connecting"
	EventConnected    EventType = "connected"
	EventDisconnected EventType = "disconnected"
	EventError        EventType = "error"
	EventExecuted     EventType = "executed"
	EventTested       EventType = "tested"
)

// Event is one lifecycle notification. Err is set only for error events.
type Event struct {
	Type          EventType
	InstanceID    string
	IntegrationID string
	WorkspaceID   string
	Action        string
	Message       string
	Err           error
	At            time.Time
}

// Bus is an in-process publish/subscribe channel for lifecycle events.
// Publishing never blocks: a subscriber that falls behind loses events
// rather than stalling the manager.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a buffered subscriber. The returned cancel function
// removes the subscription and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish fans an event out to all current subscribers.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
