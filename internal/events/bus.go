// Package events defines the job runner's event types and the bus that
// carries them from the runner to subscribers (a CLI renderer, a log
// writer, the job manager's own bridging goroutine).
package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event is the interface every event type satisfies.
type Event interface {
	EventType() string
	Timestamp() time.Time
	JobID() string
}

// BaseEvent provides the fields common to every event.
type BaseEvent struct {
	Type string    `json:"type"`
	Time time.Time `json:"timestamp"`
	Job  string    `json:"job_id"`
}

func (e BaseEvent) EventType() string    { return e.Type }
func (e BaseEvent) Timestamp() time.Time { return e.Time }
func (e BaseEvent) JobID() string        { return e.Job }

// NewBaseEvent creates a base event stamped with the current time.
func NewBaseEvent(eventType, jobID string) BaseEvent {
	return BaseEvent{Type: eventType, Time: time.Now(), Job: jobID}
}

// Subscriber represents an event subscription.
type Subscriber struct {
	ch       chan Event
	types    map[string]bool // empty means all types
	priority bool
}

// Bus provides pub/sub with backpressure control. Regular subscribers use
// a drop-oldest ring buffer so a slow consumer cannot stall the runner;
// priority subscribers block, which the runner relies on to guarantee
// terminal event delivery (JobFinished is always published with
// PublishPriority).
type Bus struct {
	mu           sync.RWMutex
	subscribers  []*Subscriber
	prioritySubs []*Subscriber
	bufferSize   int
	droppedCount int64
	closed       bool
}

// New creates a new Bus with the given per-subscriber buffer size.
func New(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Bus{bufferSize: bufferSize}
}

// Subscribe creates a subscription for the given event types. No types
// means subscribe to everything.
func (b *Bus) Subscribe(types ...string) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	sub := &Subscriber{ch: make(chan Event, b.bufferSize), types: toSet(types)}
	b.subscribers = append(b.subscribers, sub)
	return sub.ch
}

// SubscribePriority creates a subscription that never drops events. Used
// by the job manager for terminal-event delivery guarantees.
func (b *Bus) SubscribePriority(types ...string) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	sub := &Subscriber{ch: make(chan Event, 50), types: toSet(types), priority: true}
	b.prioritySubs = append(b.prioritySubs, sub)
	return sub.ch
}

func toSet(types []string) map[string]bool {
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return set
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers = removeSubscriber(b.subscribers, ch)
	b.prioritySubs = removeSubscriber(b.prioritySubs, ch)
}

func removeSubscriber(subs []*Subscriber, ch <-chan Event) []*Subscriber {
	result := make([]*Subscriber, 0, len(subs))
	for _, sub := range subs {
		if sub.ch != ch {
			result = append(result, sub)
		} else {
			close(sub.ch)
		}
	}
	return result
}

// Publish sends an event to all matching regular subscribers. A full
// subscriber buffer drops its oldest entry rather than blocking the
// publisher.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	eventType := event.EventType()
	for _, sub := range b.subscribers {
		if !matches(sub, eventType) {
			continue
		}
		b.deliverWithRingBuffer(sub, event)
	}
}

func matches(sub *Subscriber, eventType string) bool {
	return len(sub.types) == 0 || sub.types[eventType]
}

func (b *Bus) deliverWithRingBuffer(sub *Subscriber, event Event) {
	select {
	case sub.ch <- event:
	default:
		select {
		case <-sub.ch:
			atomic.AddInt64(&b.droppedCount, 1)
		default:
		}
		select {
		case sub.ch <- event:
		default:
			atomic.AddInt64(&b.droppedCount, 1)
		}
	}
}

// PublishPriority sends an event to regular subscribers (ring buffer) and
// to priority subscribers (blocking, never dropped).
func (b *Bus) PublishPriority(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	eventType := event.EventType()
	for _, sub := range b.subscribers {
		if matches(sub, eventType) {
			b.deliverWithRingBuffer(sub, event)
		}
	}
	for _, sub := range b.prioritySubs {
		if matches(sub, eventType) {
			sub.ch <- event
		}
	}
}

// DroppedCount returns the number of events dropped from regular
// subscriber buffers since the bus was created.
func (b *Bus) DroppedCount() int64 {
	return atomic.LoadInt64(&b.droppedCount)
}

// Close closes the bus and every subscriber channel. Publishing after
// Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, sub := range b.subscribers {
		close(sub.ch)
	}
	for _, sub := range b.prioritySubs {
		close(sub.ch)
	}
	b.subscribers = nil
	b.prioritySubs = nil
}
