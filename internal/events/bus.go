// Package events provides event management functionality.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Handler is a callback invoked for each delivered event.
// Handlers run synchronously on the emitting goroutine and must not block;
// slow consumers should hand the event off to their own channel.
type Handler func(event *Event)

// subscription pairs a handler with an identity so it can be removed later.
type subscription struct {
	id      uint64
	handler Handler
}

// Bus is an in-process publish/subscribe hub.
// Subscriptions are per event type, with an optional wildcard subscription
// that receives every event regardless of type.
type Bus struct {
	mu        sync.RWMutex
	nextID    uint64
	handlers  map[EventType][]subscription
	wildcards []subscription
	log       zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType][]subscription),
		log:      log.With().Str("service", "event_bus").Logger(),
	}
}

// Subscribe registers a handler for a specific event type. The returned
// function removes the handler again; long-lived subscribers may ignore it.
func (b *Bus) Subscribe(eventType EventType, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[eventType] = append(b.handlers[eventType], subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.handlers[eventType] = removeSubscription(b.handlers[eventType], id)
	}
}

// SubscribeAll registers a wildcard handler that receives every event. The
// returned function removes the handler again.
func (b *Bus) SubscribeAll(handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.wildcards = append(b.wildcards, subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.wildcards = removeSubscription(b.wildcards, id)
	}
}

func removeSubscription(subs []subscription, id uint64) []subscription {
	for i := range subs {
		if subs[i].id == id {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}

// Emit publishes an event to all matching subscribers.
func (b *Bus) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	b.mu.RLock()
	typed := make([]Handler, 0, len(b.handlers[eventType]))
	for _, sub := range b.handlers[eventType] {
		typed = append(typed, sub.handler)
	}
	wild := make([]Handler, 0, len(b.wildcards))
	for _, sub := range b.wildcards {
		wild = append(wild, sub.handler)
	}
	b.mu.RUnlock()

	for _, handler := range typed {
		handler(event)
	}
	for _, handler := range wild {
		handler(event)
	}
}

// SubscriberCount returns the number of handlers registered for a type,
// wildcard handlers included.
func (b *Bus) SubscriberCount(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType]) + len(b.wildcards)
}
