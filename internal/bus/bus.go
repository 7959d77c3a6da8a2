package bus

import (
	"log/slog"
	"sync"
)

// Bus is a synchronous in-process publish/subscribe fan-out. Handlers run on
// the publisher's goroutine in subscription order; a panicking handler is
// isolated so it can neither stall later handlers nor abort the publisher.
type Bus struct {
	mu       sync.RWMutex
	order    []string
	handlers map[string]Handler
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{handlers: make(map[string]Handler)}
}

// Subscribe registers a handler under id and returns its unsubscribe func.
// Re-subscribing an existing id replaces the handler but keeps its position
// in the delivery order.
func (b *Bus) Subscribe(id string, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.handlers[id]; !exists {
		b.order = append(b.order, id)
	}
	b.handlers[id] = handler
	return func() { b.Unsubscribe(id) }
}

// Unsubscribe removes the handler registered under id.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.handlers[id]; !exists {
		return
	}
	delete(b.handlers, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Publish delivers the event to every subscriber in subscription order.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	ids := make([]string, len(b.order))
	copy(ids, b.order)
	handlers := make([]Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, b.handlers[id])
	}
	b.mu.RUnlock()

	for i, h := range handlers {
		if h == nil {
			continue
		}
		b.deliver(ids[i], h, event)
	}
}

func (b *Bus) deliver(id string, h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("event subscriber panicked", "subscriber", id, "event", event.Type, "panic", r)
		}
	}()
	h(event)
}
