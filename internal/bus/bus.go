// Package bus implements the Event Bus component (§4.1): a typed
// publish-subscribe dispatcher keyed by string event name, with a "*"
// wildcard subscription facet.
package bus

import (
	"log/slog"
	"sync"
)

// Handler receives an emitted event's data.
type Handler func(data any)

// Unsubscribe removes the handler it was returned for.
type Unsubscribe func()

// wildcard is the sentinel name consulted for every non-wildcard emission.
// It is a subscription facet, not an event name: emitting under the
// literal name "*" does not re-trigger wildcard handlers (§9 design note).
const wildcard = "*"

type subscription struct {
	id      uint64
	handler Handler
	once    bool
}

// Bus is a synchronous, in-process, best-effort event dispatcher. Delivery
// happens on the emitting goroutine; handler panics are recovered so one
// misbehaving handler cannot block delivery to the rest.
type Bus struct {
	mu       sync.Mutex
	handlers map[string][]*subscription
	nextID   uint64
	logger   *slog.Logger
}

// New creates an empty Bus. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		handlers: make(map[string][]*subscription),
		logger:   logger,
	}
}

// On registers handler for event, or for every event if event is "*".
func (b *Bus) On(event string, handler Handler) Unsubscribe {
	return b.subscribe(event, handler, false)
}

// Once registers handler for event; it is removed after its first delivery.
func (b *Bus) Once(event string, handler Handler) Unsubscribe {
	return b.subscribe(event, handler, true)
}

func (b *Bus) subscribe(event string, handler Handler, once bool) Unsubscribe {
	b.mu.Lock()
	b.nextID++
	sub := &subscription{id: b.nextID, handler: handler, once: once}
	b.handlers[event] = append(b.handlers[event], sub)
	b.mu.Unlock()

	return func() {
		b.off(event, sub.id)
	}
}

// Off removes nothing: it is a no-op kept for parity with the
// component's named operation (§4.1). A handler is removed only by
// calling the Unsubscribe returned by On/Once.
func (b *Bus) Off(event string, handler Handler) {
	// Handler equality by pointer identity is not meaningful for func
	// values in Go, so Off here only supports removing via the returned
	// Unsubscribe closure. Retained as a documented no-op otherwise.
}

func (b *Bus) off(event string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.handlers[event]
	for i, s := range subs {
		if s.id == id {
			b.handlers[event] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
}

// Emit delivers data synchronously to specific-name handlers first, then
// to wildcard handlers, in per-name FIFO registration order. No ordering
// guarantee holds across distinct event names.
func (b *Bus) Emit(event string, data any) {
	b.dispatch(event, data)
	if event != wildcard {
		b.dispatch(wildcard, data)
	}
}

func (b *Bus) dispatch(event string, data any) {
	b.mu.Lock()
	subs := append([]*subscription(nil), b.handlers[event]...)
	b.mu.Unlock()

	var onceIDs []uint64
	for _, sub := range subs {
		b.invoke(sub.handler, data)
		if sub.once {
			onceIDs = append(onceIDs, sub.id)
		}
	}
	for _, id := range onceIDs {
		b.off(event, id)
	}
}

func (b *Bus) invoke(handler Handler, data any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("event bus handler panicked", "panic", r)
		}
	}()
	handler(data)
}
