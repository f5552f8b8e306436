// Package eventbus is an in-process pub/sub keyed by topic name.
package eventbus

import (
	"sync"
)

// Handler is a function that handles an event
type Handler func(event any)

// EventBus fans events out to the handlers subscribed to their topic.
type EventBus struct {
	handlers map[string][]Handler
	mu       sync.RWMutex
	wg       sync.WaitGroup
}

// New creates a new EventBus
func New() *EventBus {
	return &EventBus{
		handlers: make(map[string][]Handler),
	}
}

// Subscribe registers a handler for topic.
func (e *EventBus) Subscribe(topic string, handler Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.handlers[topic] = append(e.handlers[topic], handler)
}

// SubscribeTyped registers a handler that only receives events of type T.
// Events of other types published on the same topic are skipped; *T is
// dereferenced.
func SubscribeTyped[T any](e *EventBus, topic string, handler func(T)) {
	e.Subscribe(topic, func(event any) {
		switch v := event.(type) {
		case T:
			handler(v)
		case *T:
			if v != nil {
				handler(*v)
			}
		}
	})
}

// Publish delivers event to every handler of topic, each on its own goroutine.
func (e *EventBus) Publish(topic string, event any) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, handler := range e.handlers[topic] {
		e.wg.Add(1)
		go func(h Handler) {
			defer e.wg.Done()
			h(event)
		}(handler)
	}
}

// PublishSync delivers event to every handler of topic in subscription order.
func (e *EventBus) PublishSync(topic string, event any) {
	e.mu.RLock()
	handlers := append([]Handler(nil), e.handlers[topic]...)
	e.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}

// Wait blocks until all asynchronously published events have been handled.
func (e *EventBus) Wait() {
	e.wg.Wait()
}

// HasSubscribers returns true if topic has at least one handler.
func (e *EventBus) HasSubscribers(topic string) bool {
	return e.SubscriberCount(topic) > 0
}

// SubscriberCount returns the number of handlers for topic.
func (e *EventBus) SubscriberCount(topic string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.handlers[topic])
}
