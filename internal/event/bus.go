// Package event provides the bus connecting input sources to the
// dispatcher and runtime observers. Delivery is synchronous on the
// publishing goroutine; handler panics are contained per handler.
package event

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrNotSubscribed is returned when unsubscribing an unknown handle.
var ErrNotSubscribed = errors.New("subscription not registered")

// Topic names one event stream on the bus.
type Topic string

const (
	TopicKeyboard Topic = "input.keyboard"
	TopicJoystick Topic = "input.joystick"
	TopicMouse    Topic = "input.mouse"
	TopicMIDI     Topic = "input.midi"
	TopicOSC      Topic = "input.osc"
	TopicControl  Topic = "input.control"

	TopicModeChanged  Topic = "runtime.mode-changed"
	TopicTrigger      Topic = "runtime.trigger"
	TopicDeviceChange Topic = "runtime.device-change"
	TopicHeartbeat    Topic = "runtime.heartbeat"
)

// Handler receives a published payload. Handlers run on the
// publishing goroutine and must be safe to call from any source.
type Handler func(payload any)

// Subscription identifies one registered handler.
type Subscription struct {
	topic Topic
	id    uint64
}

// Topic reports the stream the subscription listens on.
func (s Subscription) Topic() Topic { return s.topic }

// Stats is a snapshot of bus counters.
type Stats struct {
	Published uint64
	Delivered uint64
	Panics    uint64
}

// Bus is a read-mostly topic registry. Lookups take a read lock so
// concurrent sources never serialize on each other; mutation only
// happens in the rare configuration window.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Topic]map[uint64]Handler
	nextID atomic.Uint64

	published atomic.Uint64
	delivered atomic.Uint64
	panics    atomic.Uint64

	log *slog.Logger
}

// Option configures a bus.
type Option func(*Bus)

// WithLogger routes handler panics to the given logger.
func WithLogger(log *slog.Logger) Option {
	return func(b *Bus) { b.log = log }
}

// NewBus creates an empty bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		subs: make(map[Topic]map[uint64]Handler),
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic Topic, h Handler) Subscription {
	id := b.nextID.Add(1)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uint64]Handler)
	}
	b.subs[topic][id] = h
	return Subscription{topic: topic, id: id}
}

// Unsubscribe removes a handler.
func (b *Bus) Unsubscribe(sub Subscription) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	handlers, ok := b.subs[sub.topic]
	if !ok {
		return ErrNotSubscribed
	}
	if _, ok := handlers[sub.id]; !ok {
		return ErrNotSubscribed
	}
	delete(handlers, sub.id)
	return nil
}

// Publish delivers the payload to every handler of the topic, on the
// calling goroutine, in unspecified order. A panicking handler is
// logged and does not stop its siblings.
func (b *Bus) Publish(topic Topic, payload any) {
	b.published.Add(1)

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[topic]))
	for _, h := range b.subs[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(topic, h, payload)
	}
}

func (b *Bus) deliver(topic Topic, h Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.panics.Add(1)
			b.log.Error("event handler panicked",
				"topic", string(topic),
				"panic", fmt.Sprint(r))
		}
	}()
	h(payload)
	b.delivered.Add(1)
}

// SubscriberCount reports registered handlers for a topic.
func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Stats returns a counter snapshot.
func (b *Bus) Stats() Stats {
	return Stats{
		Published: b.published.Load(),
		Delivered: b.delivered.Load(),
		Panics:    b.panics.Load(),
	}
}

// Clear removes every subscription. Used when a profile run stops so
// no handler leaks into the next run.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[Topic]map[uint64]Handler)
}
