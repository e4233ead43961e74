// Package source contains the input capture front-ends. Each source
// runs its own goroutine and publishes canonical events onto the bus;
// the dispatcher consumes them on whichever goroutine delivered them.
package source

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/kvance/remapd/internal/event"
	"github.com/kvance/remapd/internal/input"
	"github.com/kvance/remapd/internal/input/key"
)

// keyboardQueueSize bounds the buffer between the low-level hook and
// the processor goroutine.
const keyboardQueueSize = 256

type rawKey struct {
	pair    key.ScanPair
	pressed bool
}

// Keyboard decouples the OS-level hook, which must return to the OS
// immediately, from callback execution: Push enqueues without
// blocking and a dedicated processor goroutine drains the queue,
// maintains the held-key state, and publishes events with a state
// snapshot attached.
type Keyboard struct {
	bus   *event.Bus
	log   *slog.Logger
	queue chan rawKey

	mu    sync.Mutex
	state key.State

	dropped atomic.Uint64
}

// NewKeyboard creates a keyboard source publishing on the bus.
func NewKeyboard(bus *event.Bus, log *slog.Logger) *Keyboard {
	if log == nil {
		log = slog.Default()
	}
	return &Keyboard{
		bus:   bus,
		log:   log,
		queue: make(chan rawKey, keyboardQueueSize),
		state: key.NewState(),
	}
}

// Push enqueues one raw key transition. It never blocks; under
// overload the event is dropped and counted.
func (k *Keyboard) Push(pair key.ScanPair, pressed bool) {
	select {
	case k.queue <- rawKey{pair: pair, pressed: pressed}:
	default:
		k.dropped.Add(1)
	}
}

// Dropped reports events lost to queue overflow.
func (k *Keyboard) Dropped() uint64 { return k.dropped.Load() }

// Run drains the queue until the context is cancelled, then finishes
// whatever is still queued before returning so no in-flight press is
// lost.
func (k *Keyboard) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case raw := <-k.queue:
					k.process(raw)
				default:
					return
				}
			}
		case raw := <-k.queue:
			k.process(raw)
		}
	}
}

// process applies the transition to the held-key state and publishes
// the event. OS auto-repeat presses for an already-held key are
// filtered out.
func (k *Keyboard) process(raw rawKey) {
	canonical, _ := key.Translate(raw.pair)

	k.mu.Lock()
	if raw.pressed && k.state.Pressed(canonical) {
		k.mu.Unlock()
		return
	}
	k.state.Set(canonical, raw.pressed)
	snapshot := k.state.Clone()
	k.mu.Unlock()

	typ := input.TypeKeyboard
	devID := input.DeviceKeyboard
	topic := event.TopicKeyboard
	if canonical.Code >= key.MouseScanBase {
		typ = input.TypeMouse
		topic = event.TopicMouse
	}

	k.bus.Publish(topic, input.Event{
		Type:     typ,
		Device:   devID,
		Ident:    canonical,
		Pressed:  raw.pressed,
		Snapshot: snapshot,
	})
}

// Reset clears the held-key state between runs.
func (k *Keyboard) Reset() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.state = key.NewState()
}
