// Package dispatch implements the top-level runtime: the callback
// registries, the event-to-callback matching rules, and the
// mode-change protocol. Callbacks execute on the goroutine that
// delivered the event; registries are read-mostly and guarded for
// the rare configuration window.
package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kvance/remapd/internal/event"
	"github.com/kvance/remapd/internal/input"
	"github.com/kvance/remapd/internal/input/key"
	"github.com/kvance/remapd/internal/mode"
)

// ErrUnknownMode is returned when a mode change targets a mode with
// no registered callbacks anywhere.
var ErrUnknownMode = errors.New("mode has no registered callbacks")

// modeChangeDelay separates the synthetic press and release of a
// mode-control transition event.
const modeChangeDelay = 250 * time.Millisecond

// Callback is invoked with the matched event, on the delivering
// goroutine.
type Callback func(input.Event)

type entry struct {
	cb Callback

	// permanent callbacks fire even while processing is paused.
	permanent bool
}

// ModeChange is published on the bus after a successful transition.
type ModeChange struct {
	From string
	To   string
}

// Dispatcher routes events to callbacks through per-kind registries:
// regular events by lookup key, keyboard and mouse through the latch
// resolver, MIDI and OSC by message key.
type Dispatcher struct {
	ctx    *RuntimeContext
	pulser *Pulser
	bus    *event.Bus
	log    *slog.Logger

	mu sync.RWMutex

	// callbacks holds regular events: mode name to event identity.
	callbacks map[string]map[input.Key][]entry

	// latchedEvents fans a raw scan pair out to the latch candidates
	// registered with that primary pair; latchedCallbacks resolves
	// the matched candidate's canonical ID to its entries.
	latchedEvents    map[string]map[key.ScanPair][]key.Key
	latchedCallbacks map[string]map[string][]entry

	// midiCallbacks and oscCallbacks key on derived message keys.
	midiCallbacks map[string]map[string][]entry
	oscCallbacks  map[string]map[string][]entry

	// items is the flattened input-item table used for the disabled
	// check before any callback fires.
	items map[string]map[input.Key]*mode.InputItem

	processed atomic.Uint64
	dropped   atomic.Uint64
	misses    atomic.Uint64
}

// Option configures a dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher's logger.
func WithLogger(log *slog.Logger) Option {
	return func(d *Dispatcher) { d.log = log }
}

// WithBus publishes mode changes and trigger activity to the given
// bus.
func WithBus(b *event.Bus) Option {
	return func(d *Dispatcher) { d.bus = b }
}

// New creates a dispatcher bound to a runtime context.
func New(ctx *RuntimeContext, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		ctx:    ctx,
		pulser: NewPulser(),
		log:    slog.Default(),
	}
	d.resetRegistriesLocked()
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Context returns the runtime context the dispatcher operates on.
func (d *Dispatcher) Context() *RuntimeContext { return d.ctx }

// Pulser returns the shared delayed-event scheduler.
func (d *Dispatcher) Pulser() *Pulser { return d.pulser }

func (d *Dispatcher) resetRegistriesLocked() {
	d.callbacks = make(map[string]map[input.Key][]entry)
	d.latchedEvents = make(map[string]map[key.ScanPair][]key.Key)
	d.latchedCallbacks = make(map[string]map[string][]entry)
	d.midiCallbacks = make(map[string]map[string][]entry)
	d.oscCallbacks = make(map[string]map[string][]entry)
	d.items = make(map[string]map[input.Key]*mode.InputItem)
}

// AddCallback registers a regular callback for an event identity in
// one mode.
func (d *Dispatcher) AddCallback(modeName string, k input.Key, cb Callback, permanent bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.callbacks[modeName] == nil {
		d.callbacks[modeName] = make(map[input.Key][]entry)
	}
	d.callbacks[modeName][k] = append(d.callbacks[modeName][k], entry{cb: cb, permanent: permanent})
}

// AddLatchedCallback registers a latched-key callback. The key is
// indexed under every member pair, primary and companions alike: the
// raw events completing a combination arrive in any order, so the
// candidate scan must find it no matter which member lands last.
func (d *Dispatcher) AddLatchedCallback(modeName string, lk key.Key, cb Callback, permanent bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.latchedEvents[modeName] == nil {
		d.latchedEvents[modeName] = make(map[key.ScanPair][]key.Key)
		d.latchedCallbacks[modeName] = make(map[string][]entry)
	}
	id := lk.ID()
	if _, known := d.latchedCallbacks[modeName][id]; !known {
		for _, p := range lk.AllPairs() {
			d.latchedEvents[modeName][p] = append(d.latchedEvents[modeName][p], lk)
		}
	}
	d.latchedCallbacks[modeName][id] = append(d.latchedCallbacks[modeName][id], entry{cb: cb, permanent: permanent})
}

// AddMidiCallback registers a callback for a derived MIDI message key.
func (d *Dispatcher) AddMidiCallback(modeName, messageKey string, cb Callback, permanent bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.midiCallbacks[modeName] == nil {
		d.midiCallbacks[modeName] = make(map[string][]entry)
	}
	d.midiCallbacks[modeName][messageKey] = append(d.midiCallbacks[modeName][messageKey], entry{cb: cb, permanent: permanent})
}

// AddOSCCallback registers a callback for a derived OSC message key.
func (d *Dispatcher) AddOSCCallback(modeName, messageKey string, cb Callback, permanent bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.oscCallbacks[modeName] == nil {
		d.oscCallbacks[modeName] = make(map[string][]entry)
	}
	d.oscCallbacks[modeName][messageKey] = append(d.oscCallbacks[modeName][messageKey], entry{cb: cb, permanent: permanent})
}

// SetItem records the flattened input item backing an event identity,
// enabling the disabled-input drop.
func (d *Dispatcher) SetItem(modeName string, it *mode.InputItem) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.items[modeName] == nil {
		d.items[modeName] = make(map[input.Key]*mode.InputItem)
	}
	d.items[modeName][it.LookupKey()] = it
}

// Pause suspends non-permanent callback execution for subsequent
// events.
func (d *Dispatcher) Pause() { d.ctx.SetProcessing(false) }

// Resume restores full dispatch for subsequent events.
func (d *Dispatcher) Resume() { d.ctx.SetProcessing(true) }

// ProcessEvent matches the event against the active (or overridden)
// mode's registries and invokes the callbacks on the calling
// goroutine. Lookup misses are not errors; disabled inputs drop
// silently.
func (d *Dispatcher) ProcessEvent(ev input.Event) {
	d.processed.Add(1)

	modeName := ev.Mode
	if modeName == "" {
		modeName = d.ctx.Mode()
	}

	d.mu.RLock()
	if items := d.items[modeName]; items != nil {
		if it := items[ev.LookupKey()]; it != nil && !it.Enabled {
			d.mu.RUnlock()
			d.dropped.Add(1)
			return
		}
	}

	var entries []entry
	switch {
	case ev.Type == input.TypeKeyboard || ev.Type == input.TypeMouse:
		entries = d.resolveLatchedLocked(modeName, ev)
	case ev.Type == input.TypeMidi:
		entries = d.messageEntriesLocked(d.midiCallbacks, modeName, ev)
	case ev.Type == input.TypeOSC:
		entries = d.messageEntriesLocked(d.oscCallbacks, modeName, ev)
	default:
		entries = d.callbacks[modeName][ev.LookupKey()]
	}
	d.mu.RUnlock()

	if len(entries) == 0 {
		d.misses.Add(1)
		d.log.Debug("no callbacks for event", "mode", modeName, "event", ev.String())
		return
	}
	d.invoke(entries, ev)
}

// resolveLatchedLocked scans the latch candidates registered under
// the event's scan pair against the carried snapshot. First full
// match wins; overlapping latch definitions never double-fire for one
// raw event.
func (d *Dispatcher) resolveLatchedLocked(modeName string, ev input.Event) []entry {
	pair, ok := ev.Ident.(key.ScanPair)
	if !ok {
		return nil
	}
	byPair := d.latchedEvents[modeName]
	if byPair == nil {
		return nil
	}
	candidates := byPair[pair]
	if len(candidates) == 0 {
		candidates = byPair[pair.Flip()]
	}
	if len(candidates) == 0 {
		return nil
	}

	// Releases fire the matched binding without requiring the full
	// latch set to still be down.
	if !ev.Pressed {
		var out []entry
		for _, c := range candidates {
			out = append(out, d.latchedCallbacks[modeName][c.ID()]...)
			if len(out) > 0 {
				break
			}
		}
		return out
	}

	state, ok := ev.Snapshot.(key.State)
	if !ok {
		return nil
	}
	matched, ok := key.ResolveFirst(state, candidates)
	if !ok {
		return nil
	}
	return d.latchedCallbacks[modeName][matched.ID()]
}

func (d *Dispatcher) messageEntriesLocked(reg map[string]map[string][]entry, modeName string, ev input.Event) []entry {
	msgKey, ok := ev.Ident.(string)
	if !ok {
		return nil
	}
	byKey := reg[modeName]
	if byKey == nil {
		return nil
	}
	return byKey[msgKey]
}

// invoke runs the entries under the pause policy. A panicking
// callback is logged and never prevents its siblings from running.
func (d *Dispatcher) invoke(entries []entry, ev input.Event) {
	processing := d.ctx.Processing()
	for _, e := range entries {
		if !processing && !e.permanent {
			continue
		}
		d.invokeOne(e, ev)
	}
}

func (d *Dispatcher) invokeOne(e entry, ev input.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("callback failed",
				"event", ev.String(),
				"panic", fmt.Sprint(r))
		}
	}()
	e.cb(ev)
}

// ChangeMode performs the mode-change protocol: a synthetic exit
// transition against the old mode, the cursor swap (persisting the
// new mode), and an enter transition against the new mode. Each
// transition is a press followed by a delayed release so actions can
// bind to mode entry and exit like physical input. A target mode with
// no callbacks anywhere is rejected and the prior mode retained.
func (d *Dispatcher) ChangeMode(newMode string) error {
	if !d.modeKnown(newMode) {
		d.log.Warn("mode change rejected", "mode", newMode)
		return fmt.Errorf("%w: %s", ErrUnknownMode, newMode)
	}

	old := d.ctx.Mode()
	if old == newMode {
		return nil
	}

	d.sendModeControl(old, input.TransitionExit)
	d.ctx.setMode(newMode)
	d.sendModeControl(newMode, input.TransitionEnter)

	d.log.Info("mode changed", "from", old, "to", newMode)
	if d.bus != nil {
		d.bus.Publish(event.TopicModeChanged, ModeChange{From: old, To: newMode})
	}
	return nil
}

func (d *Dispatcher) sendModeControl(modeName string, tr input.Transition) {
	ev := input.Event{
		Type:    input.TypeModeControl,
		Device:  input.DeviceMode,
		Ident:   tr,
		Pressed: true,
		Mode:    modeName,
	}
	d.ProcessEvent(ev)

	release := ev
	release.Pressed = false
	d.pulser.After(modeChangeDelay, func() {
		d.ProcessEvent(release)
	})
}

// modeKnown reports whether any registry carries the mode.
func (d *Dispatcher) modeKnown(modeName string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if _, ok := d.callbacks[modeName]; ok {
		return true
	}
	if _, ok := d.latchedCallbacks[modeName]; ok {
		return true
	}
	if _, ok := d.midiCallbacks[modeName]; ok {
		return true
	}
	if _, ok := d.oscCallbacks[modeName]; ok {
		return true
	}
	_, ok := d.items[modeName]
	return ok
}

// Reset clears every registry and cancels outstanding delayed events
// so a subsequent run starts clean.
func (d *Dispatcher) Reset() {
	d.pulser.Close()
	d.pulser = NewPulser()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetRegistriesLocked()
}

// Stats is a snapshot of dispatch counters.
type Stats struct {
	Processed uint64
	Dropped   uint64
	Misses    uint64
}

// Stats returns the dispatch counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Processed: d.processed.Load(),
		Dropped:   d.dropped.Load(),
		Misses:    d.misses.Load(),
	}
}
