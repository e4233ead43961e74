package dispatch

import (
	"log/slog"
	"sync"
	"time"

	"github.com/kvance/remapd/internal/action/graph"
	"github.com/kvance/remapd/internal/event"
	"github.com/kvance/remapd/internal/gate"
	"github.com/kvance/remapd/internal/input"
	"github.com/kvance/remapd/internal/mode"
)

// GateHandler connects one gated axis to the runtime: every axis
// sample is diffed by the gate engine and the resulting triggers are
// executed through the bound items' graphs. Sustained conditions
// (range enter, in-range values) run as plain press/value events;
// gate crossings run as momentary pulses whose release fires after
// the gate's delay without blocking the delivering goroutine.
type GateHandler struct {
	data   *gate.Data
	pulser *Pulser
	log    *slog.Logger
	bus    *event.Bus
	ctx    *RuntimeContext

	mu     sync.Mutex
	graphs map[*mode.InputItem][]*graph.Graph
}

// NewGateHandler wires a gate data set to the pulse scheduler.
func NewGateHandler(data *gate.Data, pulser *Pulser, log *slog.Logger) *GateHandler {
	if log == nil {
		log = slog.Default()
	}
	return &GateHandler{
		data:   data,
		pulser: pulser,
		log:    log,
		graphs: make(map[*mode.InputItem][]*graph.Graph),
	}
}

// Data exposes the underlying gate engine for configuration.
func (h *GateHandler) Data() *gate.Data { return h.data }

// SetBus mirrors produced triggers onto the bus for observers.
func (h *GateHandler) SetBus(b *event.Bus) { h.bus = b }

// SetContext binds the handler to the runtime context so gated
// execution respects the pause flag and the active mode. Without a
// context the handler runs unconditionally.
func (h *GateHandler) SetContext(ctx *RuntimeContext) { h.ctx = ctx }

// HandleSample processes one axis event through the gate engine and
// runs the produced triggers.
func (h *GateHandler) HandleSample(ev input.Event) {
	for _, t := range h.data.ProcessTriggers(ev.Value) {
		if h.bus != nil {
			h.bus.Publish(event.TopicTrigger, t)
		}
		h.runTrigger(ev, t)
	}
}

func (h *GateHandler) runTrigger(ev input.Event, t gate.Trigger) {
	item := t.Item()
	if item == nil || !item.Enabled || !item.HasContainers() {
		return
	}
	if h.ctx != nil {
		// Gated bindings are never permanent; a paused profile must
		// not drive outputs from axis movement.
		if !h.ctx.Processing() {
			return
		}
		if item.Mode != "" && h.ctx.Mode() != item.Mode {
			return
		}
	}
	graphs := h.graphsFor(item)
	if graphs == nil {
		return
	}

	out := ev
	out.Value = t.Value

	switch t.Kind {
	case gate.TriggerValueInRange, gate.TriggerFixedValue, gate.TriggerValueOutOfRange:
		h.runAll(graphs, out)

	case gate.TriggerRangeEnter:
		out.Pressed = true
		h.runAll(graphs, out)

	case gate.TriggerRangeExitRelease:
		// Releases the sticky press installed by the matching
		// range-enter trigger.
		out.Pressed = false
		h.runAll(graphs, out)

	case gate.TriggerRangeExit:
		h.pulse(graphs, out, gate.DefaultDelay)

	case gate.TriggerGateCrossed, gate.TriggerCrossIncrease, gate.TriggerCrossDecrease:
		h.pulse(graphs, out, t.Gate.Delay)
	}
}

// pulse emits a press now and schedules the matching release.
func (h *GateHandler) pulse(graphs []*graph.Graph, ev input.Event, delay time.Duration) {
	ev.Pressed = true
	h.runAll(graphs, ev)

	release := ev
	release.Pressed = false
	h.pulser.After(delay, func() {
		h.runAll(graphs, release)
	})
}

func (h *GateHandler) runAll(graphs []*graph.Graph, ev input.Event) {
	for _, g := range graphs {
		g.Process(ev)
	}
}

// graphsFor compiles and caches the item's containers. A container
// that fails to compile is logged once and skipped.
func (h *GateHandler) graphsFor(item *mode.InputItem) []*graph.Graph {
	h.mu.Lock()
	defer h.mu.Unlock()
	if gs, ok := h.graphs[item]; ok {
		return gs
	}
	var gs []*graph.Graph
	for _, c := range item.Containers {
		g, err := graph.Build(c, graph.WithLogger(h.log))
		if err != nil {
			h.log.Error("gate binding failed to compile",
				"container", c.Description,
				"error", err)
			continue
		}
		gs = append(gs, g)
	}
	h.graphs[item] = gs
	return gs
}

// Reset drops the graph cache and the gate engine's sample memory.
func (h *GateHandler) Reset() {
	h.data.Reset()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.graphs = make(map[*mode.InputItem][]*graph.Graph)
}
