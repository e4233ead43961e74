package dispatch

import (
	"sync"
	"testing"
	"time"

	"github.com/kvance/remapd/internal/action"
	"github.com/kvance/remapd/internal/gate"
	"github.com/kvance/remapd/internal/input"
	"github.com/kvance/remapd/internal/mode"
)

type gateRecorder struct {
	mu     sync.Mutex
	events []input.Event
}

func (r *gateRecorder) item() *mode.InputItem {
	c := action.NewContainer("gate binding")
	c.AddSet(action.ActionSet{action.SimpleAction("record", action.FuncFunctor(
		func(ev input.Event, _ *action.Value) (bool, error) {
			r.mu.Lock()
			r.events = append(r.events, ev)
			r.mu.Unlock()
			return true, nil
		}))})
	return &mode.InputItem{Enabled: true, Containers: []*action.Container{c}}
}

func (r *gateRecorder) snapshot() []input.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]input.Event, len(r.events))
	copy(out, r.events)
	return out
}

func axisEvent(v float64) input.Event {
	return input.Event{Type: input.TypeJoystickAxis, Device: "stick", Ident: 0, Value: v}
}

func TestGateHandlerInRangeValues(t *testing.T) {
	data := gate.NewData()
	rec := &gateRecorder{}
	data.DefaultRange().SetItem(gate.InRange, rec.item())

	h := NewGateHandler(data, NewPulser(), nil)
	h.HandleSample(axisEvent(-0.5))
	h.HandleSample(axisEvent(0.5))

	events := rec.snapshot()
	if len(events) != 2 {
		t.Fatalf("recorded %d events, want 2", len(events))
	}
	if events[0].Value != -0.5 || events[1].Value != 0.5 {
		t.Errorf("values = %v, %v; want -0.5, 0.5", events[0].Value, events[1].Value)
	}
}

func TestGateHandlerCrossingPulse(t *testing.T) {
	data := gate.NewData()
	mid, err := data.RegisterGate(0)
	if err != nil {
		t.Fatalf("RegisterGate: %v", err)
	}
	mid.Delay = 10 * time.Millisecond
	rec := &gateRecorder{}
	mid.SetItem(gate.OnCross, rec.item())

	pulser := NewPulser()
	defer pulser.Close()
	h := NewGateHandler(data, pulser, nil)

	h.HandleSample(axisEvent(-0.5))
	h.HandleSample(axisEvent(0.5))

	events := rec.snapshot()
	if len(events) != 1 || !events[0].Pressed {
		t.Fatalf("crossing should emit an immediate press, got %v", events)
	}

	deadline := time.After(time.Second)
	for {
		if evs := rec.snapshot(); len(evs) == 2 {
			if evs[1].Pressed {
				t.Error("second pulse event should be the release")
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("pulse release never fired")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestGateHandlerStickyRangePress(t *testing.T) {
	data := gate.NewData()
	if _, err := data.RegisterGate(0); err != nil {
		t.Fatalf("RegisterGate: %v", err)
	}
	ranges := data.UsedRanges()
	upper := ranges[1]
	rec := &gateRecorder{}
	upper.SetItem(gate.EnterRange, rec.item())

	h := NewGateHandler(data, NewPulser(), nil)
	h.HandleSample(axisEvent(-0.5)) // baseline in lower range
	h.HandleSample(axisEvent(0.5))  // enter upper range
	h.HandleSample(axisEvent(-0.5)) // leave it again

	events := rec.snapshot()
	if len(events) != 2 {
		t.Fatalf("recorded %d events, want press and release", len(events))
	}
	if !events[0].Pressed || events[1].Pressed {
		t.Errorf("press states = %v/%v, want true/false", events[0].Pressed, events[1].Pressed)
	}
}

func TestGateHandlerHonorsPause(t *testing.T) {
	data := gate.NewData()
	rec := &gateRecorder{}
	data.DefaultRange().SetItem(gate.InRange, rec.item())

	ctx := NewRuntimeContext("Default")
	h := NewGateHandler(data, NewPulser(), nil)
	h.SetContext(ctx)

	ctx.SetProcessing(false)
	h.HandleSample(axisEvent(-0.5))
	h.HandleSample(axisEvent(0.5))
	if len(rec.snapshot()) != 0 {
		t.Fatal("paused runtime must not drive gated bindings")
	}

	ctx.SetProcessing(true)
	h.HandleSample(axisEvent(0.2))
	if len(rec.snapshot()) != 1 {
		t.Error("resumed runtime should drive gated bindings again")
	}
}

func TestGateHandlerHonorsItemMode(t *testing.T) {
	data := gate.NewData()
	rec := &gateRecorder{}
	it := rec.item()
	it.Mode = "Combat"
	data.DefaultRange().SetItem(gate.InRange, it)

	ctx := NewRuntimeContext("Default")
	h := NewGateHandler(data, NewPulser(), nil)
	h.SetContext(ctx)

	h.HandleSample(axisEvent(0.5))
	if len(rec.snapshot()) != 0 {
		t.Fatal("binding for another mode must not run")
	}

	ctx.setMode("Combat")
	h.HandleSample(axisEvent(-0.5))
	if len(rec.snapshot()) != 1 {
		t.Error("binding should run once its mode is active")
	}
}

func TestGateHandlerDisabledItem(t *testing.T) {
	data := gate.NewData()
	rec := &gateRecorder{}
	it := rec.item()
	it.Enabled = false
	data.DefaultRange().SetItem(gate.InRange, it)

	h := NewGateHandler(data, NewPulser(), nil)
	h.HandleSample(axisEvent(0.1))
	if len(rec.snapshot()) != 0 {
		t.Error("disabled item must not run")
	}
}
