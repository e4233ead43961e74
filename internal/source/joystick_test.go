package source

import (
	"math"
	"testing"

	"github.com/kvance/remapd/internal/event"
	"github.com/kvance/remapd/internal/input"
)

type spanNorm struct{ min, max float64 }

func (n spanNorm) Normalize(raw float64) float64 {
	return clamp((raw-n.min)/(n.max-n.min)*2 - 1)
}

func TestJoystickAxisDefaultRange(t *testing.T) {
	bus := event.NewBus()
	var col collector
	bus.Subscribe(event.TopicJoystick, col.handle)

	j := NewJoystick(bus)
	j.HandleAxis("joy1", 0, 32767)
	j.HandleAxis("joy1", 0, -32767)
	j.HandleAxis("joy1", 0, 0)

	evs := col.snapshot()
	if len(evs) != 3 {
		t.Fatalf("got %d events, want 3", len(evs))
	}
	want := []float64{1, -1, 0}
	for i, w := range want {
		if math.Abs(evs[i].Value-w) > 1e-9 {
			t.Errorf("event %d: Value = %v, want %v", i, evs[i].Value, w)
		}
	}
	if evs[0].Type != input.TypeJoystickAxis {
		t.Fatalf("Type = %v, want joystick axis", evs[0].Type)
	}
}

func TestJoystickCalibrationApplies(t *testing.T) {
	bus := event.NewBus()
	var col collector
	bus.Subscribe(event.TopicJoystick, col.handle)

	j := NewJoystick(bus)
	j.SetCalibration("joy1", 0, spanNorm{min: 0, max: 1000})
	j.HandleAxis("joy1", 0, 500)

	evs := col.snapshot()
	if len(evs) != 1 || math.Abs(evs[0].Value) > 1e-9 {
		t.Fatalf("calibrated center sample = %+v, want value 0", evs)
	}
	if evs[0].RawValue != 500 {
		t.Fatalf("RawValue = %v, want 500", evs[0].RawValue)
	}
}

func TestDeadzoneCurve(t *testing.T) {
	dz := Deadzone(0.1)
	cases := []struct{ in, want float64 }{
		{0, 0},
		{0.05, 0},
		{-0.05, 0},
		{0.1, 0},
		{1, 1},
		{-1, -1},
		{0.55, 0.5},
	}
	for _, tc := range cases {
		if got := dz(tc.in); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("Deadzone(0.1)(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestCubicCurve(t *testing.T) {
	c := Cubic(1)
	if got := c(0.5); math.Abs(got-0.125) > 1e-9 {
		t.Fatalf("Cubic(1)(0.5) = %v, want 0.125", got)
	}
	linear := Cubic(0)
	if got := linear(0.5); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("Cubic(0)(0.5) = %v, want 0.5", got)
	}
}

func TestJoystickCurveAfterCalibration(t *testing.T) {
	bus := event.NewBus()
	var col collector
	bus.Subscribe(event.TopicJoystick, col.handle)

	j := NewJoystick(bus)
	j.SetCurve("joy1", 1, Deadzone(0.5))
	j.HandleAxis("joy1", 1, 32767/4) // normalizes to 0.25, inside the deadzone

	evs := col.snapshot()
	if len(evs) != 1 || evs[0].Value != 0 {
		t.Fatalf("deadzone not applied: %+v", evs)
	}
}

func TestJoystickHatPressed(t *testing.T) {
	bus := event.NewBus()
	var col collector
	bus.Subscribe(event.TopicJoystick, col.handle)

	j := NewJoystick(bus)
	j.HandleHat("joy1", 0, 90)
	j.HandleHat("joy1", 0, -1)

	evs := col.snapshot()
	if !evs[0].Pressed || evs[1].Pressed {
		t.Fatalf("hat pressed flags wrong: %+v", evs)
	}
	if evs[0].Value != 90 {
		t.Fatalf("hat direction = %v, want 90", evs[0].Value)
	}
}
