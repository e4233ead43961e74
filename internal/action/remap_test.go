package action

import (
	"testing"

	"github.com/kvance/remapd/internal/input"
)

type fakeSink struct {
	buttons map[int]bool
	axes    map[int]float64
	hats    map[int]int
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		buttons: make(map[int]bool),
		axes:    make(map[int]float64),
		hats:    make(map[int]int),
	}
}

func (s *fakeSink) SetButton(_, button int, pressed bool) error {
	s.buttons[button] = pressed
	return nil
}

func (s *fakeSink) SetAxis(_, axis int, value float64) error {
	s.axes[axis] = value
	return nil
}

func (s *fakeSink) SetHat(_, hat int, direction int) error {
	s.hats[hat] = direction
	return nil
}

func TestRemapButtonToButton(t *testing.T) {
	sink := newFakeSink()
	act := NewRemapAction(sink, 1, input.TypeJoystickButton, 3)

	f, err := act.Functor()
	if err != nil {
		t.Fatalf("Functor() error: %v", err)
	}

	ev := input.Event{Type: input.TypeJoystickButton}
	if _, err := f.Process(ev, &Value{Pressed: true}); err != nil {
		t.Fatalf("Process press: %v", err)
	}
	if !sink.buttons[3] {
		t.Error("press should set target button")
	}
	if _, err := f.Process(ev, &Value{Pressed: false}); err != nil {
		t.Fatalf("Process release: %v", err)
	}
	if sink.buttons[3] {
		t.Error("release should clear target button")
	}
}

func TestRemapAxisToAxis(t *testing.T) {
	sink := newFakeSink()
	act := NewRemapAction(sink, 1, input.TypeJoystickAxis, 2)

	f, err := act.Functor()
	if err != nil {
		t.Fatalf("Functor() error: %v", err)
	}
	ev := input.Event{Type: input.TypeJoystickAxis}
	if _, err := f.Process(ev, &Value{Current: -0.25}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got := sink.axes[2]; got != -0.25 {
		t.Errorf("axis value = %v, want -0.25", got)
	}
}

func TestRemapButtonToAxis(t *testing.T) {
	sink := newFakeSink()
	act := NewRemapAction(sink, 1, input.TypeJoystickAxis, 1)

	f, err := act.Functor()
	if err != nil {
		t.Fatalf("Functor() error: %v", err)
	}
	ev := input.Event{Type: input.TypeJoystickButton}

	f.Process(ev, &Value{Pressed: true})
	if got := sink.axes[1]; got != 1.0 {
		t.Errorf("pressed button maps to axis %v, want 1.0", got)
	}
	f.Process(ev, &Value{Pressed: false})
	if got := sink.axes[1]; got != -1.0 {
		t.Errorf("released button maps to axis %v, want -1.0", got)
	}
}

func TestRemapNilSink(t *testing.T) {
	act := NewRemapAction(nil, 1, input.TypeJoystickButton, 1)
	if _, err := act.Functor(); err == nil {
		t.Error("nil sink should fail functor construction")
	}
}
