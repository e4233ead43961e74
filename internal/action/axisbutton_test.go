package action

import (
	"testing"

	"github.com/kvance/remapd/internal/input"
)

func process(t *testing.T, b *AxisButton, v float64) (edge bool, val *Value) {
	t.Helper()
	val = &Value{Current: v}
	edge, err := b.Process(input.Event{Type: input.TypeJoystickAxis}, val)
	if err != nil {
		t.Fatalf("Process(%v) error: %v", v, err)
	}
	return edge, val
}

func TestAxisButtonEdges(t *testing.T) {
	b := NewAxisButton(0.3, 0.7)

	if edge, val := process(t, b, 0.0); edge || val.Pressed {
		t.Error("value below region should not press")
	}
	if edge, val := process(t, b, 0.5); !edge || !val.Pressed {
		t.Error("entering region should be a press edge")
	}
	if edge, val := process(t, b, 0.6); edge || !val.Pressed {
		t.Error("staying inside region should not be an edge")
	}
	if edge, val := process(t, b, 0.9); !edge || val.Pressed {
		t.Error("leaving region should be a release edge")
	}
	if b.ConsumeForced() {
		t.Error("ordinary edges should not flag a forced release")
	}
}

func TestAxisButtonNormalizesBounds(t *testing.T) {
	b := NewAxisButton(0.7, 0.3)
	if b.Lower != 0.3 || b.Upper != 0.7 {
		t.Errorf("bounds = [%v, %v], want [0.3, 0.7]", b.Lower, b.Upper)
	}
}

func TestAxisButtonForcedCrossing(t *testing.T) {
	b := NewAxisButton(0.3, 0.7)

	process(t, b, 0.0)
	edge, val := process(t, b, 1.0)
	if !edge || !val.Pressed {
		t.Fatal("jump across the region should register a press edge")
	}
	if !b.ConsumeForced() {
		t.Fatal("crossing should flag a forced release")
	}
	if b.ConsumeForced() {
		t.Error("forced flag should clear after consumption")
	}

	b.ForceRelease(val)
	if val.Pressed || b.Pressed() {
		t.Error("forced release should drop the button state")
	}
}

func TestAxisButtonFirstSampleNeverForces(t *testing.T) {
	b := NewAxisButton(-0.2, 0.2)
	if _, val := process(t, b, 1.0); val.Pressed {
		t.Error("first sample outside region should not press")
	}
	if b.ConsumeForced() {
		t.Error("first sample has no previous value to cross from")
	}
}
