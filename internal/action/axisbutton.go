package action

import (
	"sync"

	"github.com/kvance/remapd/internal/input"
)

// AxisButton turns a continuous axis into button edges: pressing when
// the value enters [Lower, Upper] and releasing when it leaves. When a
// single sample jumps clean across the region the press is still
// registered and a release is forced on a follow-up pass, so bound
// actions always see a matched press/release pair.
type AxisButton struct {
	Lower float64
	Upper float64

	mu      sync.Mutex
	pressed bool
	forced  bool
	primed  bool
	last    float64
}

// NewAxisButton builds an axis button over the given region. The
// bounds are normalized so the order of the arguments does not matter.
func NewAxisButton(lower, upper float64) *AxisButton {
	if lower > upper {
		lower, upper = upper, lower
	}
	return &AxisButton{Lower: lower, Upper: upper}
}

// Process implements Functor. The return value reports whether an
// edge occurred; the pipeline value's Pressed field is rewritten to
// the button state either way.
func (b *AxisButton) Process(_ input.Event, val *Value) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	v := val.Current
	in := v >= b.Lower && v <= b.Upper
	crossed := b.primed && !in &&
		((b.last < b.Lower && v > b.Upper) || (b.last > b.Upper && v < b.Lower))
	b.primed = true
	b.last = v

	switch {
	case in && !b.pressed:
		b.pressed = true
		val.Pressed = true
		return true, nil
	case !in && b.pressed:
		b.pressed = false
		val.Pressed = false
		return true, nil
	case crossed:
		// The sample skipped the region entirely. Register the press
		// now and flag the matching release for a forced second pass.
		b.pressed = true
		b.forced = true
		val.Pressed = true
		return true, nil
	default:
		val.Pressed = b.pressed
		return false, nil
	}
}

// ConsumeForced reports whether a forced release is pending and clears
// the flag.
func (b *AxisButton) ConsumeForced() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	f := b.forced
	b.forced = false
	return f
}

// ForceRelease drops the button state and rewrites the value for the
// forced second pass.
func (b *AxisButton) ForceRelease(val *Value) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pressed = false
	val.Pressed = false
}

// Pressed reports the current button state.
func (b *AxisButton) Pressed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pressed
}
