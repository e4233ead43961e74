package source

import (
	"sync"

	"github.com/kvance/remapd/internal/event"
	"github.com/kvance/remapd/internal/input"
)

// Normalizer maps a raw driver axis value onto [-1, 1]. The profile's
// calibration entries satisfy this.
type Normalizer interface {
	Normalize(raw float64) float64
}

// Curve reshapes a normalized axis value, e.g. a deadzone or response
// curve. Applied after calibration.
type Curve func(float64) float64

// Deadzone suppresses values within the given distance of center and
// rescales the remainder to keep the full output range.
func Deadzone(width float64) Curve {
	return func(v float64) float64 {
		switch {
		case v > width:
			return (v - width) / (1 - width)
		case v < -width:
			return (v + width) / (1 - width)
		default:
			return 0
		}
	}
}

// Cubic bends the response around center; strength 0 is linear.
func Cubic(strength float64) Curve {
	return func(v float64) float64 {
		return v*(1-strength) + v*v*v*strength
	}
}

type axisKey struct {
	device input.DeviceID
	axis   int
}

// Joystick converts driver callbacks into canonical events. The
// driver layer calls the Handle methods from its own delivery
// goroutine; calibration and curves apply per axis.
type Joystick struct {
	bus *event.Bus

	mu     sync.RWMutex
	norms  map[axisKey]Normalizer
	curves map[axisKey]Curve
}

// NewJoystick creates a joystick source publishing on the bus.
func NewJoystick(bus *event.Bus) *Joystick {
	return &Joystick{
		bus:    bus,
		norms:  make(map[axisKey]Normalizer),
		curves: make(map[axisKey]Curve),
	}
}

// SetCalibration installs the raw-to-normalized mapping for one axis.
func (j *Joystick) SetCalibration(device input.DeviceID, axis int, n Normalizer) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.norms[axisKey{device, axis}] = n
}

// SetCurve installs a response curve for one axis.
func (j *Joystick) SetCurve(device input.DeviceID, axis int, c Curve) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.curves[axisKey{device, axis}] = c
}

// HandleAxis publishes one axis sample. Without a calibration the raw
// value is assumed to span the signed 16-bit driver range.
func (j *Joystick) HandleAxis(device input.DeviceID, axis int, raw float64) {
	j.mu.RLock()
	norm := j.norms[axisKey{device, axis}]
	curve := j.curves[axisKey{device, axis}]
	j.mu.RUnlock()

	var v float64
	if norm != nil {
		v = norm.Normalize(raw)
	} else {
		v = clamp(raw / 32767)
	}
	if curve != nil {
		v = clamp(curve(v))
	}

	j.bus.Publish(event.TopicJoystick, input.Event{
		Type:     input.TypeJoystickAxis,
		Device:   device,
		Ident:    axis,
		Value:    v,
		RawValue: raw,
	})
}

// HandleButton publishes one button transition.
func (j *Joystick) HandleButton(device input.DeviceID, button int, pressed bool) {
	j.bus.Publish(event.TopicJoystick, input.Event{
		Type:    input.TypeJoystickButton,
		Device:  device,
		Ident:   button,
		Pressed: pressed,
	})
}

// HandleHat publishes one hat direction change. Direction follows the
// driver convention: -1 centered, else degrees.
func (j *Joystick) HandleHat(device input.DeviceID, hat int, direction int) {
	j.bus.Publish(event.TopicJoystick, input.Event{
		Type:    input.TypeJoystickHat,
		Device:  device,
		Ident:   hat,
		Value:   float64(direction),
		Pressed: direction >= 0,
	})
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
