package input

import "fmt"

// Type identifies the kind of input that produced an event.
type Type uint8

const (
	// TypeNone represents no input type.
	TypeNone Type = iota

	// TypeKeyboard is a raw keyboard scan event.
	TypeKeyboard

	// TypeKeyboardLatched is a resolved multi-key combination.
	TypeKeyboardLatched

	// TypeJoystickAxis is a continuous axis input.
	TypeJoystickAxis

	// TypeJoystickButton is a momentary joystick button.
	TypeJoystickButton

	// TypeJoystickHat is a joystick hat (POV) input.
	TypeJoystickHat

	// TypeMouse is a mouse button input.
	TypeMouse

	// TypeMidi is a decoded MIDI message.
	TypeMidi

	// TypeOSC is a decoded Open Sound Control message.
	TypeOSC

	// TypeModeControl is a synthetic mode enter/exit transition.
	TypeModeControl
)

// String returns a human-readable name for the input type.
func (t Type) String() string {
	switch t {
	case TypeNone:
		return "None"
	case TypeKeyboard:
		return "Keyboard"
	case TypeKeyboardLatched:
		return "KeyboardLatched"
	case TypeJoystickAxis:
		return "JoystickAxis"
	case TypeJoystickButton:
		return "JoystickButton"
	case TypeJoystickHat:
		return "JoystickHat"
	case TypeMouse:
		return "Mouse"
	case TypeMidi:
		return "Midi"
	case TypeOSC:
		return "OSC"
	case TypeModeControl:
		return "ModeControl"
	default:
		return fmt.Sprintf("Type(%d)", t)
	}
}

// IsAxis returns true for input types carrying a continuous value.
func (t Type) IsAxis() bool {
	return t == TypeJoystickAxis
}

// IsKeyboard returns true for input types resolved through the key
// latch machinery (keyboard and mouse buttons share the scan space).
func (t Type) IsKeyboard() bool {
	return t == TypeKeyboard || t == TypeKeyboardLatched || t == TypeMouse
}

// DeviceID is an opaque identifier for an input device. Hardware
// devices use their driver GUID string; the keyboard, MIDI ports and
// OSC endpoints use well-known synthetic identifiers.
type DeviceID string

// Well-known device identifiers for inputs that are not enumerated
// through the joystick driver layer.
const (
	DeviceKeyboard DeviceID = "keyboard"
	DeviceMidi     DeviceID = "midi"
	DeviceOSC      DeviceID = "osc"
	DeviceMode     DeviceID = "mode-control"
)

// Ident is the type-dependent identifier of an event source: a
// key.ScanPair for keyboard and mouse events, an int axis/button/hat
// index for joystick events, a message-key string for MIDI and OSC
// events, or a Transition for mode-control events. The dynamic type
// must be comparable; it participates in registry map keys.
type Ident any

// Transition marks a synthetic mode enter or exit event.
type Transition string

// Mode transition identifiers.
const (
	TransitionEnter Transition = "enter"
	TransitionExit  Transition = "exit"
)

// Event is a single input occurrence. Events are value types; sources
// construct them and hand them to the dispatcher, which never mutates
// shared state through them.
type Event struct {
	// Type is the kind of input.
	Type Type

	// Device identifies the originating device.
	Device DeviceID

	// Ident identifies the input on the device.
	Ident Ident

	// Value is the calibrated value for axis inputs, in [-1, 1].
	Value float64

	// RawValue is the uncalibrated driver value.
	RawValue float64

	// Pressed reports the state of button-like inputs.
	Pressed bool

	// Mode optionally overrides the mode the event is evaluated
	// against. Empty means the current runtime mode.
	Mode string

	// Snapshot carries the keyboard state at capture time for
	// keyboard and mouse events. It is not part of event identity.
	Snapshot Snapshot
}

// Snapshot is the set of scan pairs held down at the moment an event
// was captured. The concrete key type lives in input/key; the
// dispatcher only ever passes it through to the latch resolver, so
// the event model treats it as opaque.
type Snapshot interface {
	// Held reports whether the given scan code / extended pair is
	// currently down, trying the flipped extended bit as a fallback.
	Held(code uint16, extended bool) bool
}

// Key is the registry lookup identity of an event: the triple that
// survives value changes. Two events from the same source have equal
// keys.
type Key struct {
	Device DeviceID
	Type   Type
	Ident  Ident
}

// LookupKey returns the registry identity of the event.
func (e Event) LookupKey() Key {
	return Key{Device: e.Device, Type: e.Type, Ident: e.Ident}
}

// SameSource reports whether two events originate from the same
// input source, ignoring momentary value and pressed state.
func (e Event) SameSource(other Event) bool {
	return e.LookupKey() == other.LookupKey()
}

// String renders the event for logs.
func (e Event) String() string {
	switch {
	case e.Type.IsAxis():
		return fmt.Sprintf("%s %s/%v raw=%v value=%v", e.Type, e.Device, e.Ident, e.RawValue, e.Value)
	case e.Type == TypeModeControl:
		return fmt.Sprintf("%s %v mode=%s pressed=%v", e.Type, e.Ident, e.Mode, e.Pressed)
	default:
		return fmt.Sprintf("%s %s/%v pressed=%v", e.Type, e.Device, e.Ident, e.Pressed)
	}
}
