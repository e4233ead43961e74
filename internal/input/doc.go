// Package input defines the canonical representation of an input
// occurrence: a single Event captured from a physical or virtual
// device (keyboard, joystick, mouse, MIDI or OSC surface) together
// with the identity rules used to look events up in callback
// registries.
//
// Two events from the same input source compare equal regardless of
// their momentary value or pressed state; identity covers only the
// device, the event type and the type-dependent identifier. This is
// deliberate: registries are keyed by the input source, not by the
// state it happens to be in.
package input
