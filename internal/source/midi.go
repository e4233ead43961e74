package source

import (
	"fmt"
	"strings"

	"github.com/kvance/remapd/internal/event"
	"github.com/kvance/remapd/internal/input"
)

const sysexStatus = 0xF0

// Midi converts decoded MIDI messages into canonical events. The
// transport (one listener goroutine per input port) calls
// HandleMessage with the raw message bytes.
type Midi struct {
	bus *event.Bus
}

// NewMidi creates a MIDI source publishing on the bus.
func NewMidi(bus *event.Bus) *Midi {
	return &Midi{bus: bus}
}

// MidiMessageKey derives the stable registry key for a message: the
// port name plus the bytes that identify the control, excluding the
// value byte so two positions of the same fader map to the same key.
// System-exclusive messages key on their full payload.
func MidiMessageKey(port string, data []byte) string {
	if len(data) == 0 {
		return port
	}
	if data[0] == sysexStatus {
		parts := make([]string, len(data))
		for i, b := range data {
			parts[i] = fmt.Sprintf("%d", b)
		}
		return port + " " + strings.Join(parts, " ")
	}
	if len(data) == 1 {
		return fmt.Sprintf("%s %d", port, data[0])
	}
	return fmt.Sprintf("%s %d %d", port, data[0], data[1])
}

// HandleMessage publishes one decoded message. The last data byte is
// treated as the control value and normalized from the 7-bit MIDI
// range onto [-1, 1].
func (m *Midi) HandleMessage(port string, data []byte) {
	if len(data) == 0 {
		return
	}

	var raw float64
	if len(data) >= 3 && data[0] != sysexStatus {
		raw = float64(data[2])
	} else if len(data) == 2 {
		raw = float64(data[1])
	}

	m.bus.Publish(event.TopicMIDI, input.Event{
		Type:     input.TypeMidi,
		Device:   input.DeviceMidi,
		Ident:    MidiMessageKey(port, data),
		Value:    clamp(raw/127*2 - 1),
		RawValue: raw,
		Pressed:  raw > 0,
	})
}
