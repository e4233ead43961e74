package source

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"strings"

	"github.com/kvance/remapd/internal/event"
	"github.com/kvance/remapd/internal/input"
)

// OSC listens for Open Sound Control messages on a UDP port and
// publishes them as canonical events.
type OSC struct {
	bus  *event.Bus
	log  *slog.Logger
	addr string
}

// NewOSC creates an OSC source bound to the given UDP address.
func NewOSC(bus *event.Bus, addr string, log *slog.Logger) *OSC {
	if log == nil {
		log = slog.Default()
	}
	return &OSC{bus: bus, log: log, addr: addr}
}

// Run listens until the context is cancelled. Malformed packets are
// logged at debug level and skipped.
func (o *OSC) Run(ctx context.Context) error {
	udpAddr, err := net.ResolveUDPAddr("udp", o.addr)
	if err != nil {
		return fmt.Errorf("resolve osc address: %w", err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("listen osc: %w", err)
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, 4096)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("read osc: %w", err)
		}
		o.handlePacket(buf[:n])
	}
}

func (o *OSC) handlePacket(packet []byte) {
	msg, err := parseOSC(packet)
	if err != nil {
		o.log.Debug("osc packet skipped", "error", err)
		return
	}
	o.Publish(msg)
}

// Publish emits one parsed message onto the bus. Exposed so tests and
// alternative transports can inject messages without a socket.
func (o *OSC) Publish(msg OSCMessage) {
	value, raw := msg.value()
	o.bus.Publish(event.TopicOSC, input.Event{
		Type:     input.TypeOSC,
		Device:   input.DeviceOSC,
		Ident:    msg.Key(),
		Value:    value,
		RawValue: raw,
		Pressed:  raw != 0,
	})
}

// OSCMessage is one decoded message: an address pattern, the type tag
// string (without the leading comma), and the argument values.
type OSCMessage struct {
	Address string
	Tags    string
	Args    []any
}

// Key derives the stable registry key: the address alone for
// argument-less messages, otherwise the address plus the argument
// signature. Two semantically identical messages always produce the
// same key regardless of their argument values.
func (m OSCMessage) Key() string {
	if m.Tags == "" {
		return m.Address
	}
	return m.Address + " ," + m.Tags
}

// value extracts the first numeric argument, normalized to [-1, 1]
// assuming the common unit-interval controller convention.
func (m OSCMessage) value() (normalized, raw float64) {
	for _, a := range m.Args {
		switch v := a.(type) {
		case float64:
			return clamp(v*2 - 1), v
		case int32:
			return clamp(float64(v)*2 - 1), float64(v)
		}
	}
	return 0, 0
}

// parseOSC decodes a single OSC 1.0 message: padded address, padded
// ",..." type tags, then big-endian arguments. Bundles are not
// supported; control surfaces send plain messages.
func parseOSC(packet []byte) (OSCMessage, error) {
	address, rest, err := readPaddedString(packet)
	if err != nil {
		return OSCMessage{}, fmt.Errorf("address: %w", err)
	}
	if !strings.HasPrefix(address, "/") {
		return OSCMessage{}, fmt.Errorf("address %q does not start with /", address)
	}

	msg := OSCMessage{Address: address}
	if len(rest) == 0 {
		return msg, nil
	}

	tags, rest, err := readPaddedString(rest)
	if err != nil {
		return OSCMessage{}, fmt.Errorf("type tags: %w", err)
	}
	if !strings.HasPrefix(tags, ",") {
		return OSCMessage{}, fmt.Errorf("type tags %q do not start with comma", tags)
	}
	msg.Tags = tags[1:]

	for _, tag := range msg.Tags {
		switch tag {
		case 'i':
			if len(rest) < 4 {
				return OSCMessage{}, errors.New("truncated int32 argument")
			}
			msg.Args = append(msg.Args, int32(binary.BigEndian.Uint32(rest[:4])))
			rest = rest[4:]
		case 'f':
			if len(rest) < 4 {
				return OSCMessage{}, errors.New("truncated float32 argument")
			}
			bits := binary.BigEndian.Uint32(rest[:4])
			msg.Args = append(msg.Args, float64(math.Float32frombits(bits)))
			rest = rest[4:]
		case 's':
			s, r, err := readPaddedString(rest)
			if err != nil {
				return OSCMessage{}, fmt.Errorf("string argument: %w", err)
			}
			msg.Args = append(msg.Args, s)
			rest = r
		case 'T':
			msg.Args = append(msg.Args, true)
		case 'F':
			msg.Args = append(msg.Args, false)
		default:
			return OSCMessage{}, fmt.Errorf("unsupported type tag %q", string(tag))
		}
	}
	return msg, nil
}

// readPaddedString reads a NUL-terminated string padded to a 4-byte
// boundary.
func readPaddedString(b []byte) (string, []byte, error) {
	end := -1
	for i, c := range b {
		if c == 0 {
			end = i
			break
		}
	}
	if end < 0 {
		return "", nil, errors.New("unterminated string")
	}
	next := (end/4 + 1) * 4
	if next > len(b) {
		next = len(b)
	}
	return string(b[:end]), b[next:], nil
}
