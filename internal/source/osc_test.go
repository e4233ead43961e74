package source

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/kvance/remapd/internal/event"
	"github.com/kvance/remapd/internal/input"
)

// buildOSC assembles a wire-format message for tests.
func buildOSC(address, tags string, args ...[]byte) []byte {
	pad := func(s string) []byte {
		b := append([]byte(s), 0)
		for len(b)%4 != 0 {
			b = append(b, 0)
		}
		return b
	}
	out := pad(address)
	if tags != "" {
		out = append(out, pad(","+tags)...)
	}
	for _, a := range args {
		out = append(out, a...)
	}
	return out
}

func f32(v float32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, math.Float32bits(v))
	return b
}

func i32(v int32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(v))
	return b
}

func TestParseOSC(t *testing.T) {
	msg, err := parseOSC(buildOSC("/fader/1", "f", f32(0.75)))
	if err != nil {
		t.Fatalf("parseOSC: %v", err)
	}
	if msg.Address != "/fader/1" || msg.Tags != "f" {
		t.Fatalf("decoded %+v", msg)
	}
	if len(msg.Args) != 1 || math.Abs(msg.Args[0].(float64)-0.75) > 1e-6 {
		t.Fatalf("args = %v", msg.Args)
	}
}

func TestParseOSCMixedArgs(t *testing.T) {
	data := buildOSC("/multi", "ifs", i32(3), f32(1), buildOSC("hi", ""))
	msg, err := parseOSC(data)
	if err != nil {
		t.Fatalf("parseOSC: %v", err)
	}
	if len(msg.Args) != 3 {
		t.Fatalf("args = %v", msg.Args)
	}
	if msg.Args[0].(int32) != 3 || msg.Args[2].(string) != "hi" {
		t.Fatalf("args = %v", msg.Args)
	}
}

func TestParseOSCRejectsMalformed(t *testing.T) {
	cases := map[string][]byte{
		"empty":           {},
		"no slash":        buildOSC("fader", ""),
		"bad tags":        buildOSC("/x", ""),
		"truncated float": append(buildOSC("/x", "f"), 0, 0),
	}
	// "bad tags" needs a tag string without the leading comma.
	cases["bad tags"] = append(cases["bad tags"], 'f', 0, 0, 0)

	for name, packet := range cases {
		if _, err := parseOSC(packet); err == nil {
			t.Errorf("%s: parseOSC accepted malformed packet", name)
		}
	}
}

func TestOSCMessageKey(t *testing.T) {
	bare := OSCMessage{Address: "/button/3"}
	if got := bare.Key(); got != "/button/3" {
		t.Fatalf("Key() = %q", got)
	}

	a := OSCMessage{Address: "/fader/1", Tags: "f", Args: []any{0.0}}
	b := OSCMessage{Address: "/fader/1", Tags: "f", Args: []any{1.0}}
	if a.Key() != b.Key() {
		t.Fatalf("same control produced different keys: %q vs %q", a.Key(), b.Key())
	}
	if a.Key() == bare.Key() {
		t.Fatal("argument signature must distinguish keys")
	}
}

func TestOSCPublish(t *testing.T) {
	bus := event.NewBus()
	var col collector
	bus.Subscribe(event.TopicOSC, col.handle)

	o := NewOSC(bus, "127.0.0.1:0", nil)
	o.Publish(OSCMessage{Address: "/fader/1", Tags: "f", Args: []any{1.0}})
	o.Publish(OSCMessage{Address: "/fader/1", Tags: "f", Args: []any{0.0}})

	evs := col.snapshot()
	if len(evs) != 2 {
		t.Fatalf("got %d events, want 2", len(evs))
	}
	if evs[0].Type != input.TypeOSC || evs[0].Device != input.DeviceOSC {
		t.Fatalf("wrong identity: %+v", evs[0])
	}
	if math.Abs(evs[0].Value-1) > 1e-9 || !evs[0].Pressed {
		t.Fatalf("full value event = %+v", evs[0])
	}
	if math.Abs(evs[1].Value+1) > 1e-9 || evs[1].Pressed {
		t.Fatalf("zero value event = %+v", evs[1])
	}
}
