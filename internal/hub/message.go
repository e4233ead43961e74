package hub

import (
	"time"
)

// Message is one server-to-client status update.
type Message struct {
	Type      string `json:"type"` // "hello", "mode", "trigger", "heartbeat"
	Timestamp int64  `json:"timestamp"`

	// Mode fields, set for "hello" and "mode".
	Mode     string `json:"mode,omitempty"`
	Previous string `json:"previous,omitempty"`

	// Trigger fields, set for "trigger".
	Trigger string  `json:"trigger,omitempty"`
	Value   float64 `json:"value,omitempty"`
}

func newHello(mode string) Message {
	return Message{
		Type:      "hello",
		Timestamp: time.Now().UnixMilli(),
		Mode:      mode,
	}
}

func newModeMessage(from, to string) Message {
	return Message{
		Type:      "mode",
		Timestamp: time.Now().UnixMilli(),
		Mode:      to,
		Previous:  from,
	}
}

func newTriggerMessage(kind string, value float64) Message {
	return Message{
		Type:      "trigger",
		Timestamp: time.Now().UnixMilli(),
		Trigger:   kind,
		Value:     value,
	}
}

func newHeartbeat() Message {
	return Message{
		Type:      "heartbeat",
		Timestamp: time.Now().UnixMilli(),
	}
}

// Command is a client-to-server control request.
type Command struct {
	Type string `json:"type"` // "pause", "resume", "change_mode"
	Mode string `json:"mode,omitempty"`
}
