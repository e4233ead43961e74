package hub

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kvance/remapd/internal/dispatch"
	"github.com/kvance/remapd/internal/event"
)

type fakeController struct {
	mu     sync.Mutex
	paused bool
	modes  []string
}

func (f *fakeController) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = true
}

func (f *fakeController) Resume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = false
}

func (f *fakeController) ChangeMode(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modes = append(f.modes, name)
	return nil
}

func (f *fakeController) changedTo() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.modes))
	copy(out, f.modes)
	return out
}

func dialTestServer(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(s.handleWebSocket))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return msg
}

func TestServerSendsHello(t *testing.T) {
	s := NewServer(New(nil), nil, func() string { return "Default" }, "", nil)
	conn := dialTestServer(t, s)

	msg := readMessage(t, conn)
	if msg.Type != "hello" || msg.Mode != "Default" {
		t.Fatalf("hello = %+v", msg)
	}
}

func TestServerBroadcastsModeChanges(t *testing.T) {
	bus := event.NewBus()
	s := NewServer(New(nil), nil, func() string { return "Default" }, "", nil)
	s.Bind(bus)

	conn := dialTestServer(t, s)
	readMessage(t, conn) // hello

	// The client registers asynchronously with the dial handshake.
	waitForClients(t, s.hub, 1)

	bus.Publish(event.TopicModeChanged, dispatch.ModeChange{From: "Default", To: "Combat"})

	msg := readMessage(t, conn)
	if msg.Type != "mode" || msg.Mode != "Combat" || msg.Previous != "Default" {
		t.Fatalf("mode message = %+v", msg)
	}
}

func TestServerHandlesCommands(t *testing.T) {
	ctrl := &fakeController{}
	s := NewServer(New(nil), ctrl, func() string { return "Default" }, "", nil)
	conn := dialTestServer(t, s)
	readMessage(t, conn) // hello

	cmd, _ := json.Marshal(Command{Type: "change_mode", Mode: "Combat"})
	if err := conn.WriteMessage(websocket.TextMessage, cmd); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if modes := ctrl.changedTo(); len(modes) == 1 && modes[0] == "Combat" {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("controller never saw the mode change, got %v", ctrl.changedTo())
}

func TestHubDropsStalledClients(t *testing.T) {
	h := New(nil)
	c := newClient(h, nil)
	h.register(c)

	// Fill the send buffer without a write pump draining it.
	for i := 0; i <= clientSendBuffer; i++ {
		h.Broadcast([]byte("x"))
	}

	if n := h.ClientCount(); n != 0 {
		t.Fatalf("stalled client still registered, count = %d", n)
	}
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount() >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("hub has %d clients, want %d", h.ClientCount(), n)
}
