package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/kvance/remapd/internal/dispatch"
	"github.com/kvance/remapd/internal/event"
	"github.com/kvance/remapd/internal/gate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Status surface is bound to loopback.
		return true
	},
}

// Server serves the WebSocket status endpoint and forwards bus
// activity to connected clients.
type Server struct {
	hub        *Hub
	ctrl       Controller
	mode       func() string
	log        *slog.Logger
	addr       string
	httpServer *http.Server
	subs       []event.Subscription
	bus        *event.Bus
}

// NewServer creates a status server. mode reports the active mode for
// the hello message sent to new clients; ctrl may be nil to make the
// surface read-only.
func NewServer(h *Hub, ctrl Controller, mode func() string, addr string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{hub: h, ctrl: ctrl, mode: mode, log: log, addr: addr}
}

// Bind subscribes the server to runtime activity on the bus.
func (s *Server) Bind(bus *event.Bus) {
	s.bus = bus
	s.subs = append(s.subs,
		bus.Subscribe(event.TopicModeChanged, func(payload any) {
			mc, ok := payload.(dispatch.ModeChange)
			if !ok {
				return
			}
			s.broadcast(newModeMessage(mc.From, mc.To))
		}),
		bus.Subscribe(event.TopicTrigger, func(payload any) {
			t, ok := payload.(gate.Trigger)
			if !ok {
				return
			}
			s.broadcast(newTriggerMessage(t.Kind.String(), t.Value))
		}),
		bus.Subscribe(event.TopicHeartbeat, func(any) {
			s.broadcast(newHeartbeat())
		}),
	)
}

func (s *Server) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.log.Error("status message marshal failed", "error", err)
		return
	}
	s.hub.Broadcast(data)
}

// ListenAndServe blocks serving the status endpoint.
func (s *Server) ListenAndServe() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/status", s.handleStatus)

	s.httpServer = &http.Server{Addr: s.addr, Handler: mux}
	s.log.Info("status server listening", "addr", s.addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the HTTP listener, unsubscribes from the bus and
// disconnects all clients.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.bus != nil {
		for _, sub := range s.subs {
			s.bus.Unsubscribe(sub)
		}
		s.subs = nil
	}
	s.hub.Close()
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := newClient(s.hub, conn)
	s.hub.register(client)

	if data, err := json.Marshal(newHello(s.mode())); err == nil {
		select {
		case client.send <- data:
		default:
		}
	}

	go client.writePump()
	go client.readPump(s.ctrl)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"mode":    s.mode(),
		"clients": s.hub.ClientCount(),
	})
}
