package hub

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	clientSendBuffer = 64
	writeWait        = 10 * time.Second
)

// Controller is the slice of the runtime that status clients may
// drive remotely.
type Controller interface {
	Pause()
	Resume()
	ChangeMode(name string) error
}

// Client represents one connected WebSocket client.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	log  *slog.Logger
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
		log:  h.log,
	}
}

// writePump drains the send channel onto the connection.
func (c *Client) writePump() {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readPump handles control commands until the client disconnects.
func (c *Client) readPump(ctrl Controller) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.log.Debug("bad status command", "error", err)
			continue
		}
		if ctrl == nil {
			continue
		}

		switch cmd.Type {
		case "pause":
			ctrl.Pause()
		case "resume":
			ctrl.Resume()
		case "change_mode":
			if err := ctrl.ChangeMode(cmd.Mode); err != nil {
				c.log.Warn("remote mode change rejected", "mode", cmd.Mode, "error", err)
			}
		default:
			c.log.Debug("unknown status command", "type", cmd.Type)
		}
	}
}
