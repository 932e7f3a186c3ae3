package websocket

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radiopad/radiopad/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8 * 1024

	sendBufferSize = 256
)

// Close reasons sent with CloseInvalidFramePayloadData (1007).
const (
	ReasonMalformed    = `Invalid message format. Expected JSON with "event" and "data" fields.`
	ReasonMissingEvent = `Invalid message format. Missing "event" field.`
	ReasonUnknownEvent = "Unknown event in message: "
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Identity is what a connection declared during the handshake.
type Identity struct {
	Partition     string
	Authoritative bool
	StationsURL   string
	UserAgent     string
}

// Client is one websocket connection to the hub.
type Client struct {
	id       string
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	identity Identity
	log      *zap.Logger
}

// queue hands msg to the write pump without blocking.
func (c *Client) queue(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// closeWith sends a close frame. The read pump then exits and unregisters
// the client.
func (c *Client) closeWith(code int, reason string) {
	c.log.Warn("closing connection", zap.Int("code", code), zap.String("reason", reason))
	msg := websocket.FormatCloseMessage(code, reason)
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		c.log.Debug("write close frame", zap.Error(err))
	}
}

// validate decodes one line and checks the event against the relay
// protocol. It returns a close reason for anything the hub rejects.
func validate(line []byte) (protocol.Envelope, string) {
	env, err := protocol.Decode(line)
	if err != nil {
		var de *protocol.DecodeError
		if errors.As(err, &de) && de.Reason == protocol.ReasonMissingEvent {
			return env, ReasonMissingEvent
		}
		return env, ReasonMalformed
	}
	switch env.Event {
	case protocol.EventStationPlaying, protocol.EventStationRequest:
		return env, ""
	}
	return env, ReasonUnknownEvent + env.Event
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Info("websocket error", zap.Error(err))
			}
			return
		}

		for _, line := range bytes.Split(message, []byte{protocol.Separator}) {
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			env, reason := validate(line)
			if reason != "" {
				c.closeWith(websocket.CloseInvalidFramePayloadData, reason)
				return
			}
			select {
			case c.hub.inbound <- inbound{client: c, env: env}:
			case <-c.hub.done:
				return
			}
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection.
// Every message goes out in its own frame, newline terminated.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Debug("write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
