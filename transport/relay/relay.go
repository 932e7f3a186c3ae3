// Package relay connects a player, or an observer, to the switchboard hub
// over a websocket.
//
// The player identifies itself with a "RadioPad/" User-Agent so the hub
// treats it as the partition's authority, and announces where its station
// list lives. On every connect it publishes station_playing so the hub
// adopts the live state straight away.
package relay

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radiopad/radiopad/protocol"
	"github.com/radiopad/radiopad/radio/router"
	"github.com/radiopad/radiopad/transport/link"
)

const (
	ReconnectDelay = 5 * time.Second

	handshakeTimeout = 10 * time.Second
	writeWait        = 10 * time.Second
)

// Dialer opens websocket connections to the switchboard.
type Dialer struct {
	URL    string
	Header http.Header
	WS     *websocket.Dialer
}

// NewDialer returns a Dialer that presents userAgent and, when set, the
// stations URL header.
func NewDialer(url, userAgent, stationsURL string) *Dialer {
	h := http.Header{}
	h.Set("User-Agent", userAgent)
	if stationsURL != "" {
		h.Set(protocol.HeaderStationsURL, stationsURL)
	}
	return &Dialer{
		URL:    url,
		Header: h,
		WS: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

func (d *Dialer) Dial(ctx context.Context) (link.Conn, error) {
	conn, resp, err := d.WS.DialContext(ctx, d.URL, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", d.URL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", d.URL, err)
	}
	return &wsConn{conn: conn}, nil
}

// wsConn presents websocket messages as a byte stream. Every message is
// terminated so frames without a trailing newline still end a line.
type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadChunk() ([]byte, error) {
	_, msg, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if len(msg) == 0 || msg[len(msg)-1] != protocol.Separator {
		msg = append(msg, protocol.Separator)
	}
	return msg, nil
}

func (c *wsConn) Write(p []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, p)
}

// Close sends a normal close frame and drops the connection. Errors from
// an already dead peer are ignored.
func (c *wsConn) Close() error {
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}

// NewSession builds the switchboard session around r and binds it. When
// the router drives a player, each connect publishes station_playing.
func NewSession(r *router.Router, d link.Dialer, log *zap.Logger) *link.Session {
	s := link.New(link.Options{
		Name:           "switchboard",
		Dialer:         d,
		OnLine:         func(ctx context.Context, line []byte) { r.HandleLine(ctx, line) },
		ReconnectDelay: ReconnectDelay,
		OnConnect: func(ctx context.Context) {
			r.Exec(ctx, func(context.Context) {
				if r.HasFacade() {
					r.Broadcast(protocol.EventStationPlaying, nil)
				}
			})
		},
		Log: log,
	})
	r.Bind(s)
	return s
}
