package websocket

import (
	"context"
	"errors"
	"net/http"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radiopad/radiopad/protocol"
)

// ErrHubStopped is returned once Run has exited.
var ErrHubStopped = errors.New("hub stopped")

type inbound struct {
	client *Client
	env    protocol.Envelope
}

// Hub maintains the partitions of connected clients and relays events
// between members of the same partition. All partition state is owned by
// the goroutine running Run.
type Hub struct {
	partitions map[string]*partition

	// Validated messages from clients
	inbound chan inbound

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Functions to run on the hub goroutine
	queries chan func()

	done chan struct{}
	log  *zap.Logger
}

// NewHub creates a new hub. Call Run to start it.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		partitions: make(map[string]*partition),
		inbound:    make(chan inbound),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		queries:    make(chan func()),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run starts the hub's event loop. When ctx is cancelled every client is
// sent a close frame and Run returns.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return nil

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case m := <-h.inbound:
			h.handleMessage(m.client, m.env)

		case fn := <-h.queries:
			fn()
		}
	}
}

// ServeWS upgrades the request and attaches the connection to the
// partition named in id.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, id Identity) {
	if id.Partition == "" {
		id.Partition = DefaultPartition
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	clientID := uuid.NewString()
	client := &Client{
		id:       clientID,
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		identity: id,
		log: h.log.With(
			zap.String("client", clientID),
			zap.String("player", id.Partition),
		),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// do runs fn on the hub goroutine and waits for it.
func (h *Hub) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		fn()
		close(finished)
	}
	select {
	case h.queries <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrHubStopped
	}
	<-finished
	return nil
}

// Status reports one partition. ok is false if nobody is connected for key.
func (h *Hub) Status(ctx context.Context, key string) (st PartitionStatus, ok bool, err error) {
	err = h.do(ctx, func() {
		if p, found := h.partitions[key]; found {
			st, ok = p.status(), true
		}
	})
	return st, ok, err
}

// Partitions reports every live partition, sorted by key.
func (h *Hub) Partitions(ctx context.Context) ([]PartitionStatus, error) {
	var out []PartitionStatus
	err := h.do(ctx, func() {
		out = make([]PartitionStatus, 0, len(h.partitions))
		for _, p := range h.partitions {
			out = append(out, p.status())
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Player < out[j].Player })
	return out, err
}

// registerClient adds a client to its partition and sends it the snapshot.
func (h *Hub) registerClient(c *Client) {
	key := c.identity.Partition
	p, ok := h.partitions[key]
	if !ok {
		p = newPartition(key)
		h.partitions[key] = p
	}
	p.members[c] = true

	if c.identity.Authoritative {
		if p.authority != nil && p.authority != c {
			c.log.Info("replacing player connection", zap.String("previous", p.authority.id))
		}
		p.authority = c
		p.stationsURL = c.identity.StationsURL
	}

	c.log.Info("client registered",
		zap.Bool("authoritative", c.identity.Authoritative),
		zap.String("user_agent", c.identity.UserAgent),
		zap.Int("clients", len(p.members)))

	h.drop(p.broadcast(c.log, protocol.EventClientCount, len(p.members)))
	if !p.members[c] {
		return
	}

	h.sendTo(c, protocol.EventStationPlaying, p.stationData())
	if p.stationsURL != "" {
		h.sendTo(c, protocol.EventStationsURL, p.stationsURL)
	}
}

// unregisterClient removes a client. Losing the partition's player resets
// the station for everyone left.
func (h *Hub) unregisterClient(c *Client) {
	p, ok := h.partitions[c.identity.Partition]
	if !ok || !p.members[c] {
		return
	}
	delete(p.members, c)
	close(c.send)

	c.log.Info("client unregistered", zap.Int("clients", len(p.members)))

	if len(p.members) == 0 {
		delete(h.partitions, p.key)
		c.log.Debug("partition removed")
		return
	}

	if p.authority == c {
		p.authority = nil
		p.current = nil
		p.stationsURL = ""
		c.log.Info("player disconnected, station reset")
		h.drop(p.broadcast(h.log, protocol.EventStationPlaying, nil))
	}
	h.drop(p.broadcast(h.log, protocol.EventClientCount, len(p.members)))
}

func (h *Hub) handleMessage(c *Client, env protocol.Envelope) {
	p, ok := h.partitions[c.identity.Partition]
	if !ok || !p.members[c] {
		return
	}

	switch env.Event {
	case protocol.EventStationPlaying:
		if name, ok := env.Text(); ok && name != "" {
			p.current = &name
		} else {
			p.current = nil
		}
		c.log.Debug("station playing", zap.Any("station", p.stationData()))
		h.drop(p.broadcast(c.log, protocol.EventStationPlaying, p.stationData()))

	case protocol.EventStationRequest:
		c.log.Debug("station request", zap.ByteString("data", env.Data))
		h.drop(p.broadcast(c.log, protocol.EventStationRequest, env.Data))
	}
}

func (h *Hub) sendTo(c *Client, event string, data any) {
	msg, err := encode(event, data)
	if err != nil {
		c.log.Error("cannot encode message", zap.String("event", event), zap.Error(err))
		return
	}
	if !c.queue(msg) {
		h.drop([]*Client{c})
	}
}

// drop disconnects clients whose send buffer is full.
func (h *Hub) drop(slow []*Client) {
	for _, c := range slow {
		c.log.Warn("dropping slow client")
		h.unregisterClient(c)
	}
}

func (h *Hub) shutdown() {
	n := 0
	for key, p := range h.partitions {
		for c := range p.members {
			close(c.send)
			n++
		}
		delete(h.partitions, key)
	}
	h.log.Info("hub stopped", zap.Int("clients", n))
}
