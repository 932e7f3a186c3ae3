package router

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/radiopad/radiopad/protocol"
	"github.com/radiopad/radiopad/radio/player"
	"github.com/radiopad/radiopad/radio/station"
)

// ErrNoSession is returned by Reply before Bind.
var ErrNoSession = errors.New("router is not bound to a session")

// Handler processes one envelope. A returned error is logged; it never
// closes the session.
type Handler func(ctx context.Context, env protocol.Envelope) error

// Config wires a Router to the shared player state.
type Config struct {
	// Name labels log lines, e.g. "macropad" or "switchboard".
	Name string
	// Facade may be nil for observers that do not control playback. The
	// volume and station_request defaults are only installed when set.
	Facade   player.Facade
	Stations station.List
	Bus      *Bus
	// Loop serializes handler execution. Handlers run inline when nil.
	Loop *Loop
	Log  *zap.Logger
}

// Router is the per-session dispatch table.
type Router struct {
	name     string
	facade   player.Facade
	stations station.List
	bus      *Bus
	loop     *Loop
	log      *zap.Logger

	self     Sender
	handlers map[string]Handler
	fallback Handler
}

// New returns a Router seeded with the default handlers.
func New(cfg Config) *Router {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	bus := cfg.Bus
	if bus == nil {
		bus = NewBus(log)
	}

	r := &Router{
		name:     cfg.Name,
		facade:   cfg.Facade,
		stations: cfg.Stations,
		bus:      bus,
		loop:     cfg.Loop,
		log:      log,
		handlers: make(map[string]Handler),
	}

	for _, event := range []string{
		protocol.EventStationPlaying,
		protocol.EventClientCount,
		protocol.EventStationsURL,
	} {
		r.handlers[event] = ignore
	}
	if r.facade != nil {
		r.handlers[protocol.EventVolume] = r.handleVolume
		r.handlers[protocol.EventStationRequest] = r.handleStationRequest
	}
	r.fallback = r.handleUnknown
	return r
}

// Handle installs or replaces the handler for event.
func (r *Router) Handle(event string, h Handler) {
	r.handlers[event] = h
}

// HandleFallback replaces the handler for unregistered events.
func (r *Router) HandleFallback(h Handler) {
	r.fallback = h
}

// Bind attaches the owning session: Reply targets it and it joins the bus.
func (r *Router) Bind(self Sender) {
	r.self = self
	r.bus.Attach(self)
}

// Unbind removes the owning session from the bus. Call it once the session
// has stopped for good.
func (r *Router) Unbind() {
	if r.self != nil {
		r.bus.Detach(r.self)
	}
}

func (r *Router) Name() string           { return r.name }
func (r *Router) Stations() station.List { return r.stations }

// HasFacade reports whether the router controls a player.
func (r *Router) HasFacade() bool { return r.facade != nil }

// Exec runs fn on the shared loop, or inline when the router has none.
func (r *Router) Exec(ctx context.Context, fn func(context.Context)) error {
	if r.loop == nil {
		fn(ctx)
		return nil
	}
	return r.loop.Do(ctx, fn)
}

// HandleLine decodes one framed line and dispatches it. Malformed lines are
// logged and dropped.
func (r *Router) HandleLine(ctx context.Context, line []byte) error {
	env, err := protocol.Decode(line)
	if err != nil {
		r.log.Warn("dropping malformed message",
			zap.String("session", r.name),
			zap.ByteString("line", truncate(line, 256)),
			zap.Error(err))
		return nil
	}
	return r.Exec(ctx, func(ctx context.Context) {
		r.Dispatch(ctx, env)
	})
}

// Dispatch runs the handler registered for env.Event on the calling
// goroutine.
func (r *Router) Dispatch(ctx context.Context, env protocol.Envelope) error {
	h, ok := r.handlers[env.Event]
	if !ok {
		h = r.fallback
	}
	r.log.Debug("received event",
		zap.String("session", r.name),
		zap.String("event", env.Event),
		zap.ByteString("data", env.Data))

	if err := h(ctx, env); err != nil {
		r.log.Error("handler failed",
			zap.String("session", r.name),
			zap.String("event", env.Event),
			zap.Error(err))
		return err
	}
	return nil
}

// Broadcast publishes an event to every session on the bus, this one
// included. For station_playing, data is replaced by the facade's current
// station so observers always converge on the real state.
func (r *Router) Broadcast(event string, data any) {
	if event == protocol.EventStationPlaying && r.facade != nil {
		data = r.CurrentStation()
	}
	env, err := protocol.New(event, data)
	if err != nil {
		r.log.Error("cannot encode broadcast", zap.String("event", event), zap.Error(err))
		return
	}
	r.bus.Publish(env)
}

// Reply queues an event on the owning session only.
func (r *Router) Reply(event string, data any) error {
	if r.self == nil {
		return ErrNoSession
	}
	env, err := protocol.New(event, data)
	if err != nil {
		return err
	}
	if err := r.self.Send(env); err != nil {
		return fmt.Errorf("reply %s on %s: %w", event, r.self.Name(), err)
	}
	return nil
}

// CurrentStation returns the playing station name, or nil when nothing
// plays, ready to be used as envelope data.
func (r *Router) CurrentStation() any {
	if r.facade == nil {
		return nil
	}
	if name, ok := r.facade.CurrentStationName(); ok {
		return name
	}
	return nil
}

func (r *Router) handleVolume(ctx context.Context, env protocol.Envelope) error {
	if dir, _ := env.Text(); dir == protocol.VolumeUp {
		r.facade.VolumeUp(ctx)
	} else {
		r.facade.VolumeDown(ctx)
	}
	return nil
}

func (r *Router) handleStationRequest(ctx context.Context, env protocol.Envelope) error {
	defer r.Broadcast(protocol.EventStationPlaying, nil)

	name, ok := env.Text()
	if env.IsNull() || (ok && name == "") {
		return r.facade.Stop(ctx)
	}
	if !ok {
		r.log.Warn("station request is not a name",
			zap.String("session", r.name),
			zap.ByteString("data", env.Data))
		return nil
	}

	st, ok := r.stations.Find(name)
	if !ok {
		r.log.Warn("requested station not found",
			zap.String("session", r.name),
			zap.String("station", name))
		return nil
	}
	return r.facade.Play(ctx, st)
}

func (r *Router) handleUnknown(_ context.Context, env protocol.Envelope) error {
	r.log.Warn("unhandled event",
		zap.String("session", r.name),
		zap.String("event", env.Event))
	return nil
}

func ignore(context.Context, protocol.Envelope) error { return nil }

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
