// Package link runs one reconnecting, newline-framed connection.
//
// A Session loops forever through
//
//	Disconnected -> Connecting -> (Draining) -> Listening -> Disconnected
//
// until its context is cancelled. The serial and relay transports differ
// only in their Dialer and Options; both plug a router into OnLine.
package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/radiopad/radiopad/protocol"
)

var (
	// ErrNotConnected is returned by Send while the session has no link.
	ErrNotConnected = errors.New("session not connected")

	// ErrQueueFull is returned by Send when the outbound queue is full.
	ErrQueueFull = errors.New("session send queue full")
)

const (
	// DefaultQueueSize bounds queued outbound messages per connection.
	DefaultQueueSize = 64

	// DefaultDrainMax caps the drain phase when input keeps arriving.
	DefaultDrainMax = time.Second
)

// State is the session's position in the connection lifecycle.
type State int32

const (
	Disconnected State = iota
	Connecting
	Draining
	Listening
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Draining:
		return "draining"
	case Listening:
		return "listening"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Conn is an open link. ReadChunk blocks until bytes arrive; an empty
// chunk means the peer closed.
type Conn interface {
	ReadChunk() ([]byte, error)
	Write(p []byte) error
	Close() error
}

// Dialer opens a Conn.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context) (Conn, error) { return f(ctx) }

// Options configures a Session.
type Options struct {
	// Name labels log lines and identifies the session on the bus.
	Name   string
	Dialer Dialer

	// OnLine receives each complete line. The session waits for it to
	// return before handling the next line.
	OnLine func(ctx context.Context, line []byte)

	// OnConnect runs once per connection, after draining and before the
	// first line is handled.
	OnConnect func(ctx context.Context)

	ReconnectDelay time.Duration

	// DrainIdle enables the drain phase: buffered input is collapsed to
	// its last line until no bytes arrive for DrainIdle, or DrainMax
	// elapses. Zero disables draining.
	DrainIdle time.Duration
	DrainMax  time.Duration

	// SendThrottle is the pause after each write before the next one.
	SendThrottle time.Duration
	QueueSize    int

	Log *zap.Logger
}

// Session owns one link and its reconnect loop.
type Session struct {
	opts  Options
	log   *zap.Logger
	state atomic.Int32

	mu  sync.Mutex
	out chan []byte
}

// New returns an idle session. Call Run to start connecting.
func New(opts Options) *Session {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.DrainIdle > 0 && opts.DrainMax <= 0 {
		opts.DrainMax = DefaultDrainMax
	}
	if opts.OnLine == nil {
		opts.OnLine = func(context.Context, []byte) {}
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{opts: opts, log: log}
}

func (s *Session) Name() string { return s.opts.Name }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) {
	if State(s.state.Swap(int32(st))) != st {
		s.log.Debug("session state", zap.String("state", st.String()))
	}
}

// Send queues env for delivery on the current connection. It never blocks.
func (s *Session) Send(env protocol.Envelope) error {
	msg, err := env.Marshal()
	if err != nil {
		return err
	}
	framed := protocol.Frame(msg)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.out == nil {
		return ErrNotConnected
	}
	select {
	case s.out <- framed:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run connects, serves and reconnects until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	defer s.setState(Disconnected)

	for {
		s.setState(Connecting)
		conn, err := s.opts.Dialer.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Info("connect failed, retrying",
				zap.Duration("delay", s.opts.ReconnectDelay),
				zap.Error(err))
		} else {
			s.log.Info("connected")
			s.serve(ctx, conn)
			if ctx.Err() != nil {
				return nil
			}
			s.log.Info("reconnecting", zap.Duration("delay", s.opts.ReconnectDelay))
		}

		s.setState(Disconnected)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.opts.ReconnectDelay):
		}
	}
}

// serve runs one connection until it fails or ctx is cancelled.
func (s *Session) serve(ctx context.Context, conn Conn) {
	ctx, cancel := context.WithCancel(ctx)

	out := make(chan []byte, s.opts.QueueSize)
	s.mu.Lock()
	s.out = out
	s.mu.Unlock()

	r := startReader(conn, ctx.Done())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writeLoop(ctx, cancel, conn, out)
	}()

	defer func() {
		s.mu.Lock()
		s.out = nil
		s.mu.Unlock()

		cancel()
		if err := conn.Close(); err != nil {
			s.log.Debug("close failed", zap.Error(err))
		}
		wg.Wait()
	}()

	var framer protocol.Framer
	var pending []byte
	if s.opts.DrainIdle > 0 {
		s.setState(Draining)
		var ok bool
		pending, ok = s.drain(ctx, r, &framer)
		if !ok {
			return
		}
	}

	s.setState(Listening)
	if s.opts.OnConnect != nil {
		s.opts.OnConnect(ctx)
	}
	if pending != nil {
		s.opts.OnLine(ctx, pending)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-r.chunks:
			if !ok {
				s.logLost(r.err)
				return
			}
			for _, line := range framer.Feed(chunk) {
				if ctx.Err() != nil {
					return
				}
				s.opts.OnLine(ctx, line)
			}
		}
	}
}

// drain reads until the line goes quiet and returns the last complete line
// seen, if any. ok is false if the connection ended meanwhile.
func (s *Session) drain(ctx context.Context, r *reader, f *protocol.Framer) (last []byte, ok bool) {
	idle := time.NewTimer(s.opts.DrainIdle)
	defer idle.Stop()
	deadline := time.NewTimer(s.opts.DrainMax)
	defer deadline.Stop()

	discarded := 0
	defer func() {
		if discarded > 0 {
			s.log.Debug("discarded stale input", zap.Int("lines", discarded))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil, false
		case chunk, open := <-r.chunks:
			if !open {
				s.logLost(r.err)
				return nil, false
			}
			for _, line := range f.Feed(chunk) {
				if last != nil {
					discarded++
				}
				last = line
			}
			idle.Reset(s.opts.DrainIdle)
		case <-idle.C:
			return last, true
		case <-deadline.C:
			return last, true
		}
	}
}

func (s *Session) writeLoop(ctx context.Context, fail context.CancelFunc, conn Conn, out <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-out:
			if err := conn.Write(msg); err != nil {
				s.log.Warn("write failed", zap.Error(err))
				fail()
				return
			}
			if s.opts.SendThrottle > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(s.opts.SendThrottle):
				}
			}
		}
	}
}

func (s *Session) logLost(err error) {
	if errors.Is(err, io.EOF) {
		s.log.Warn("connection closed by peer")
		return
	}
	s.log.Warn("connection lost", zap.Error(err))
}

// reader pumps chunks from a Conn into a channel. err is set before chunks
// is closed.
type reader struct {
	chunks chan []byte
	err    error
}

func startReader(conn Conn, done <-chan struct{}) *reader {
	r := &reader{chunks: make(chan []byte)}
	go func() {
		defer close(r.chunks)
		for {
			chunk, err := conn.ReadChunk()
			if err == nil && len(chunk) == 0 {
				err = io.EOF
			}
			if err != nil {
				r.err = err
				return
			}
			select {
			case r.chunks <- chunk:
			case <-done:
				return
			}
		}
	}()
	return r
}
