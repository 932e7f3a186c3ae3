package player

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	"go.uber.org/zap"

	"github.com/radiopad/radiopad/radio/station"
)

// MPDClient is the part of *mpd.Client the engine uses.
type MPDClient interface {
	Clear() error
	Add(uri string) error
	Play(pos int) error
	Stop() error
	SetVolume(volume int) error
	Status() (mpd.Attrs, error)
	Close() error
}

// MPDOptions configures an MPD engine.
type MPDOptions struct {
	// Address is host:port, or an absolute unix socket path.
	Address string
	Volume  Volume

	DialRetries    int
	DialRetryDelay time.Duration

	Dial func(network, addr string) (MPDClient, error)
}

// MPD drives a running Music Player Daemon. Each operation uses a
// short-lived client connection, so idle timeouts on the daemon side never
// leave the engine holding a dead socket.
type MPD struct {
	opts    MPDOptions
	log     *zap.Logger
	station *station.Station
}

// NewMPD returns an MPD engine. Nothing is dialed until the first command.
func NewMPD(opts MPDOptions, log *zap.Logger) *MPD {
	if opts.Address == "" {
		opts.Address = "localhost:6600"
	}
	if opts.Volume == (Volume{}) {
		opts.Volume = DefaultVolume
	}
	if opts.DialRetries <= 0 {
		opts.DialRetries = 3
	}
	if opts.DialRetryDelay <= 0 {
		opts.DialRetryDelay = 200 * time.Millisecond
	}
	if opts.Dial == nil {
		opts.Dial = func(network, addr string) (MPDClient, error) {
			return mpd.Dial(network, addr)
		}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &MPD{opts: opts, log: log}
}

func (m *MPD) network() string {
	if strings.HasPrefix(m.opts.Address, "/") {
		return "unix"
	}
	return "tcp"
}

// do runs fn with a fresh client, retrying the dial on a short fixed
// schedule.
func (m *MPD) do(ctx context.Context, fn func(c MPDClient) error) error {
	var (
		c   MPDClient
		err error
	)
	for i := 0; i < m.opts.DialRetries; i++ {
		c, err = m.opts.Dial(m.network(), m.opts.Address)
		if err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.opts.DialRetryDelay):
		}
	}
	if err != nil {
		return fmt.Errorf("%w: dial mpd %s: %v", ErrControlUnavailable, m.opts.Address, err)
	}
	defer c.Close()
	return fn(c)
}

func (m *MPD) Play(ctx context.Context, st station.Station) error {
	m.log.Info("playing station", zap.String("station", st.Name), zap.String("url", st.URL))
	m.station = nil

	err := m.do(ctx, func(c MPDClient) error {
		if err := c.Clear(); err != nil {
			return err
		}
		if err := c.Add(st.URL); err != nil {
			return err
		}
		return c.Play(-1)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPlayback, err)
	}
	m.station = &st
	return nil
}

func (m *MPD) Stop(ctx context.Context) error {
	wasPlaying := m.station != nil
	m.station = nil
	if !wasPlaying {
		return nil
	}
	if err := m.do(ctx, func(c MPDClient) error { return c.Stop() }); err != nil {
		m.log.Warn("stop mpd", zap.Error(err))
	}
	return nil
}

func (m *MPD) VolumeUp(ctx context.Context)   { m.adjustVolume(ctx, m.opts.Volume.Up) }
func (m *MPD) VolumeDown(ctx context.Context) { m.adjustVolume(ctx, m.opts.Volume.Down) }

func (m *MPD) adjustVolume(ctx context.Context, next func(int) int) {
	err := m.do(ctx, func(c MPDClient) error {
		attrs, err := c.Status()
		if err != nil {
			return err
		}
		current, err := strconv.Atoi(attrs["volume"])
		if err != nil || current < 0 {
			return fmt.Errorf("mixer unavailable (volume=%q)", attrs["volume"])
		}
		v := next(current)
		if err := c.SetVolume(v); err != nil {
			return err
		}
		m.log.Debug("adjusted volume", zap.Int("volume", v))
		return nil
	})
	if err != nil {
		m.log.Warn("cannot adjust volume", zap.Error(err))
	}
}

func (m *MPD) CurrentStationName() (string, bool) {
	if m.station == nil {
		return "", false
	}
	return m.station.Name, true
}

func (m *MPD) Close() error {
	return m.Stop(context.Background())
}
