package player

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/radiopad/radiopad/radio/station"
)

// Process is a running engine process.
type Process interface {
	Terminate() error
	Wait() error
}

// Launcher starts an engine process.
type Launcher func(name string, args ...string) (Process, error)

type execProcess struct{ cmd *exec.Cmd }

func (p *execProcess) Terminate() error { return p.cmd.Process.Signal(syscall.SIGTERM) }
func (p *execProcess) Wait() error      { return p.cmd.Wait() }

// ExecLauncher starts name with its standard streams attached to the null
// device.
func ExecLauncher(name string, args ...string) (Process, error) {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd}, nil
}

// MPVOptions configures an MPV engine. Zero values take the defaults
// listed on each field.
type MPVOptions struct {
	Path          string // "mpv"
	SocketPath    string // "/tmp/radio-pad-mpv.sock"
	AudioChannels string // "stereo"
	Volume        Volume // DefaultVolume

	IPCRetries    int           // 20
	IPCRetryDelay time.Duration // 200ms

	Launch Launcher                       // ExecLauncher
	Dial   func(path string) (IPC, error) // DialIPC
}

func (o *MPVOptions) defaults() {
	if o.Path == "" {
		o.Path = "mpv"
	}
	if o.SocketPath == "" {
		o.SocketPath = "/tmp/radio-pad-mpv.sock"
	}
	if o.AudioChannels == "" {
		o.AudioChannels = "stereo"
	}
	if o.Volume == (Volume{}) {
		o.Volume = DefaultVolume
	}
	if o.IPCRetries <= 0 {
		o.IPCRetries = 20
	}
	if o.IPCRetryDelay <= 0 {
		o.IPCRetryDelay = 200 * time.Millisecond
	}
	if o.Launch == nil {
		o.Launch = ExecLauncher
	}
	if o.Dial == nil {
		o.Dial = DialIPC
	}
}

// MPV plays one station at a time in a dedicated mpv process.
type MPV struct {
	opts MPVOptions
	log  *zap.Logger

	station *station.Station
	proc    Process

	ipcMu  sync.Mutex
	ipc    IPC
	volume *int
}

// NewMPV returns an idle MPV engine.
func NewMPV(opts MPVOptions, log *zap.Logger) *MPV {
	opts.defaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &MPV{opts: opts, log: log}
}

// Args returns the mpv command line for a stream URL.
func (m *MPV) Args(url string) []string {
	return []string{
		url,
		"--no-osc",
		"--no-osd-bar",
		"--no-input-default-bindings",
		"--no-input-cursor",
		"--no-input-vo-keyboard",
		"--no-input-terminal",
		"--no-audio-display",
		"--input-ipc-server=" + m.opts.SocketPath,
		"--no-video",
		"--no-cache",
		"--stream-lavf-o=reconnect_streamed=1",
		"--profile=low-latency",
		"--audio-channels=" + m.opts.AudioChannels,
	}
}

func (m *MPV) Play(ctx context.Context, st station.Station) error {
	m.log.Info("playing station", zap.String("station", st.Name), zap.String("url", st.URL))

	m.Stop(ctx)

	proc, err := m.opts.Launch(m.opts.Path, m.Args(st.URL)...)
	if err != nil {
		return fmt.Errorf("%w: start mpv: %v", ErrPlayback, err)
	}
	m.proc = proc
	m.station = &st

	if err := m.establishIPC(ctx); err != nil {
		m.log.Error("volume control disabled", zap.Error(err))
	}
	return nil
}

func (m *MPV) Stop(ctx context.Context) error {
	m.station = nil

	m.ipcMu.Lock()
	if m.ipc != nil {
		m.ipc.Command("stop")
		m.ipc.Close()
		m.ipc = nil
	}
	m.volume = nil
	m.ipcMu.Unlock()

	if m.proc != nil {
		proc := m.proc
		m.proc = nil
		if err := proc.Terminate(); err != nil {
			m.log.Debug("terminate mpv", zap.Error(err))
		}
		go proc.Wait()
		if err := os.Remove(m.opts.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			m.log.Debug("remove mpv socket", zap.Error(err))
		}
	}
	return nil
}

func (m *MPV) VolumeUp(ctx context.Context)   { m.adjustVolume(m.opts.Volume.Up) }
func (m *MPV) VolumeDown(ctx context.Context) { m.adjustVolume(m.opts.Volume.Down) }

func (m *MPV) adjustVolume(next func(int) int) {
	m.ipcMu.Lock()
	defer m.ipcMu.Unlock()

	if m.ipc == nil {
		m.log.Warn("mpv IPC socket not established, cannot adjust volume")
		return
	}

	if m.volume == nil {
		v, err := readVolume(m.ipc)
		if err != nil {
			m.log.Warn("read mpv volume", zap.Error(err))
			return
		}
		m.volume = &v
	}

	v := next(*m.volume)
	if err := m.ipc.Set("volume", v); err != nil {
		m.log.Warn("set mpv volume", zap.Error(err))
		return
	}
	m.volume = &v
	m.log.Debug("adjusted volume", zap.Int("volume", v))
}

func (m *MPV) CurrentStationName() (string, bool) {
	if m.station == nil {
		return "", false
	}
	return m.station.Name, true
}

// Volume returns the cached volume, if the control socket has reported one.
func (m *MPV) Volume() (int, bool) {
	m.ipcMu.Lock()
	defer m.ipcMu.Unlock()
	if m.volume == nil {
		return 0, false
	}
	return *m.volume, true
}

func (m *MPV) Close() error {
	return m.Stop(context.Background())
}

// establishIPC connects to the control socket of the freshly started
// process, retrying while mpv creates it. At most one attempt runs at a
// time.
func (m *MPV) establishIPC(ctx context.Context) error {
	m.ipcMu.Lock()
	defer m.ipcMu.Unlock()

	if m.ipc != nil {
		return nil
	}

	var lastErr error
	for i := 0; i < m.opts.IPCRetries; i++ {
		ipc, err := m.opts.Dial(m.opts.SocketPath)
		if err == nil {
			m.ipc = ipc
			if v, err := readVolume(ipc); err == nil {
				m.volume = &v
			}
			return nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.opts.IPCRetryDelay):
		}
	}
	return fmt.Errorf("%w: %s after %d attempts: %v", ErrControlUnavailable, m.opts.SocketPath, m.opts.IPCRetries, lastErr)
}

func readVolume(ipc IPC) (int, error) {
	raw, err := ipc.Get("volume")
	if err != nil {
		return 0, err
	}
	f, ok := raw.(float64)
	if !ok {
		return 0, fmt.Errorf("unexpected volume %v", raw)
	}
	return int(math.Round(f)), nil
}
