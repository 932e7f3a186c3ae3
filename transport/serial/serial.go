// Package serial connects the player to the macropad control surface over a
// USB CDC serial port.
//
// The port is found by enumerating serial devices and matching the
// configured identity string against each device's USB interface name, so
// the CDC data port is chosen over the console port of the same board. After
// every (re)connect the session drains whatever the macropad queued while
// the player was away and acts only on the most recent line.
package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	goserial "go.bug.st/serial"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"github.com/radiopad/radiopad/protocol"
	"github.com/radiopad/radiopad/radio/router"
	"github.com/radiopad/radiopad/transport/link"
)

const (
	DefaultIdentity = "CircuitPython CDC2"
	DefaultBaudRate = 115200

	ReconnectDelay = 3 * time.Second
	DrainIdle      = 100 * time.Millisecond
	DrainMax       = time.Second
	SendThrottle   = 50 * time.Millisecond
)

// ErrNoPorts is returned when no port matches the identity, or none of the
// matching ports could be opened.
var ErrNoPorts = errors.New("no matching serial port")

// PortLister enumerates serial ports.
type PortLister func() ([]*enumerator.PortDetails, error)

// InterfaceLookup returns the USB interface name of a port, or "" when it
// is unknown.
type InterfaceLookup func(port *enumerator.PortDetails) string

// SysfsRoot is where Linux exposes tty devices.
const SysfsRoot = "/sys/class/tty"

// SysfsInterface reads the interface name from
// <root>/<tty>/device/interface. The enumerator does not report it on
// Linux. Other systems have no such file and get "".
func SysfsInterface(root string) InterfaceLookup {
	return func(port *enumerator.PortDetails) string {
		data, err := os.ReadFile(filepath.Join(root, filepath.Base(port.Name), "device", "interface"))
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(data))
	}
}

// PortOpener opens a port by name.
type PortOpener func(name string, baud int) (io.ReadWriteCloser, error)

// OpenPort opens name as a raw 8N1 serial port.
func OpenPort(name string, baud int) (io.ReadWriteCloser, error) {
	return goserial.Open(name, &goserial.Mode{BaudRate: baud})
}

// Dialer finds and opens the control surface.
type Dialer struct {
	Identity  string
	BaudRate  int
	List      PortLister
	Interface InterfaceLookup
	Open      PortOpener
	Log       *zap.Logger
}

// NewDialer returns a Dialer using the system enumerator.
func NewDialer(identity string, log *zap.Logger) *Dialer {
	if identity == "" {
		identity = DefaultIdentity
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dialer{
		Identity:  identity,
		BaudRate:  DefaultBaudRate,
		List:      enumerator.GetDetailedPortsList,
		Interface: SysfsInterface(SysfsRoot),
		Open:      OpenPort,
		Log:       log,
	}
}

// Candidates returns, in enumeration order, the ports whose USB interface
// name starts with the identity. A port also matches when its product name
// starts with the identity or its device name equals it.
func (d *Dialer) Candidates(ports []*enumerator.PortDetails) []string {
	var names []string
	for _, p := range ports {
		if d.matches(p) {
			names = append(names, p.Name)
		}
	}
	return names
}

func (d *Dialer) matches(p *enumerator.PortDetails) bool {
	if p.Name == d.Identity {
		return true
	}
	if d.Interface != nil {
		if iface := d.Interface(p); iface != "" && strings.HasPrefix(iface, d.Identity) {
			return true
		}
	}
	return p.Product != "" && strings.HasPrefix(p.Product, d.Identity)
}

// Dial tries every candidate port in order and returns the first that
// opens.
func (d *Dialer) Dial(ctx context.Context) (link.Conn, error) {
	ports, err := d.List()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}

	candidates := d.Candidates(ports)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w for %q", ErrNoPorts, d.Identity)
	}

	for _, name := range candidates {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		rw, err := d.Open(name, d.BaudRate)
		if err != nil {
			d.Log.Debug("cannot open port", zap.String("port", name), zap.Error(err))
			continue
		}
		d.Log.Info("opened serial port", zap.String("port", name))
		return &conn{rw: rw, buf: make([]byte, 1024)}, nil
	}
	return nil, fmt.Errorf("%w: none of %v could be opened", ErrNoPorts, candidates)
}

type conn struct {
	rw  io.ReadWriteCloser
	buf []byte
}

func (c *conn) ReadChunk() ([]byte, error) {
	n, err := c.rw.Read(c.buf)
	if n > 0 {
		return append([]byte(nil), c.buf[:n]...), nil
	}
	if err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (c *conn) Write(p []byte) error {
	for len(p) > 0 {
		n, err := c.rw.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

func (c *conn) Close() error { return c.rw.Close() }

// NewSession builds the macropad session around r. It binds the session to
// r and answers station_list requests with the station names and colors
// followed by the current station.
func NewSession(r *router.Router, d link.Dialer, log *zap.Logger) *link.Session {
	s := link.New(link.Options{
		Name:           "macropad",
		Dialer:         d,
		OnLine:         func(ctx context.Context, line []byte) { r.HandleLine(ctx, line) },
		ReconnectDelay: ReconnectDelay,
		DrainIdle:      DrainIdle,
		DrainMax:       DrainMax,
		SendThrottle:   SendThrottle,
		Log:            log,
	})
	r.Bind(s)

	r.Handle(protocol.EventStationList, func(ctx context.Context, env protocol.Envelope) error {
		if err := r.Reply(protocol.EventStationList, r.Stations().Summaries()); err != nil {
			return err
		}
		return r.Reply(protocol.EventStationPlaying, r.CurrentStation())
	})
	return s
}
