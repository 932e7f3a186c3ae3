package serial

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap/zaptest"

	"github.com/radiopad/radiopad/protocol"
	"github.com/radiopad/radiopad/radio/router"
	"github.com/radiopad/radiopad/radio/station"
	"github.com/radiopad/radiopad/transport/link"
)

// ports is what the Linux enumerator reports: no product names.
var ports = []*enumerator.PortDetails{
	{Name: "/dev/ttyACM0", IsUSB: true, VID: "239a", PID: "8108", SerialNumber: "DE61"},
	{Name: "/dev/ttyACM1", IsUSB: true, VID: "239a", PID: "8108", SerialNumber: "DE61"},
	{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001"},
	{Name: "/dev/ttyACM2", IsUSB: true, VID: "239a", PID: "8108", SerialNumber: "AA02"},
}

// interfaces mirrors /sys/class/tty/*/device/interface for ports.
var interfaces = map[string]string{
	"ttyACM0": "CircuitPython CDC control",
	"ttyACM1": "CircuitPython CDC2 data",
	"ttyACM2": "CircuitPython CDC2 data",
}

func listPorts() ([]*enumerator.PortDetails, error) { return ports, nil }

func lookupInterface(p *enumerator.PortDetails) string {
	return interfaces[filepath.Base(p.Name)]
}

func newTestDialer(t *testing.T, identity string) *Dialer {
	d := NewDialer(identity, zaptest.NewLogger(t))
	d.List = listPorts
	d.Interface = lookupInterface
	return d
}

func TestCandidates(t *testing.T) {
	d := newTestDialer(t, "")
	got := d.Candidates(ports)
	if len(got) != 2 || got[0] != "/dev/ttyACM1" || got[1] != "/dev/ttyACM2" {
		t.Errorf("Expected ACM1 and ACM2, got %v", got)
	}
}

func TestCandidatesWithoutInterfaceNames(t *testing.T) {
	d := newTestDialer(t, "")
	d.Interface = func(*enumerator.PortDetails) string { return "" }
	if got := d.Candidates(ports); len(got) != 0 {
		t.Errorf("Expected no candidates, got %v", got)
	}
}

func TestCandidatesByProductAndName(t *testing.T) {
	d := newTestDialer(t, "")
	withProduct := []*enumerator.PortDetails{
		{Name: "/dev/cu.usbmodem1", IsUSB: true, Product: "CircuitPython CDC2 data"},
		{Name: "/dev/cu.usbmodem2", IsUSB: true, Product: "Some CircuitPython CDC2"},
	}
	if got := d.Candidates(withProduct); len(got) != 1 || got[0] != "/dev/cu.usbmodem1" {
		t.Errorf("Expected product prefix match, got %v", got)
	}

	d.Identity = "/dev/ttyUSB0"
	if got := d.Candidates(ports); len(got) != 1 || got[0] != "/dev/ttyUSB0" {
		t.Errorf("Expected explicit device match, got %v", got)
	}
}

func TestSysfsInterface(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "ttyACM1", "device")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "interface"), []byte("CircuitPython CDC2 data\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	lookup := SysfsInterface(root)
	if got := lookup(ports[1]); got != "CircuitPython CDC2 data" {
		t.Errorf("Expected interface name, got %q", got)
	}
	if got := lookup(ports[0]); got != "" {
		t.Errorf("Expected empty name for missing file, got %q", got)
	}

	d := NewDialer("", zaptest.NewLogger(t))
	d.List = listPorts
	d.Interface = lookup
	d.Open = func(name string, baud int) (io.ReadWriteCloser, error) {
		a, _ := net.Pipe()
		return a, nil
	}
	conn, err := d.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	conn.Close()
}

func TestDialNoPorts(t *testing.T) {
	d := newTestDialer(t, "Nonexistent Device")

	_, err := d.Dial(context.Background())
	if !errors.Is(err, ErrNoPorts) {
		t.Errorf("Expected ErrNoPorts, got %v", err)
	}
}

func TestDialTriesCandidatesInOrder(t *testing.T) {
	var tried []string
	d := newTestDialer(t, "")
	d.Open = func(name string, baud int) (io.ReadWriteCloser, error) {
		tried = append(tried, name)
		if baud != DefaultBaudRate {
			t.Errorf("Expected baud %d, got %d", DefaultBaudRate, baud)
		}
		if name == "/dev/ttyACM1" {
			return nil, errors.New("device busy")
		}
		a, _ := net.Pipe()
		return a, nil
	}

	conn, err := d.Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	if len(tried) != 2 || tried[1] != "/dev/ttyACM2" {
		t.Errorf("Expected fallback to ACM2, tried %v", tried)
	}
}

func TestDialAllCandidatesFail(t *testing.T) {
	d := newTestDialer(t, "")
	d.Open = func(string, int) (io.ReadWriteCloser, error) {
		return nil, errors.New("permission denied")
	}

	if _, err := d.Dial(context.Background()); !errors.Is(err, ErrNoPorts) {
		t.Errorf("Expected ErrNoPorts, got %v", err)
	}
}

type zeroReader struct{}

func (zeroReader) Read([]byte) (int, error)    { return 0, nil }
func (zeroReader) Write(p []byte) (int, error) { return len(p), nil }
func (zeroReader) Close() error                { return nil }

func TestZeroLengthReadIsEOF(t *testing.T) {
	c := &conn{rw: zeroReader{}, buf: make([]byte, 8)}
	if _, err := c.ReadChunk(); !errors.Is(err, io.EOF) {
		t.Errorf("Expected io.EOF, got %v", err)
	}
}

type stubFacade struct{ current string }

func (f *stubFacade) Play(_ context.Context, st station.Station) error {
	f.current = st.Name
	return nil
}
func (f *stubFacade) Stop(context.Context) error { f.current = ""; return nil }
func (f *stubFacade) VolumeUp(context.Context)   {}
func (f *stubFacade) VolumeDown(context.Context) {}
func (f *stubFacade) CurrentStationName() (string, bool) {
	return f.current, f.current != ""
}
func (f *stubFacade) Close() error { return nil }

func TestStationListOverride(t *testing.T) {
	device, port := net.Pipe()
	defer device.Close()

	d := newTestDialer(t, "")
	d.Open = func(string, int) (io.ReadWriteCloser, error) { return port, nil }

	r := router.New(router.Config{
		Name:   "macropad",
		Facade: &stubFacade{current: "kexp"},
		Stations: station.List{
			{Name: "wwoz", URL: "https://wwoz.example/stream", Color: "#00FF00"},
			{Name: "kexp", URL: "https://kexp.example/stream"},
		},
		Log: zaptest.NewLogger(t),
	})
	s := NewSession(r, d, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for s.State() != link.Listening {
		if time.Now().After(deadline) {
			t.Fatal("Session never reached listening")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := device.Write([]byte(`{"event":"station_list","data":null}` + "\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	device.SetReadDeadline(time.Now().Add(2 * time.Second))
	lines := bufio.NewScanner(device)

	if !lines.Scan() {
		t.Fatalf("Expected station_list reply: %v", lines.Err())
	}
	list, err := protocol.Decode(lines.Bytes())
	if err != nil || list.Event != protocol.EventStationList {
		t.Fatalf("Unexpected first reply %q (%v)", lines.Text(), err)
	}
	if got := string(list.Data); got != `[{"name":"wwoz","color":"#00FF00"},{"name":"kexp"}]` {
		t.Errorf("Station list must not carry URLs, got %s", got)
	}

	if !lines.Scan() {
		t.Fatalf("Expected station_playing reply: %v", lines.Err())
	}
	playing, _ := protocol.Decode(lines.Bytes())
	if name, _ := playing.Text(); playing.Event != protocol.EventStationPlaying || name != "kexp" {
		t.Errorf("Expected station_playing kexp, got %s", lines.Text())
	}
}
