package relay

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"

	"github.com/radiopad/radiopad/api"
	"github.com/radiopad/radiopad/protocol"
	"github.com/radiopad/radiopad/radio/router"
	"github.com/radiopad/radiopad/radio/station"
	hub "github.com/radiopad/radiopad/transport/websocket"
)

type stubFacade struct {
	mu      sync.Mutex
	current string
}

func (f *stubFacade) Play(_ context.Context, st station.Station) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = st.Name
	return nil
}

func (f *stubFacade) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = ""
	return nil
}

func (f *stubFacade) VolumeUp(context.Context)   {}
func (f *stubFacade) VolumeDown(context.Context) {}

func (f *stubFacade) CurrentStationName() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, f.current != ""
}

func (f *stubFacade) Close() error { return nil }

type switchboard struct {
	hub *hub.Hub
	srv *httptest.Server
	url string
}

func startSwitchboard(t *testing.T) *switchboard {
	ctx, cancel := context.WithCancel(context.Background())
	h := hub.NewHub(zaptest.NewLogger(t))
	go h.Run(ctx)

	srv := httptest.NewServer(api.NewServer(h, api.Options{Log: zaptest.NewLogger(t)}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return &switchboard{hub: h, srv: srv, url: "ws" + strings.TrimPrefix(srv.URL, "http") + "/"}
}

func (sb *switchboard) waitStatus(t *testing.T, cond func(hub.PartitionStatus) bool) hub.PartitionStatus {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		st, ok, err := sb.hub.Status(context.Background(), hub.DefaultPartition)
		if err != nil {
			t.Fatalf("Status failed: %v", err)
		}
		if ok && cond(st) {
			return st
		}
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for hub state, last %+v", st)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func startPlayer(t *testing.T, sb *switchboard, facade *stubFacade) *router.Router {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	loop := router.NewLoop()
	go loop.Run(ctx)

	r := router.New(router.Config{
		Name:     "switchboard",
		Facade:   facade,
		Stations: station.List{{Name: "wwoz", URL: "https://wwoz.example"}, {Name: "kexp", URL: "https://kexp.example"}},
		Loop:     loop,
		Log:      zaptest.NewLogger(t),
	})
	d := NewDialer(sb.url, protocol.UserAgent, "https://example.com/stations.json")
	s := NewSession(r, d, zaptest.NewLogger(t))
	go s.Run(ctx)
	return r
}

func TestPlayerAnnouncesStateOnConnect(t *testing.T) {
	sb := startSwitchboard(t)
	startPlayer(t, sb, &stubFacade{current: "wwoz"})

	st := sb.waitStatus(t, func(st hub.PartitionStatus) bool {
		return st.StationPlaying != nil
	})
	if *st.StationPlaying != "wwoz" {
		t.Errorf("Expected hub to adopt wwoz, got %s", *st.StationPlaying)
	}
	if !st.HasPlayer {
		t.Error("Player connection should be authoritative")
	}
	if st.StationsURL != "https://example.com/stations.json" {
		t.Errorf("Expected stations URL to reach the hub, got %q", st.StationsURL)
	}
}

func TestRemoteStationRequest(t *testing.T) {
	sb := startSwitchboard(t)
	facade := &stubFacade{}
	startPlayer(t, sb, facade)
	sb.waitStatus(t, func(st hub.PartitionStatus) bool { return st.HasPlayer })

	obs, _, err := websocket.DefaultDialer.Dial(sb.url, nil)
	if err != nil {
		t.Fatalf("Observer failed to connect: %v", err)
	}
	defer obs.Close()

	if err := obs.WriteMessage(websocket.TextMessage, []byte(`{"event":"station_request","data":"kexp"}`)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		obs.SetReadDeadline(deadline)
		_, msg, err := obs.ReadMessage()
		if err != nil {
			t.Fatalf("Never saw station_playing kexp: %v", err)
		}
		if bytes.Contains(msg, []byte(`{"event":"station_playing","data":"kexp"}`)) {
			break
		}
	}

	if name, _ := facade.CurrentStationName(); name != "kexp" {
		t.Errorf("Expected player to play kexp, got %q", name)
	}
}

func TestObserverDoesNotClaimAuthority(t *testing.T) {
	sb := startSwitchboard(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := router.New(router.Config{Name: "observer", Log: zaptest.NewLogger(t)})
	s := NewSession(r, NewDialer(sb.url, "radiopad-mcp/1.0", ""), zaptest.NewLogger(t))
	go s.Run(ctx)

	st := sb.waitStatus(t, func(st hub.PartitionStatus) bool { return st.ClientCount == 1 })
	if st.HasPlayer {
		t.Error("Observer must not be treated as the player")
	}
	if st.StationPlaying != nil {
		t.Error("Observer must not publish station_playing")
	}
}

func TestDialerHeaders(t *testing.T) {
	seen := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Clone()
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	d := NewDialer("ws"+strings.TrimPrefix(srv.URL, "http"), protocol.UserAgent, "https://example.com/s.json")
	if _, err := d.Dial(context.Background()); err == nil {
		t.Fatal("Expected dial to fail against a plain HTTP handler")
	}

	h := <-seen
	if h.Get("User-Agent") != protocol.UserAgent {
		t.Errorf("Expected User-Agent %q, got %q", protocol.UserAgent, h.Get("User-Agent"))
	}
	if h.Get(protocol.HeaderStationsURL) != "https://example.com/s.json" {
		t.Errorf("Expected stations URL header, got %q", h.Get(protocol.HeaderStationsURL))
	}
}
