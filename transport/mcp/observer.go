package mcp

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/radiopad/radiopad/protocol"
	"github.com/radiopad/radiopad/radio/router"
	"github.com/radiopad/radiopad/radio/station"
	"github.com/radiopad/radiopad/transport/link"
	"github.com/radiopad/radiopad/transport/relay"
)

// UserAgent identifies the observer to the switchboard. It does not carry
// the player prefix, so the hub never treats it as authoritative.
const UserAgent = "radiopad-mcp/1.0"

// Observer is a switchboard client that records what the hub reports and
// exposes it, plus remote control, as MCP tools.
type Observer struct {
	router    *router.Router
	session   *link.Session
	fetcher   *station.Fetcher
	mcpServer *server.MCPServer
	log       *zap.Logger

	mu          sync.Mutex
	playing     *string
	clients     int
	stationsURL string
}

// NewObserver creates an observer for the switchboard at url. Nothing
// connects until Run.
func NewObserver(url string, fetcher *station.Fetcher, log *zap.Logger) *Observer {
	if log == nil {
		log = zap.NewNop()
	}
	o := &Observer{fetcher: fetcher, log: log}

	o.router = router.New(router.Config{Name: "observer", Log: log})
	o.router.Handle(protocol.EventStationPlaying, o.recordPlaying)
	o.router.Handle(protocol.EventClientCount, o.recordClients)
	o.router.Handle(protocol.EventStationsURL, o.recordStationsURL)
	o.router.HandleFallback(o.ignoreOther)

	o.session = relay.NewSession(o.router, relay.NewDialer(url, UserAgent, ""), log)

	o.initMCPServer()
	return o
}

// Run keeps the switchboard connection alive until ctx is cancelled.
func (o *Observer) Run(ctx context.Context) error {
	return o.session.Run(ctx)
}

// GetMCPServer returns the underlying MCP server
func (o *Observer) GetMCPServer() *server.MCPServer {
	return o.mcpServer
}

func (o *Observer) recordPlaying(_ context.Context, env protocol.Envelope) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if name, ok := env.Text(); ok && name != "" {
		o.playing = &name
	} else {
		o.playing = nil
	}
	return nil
}

func (o *Observer) recordClients(_ context.Context, env protocol.Envelope) error {
	var n int
	if err := env.DecodeData(&n); err != nil {
		return fmt.Errorf("client_count: %w", err)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.clients = n
	return nil
}

func (o *Observer) recordStationsURL(_ context.Context, env protocol.Envelope) error {
	url, _ := env.Text()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stationsURL = url
	return nil
}

// ignoreOther drops relayed station_request echoes and anything else the
// observer has no use for.
func (o *Observer) ignoreOther(_ context.Context, env protocol.Envelope) error {
	o.log.Debug("ignoring event", zap.String("event", env.Event))
	return nil
}

// Snapshot is the observer's view of its partition.
type Snapshot struct {
	Connected   bool
	Playing     *string
	Clients     int
	StationsURL string
}

func (o *Observer) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := Snapshot{
		Connected:   o.session.State() == link.Listening,
		Clients:     o.clients,
		StationsURL: o.stationsURL,
	}
	if o.playing != nil {
		name := *o.playing
		s.Playing = &name
	}
	return s
}

// initMCPServer initializes the MCP server with all tools
func (o *Observer) initMCPServer() {
	o.mcpServer = server.NewMCPServer(
		"RadioPad",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`RadioPad - MCP Interface

Observes a RadioPad player through its switchboard and can ask the player
to change stations.

AVAILABLE TOOLS:
- now_playing: Station the player reports as playing
- listener_count: Connections currently attached to this player
- list_stations: Stations the player can play
- play_station: Ask the player to play a station by name
- stop_playback: Ask the player to stop

Requests are relayed to the player, which resolves station names itself.
Use now_playing afterwards to confirm the result.`),
	)

	o.registerTools()
}

// registerTools registers all MCP tools
func (o *Observer) registerTools() {
	noArgs := mcp.ToolInputSchema{
		Type:       "object",
		Properties: map[string]interface{}{},
	}

	o.mcpServer.AddTool(mcp.Tool{
		Name:        "now_playing",
		Description: "Get the station the player is currently playing",
		InputSchema: noArgs,
	}, o.handleNowPlaying)

	o.mcpServer.AddTool(mcp.Tool{
		Name:        "listener_count",
		Description: "Get the number of connections attached to the player's switchboard partition",
		InputSchema: noArgs,
	}, o.handleListenerCount)

	o.mcpServer.AddTool(mcp.Tool{
		Name:        "list_stations",
		Description: "List the stations the player can play",
		InputSchema: noArgs,
	}, o.handleListStations)

	o.mcpServer.AddTool(mcp.Tool{
		Name:        "play_station",
		Description: "Ask the player to play a station",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Exact station name, as returned by list_stations",
				},
			},
			Required: []string{"name"},
		},
	}, o.handlePlayStation)

	o.mcpServer.AddTool(mcp.Tool{
		Name:        "stop_playback",
		Description: "Ask the player to stop playing",
		InputSchema: noArgs,
	}, o.handleStopPlayback)
}

func (o *Observer) handleNowPlaying(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s := o.Snapshot()
	if !s.Connected {
		return mcp.NewToolResultError("not connected to the switchboard"), nil
	}
	if s.Playing == nil {
		return mcp.NewToolResultText("Nothing is playing."), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Now playing: %s", *s.Playing)), nil
}

func (o *Observer) handleListenerCount(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s := o.Snapshot()
	if !s.Connected {
		return mcp.NewToolResultError("not connected to the switchboard"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Connections: %d", s.Clients)), nil
}

func (o *Observer) handleListStations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s := o.Snapshot()
	if s.StationsURL == "" {
		return mcp.NewToolResultError("the player has not announced a station list"), nil
	}

	list, err := o.fetcher.Load(ctx, s.StationsURL)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Stations (%d):\n", len(list))
	for _, st := range list {
		marker := ""
		if s.Playing != nil && *s.Playing == st.Name {
			marker = " (playing)"
		}
		fmt.Fprintf(&b, "- %s%s\n", st.Name, marker)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (o *Observer) handlePlayStation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	name, _ := args["name"].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}

	if err := o.request(name); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Requested station: %s", name)), nil
}

func (o *Observer) handleStopPlayback(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := o.request(nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Requested stop."), nil
}

func (o *Observer) request(data any) error {
	env, err := protocol.New(protocol.EventStationRequest, data)
	if err != nil {
		return err
	}
	if err := o.session.Send(env); err != nil {
		return fmt.Errorf("send station_request: %w", err)
	}
	return nil
}
