// Command radiopad runs the pieces of a RadioPad installation.
//
// It supports three modes:
//  1. "player" – drives the audio engine from the macropad serial link and the switchboard
//  2. "switchboard" – runs the websocket relay hub that control clients share with a player
//  3. "mcp" – runs an MCP stdio server that observes and controls a player through its switchboard
//
// Settings come from the environment (optionally via a .env file); flags
// override the most common ones. The switchboard can expose itself through
// an ngrok tunnel for access from outside the local network.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"golang.org/x/sync/errgroup"

	"github.com/radiopad/radiopad/api"
	"github.com/radiopad/radiopad/logging"
	"github.com/radiopad/radiopad/protocol"
	"github.com/radiopad/radiopad/radio/config"
	"github.com/radiopad/radiopad/radio/player"
	"github.com/radiopad/radiopad/radio/router"
	"github.com/radiopad/radiopad/radio/station"
	"github.com/radiopad/radiopad/transport/mcp"
	"github.com/radiopad/radiopad/transport/relay"
	"github.com/radiopad/radiopad/transport/serial"
	"github.com/radiopad/radiopad/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "radiopad"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

// newCommand builds the command tree.
func newCommand() *cli.Command {
	return &cli.Command{
		Name:    AppName,
		Usage:   "internet radio player with macropad and remote control",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "enable debug logging",
				Sources: cli.EnvVars("RADIOPAD_DEBUG"),
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "load environment variables from `FILE` if it exists",
				Value: ".env",
			},
		},
		Before: loadEnv,
		Commands: []*cli.Command{
			{
				Name:  "player",
				Usage: "play radio stations requested by the macropad and the switchboard",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "stations-url",
						Usage: "station list `URL` or path (overrides RADIOPAD_STATIONS_URL)",
					},
					&cli.StringFlag{
						Name:  "switchboard-url",
						Usage: "switchboard websocket `URL` (overrides RADIOPAD_SWITCHBOARD_URL)",
					},
					&cli.StringFlag{
						Name:  "engine",
						Usage: "audio engine: mpv or mpd (overrides RADIOPAD_ENGINE)",
					},
					&cli.BoolFlag{
						Name:  "no-serial",
						Usage: "do not look for a macropad",
					},
				},
				Action: runPlayer,
			},
			{
				Name:  "switchboard",
				Usage: "run the websocket relay hub",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "listen `ADDRESS` host:port (overrides SWITCHBOARD_HOST and SWITCHBOARD_PORT)",
					},
					&cli.BoolFlag{
						Name:  "partition",
						Usage: "keep a separate partition per player id",
					},
					&cli.BoolFlag{
						Name:  "ngrok",
						Usage: "also serve through an ngrok tunnel",
					},
				},
				Action: runSwitchboard,
			},
			{
				Name:  "mcp",
				Usage: "serve MCP tools over stdio for a player's switchboard partition",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "switchboard-url",
						Usage: "switchboard websocket `URL` (overrides RADIOPAD_SWITCHBOARD_URL)",
					},
				},
				Action: runMCP,
			},
		},
	}
}

// loadEnv loads the env file if present. A missing file is not an error.
func loadEnv(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("env-file")
	if path == "" {
		return ctx, nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return ctx, fmt.Errorf("load %s: %w", path, err)
	}
	return ctx, nil
}

func newLogger(cmd *cli.Command) (*zap.Logger, error) {
	log, err := logging.New(cmd.Bool("debug"))
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log, nil
}

// playerConfig loads the player settings and applies flag overrides.
func playerConfig(cmd *cli.Command) (config.Player, error) {
	cfg, err := config.LoadPlayer()
	if err != nil {
		return config.Player{}, err
	}
	if cmd.IsSet("stations-url") {
		cfg.StationsURL = cmd.String("stations-url")
	}
	if cmd.IsSet("switchboard-url") {
		cfg.SwitchboardURL = cmd.String("switchboard-url")
	}
	if cmd.IsSet("engine") {
		cfg.Engine = cmd.String("engine")
	}
	if cmd.Bool("no-serial") {
		cfg.SerialDisabled = true
	}
	return cfg, nil
}

// newFacade selects the audio engine named in cfg.
func newFacade(cfg config.Player, log *zap.Logger) (player.Facade, error) {
	vol := player.Volume{Min: cfg.VolumeMin, Max: cfg.VolumeMax, Step: cfg.VolumeStep}
	if vol.Min > vol.Max || vol.Step <= 0 {
		return nil, &config.ConfigError{Msg: fmt.Sprintf("invalid volume range %d..%d step %d", vol.Min, vol.Max, vol.Step)}
	}

	switch cfg.Engine {
	case "mpv", "":
		return player.NewMPV(player.MPVOptions{
			Path:          cfg.MPVPath,
			SocketPath:    cfg.MPVSocketPath,
			AudioChannels: cfg.AudioChannels,
			Volume:        vol,
		}, log.Named("mpv")), nil
	case "mpd":
		return player.NewMPD(player.MPDOptions{
			Address: cfg.MPDAddress,
			Volume:  vol,
		}, log.Named("mpd")), nil
	default:
		return nil, &config.ConfigError{Msg: fmt.Sprintf("unknown engine %q (want mpv or mpd)", cfg.Engine)}
	}
}

// runPlayer resolves the station list, starts the audio engine and keeps
// the macropad and switchboard sessions connected until ctx is cancelled.
func runPlayer(ctx context.Context, cmd *cli.Command) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg, err := playerConfig(cmd)
	if err != nil {
		return err
	}

	log.Info("starting player", zap.String("version", Version), zap.String("player_id", cfg.ID))

	resolved, err := config.Resolve(ctx, cfg, station.NewFetcher(log.Named("stations")), log)
	if err != nil {
		return err
	}

	facade, err := newFacade(resolved.Player, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := facade.Close(); err != nil {
			log.Warn("audio engine shutdown failed", zap.Error(err))
		}
	}()

	loop := router.NewLoop()
	bus := router.NewBus(log)
	newRouter := func(name string) *router.Router {
		return router.New(router.Config{
			Name:     name,
			Facade:   facade,
			Stations: resolved.Stations,
			Bus:      bus,
			Loop:     loop,
			Log:      log.Named(name),
		})
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(ctx) })

	if resolved.SerialDisabled {
		log.Info("macropad disabled")
	} else {
		r := newRouter("macropad")
		s := serial.NewSession(r, serial.NewDialer(resolved.SerialIdentity, log), log.Named("macropad"))
		g.Go(func() error {
			defer r.Unbind()
			return s.Run(ctx)
		})
	}

	if resolved.SwitchboardURL == "" {
		log.Info("no switchboard configured, remote control disabled")
	} else {
		d := relay.NewDialer(resolved.SwitchboardURL, protocol.UserAgent, resolved.StationsURL)
		d.Header.Set(protocol.HeaderPlayerID, resolved.ID)
		r := newRouter("switchboard")
		s := relay.NewSession(r, d, log.Named("switchboard"))
		g.Go(func() error {
			defer r.Unbind()
			return s.Run(ctx)
		})
	}

	err = g.Wait()
	log.Info("player stopped")
	return err
}

// runSwitchboard serves the relay hub, and optionally an ngrok tunnel to
// it, until ctx is cancelled.
func runSwitchboard(ctx context.Context, cmd *cli.Command) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg, err := config.LoadSwitchboard()
	if err != nil {
		return err
	}
	addr := cfg.Addr()
	if cmd.IsSet("addr") {
		addr = cmd.String("addr")
	}
	if cmd.Bool("partition") {
		cfg.Partitioned = true
	}
	if cmd.Bool("ngrok") {
		cfg.NgrokEnabled = true
	}

	hub := websocket.NewHub(log.Named("hub"))
	handler := api.NewServer(hub, api.Options{Partitioned: cfg.Partitioned, Log: log.Named("api")})

	httpServer := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(ctx) })

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	log.Info("switchboard listening",
		zap.String("addr", ln.Addr().String()),
		zap.Bool("partitioned", cfg.Partitioned))

	g.Go(func() error {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if cfg.NgrokEnabled {
		if cfg.NgrokAuthToken == "" {
			log.Warn("ngrok enabled but NGROK_AUTHTOKEN is not set, skipping tunnel")
		} else {
			g.Go(func() error { return serveNgrok(ctx, cfg, handler, log.Named("ngrok")) })
		}
	}

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown error", zap.Error(err))
	}

	err = g.Wait()
	log.Info("switchboard stopped")
	return err
}

// serveNgrok serves handler through an ngrok tunnel. Tunnel failures are
// logged and do not stop the local listener.
func serveNgrok(ctx context.Context, cfg config.Switchboard, handler http.Handler, log *zap.Logger) error {
	var tunnel ngrokConfig.Tunnel
	if cfg.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.NgrokDomain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.NgrokAuthToken))
	if err != nil {
		log.Error("failed to start ngrok tunnel", zap.Error(err))
		return nil
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Warn("failed to close ngrok tunnel", zap.Error(err))
		}
	}()

	log.Info("ngrok tunnel established", zap.String("url", tun.URL()))
	if err := http.Serve(tun, handler); err != nil && ctx.Err() == nil {
		log.Error("ngrok server error", zap.Error(err))
	}
	log.Info("ngrok tunnel closed")
	return nil
}

// runMCP serves MCP tools on stdio while an observer follows the
// switchboard. Logs go to stderr so they never mix with the protocol.
func runMCP(ctx context.Context, cmd *cli.Command) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg, err := config.LoadMCP()
	if err != nil {
		return err
	}
	if cmd.IsSet("switchboard-url") {
		cfg.SwitchboardURL = cmd.String("switchboard-url")
	}

	obs := mcp.NewObserver(cfg.SwitchboardURL, station.NewFetcher(log.Named("stations")), log.Named("observer"))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go obs.Run(ctx)

	log.Info("serving MCP on stdio", zap.String("switchboard", cfg.SwitchboardURL))
	return server.ServeStdio(obs.GetMCPServer())
}
