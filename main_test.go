package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap/zaptest"

	"github.com/radiopad/radiopad/radio/config"
	"github.com/radiopad/radiopad/radio/player"
)

func TestConstants(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if AppName != "radiopad" {
		t.Errorf("Expected app name radiopad, got %s", AppName)
	}
}

func subcommand(t *testing.T, root *cli.Command, name string) *cli.Command {
	t.Helper()
	for _, c := range root.Commands {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("Command %q not found", name)
	return nil
}

func TestCommands(t *testing.T) {
	root := newCommand()
	for _, name := range []string{"player", "switchboard", "mcp"} {
		if c := subcommand(t, root, name); c.Action == nil {
			t.Errorf("Command %q has no action", name)
		}
	}
}

func TestPlayerFlagsOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("RADIOPAD_MPD_ADDRESS=/run/mpd/socket\n"), 0o644); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("RADIOPAD_MPD_ADDRESS") })

	root := newCommand()
	var got config.Player
	subcommand(t, root, "player").Action = func(ctx context.Context, cmd *cli.Command) error {
		var err error
		got, err = playerConfig(cmd)
		return err
	}

	args := []string{"radiopad", "--env-file", envFile, "player",
		"--engine", "mpd",
		"--stations-url", "file:///etc/radiopad/stations.json",
		"--switchboard-url", "ws://pad.local:1980/",
		"--no-serial",
	}
	if err := root.Run(context.Background(), args); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got.Engine != "mpd" {
		t.Errorf("Expected engine mpd, got %s", got.Engine)
	}
	if got.StationsURL != "file:///etc/radiopad/stations.json" {
		t.Errorf("Unexpected stations URL %s", got.StationsURL)
	}
	if got.SwitchboardURL != "ws://pad.local:1980/" {
		t.Errorf("Unexpected switchboard URL %s", got.SwitchboardURL)
	}
	if !got.SerialDisabled {
		t.Error("Expected serial to be disabled")
	}
	if got.MPDAddress != "/run/mpd/socket" {
		t.Errorf("Expected MPD address from env file, got %s", got.MPDAddress)
	}
}

func TestMissingEnvFileIsIgnored(t *testing.T) {
	root := newCommand()
	ran := false
	subcommand(t, root, "mcp").Action = func(context.Context, *cli.Command) error {
		ran = true
		return nil
	}

	args := []string{"radiopad", "--env-file", filepath.Join(t.TempDir(), "missing.env"), "mcp"}
	if err := root.Run(context.Background(), args); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !ran {
		t.Error("Expected mcp action to run")
	}
}

func TestNewFacade(t *testing.T) {
	base := config.Player{
		MPVPath:       "mpv",
		MPVSocketPath: filepath.Join(t.TempDir(), "mpv.sock"),
		AudioChannels: "stereo",
		MPDAddress:    "localhost:6600",
		VolumeMin:     0,
		VolumeMax:     100,
		VolumeStep:    5,
	}

	t.Run("mpv", func(t *testing.T) {
		cfg := base
		cfg.Engine = "mpv"
		f, err := newFacade(cfg, zaptest.NewLogger(t))
		if err != nil {
			t.Fatalf("newFacade failed: %v", err)
		}
		if _, ok := f.(*player.MPV); !ok {
			t.Errorf("Expected *player.MPV, got %T", f)
		}
	})

	t.Run("mpd", func(t *testing.T) {
		cfg := base
		cfg.Engine = "mpd"
		f, err := newFacade(cfg, zaptest.NewLogger(t))
		if err != nil {
			t.Fatalf("newFacade failed: %v", err)
		}
		if _, ok := f.(*player.MPD); !ok {
			t.Errorf("Expected *player.MPD, got %T", f)
		}
	})

	t.Run("unknown engine", func(t *testing.T) {
		cfg := base
		cfg.Engine = "vlc"
		if _, err := newFacade(cfg, zaptest.NewLogger(t)); !config.IsConfigError(err) {
			t.Errorf("Expected config error, got %v", err)
		}
	})

	t.Run("inverted volume range", func(t *testing.T) {
		cfg := base
		cfg.Engine = "mpv"
		cfg.VolumeMin, cfg.VolumeMax = 80, 20
		if _, err := newFacade(cfg, zaptest.NewLogger(t)); !config.IsConfigError(err) {
			t.Errorf("Expected config error, got %v", err)
		}
	})
}
