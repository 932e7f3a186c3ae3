// Package config loads player and switchboard settings from the
// environment and resolves the player's station list at startup.
package config

import (
	"fmt"
	"net"
	"strconv"

	"github.com/caarlos0/env/v11"
)

// Player configures the radio-pad player process.
type Player struct {
	ID              string `env:"RADIOPAD_PLAYER_ID" envDefault:"briceburg"`
	RegistryURL     string `env:"RADIOPAD_REGISTRY_URL" envDefault:"https://registry.radiopad.dev"`
	StationsURL     string `env:"RADIOPAD_STATIONS_URL"`
	SwitchboardURL  string `env:"RADIOPAD_SWITCHBOARD_URL"`
	EnableDiscovery bool   `env:"RADIOPAD_ENABLE_DISCOVERY" envDefault:"true"`

	Engine        string `env:"RADIOPAD_ENGINE" envDefault:"mpv"`
	AudioChannels string `env:"RADIOPAD_AUDIO_CHANNELS" envDefault:"stereo"`
	MPVPath       string `env:"RADIOPAD_MPV_PATH" envDefault:"mpv"`
	MPVSocketPath string `env:"RADIOPAD_MPV_SOCKET_PATH" envDefault:"/tmp/radio-pad-mpv.sock"`
	MPDAddress    string `env:"RADIOPAD_MPD_ADDRESS" envDefault:"localhost:6600"`

	VolumeStep int `env:"RADIOPAD_VOLUME_STEP" envDefault:"5"`
	VolumeMin  int `env:"RADIOPAD_VOLUME_MIN" envDefault:"0"`
	VolumeMax  int `env:"RADIOPAD_VOLUME_MAX" envDefault:"100"`

	SerialIdentity string `env:"RADIOPAD_SERIAL_IDENTITY" envDefault:"CircuitPython CDC2"`
	SerialDisabled bool   `env:"RADIOPAD_SERIAL_DISABLED" envDefault:"false"`
}

// Switchboard configures the relay hub.
type Switchboard struct {
	Host        string `env:"SWITCHBOARD_HOST" envDefault:"localhost"`
	Port        int    `env:"SWITCHBOARD_PORT" envDefault:"1980"`
	Partitioned bool   `env:"SWITCHBOARD_PARTITION_BY_PLAYER" envDefault:"false"`

	NgrokEnabled   bool   `env:"NGROK_ENABLED" envDefault:"false"`
	NgrokAuthToken string `env:"NGROK_AUTHTOKEN"`
	NgrokDomain    string `env:"NGROK_DOMAIN"`
}

// Addr returns host:port.
func (s Switchboard) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// MCP configures the observer tool server.
type MCP struct {
	SwitchboardURL string `env:"RADIOPAD_SWITCHBOARD_URL" envDefault:"ws://localhost:1980/"`
}

// LoadPlayer parses Player settings from the environment.
func LoadPlayer() (Player, error) {
	var cfg Player
	if err := parse(&cfg); err != nil {
		return Player{}, err
	}
	if cfg.VolumeMin > cfg.VolumeMax {
		return Player{}, &ConfigError{Msg: fmt.Sprintf(
			"RADIOPAD_VOLUME_MIN (%d) exceeds RADIOPAD_VOLUME_MAX (%d)", cfg.VolumeMin, cfg.VolumeMax)}
	}
	if cfg.Engine != "mpv" && cfg.Engine != "mpd" {
		return Player{}, &ConfigError{Msg: fmt.Sprintf("unknown RADIOPAD_ENGINE %q (want mpv or mpd)", cfg.Engine)}
	}
	return cfg, nil
}

// LoadSwitchboard parses Switchboard settings from the environment.
func LoadSwitchboard() (Switchboard, error) {
	var cfg Switchboard
	if err := parse(&cfg); err != nil {
		return Switchboard{}, err
	}
	return cfg, nil
}

// LoadMCP parses MCP settings from the environment.
func LoadMCP() (MCP, error) {
	var cfg MCP
	if err := parse(&cfg); err != nil {
		return MCP{}, err
	}
	return cfg, nil
}

func parse(target any) error {
	if err := env.Parse(target); err != nil {
		return &ConfigError{Msg: "parse env", Err: err}
	}
	return nil
}
