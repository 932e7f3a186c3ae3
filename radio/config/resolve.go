package config

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/radiopad/radiopad/radio/station"
	"github.com/radiopad/radiopad/validate"
)

// ConfigError is a startup configuration failure. It is fatal to the
// process.
type ConfigError struct {
	Msg string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IsConfigError reports whether err is, or wraps, a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// Resolved is the player configuration after discovery and station
// retrieval.
type Resolved struct {
	Player
	Stations station.List
}

// Resolve fills missing URLs from the registry (when discovery is
// enabled), downloads the station list and validates it.
func Resolve(ctx context.Context, cfg Player, f *station.Fetcher, log *zap.Logger) (Resolved, error) {
	if cfg.EnableDiscovery {
		if cfg.StationsURL != "" && cfg.SwitchboardURL != "" {
			log.Info("skipping discovery, using provided URLs")
		} else {
			log.Info("to skip discovery, set RADIOPAD_ENABLE_DISCOVERY=false")
			d, err := f.Discover(ctx, cfg.RegistryURL, cfg.ID)
			if err != nil {
				log.Warn("discovery failed", zap.Error(err))
			}
			if cfg.StationsURL == "" {
				cfg.StationsURL = d.StationsURL
			}
			if cfg.SwitchboardURL == "" {
				cfg.SwitchboardURL = d.SwitchboardURL
			}
		}
	}

	if cfg.StationsURL == "" {
		return Resolved{}, &ConfigError{
			Msg: "please set RADIOPAD_STATIONS_URL or enable discovery by providing RADIOPAD_PLAYER_ID",
		}
	}

	list, err := f.Load(ctx, cfg.StationsURL)
	if err != nil {
		return Resolved{}, &ConfigError{Msg: "load station list", Err: err}
	}

	result := validate.Stations(cfg.StationsURL, list)
	if err := result.Err(); err != nil {
		return Resolved{}, &ConfigError{Msg: "validate station list", Err: err}
	}

	log.Info("loaded radio stations", zap.Int("count", len(list)), zap.String("url", cfg.StationsURL))
	return Resolved{Player: cfg, Stations: list}, nil
}
