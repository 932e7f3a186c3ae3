// Package player is the boundary between the event router and the media
// engine that actually produces audio.
//
// The router only ever talks to a Facade. Two engines implement it:
//
//   - MPV spawns an mpv process per station and controls it over mpv's
//     JSON IPC socket.
//   - MPD drives an already running Music Player Daemon.
//
// Facade methods are called from a single goroutine (see router.Loop), so
// engines keep plain fields for their state. The only lock guards the lazy
// establishment of an engine control channel.
package player

import (
	"context"
	"errors"

	"github.com/radiopad/radiopad/radio/station"
)

var (
	// ErrPlayback is returned when the engine fails to start a station.
	ErrPlayback = errors.New("playback failed")

	// ErrControlUnavailable means the engine's control channel could not
	// be established. Volume commands degrade to a logged no-op.
	ErrControlUnavailable = errors.New("engine control channel unavailable")
)

// Facade is the narrow set of operations the router needs.
//
// Implementations must reflect the post-operation state synchronously:
// CurrentStationName called after Play or Stop returns reports the result
// of that call.
type Facade interface {
	// Play stops whatever is playing and starts st.
	Play(ctx context.Context, st station.Station) error
	// Stop is idempotent.
	Stop(ctx context.Context) error
	// VolumeUp and VolumeDown never fail; problems are logged.
	VolumeUp(ctx context.Context)
	VolumeDown(ctx context.Context)
	// CurrentStationName returns the playing station, if any.
	CurrentStationName() (string, bool)
	// Close releases the engine. It always completes.
	Close() error
}
