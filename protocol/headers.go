package protocol

import "strings"

// Handshake headers sent by relay clients.
const (
	// HeaderStationsURL carries the player's station list location.
	HeaderStationsURL = "RadioPad-Stations-Url"
	// HeaderPlayerID names the partition when the path does not.
	HeaderPlayerID = "RadioPad-Player-Id"
)

// UserAgent identifies the player process to the switchboard.
const UserAgent = "RadioPad/1.0"

const authoritativePrefix = "RadioPad/"

// IsAuthoritative reports whether a User-Agent belongs to a player process.
func IsAuthoritative(userAgent string) bool {
	return strings.HasPrefix(userAgent, authoritativePrefix)
}
