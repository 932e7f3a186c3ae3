// Package router turns protocol envelopes into player actions and player
// state back into envelopes.
//
// Every transport session owns a Router. Routers built for the same player
// share three things:
//
//   - the player.Facade they drive,
//   - a Bus that fans broadcasts out to every session,
//   - a Loop that runs all handlers on one goroutine.
//
// Handlers for one session run strictly in arrival order because the
// session waits for Loop.Do to return before reading its next line. Across
// sessions the Loop serializes access to the facade, so engines never see
// concurrent calls.
//
// Default handlers:
//
//	volume           facade.VolumeUp when data is "up", VolumeDown otherwise
//	station_request  play the named station, or stop on empty data, then
//	                 broadcast station_playing
//	station_playing  ignored
//	client_count     ignored
//	stations_url     ignored
//	anything else    logged and dropped
//
// Sessions override handlers with Handle, for example the serial session
// answers station_list with the url-stripped station list.
package router
