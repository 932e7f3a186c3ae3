// Package protocol implements the radio-pad wire format.
//
// Every message on every transport is a single JSON object followed by a
// newline:
//
//	{"event": "station_request", "data": "wwoz"}
//
// The event key is required and must be a non-empty string. The data key
// carries any JSON value and is written as null when absent.
//
// Framing:
//
// There is no length prefix. Consumers feed raw reads into a Framer, which
// buffers partial input and yields one trimmed line per newline. Blank
// lines are skipped.
//
// Events:
//
//   - volume: "up" or "down"
//   - station_request: station name, or null to stop playback
//   - station_playing: station name or null (informational)
//   - client_count: number of relay connections in a partition (informational)
//   - station_list: [{name, color}] sent to the control surface
//   - stations_url: URL of the station list (informational)
package protocol
