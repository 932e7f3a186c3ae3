// Package websocket implements the switchboard's broadcast hub.
//
// The websocket package implements:
//   - Partitioning of connections by player key
//   - Relaying of station_playing and station_request within a partition
//   - Per-partition now-playing state with join snapshots
//   - Reset of that state when the player connection goes away
//   - Strict protocol enforcement on inbound messages
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub owns all
// partition state on a single goroutine. Each client connection has a read
// pump that validates inbound messages and a write pump that delivers
// queued frames and keeps the connection alive with pings.
//
// Message Protocol:
//
// Every message is a newline terminated JSON object {"event": ..., "data": ...}.
// The hub sends one message per frame. Clients may put several messages in
// one frame. Clients may send:
//   - station_playing: sets the partition's current station and is relayed
//   - station_request: relayed verbatim; the player resolves it
//
// Anything else, including malformed JSON or a missing event, closes the
// connection with status 1007 and a reason. The hub sends:
//   - client_count: number of connections in the partition
//   - station_playing: current station or null
//   - stations_url: the player's station list location, when known
//
// Partitions and Authority:
//
// The caller derives an Identity from the handshake. A connection whose
// User-Agent starts with "RadioPad/" is the partition's player. The newest
// player connection holds the role. When it disconnects, station_playing
// null is sent to the remaining members followed by the new client_count.
// Partitions with no members are deleted.
//
// Usage:
//
//	hub := websocket.NewHub(log)
//	go hub.Run(ctx)
//
//	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, websocket.Identity{Partition: websocket.DefaultPartition})
//	})
//
// Concurrency:
//
// ServeWS, Status and Partitions are safe to call from any goroutine. Slow
// clients whose send buffer fills up are disconnected instead of blocking
// the hub.
package websocket
