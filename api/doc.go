// Package api provides the switchboard's HTTP surface.
//
// Endpoints:
//   - GET /health - liveness probe, responds "OK\n"
//   - GET /api/partitions - status of every connected player
//   - GET /api/partitions/{player} - status of one player
//   - / and /{player} - websocket relay connections
//
// Partitioning:
//
// With partitioning off every connection joins the default partition and
// the path is ignored. With it on, the partition is the {player} path
// segment or, failing that, the RadioPad-Player-Id header; a connection
// naming neither is rejected with 400.
//
// A connection whose User-Agent starts with "RadioPad/" is treated as the
// player for its partition. Its RadioPad-Stations-Url header is passed on
// to later joiners as a stations_url event.
//
// Status responses look like:
//
//	{"player":"kitchen","station_playing":"wwoz","client_count":3,"has_player":true}
package api
