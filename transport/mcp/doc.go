// Package mcp exposes a RadioPad player to MCP clients.
//
// The package implements:
//   - An Observer that joins the player's switchboard partition as a
//     regular, non-authoritative client
//   - MCP tools backed by what the hub reports to that client
//   - Remote control by relaying station_request through the hub
//
// MCP Tools:
//
//   - now_playing: station from the latest station_playing event
//   - listener_count: latest client_count
//   - list_stations: fetches the list the player announced via stations_url
//   - play_station: sends station_request with a station name
//   - stop_playback: sends station_request with null
//
// The observer never resolves stations or reports playback itself; the
// player does that and the result comes back as station_playing.
//
// Usage:
//
//	obs := mcp.NewObserver("ws://localhost:1980/", station.NewFetcher(log), log)
//	go obs.Run(ctx)
//	server.ServeStdio(obs.GetMCPServer())
package mcp
