package protocol

// Canonical event names.
const (
	EventVolume         = "volume"
	EventStationRequest = "station_request"
	EventStationPlaying = "station_playing"
	EventClientCount    = "client_count"
	EventStationList    = "station_list"
	EventStationsURL    = "stations_url"
)

// Volume directions carried in the data of a volume event.
const (
	VolumeUp   = "up"
	VolumeDown = "down"
)
