package websocket

import (
	"go.uber.org/zap"

	"github.com/radiopad/radiopad/protocol"
)

// DefaultPartition is the key every connection shares when the switchboard
// does not partition by player.
const DefaultPartition = "default"

// partition is the shared state of all connections for one player. It is
// only touched from the hub goroutine.
type partition struct {
	key         string
	current     *string
	stationsURL string
	members     map[*Client]bool
	authority   *Client
}

func newPartition(key string) *partition {
	return &partition{key: key, members: make(map[*Client]bool)}
}

// PartitionStatus is a point-in-time view of a partition.
type PartitionStatus struct {
	Player         string  `json:"player"`
	StationPlaying *string `json:"station_playing"`
	ClientCount    int     `json:"client_count"`
	HasPlayer      bool    `json:"has_player"`
	StationsURL    string  `json:"stations_url,omitempty"`
}

func (p *partition) status() PartitionStatus {
	st := PartitionStatus{
		Player:      p.key,
		ClientCount: len(p.members),
		HasPlayer:   p.authority != nil,
		StationsURL: p.stationsURL,
	}
	if p.current != nil {
		name := *p.current
		st.StationPlaying = &name
	}
	return st
}

// stationData returns the current station as envelope data.
func (p *partition) stationData() any {
	if p.current == nil {
		return nil
	}
	return *p.current
}

// broadcast queues an event on every member. Members that cannot keep up
// are returned so the hub can drop them.
func (p *partition) broadcast(log *zap.Logger, event string, data any) []*Client {
	msg, err := encode(event, data)
	if err != nil {
		log.Error("cannot encode broadcast", zap.String("event", event), zap.Error(err))
		return nil
	}
	var slow []*Client
	for c := range p.members {
		if !c.queue(msg) {
			slow = append(slow, c)
		}
	}
	return slow
}

func encode(event string, data any) ([]byte, error) {
	msg, err := protocol.Encode(event, data)
	if err != nil {
		return nil, err
	}
	return protocol.Frame(msg), nil
}
