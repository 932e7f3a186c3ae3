package station

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// Discovery is the registry's view of a player.
type Discovery struct {
	StationsURL    string `json:"stationsUrl"`
	SwitchboardURL string `json:"switchboardUrl"`
}

// Discover asks the registry for the player's station list and
// switchboard URLs.
func (f *Fetcher) Discover(ctx context.Context, registryURL, playerID string) (Discovery, error) {
	endpoint := fmt.Sprintf("%s/v1/players/%s",
		strings.TrimRight(registryURL, "/"), url.PathEscape(playerID))

	f.logger().Info("discovering configuration", zap.String("url", endpoint))

	var d Discovery
	if err := f.FetchJSON(ctx, endpoint, &d); err != nil {
		return Discovery{}, fmt.Errorf("discover player %s: %w", playerID, err)
	}
	return d, nil
}
