package station

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"
)

// ErrEmptyList is returned when a station list decodes to zero stations.
var ErrEmptyList = errors.New("station list is empty")

const (
	defaultTimeout  = 12 * time.Second
	defaultAttempts = 3
)

// Fetcher retrieves JSON documents over HTTP, retrying with exponential
// backoff.
type Fetcher struct {
	Client   *http.Client
	Attempts int
	Backoff  *backoff.Backoff
	Log      *zap.Logger
}

// NewFetcher returns a Fetcher with the deployment defaults: a 12s request
// timeout and three attempts spaced 1s, 2s, 4s apart.
func NewFetcher(log *zap.Logger) *Fetcher {
	return &Fetcher{
		Client:   &http.Client{Timeout: defaultTimeout},
		Attempts: defaultAttempts,
		Backoff: &backoff.Backoff{
			Min:    time.Second,
			Max:    4 * time.Second,
			Factor: 2,
		},
		Log: log,
	}
}

// FetchJSON GETs url and decodes the body into v. Non-200 responses and
// transport failures are retried; the last error is returned once the
// attempts are exhausted.
func (f *Fetcher) FetchJSON(ctx context.Context, url string, v any) error {
	attempts := f.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	b := f.Backoff
	if b == nil {
		b = &backoff.Backoff{Min: time.Second, Max: 4 * time.Second, Factor: 2}
	}
	b.Reset()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = f.fetchOnce(ctx, url, v)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		wait := b.Duration()
		f.logger().Warn("fetch failed, retrying",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", wait),
			zap.Error(lastErr))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("fetch %s: %w", url, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (f *Fetcher) logger() *zap.Logger {
	if f.Log == nil {
		return zap.NewNop()
	}
	return f.Log
}

// Load reads a station list from an http(s) URL, a file:// URL or a plain
// file path.
func (f *Fetcher) Load(ctx context.Context, location string) (List, error) {
	var list List
	switch {
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		if err := f.FetchJSON(ctx, location, &list); err != nil {
			return nil, err
		}
	default:
		path := strings.TrimPrefix(location, "file://")
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read station list: %w", err)
		}
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("parse station list %s: %w", path, err)
		}
	}

	if len(list) == 0 {
		return nil, ErrEmptyList
	}
	return list, nil
}
