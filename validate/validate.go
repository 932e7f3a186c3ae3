// Package validate checks station lists before the player trusts them.
// It checks:
//   - at least one station is present
//   - every station has a name, and names are unique
//   - every stream URL parses with an http, https or file scheme
//   - colors, when present, are #RRGGBB hex
package validate

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/radiopad/radiopad/radio/station"
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ValidationResult captures the outcome of validating a station list.
// Errors is empty when Valid is true; Info carries summary lines either way.
type ValidationResult struct {
	Source string
	Valid  bool
	Errors []string
	Info   []string
}

// Err folds the errors into a single error, or nil when valid.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("invalid station list %s: %s", r.Source, strings.Join(r.Errors, "; "))
}

// Stations validates an already-decoded list.
func Stations(source string, list station.List) ValidationResult {
	result := ValidationResult{
		Source: source,
		Valid:  true,
		Errors: []string{},
	}
	fail := func(format string, args ...any) {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf(format, args...))
	}

	if len(list) == 0 {
		fail("Station list is empty")
		return result
	}

	seen := make(map[string]int, len(list))
	colored := 0
	for i, s := range list {
		pos := i + 1
		if strings.TrimSpace(s.Name) == "" {
			fail("Station %d has no name", pos)
		} else if first, dup := seen[s.Name]; dup {
			fail("Duplicate station name %q at positions %d and %d", s.Name, first, pos)
		} else {
			seen[s.Name] = pos
		}

		if s.URL == "" {
			fail("Station %q has no url", s.Name)
		} else if u, err := url.Parse(s.URL); err != nil {
			fail("Station %q has an invalid url: %v", s.Name, err)
		} else if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "file" {
			fail("Station %q has unsupported url scheme %q", s.Name, u.Scheme)
		}

		if s.Color != "" {
			colored++
			if !colorPattern.MatchString(s.Color) {
				fail("Station %q has invalid color %q (want #RRGGBB)", s.Name, s.Color)
			}
		}
	}

	result.Info = append(result.Info,
		fmt.Sprintf("Stations: %d", len(list)),
		fmt.Sprintf("With colors: %d", colored))
	return result
}

// File loads and validates a station list JSON file.
func File(path string) ValidationResult {
	result := ValidationResult{
		Source: filepath.Base(path),
		Errors: []string{},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to read file: %v", err))
		return result
	}

	var list station.List
	if err := json.Unmarshal(data, &list); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Invalid JSON: %v", err))
		return result
	}

	return Stations(result.Source, list)
}
