// Command stationcheck validates station list files and URLs before they
// are handed to a player. It prints a short report per list and exits
// non-zero if any list is invalid.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/radiopad/radiopad/radio/station"
	"github.com/radiopad/radiopad/validate"
)

var errInvalid = errors.New("one or more station lists are invalid")

func main() {
	cmd := &cli.Command{
		Name:      "stationcheck",
		Usage:     "validate RadioPad station lists",
		ArgsUsage: "LIST...",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() == 0 {
				return errors.New("at least one station list path or URL is required")
			}
			fetcher := station.NewFetcher(zap.NewNop())
			ok := true
			for _, location := range cmd.Args().Slice() {
				if !check(ctx, os.Stdout, fetcher, location) {
					ok = false
				}
			}
			if !ok {
				return errInvalid
			}
			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "stationcheck: %v\n", err)
		os.Exit(1)
	}
}

// check validates one list and writes its report to w.
func check(ctx context.Context, w io.Writer, fetcher *station.Fetcher, location string) bool {
	fmt.Fprintf(w, "\n=== Checking %s ===\n", location)

	var result validate.ValidationResult
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		list, err := fetcher.Load(ctx, location)
		if err != nil {
			fmt.Fprintf(w, "Error fetching list: %v\n", err)
			return false
		}
		result = validate.Stations(location, list)
	} else {
		result = validate.File(location)
	}

	for _, line := range result.Info {
		fmt.Fprintln(w, line)
	}
	if !result.Valid {
		fmt.Fprintf(w, "INVALID (%d problems):\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
		return false
	}

	fmt.Fprintln(w, "OK")
	return true
}
