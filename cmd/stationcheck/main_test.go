package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/radiopad/radiopad/radio/station"
)

func writeList(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stations.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write list: %v", err)
	}
	return path
}

func testFetcher(t *testing.T) *station.Fetcher {
	f := station.NewFetcher(zaptest.NewLogger(t))
	f.Attempts = 1
	f.Client.Timeout = 2 * time.Second
	return f
}

func TestCheckValidFile(t *testing.T) {
	path := writeList(t, `[{"name":"wwoz","url":"https://wwoz.example/live","color":"#1e90ff"}]`)

	var out bytes.Buffer
	if !check(context.Background(), &out, testFetcher(t), path) {
		t.Fatalf("Expected list to be valid, report:\n%s", out.String())
	}
	report := out.String()
	if !strings.Contains(report, "Stations: 1") || !strings.Contains(report, "OK") {
		t.Errorf("Unexpected report:\n%s", report)
	}
}

func TestCheckInvalidFile(t *testing.T) {
	path := writeList(t, `[{"name":"wwoz","url":"ftp://wwoz.example"},{"name":"wwoz","url":"https://x.example","color":"blue"}]`)

	var out bytes.Buffer
	if check(context.Background(), &out, testFetcher(t), path) {
		t.Fatal("Expected list to be invalid")
	}
	report := out.String()
	for _, want := range []string{"INVALID (3 problems)", "unsupported url scheme", "Duplicate station name", "invalid color"} {
		if !strings.Contains(report, want) {
			t.Errorf("Expected report to mention %q:\n%s", want, report)
		}
	}
}

func TestCheckMissingFile(t *testing.T) {
	var out bytes.Buffer
	if check(context.Background(), &out, testFetcher(t), filepath.Join(t.TempDir(), "nope.json")) {
		t.Fatal("Expected missing file to fail")
	}
	if !strings.Contains(out.String(), "Failed to read file") {
		t.Errorf("Unexpected report:\n%s", out.String())
	}
}

func TestCheckURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/good.json":
			w.Write([]byte(`[{"name":"kexp","url":"https://kexp.example"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	var out bytes.Buffer
	if !check(context.Background(), &out, testFetcher(t), srv.URL+"/good.json") {
		t.Errorf("Expected remote list to be valid, report:\n%s", out.String())
	}

	out.Reset()
	if check(context.Background(), &out, testFetcher(t), srv.URL+"/missing.json") {
		t.Error("Expected missing remote list to fail")
	}
	if !strings.Contains(out.String(), "Error fetching list") {
		t.Errorf("Unexpected report:\n%s", out.String())
	}
}
