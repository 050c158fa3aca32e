package observability

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spec-kit/service-ticket/internal/config"
)

func readEntries(t *testing.T, path string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("log line %q is not json: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name        string
		level       string
		wantEntries int
	}{
		{name: "debug level keeps debug", level: "debug", wantEntries: 2},
		{name: "warn level drops info", level: "WARN", wantEntries: 1},
		{name: "unknown level falls back to info", level: "chatty", wantEntries: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "service.log")
			logger, err := NewLogger(config.LoggerConfig{
				Level:   tt.level,
				Format:  "json",
				Output:  path,
				Service: "service-ticket",
			})
			if err != nil {
				t.Fatalf("NewLogger() error = %v", err)
			}
			logger.Debug("debug entry")
			logger.Warn("ticket number collision")
			_ = logger.Sync()

			entries := readEntries(t, path)
			if len(entries) != tt.wantEntries {
				t.Fatalf("got %d entries, want %d: %v", len(entries), tt.wantEntries, entries)
			}
			last := entries[len(entries)-1]
			if last["message"] != "ticket number collision" || last["service"] != "service-ticket" {
				t.Errorf("unexpected entry %v", last)
			}
		})
	}
}

func TestNewLogger_BadOutput(t *testing.T) {
	_, err := NewLogger(config.LoggerConfig{
		Level:  "info",
		Format: "json",
		Output: filepath.Join(t.TempDir(), "missing", "dir", "service.log"),
	})
	if err == nil {
		t.Fatal("expected error for unwritable output path")
	}
}
