package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/hibiken/asynq"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("warn", "json", &buf)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "job_id", "j1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("lines = %q", lines)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["msg"] != "shown" || entry["job_id"] != "j1" {
		t.Fatalf("entry = %v", entry)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New("info", "xml", nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestLevels(t *testing.T) {
	tests := []struct {
		in    string
		slog  slog.Level
		asynq asynq.LogLevel
	}{
		{"debug", slog.LevelDebug, asynq.DebugLevel},
		{"INFO", slog.LevelInfo, asynq.InfoLevel},
		{"warn", slog.LevelWarn, asynq.WarnLevel},
		{"error", slog.LevelError, asynq.ErrorLevel},
		{"", slog.LevelInfo, asynq.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.slog {
			t.Errorf("ParseLevel(%q) = %v", tt.in, got)
		}
		if got := AsynqLevel(tt.in); got != tt.asynq {
			t.Errorf("AsynqLevel(%q) = %v", tt.in, got)
		}
	}
}
