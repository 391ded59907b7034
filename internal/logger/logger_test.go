package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLevelRouting(t *testing.T) {
	var out, errOut bytes.Buffer
	l := New(Config{Level: "info", Format: "text"}, &out, &errOut)

	l.Debug("hidden")
	l.Info("to stdout")
	l.Warn("also stdout")
	l.Error("to stderr")

	if strings.Contains(out.String(), "hidden") || strings.Contains(errOut.String(), "hidden") {
		t.Error("debug record should be filtered at info level")
	}
	if !strings.Contains(out.String(), "to stdout") || !strings.Contains(out.String(), "also stdout") {
		t.Errorf("expected info and warn on stdout, got %q", out.String())
	}
	if strings.Contains(out.String(), "to stderr") {
		t.Error("error record leaked to stdout")
	}
	if !strings.Contains(errOut.String(), "to stderr") {
		t.Errorf("expected error on stderr, got %q", errOut.String())
	}
}

func TestJSONLogging(t *testing.T) {
	var out bytes.Buffer
	l := New(Config{Level: "debug", Format: "json"}, &out, &out)

	l.With("component", "test").Debug("test message", "key", "value")

	var entry map[string]any
	if err := json.Unmarshal(out.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v", err)
	}
	if entry["msg"] != "test message" {
		t.Errorf("expected msg=test message, got %v", entry["msg"])
	}
	if entry["component"] != "test" || entry["key"] != "value" {
		t.Errorf("missing attributes in %v", entry)
	}
}
