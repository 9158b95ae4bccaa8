package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerEmitsJSONWithServiceAttr(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "api", "info")

	logger.Info("chat turn answered", "chat_id", "c1")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v (got %q)", err, buf.String())
	}
	if record["service"] != "api" {
		t.Fatalf("service = %v, want api", record["service"])
	}
	if record["msg"] != "chat turn answered" {
		t.Fatalf("msg = %v", record["msg"])
	}
	if record["chat_id"] != "c1" {
		t.Fatalf("chat_id = %v", record["chat_id"])
	}
}

func TestLoggerLevelFiltersRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "api", "warn")

	logger.Info("suppressed")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Fatalf("info record not filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Fatalf("warn record missing: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{" ERROR ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.in); got != tc.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestSetupInstallsDefaultLogger(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	logger := Setup("worker", "debug")

	if slog.Default() != logger {
		t.Fatalf("default logger not replaced")
	}
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatalf("debug level not enabled")
	}
}
