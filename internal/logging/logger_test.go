package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := New(Options{Level: "info", Output: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer closeFn()

	NewComponentLogger(logger, "fetcher").Warn("track failed",
		slog.String(FieldTrack, "Song One"),
		Error(errors.New("boom")),
	)

	line := buf.String()
	for _, want := range []string{"WARN", "fetcher: track failed", `track="Song One"`, "error=boom"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should be rendered as a prefix, got %q", line)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(Options{Level: "warn", Output: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Info("hidden")
	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below warn, got %q", buf.String())
	}
	logger.Error("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected error record, got %q", buf.String())
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(Options{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.With(slog.String(FieldRunID, "abc")).Info("resolved", slog.Int("tracks", 2))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if payload["level"] != "info" || payload["msg"] != "resolved" || payload["run_id"] != "abc" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key in %v", payload)
	}
}

func TestNestedComponentUsesInnermost(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(Options{Level: "info", Output: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	app := NewComponentLogger(logger, "app").With(slog.String(FieldRunID, "r1"))
	NewComponentLogger(app, "fetcher").Info("track downloaded")

	line := buf.String()
	if !strings.Contains(line, "fetcher: track downloaded") {
		t.Fatalf("expected fetcher prefix, got %q", line)
	}
	if strings.Contains(line, "app:") {
		t.Fatalf("outer component leaked into %q", line)
	}
	if !strings.Contains(line, "run_id=r1") {
		t.Fatalf("expected run_id attribute, got %q", line)
	}
}

func TestJSONNestedComponentIsSingleKey(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(Options{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	app := NewComponentLogger(logger, "app").With(slog.String(FieldRunID, "r1"))
	NewComponentLogger(app, "fetcher").Info("track downloaded")

	line := buf.String()
	if n := strings.Count(line, `"component"`); n != 1 {
		t.Fatalf("expected one component key, got %d in %q", n, line)
	}
	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json %q: %v", line, err)
	}
	if payload["component"] != "fetcher" || payload["run_id"] != "r1" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.log")
	var buf bytes.Buffer
	logger, closeFn, err := New(Options{Output: &buf, File: path})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Info("to both")
	if err := closeFn(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "to both") || !strings.Contains(buf.String(), "to both") {
		t.Fatalf("record missing: file=%q buf=%q", data, buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNopLogger(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(nil, slog.LevelError) {
		t.Fatal("nop logger should be disabled")
	}
	logger.Error("ignored")
}
