package main

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogHandler(t *testing.T) {
	var buf bytes.Buffer
	h, err := newLogHandler(&buf, "warn", "text")
	if err != nil {
		t.Fatalf("newLogHandler failed: %v", err)
	}
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}

	slog.New(h).Warn("Member restarted", "member", 3)
	if !strings.Contains(buf.String(), "member=3") {
		t.Errorf("Expected text output, got %q", buf.String())
	}

	h, err = newLogHandler(&buf, "bogus", "json")
	if err != nil {
		t.Fatalf("newLogHandler failed: %v", err)
	}
	if !h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("unknown level should fall back to info")
	}

	if _, err := newLogHandler(&buf, "info", "xml"); err == nil {
		t.Error("Expected error for unknown log format")
	}
}
