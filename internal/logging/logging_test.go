package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn")

	logger.Info("deposit recorded")
	logger.Warn("storage busy, retrying", "attempt", 1)

	out := buf.String()
	if strings.Contains(out, "deposit recorded") {
		t.Errorf("info record written at warn level: %s", out)
	}
	if !strings.Contains(out, "storage busy, retrying") || !strings.Contains(out, "attempt=1") {
		t.Errorf("warn record missing: %s", out)
	}
}
