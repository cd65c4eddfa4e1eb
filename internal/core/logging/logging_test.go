package logging

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
		{"", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("json filters below level", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New("warn", "json", &buf)
		if err != nil {
			t.Fatalf("New() error = %v, want nil", err)
		}
		logger.Info("dropped")
		logger.Warn("CHECK FAILED", "count", 2)

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 1 {
			t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
			t.Fatalf("json.Unmarshal() error = %v, want nil", err)
		}
		if rec["msg"] != "CHECK FAILED" || rec["count"] != float64(2) {
			t.Errorf("unexpected record %v", rec)
		}
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New("info", "text", &buf)
		if err != nil {
			t.Fatalf("New() error = %v, want nil", err)
		}
		logger.Info("moving mails to storage", "count", 3)
		if !strings.Contains(buf.String(), `msg="moving mails to storage" count=3`) {
			t.Errorf("unexpected text output %q", buf.String())
		}
	})

	t.Run("bad format", func(t *testing.T) {
		if _, err := New("info", "xml", &bytes.Buffer{}); err == nil {
			t.Error("expected error for unknown format")
		}
	})

	t.Run("bad level", func(t *testing.T) {
		if _, err := New("loud", "json", &bytes.Buffer{}); err == nil {
			t.Error("expected error for unknown level")
		}
	})
}
