package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestNewJSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn", "json")
	log.Info("dropped")
	log.Warn("kept", "posts", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["msg"] != "kept" || entry["posts"] != float64(3) {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestFromContextAddsIDs(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(New(&buf, "info", "text"))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx := WithRunID(WithRequestID(context.Background(), "req-1"), "run-7")
	if RunID(ctx) != "run-7" {
		t.Errorf("RunID() = %q", RunID(ctx))
	}
	if RequestID(ctx) != "req-1" {
		t.Errorf("RequestID() = %q", RequestID(ctx))
	}
	FromContext(ctx).Info("hello")

	out := buf.String()
	if !strings.Contains(out, "request_id=req-1") || !strings.Contains(out, "run_id=run-7") {
		t.Errorf("missing context attributes: %q", out)
	}
}
