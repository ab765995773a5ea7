package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestBuild_StaticFieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "warn", Service: "campus-buildings", Component: "test"}, &buf)

	zl.Info().Msg("dropped")
	zl.Warn().Msg("kept")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("lines=%d want 1: %s", len(lines), buf.String())
	}
	l := lines[0]
	if l["msg"] != "kept" || l["level"] != "warn" {
		t.Fatalf("unexpected line: %v", l)
	}
	if l["service"] != "campus-buildings" || l["component"] != "test" {
		t.Fatalf("missing static fields: %v", l)
	}
	if _, ok := l["timestamp"]; !ok {
		t.Fatalf("missing timestamp: %v", l)
	}
}

func TestSlogBridge_ContextFieldsAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "debug"}, &buf)
	log := NewSlog(&zl).With("backend", "file")

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithCacheStatus(ctx, "miss")
	log.InfoContext(ctx, "cache lookup", "buildings", 3, "err", errors.New("boom"))

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("lines=%d want 1", len(lines))
	}
	l := lines[0]
	if l["request_id"] != "req-1" || l["cache_status"] != "miss" {
		t.Fatalf("context fields missing: %v", l)
	}
	if l["backend"] != "file" {
		t.Fatalf("With attrs missing: %v", l)
	}
	if l["buildings"] != float64(3) {
		t.Fatalf("buildings=%v want 3", l["buildings"])
	}
	if l["err"] != "boom" {
		t.Fatalf("err=%v want boom", l["err"])
	}
}

func TestSlogBridge_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "error"}, &buf)
	log := NewSlog(&zl)

	if log.Enabled(context.Background(), -4) {
		t.Fatalf("debug should be disabled at error level")
	}
	log.Warn("nope")
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}

func TestWithRequestID_GeneratesWhenEmpty(t *testing.T) {
	ctx := WithRequestID(context.Background(), "")
	if id := RequestID(ctx); len(id) != 16 {
		t.Fatalf("generated id=%q want 16 hex chars", id)
	}
}
