package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})

	log.With(Domain(3)).Info(context.Background(), "fabric built",
		String("tether", "leaf302"),
		Int("links", 4),
		Err(errors.New("boom")),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if rec["msg"] != "fabric built" {
		t.Errorf("msg = %v, want fabric built", rec["msg"])
	}
	if rec["domain"] != float64(3) {
		t.Errorf("domain = %v, want 3", rec["domain"])
	}
	if rec["tether"] != "leaf302" {
		t.Errorf("tether = %v, want leaf302", rec["tether"])
	}
	if rec["error"] != "boom" {
		t.Errorf("error = %v, want boom", rec["error"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})

	log.Info(context.Background(), "hidden")
	log.Warn(context.Background(), "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record leaked through warn level: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn record missing: %q", out)
	}
}

func TestContextLogger(t *testing.T) {
	if _, ok := FromContext(context.Background()).(noopLogger); !ok {
		t.Fatal("expected noop logger for bare context")
	}

	var buf bytes.Buffer
	ctx := ContextWithLogger(context.Background(), New(Config{Output: &buf}))
	FromContext(ctx).Info(ctx, "hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("context logger did not write: %q", buf.String())
	}
}
