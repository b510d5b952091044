package app

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestPrettyHandler_PlainOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, nil, false))

	log.Info("http.request",
		"method", "get",
		"status", 200,
		"status_class", "2xx",
		"duration_ms", int64(12),
		"user_agent", "curl/8 test",
	)

	line := buf.String()
	for _, want := range []string{
		"lvl=[INFO]",
		"msg=http.request",
		"method=GET",
		"status=200",
		"class=2xx",
		"duration=12ms",
		`user_agent="curl/8 test"`,
	} {
		if !strings.Contains(line, want) {
			t.Fatalf("output %q missing %q", line, want)
		}
	}
	if strings.Contains(line, "\x1b[") {
		t.Fatalf("color disabled but output has ANSI escapes: %q", line)
	}
}

func TestPrettyHandler_ColorOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, nil, true))

	log.Error("server.fail", "status", 503)

	line := buf.String()
	if !strings.Contains(line, ansiRed+"[ERROR]"+ansiReset) {
		t.Fatalf("missing colored level tag: %q", line)
	}
	if !strings.Contains(line, ansiRed+"503"+ansiReset) {
		t.Fatalf("missing colored status: %q", line)
	}
}

func TestPrettyHandler_LevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}, false)

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info enabled at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("error disabled at warn level")
	}
}

func TestPrettyHandler_GroupsAndAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, nil, false))

	log.WithGroup("req").With("id", "abc").Info("started")

	line := buf.String()
	if !strings.Contains(line, "req.id=abc") {
		t.Fatalf("group prefix missing: %q", line)
	}
}
