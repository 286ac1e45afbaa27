package app

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestPrettyHandler_PlainOutput(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	h := newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}, false)

	r := slog.NewRecord(time.Date(2026, 8, 26, 10, 30, 0, 0, time.UTC), slog.LevelInfo, "chat.message", 0)
	r.AddAttrs(
		slog.String("session", "01J2X"),
		slog.Int("status", 200),
		slog.String("note", "two words"),
	)

	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"lvl=[INFO]", "msg=chat.message", "session=01J2X", "status=200", `note="two words"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q: %s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("color disabled but output has ANSI escapes: %q", out)
	}
}

func TestPrettyHandler_ColorizesErrorLevel(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	h := newPrettyHandler(&buf, nil, true)

	r := slog.NewRecord(time.Now(), slog.LevelError, "server.fail", 0)
	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !strings.Contains(buf.String(), ansiRed+"[ERROR]"+ansiReset) {
		t.Fatalf("expected red ERROR tag, got %q", buf.String())
	}
}

func TestPrettyHandler_Enabled(t *testing.T) {
	t.Parallel()

	h := newPrettyHandler(&strings.Builder{}, &slog.HandlerOptions{Level: slog.LevelWarn}, false)
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info should be disabled at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("error should be enabled at warn level")
	}
}

func TestPrettyHandler_GroupsAndAttrs(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	base := newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}, false)
	h := base.WithGroup("http").WithAttrs([]slog.Attr{slog.String("remote", "10.0.0.1")})

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "req", 0)
	r.AddAttrs(slog.String("method", "post"))
	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "http.remote=10.0.0.1") {
		t.Fatalf("expected grouped attr, got %q", out)
	}
}

func TestPrettyValue_UppercasesMethod(t *testing.T) {
	t.Parallel()

	h := &prettyHandler{}
	if got := h.prettyValue("method", slog.StringValue("post")); got != "POST" {
		t.Fatalf("prettyValue(method)=%q want POST", got)
	}
}

func TestQuoteIfNeeded(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "", want: `""`},
		{in: "plain", want: "plain"},
		{in: "two words", want: `"two words"`},
		{in: `has"quote`, want: `"has\"quote"`},
	}
	for _, tc := range cases {
		if got := quoteIfNeeded(tc.in); got != tc.want {
			t.Fatalf("quoteIfNeeded(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func TestColorizeStatus(t *testing.T) {
	t.Parallel()

	h := &prettyHandler{color: true}
	if got := h.colorizeStatus(503); !strings.HasPrefix(got, ansiRed) {
		t.Fatalf("5xx should be red: %q", got)
	}
	if got := h.colorizeStatus(404); !strings.HasPrefix(got, ansiYellow) {
		t.Fatalf("4xx should be yellow: %q", got)
	}
	if got := h.colorizeStatus(204); !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("2xx should be green: %q", got)
	}
}
