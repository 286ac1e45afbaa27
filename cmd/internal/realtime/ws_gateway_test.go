package realtime

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"
)

type nopResponder struct{}

func (nopResponder) ProcessMessage(context.Context, string, string, string, string) (string, error) {
	return "", nil
}
func (nopResponder) EndSession(string) bool { return false }

func testGateway(t *testing.T, opts Options) *WSGateway {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWSGateway(log, nopResponder{}, opts)
}

func TestNewWSGateway_Defaults(t *testing.T) {
	t.Parallel()

	g := testGateway(t, Options{})

	if g.opts.WriteTimeout != wsDefaultWriteTimeout {
		t.Fatalf("write timeout=%v", g.opts.WriteTimeout)
	}
	if g.opts.HeartbeatInterval != heartbeatInterval {
		t.Fatalf("heartbeat interval=%v", g.opts.HeartbeatInterval)
	}
	if g.opts.RateEvents != rateLimitEvents || g.opts.RateWindow != rateLimitWindow {
		t.Fatalf("rate limits=%d/%v", g.opts.RateEvents, g.opts.RateWindow)
	}
	if len(g.opts.AllowedOrigins) == 0 {
		t.Fatal("default allowlist must not be empty")
	}
	if len(g.originPatterns) == 0 {
		t.Fatal("origin patterns must be derived from the allowlist")
	}
}

func TestEnforceOrigin(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		opts   Options
		origin string
		wantOK bool
	}{
		{"no origin passes (non-browser client)", Options{}, "", true},
		{"allowlisted full origin", Options{AllowedOrigins: []string{"https://bank.example"}}, "https://bank.example", true},
		{"host match ignores port", Options{AllowedOrigins: []string{"https://bank.example"}}, "https://bank.example:8443", true},
		{"unlisted origin rejected", Options{AllowedOrigins: []string{"https://bank.example"}}, "https://evil.example", false},
		{"allow-all accepts anything", Options{OriginAllowAll: true}, "https://evil.example", true},
		{"default allowlist accepts localhost", Options{}, "http://localhost:3000", true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			g := testGateway(t, tc.opts)
			r := httptest.NewRequest("GET", "/ws", nil)
			if tc.origin != "" {
				r.Header.Set("Origin", tc.origin)
			}

			err := g.enforceOrigin(r)
			if tc.wantOK && err != nil {
				t.Fatalf("expected allow, got %v", err)
			}
			if !tc.wantOK && err == nil {
				t.Fatal("expected rejection")
			}
		})
	}
}

func TestOriginHost(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"https://Bank.Example:8443", "bank.example"},
		{"http://localhost", "localhost"},
		{"localhost:3000", "localhost"},
		{"bank.example", "bank.example"},
		{"", ""},
		{"http://", ""},
	}

	for _, tc := range cases {
		if got := originHost(tc.in); got != tc.want {
			t.Fatalf("originHost(%q)=%q want %q", tc.in, got, tc.want)
		}
	}
}

func TestOriginPatterns_DedupesAndSorts(t *testing.T) {
	t.Parallel()

	got := originPatterns([]string{
		"https://b.example",
		"http://a.example",
		"https://a.example:8443",
		"",
	})
	want := []string{"a.example", "b.example"}
	if len(got) != len(want) {
		t.Fatalf("patterns=%v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("patterns[%d]=%q want %q", i, got[i], want[i])
		}
	}
}

func TestRateLimiterDefaultsFromConstructor(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(0, 0)
	now := time.Now()
	for i := 0; i < rateLimitEvents; i++ {
		if !rl.Allow(now) {
			t.Fatalf("event %d rejected below default limit", i)
		}
	}
	if rl.Allow(now) {
		t.Fatal("event above default limit must be rejected")
	}
}
