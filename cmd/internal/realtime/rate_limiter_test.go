package realtime

import (
	"testing"
	"time"
)

func TestRateLimiterAllowsWithinWindow(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(3, 10*time.Second)
	now := time.Unix(1_000_000, 0)

	for i := 0; i < 3; i++ {
		if !rl.Allow(now) {
			t.Fatalf("event %d should be allowed", i)
		}
	}
	if rl.Allow(now) {
		t.Fatal("fourth event in the window must be rejected")
	}
}

func TestRateLimiterSlidesWindow(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(2, 10*time.Second)
	now := time.Unix(1_000_000, 0)

	if !rl.Allow(now) || !rl.Allow(now) {
		t.Fatal("first two events should be allowed")
	}
	if rl.Allow(now.Add(5 * time.Second)) {
		t.Fatal("window still full at +5s")
	}
	if !rl.Allow(now.Add(11 * time.Second)) {
		t.Fatal("old events must age out of the window")
	}
}
