package realtime

import "time"

// RateLimiter is a sliding-window message limiter. Each connection owns
// one and drives it from its read loop, so there is no locking; events
// arrive in time order, which lets Allow prune from the front.
type RateLimiter struct {
	events []time.Time
	limit  int
	window time.Duration
}

// NewRateLimiter constructs a RateLimiter, falling back to the package
// defaults when inputs are invalid.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = rateLimitEvents
	}
	if window <= 0 {
		window = rateLimitWindow
	}
	return &RateLimiter{
		events: make([]time.Time, 0, limit),
		limit:  limit,
		window: window,
	}
}

// Allow reports whether an event at time "now" should be permitted, and
// records it when so.
func (r *RateLimiter) Allow(now time.Time) bool {
	cut := now.Add(-r.window)
	expired := 0
	for expired < len(r.events) && !r.events[expired].After(cut) {
		expired++
	}
	if expired > 0 {
		r.events = append(r.events[:0], r.events[expired:]...)
	}

	if len(r.events) >= r.limit {
		return false
	}
	r.events = append(r.events, now)
	return true
}
