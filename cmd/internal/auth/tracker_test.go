package auth

import (
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"
)

func testTracker(start time.Time) (*Tracker, *time.Time) {
	clock := start
	t := NewTracker(slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.now = func() time.Time { return clock }
	return t, &clock
}

func TestAuthenticateAndLookup(t *testing.T) {
	t.Parallel()

	tr, _ := testTracker(time.Unix(1_000_000, 0))

	tr.Authenticate("s1", "1234567890")

	acct, ok := tr.AuthenticatedAccount("s1")
	if !ok || acct != "1234567890" {
		t.Fatalf("AuthenticatedAccount(s1)=%q,%v", acct, ok)
	}
	if !tr.IsAuthenticated("s1") {
		t.Fatal("s1 should be authenticated")
	}
	if tr.IsAuthenticated("unknown") {
		t.Fatal("unknown session must not be authenticated")
	}
	if _, ok := tr.AuthenticatedAccount("unknown"); ok {
		t.Fatal("unknown session must have no account")
	}
}

func TestAuthenticateOverwritesBinding(t *testing.T) {
	t.Parallel()

	tr, clock := testTracker(time.Unix(1_000_000, 0))

	tr.Authenticate("s1", "1111111111")
	*clock = clock.Add(10 * time.Minute)
	tr.Authenticate("s1", "2222222222")

	acct, _ := tr.AuthenticatedAccount("s1")
	if acct != "2222222222" {
		t.Fatalf("account = %q, want overwrite", acct)
	}
	// Re-auth refreshed activity, so another 10 minutes stays live.
	*clock = clock.Add(10 * time.Minute)
	if !tr.IsAuthenticated("s1") {
		t.Fatal("re-auth must refresh the activity timestamp")
	}
}

func TestExpiryBoundary(t *testing.T) {
	t.Parallel()

	tr, clock := testTracker(time.Unix(1_000_000, 0))
	tr.Authenticate("s1", "1234567890")

	// Exactly at the timeout the session is still live.
	*clock = clock.Add(SessionTimeout)
	if !tr.IsAuthenticated("s1") {
		t.Fatal("session at exactly the timeout must still be live")
	}
	if got := tr.CleanupExpired(); len(got) != 0 {
		t.Fatalf("CleanupExpired at boundary removed %v", got)
	}

	// One tick past, it is stale.
	*clock = clock.Add(time.Nanosecond)
	if tr.IsAuthenticated("s1") {
		t.Fatal("session past the timeout must be stale")
	}
}

func TestStaleRecordStillReadableUntilCleanup(t *testing.T) {
	t.Parallel()

	tr, clock := testTracker(time.Unix(1_000_000, 0))
	tr.Authenticate("s1", "1234567890")

	*clock = clock.Add(SessionTimeout + time.Second)

	// IsAuthenticated is a pure read: the stale record stays present.
	if tr.IsAuthenticated("s1") {
		t.Fatal("stale session reported live")
	}
	if acct, ok := tr.AuthenticatedAccount("s1"); !ok || acct != "1234567890" {
		t.Fatalf("stale record should still be readable, got %q,%v", acct, ok)
	}

	expired := tr.CleanupExpired()
	if len(expired) != 1 || expired[0] != "s1" {
		t.Fatalf("CleanupExpired()=%v", expired)
	}
	if _, ok := tr.AuthenticatedAccount("s1"); ok {
		t.Fatal("record must be gone after cleanup")
	}
}

func TestUpdateActivityExtendsSession(t *testing.T) {
	t.Parallel()

	tr, clock := testTracker(time.Unix(1_000_000, 0))
	tr.Authenticate("s1", "1234567890")

	*clock = clock.Add(14 * time.Minute)
	tr.UpdateActivity("s1")

	*clock = clock.Add(14 * time.Minute)
	if !tr.IsAuthenticated("s1") {
		t.Fatal("activity update must extend the session")
	}

	acct, _ := tr.AuthenticatedAccount("s1")
	if acct != "1234567890" {
		t.Fatalf("account changed by UpdateActivity: %q", acct)
	}
}

func TestUpdateActivityUnknownSessionIsNoop(t *testing.T) {
	t.Parallel()

	tr, _ := testTracker(time.Unix(1_000_000, 0))
	tr.UpdateActivity("ghost")
	if tr.Len() != 0 {
		t.Fatalf("UpdateActivity must not create sessions, len=%d", tr.Len())
	}
}

func TestCleanupExpiredSweepsOnlyStale(t *testing.T) {
	t.Parallel()

	tr, clock := testTracker(time.Unix(1_000_000, 0))

	tr.Authenticate("old1", "1111111111")
	tr.Authenticate("old2", "2222222222")
	*clock = clock.Add(SessionTimeout + time.Second)
	tr.Authenticate("fresh", "3333333333")

	expired := tr.CleanupExpired()
	sort.Strings(expired)
	if len(expired) != 2 || expired[0] != "old1" || expired[1] != "old2" {
		t.Fatalf("CleanupExpired()=%v", expired)
	}
	if !tr.IsAuthenticated("fresh") {
		t.Fatal("fresh session swept")
	}
	if tr.Len() != 1 {
		t.Fatalf("Len()=%d want 1", tr.Len())
	}

	// Idempotent: nothing new to sweep.
	if again := tr.CleanupExpired(); len(again) != 0 {
		t.Fatalf("second sweep removed %v", again)
	}
}

func TestEndSession(t *testing.T) {
	t.Parallel()

	tr, _ := testTracker(time.Unix(1_000_000, 0))
	tr.Authenticate("s1", "1234567890")

	if !tr.EndSession("s1") {
		t.Fatal("EndSession on live session must report true")
	}
	if tr.EndSession("s1") {
		t.Fatal("second EndSession must report false")
	}
	if tr.EndSession("never-existed") {
		t.Fatal("EndSession on unknown session must report false")
	}
	if tr.IsAuthenticated("s1") {
		t.Fatal("ended session still authenticated")
	}
}

func TestMaskAccount(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "1234567890", want: "***7890"},
		{in: "7890", want: "7890"},
		{in: "", want: ""},
	}
	for _, tc := range cases {
		if got := maskAccount(tc.in); got != tc.want {
			t.Fatalf("maskAccount(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}
