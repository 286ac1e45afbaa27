package auth

import (
	"log/slog"
	"time"
)

// SessionTimeout is how long a session stays authenticated without activity.
const SessionTimeout = 15 * time.Minute

type record struct {
	account      string
	lastActivity time.Time
}

// Tracker maps session IDs to authenticated accounts with a rolling activity
// timestamp. The zero value is not usable; construct with NewTracker.
type Tracker struct {
	log      *slog.Logger
	sessions map[string]record

	// now is swappable so expiry behavior is testable on a simulated clock.
	now func() time.Time
}

// NewTracker constructs an empty Tracker. A nil logger discards nothing but
// falls back to slog.Default.
func NewTracker(log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{
		log:      log,
		sessions: make(map[string]record),
		now:      time.Now,
	}
}

// Authenticate binds sessionID to accountNumber as of now. Re-authenticating
// an existing session overwrites the previous binding and refreshes its
// activity timestamp.
func (t *Tracker) Authenticate(sessionID, accountNumber string) {
	t.sessions[sessionID] = record{account: accountNumber, lastActivity: t.now()}
	t.log.Info("session.authenticated", "session_id", sessionID, "account", maskAccount(accountNumber))
}

// AuthenticatedAccount returns the account bound to sessionID, if any.
// It deliberately ignores expiry: a stale-but-present record still reports
// its account until CleanupExpired removes it. Callers that care about
// liveness must check IsAuthenticated.
func (t *Tracker) AuthenticatedAccount(sessionID string) (string, bool) {
	r, ok := t.sessions[sessionID]
	if !ok {
		return "", false
	}
	return r.account, true
}

// IsAuthenticated reports whether sessionID is bound to an account and its
// last activity is within SessionTimeout. Pure read: an expired record is
// reported as unauthenticated but not removed.
func (t *Tracker) IsAuthenticated(sessionID string) bool {
	r, ok := t.sessions[sessionID]
	if !ok {
		return false
	}
	return t.now().Sub(r.lastActivity) <= SessionTimeout
}

// UpdateActivity refreshes the activity timestamp for sessionID, preserving
// its account. Unknown sessions are a silent no-op.
func (t *Tracker) UpdateActivity(sessionID string) {
	r, ok := t.sessions[sessionID]
	if !ok {
		return
	}
	r.lastActivity = t.now()
	t.sessions[sessionID] = r
}

// CleanupExpired removes every session whose activity is stale beyond
// SessionTimeout and returns the removed IDs in scan order. The current time
// is captured once at entry so one sweep uses one consistent cutoff.
func (t *Tracker) CleanupExpired() []string {
	now := t.now()

	var expired []string
	for id, r := range t.sessions {
		if now.Sub(r.lastActivity) > SessionTimeout {
			expired = append(expired, id)
		}
	}

	for _, id := range expired {
		delete(t.sessions, id)
		t.log.Info("session.expired", "session_id", id)
	}

	return expired
}

// Len reports how many sessions currently hold a binding, expired or not.
func (t *Tracker) Len() int {
	return len(t.sessions)
}

// EndSession removes sessionID and reports whether a record was removed.
func (t *Tracker) EndSession(sessionID string) bool {
	if _, ok := t.sessions[sessionID]; !ok {
		return false
	}
	delete(t.sessions, sessionID)
	t.log.Info("session.ended", "session_id", sessionID)
	return true
}

// maskAccount hides all but the last four digits in log output.
func maskAccount(account string) string {
	if len(account) <= 4 {
		return account
	}
	return "***" + account[len(account)-4:]
}
