package chat

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bankassist/cmd/internal/bank"
)

// ErrShortAccount rejects account selections that are not a full
// account number. Last-4 references must be resolved before selection.
var ErrShortAccount = errors.New("chat: selected account is not a full account number")

const minAccountLen = 10

// sessionContext carries per-session call state outside the transcript:
// who is calling, which accounts their number maps to, and where the
// authentication flow stands.
type sessionContext struct {
	createdAt       time.Time
	callerID        string
	channel         string
	callID          string
	retrieved       []bank.AccountRef
	accountFetched  bool
	selectedAccount string
	awaitingPIN     bool
}

// Contexts holds per-session call context. Not safe for concurrent use:
// the Bot serializes access.
type Contexts struct {
	log      *slog.Logger
	sessions map[string]*sessionContext
	now      func() time.Time
}

// NewContexts constructs the context store.
func NewContexts(log *slog.Logger) *Contexts {
	if log == nil {
		log = slog.Default()
	}
	return &Contexts{
		log:      log,
		sessions: make(map[string]*sessionContext),
		now:      time.Now,
	}
}

// Init creates or refreshes the context for a session. Repeat calls
// update the caller line and channel without disturbing flow state.
func (c *Contexts) Init(sessionID, callerID, channel string) {
	if sc, ok := c.sessions[sessionID]; ok {
		if callerID != "" {
			sc.callerID = callerID
		}
		if channel != "" {
			sc.channel = channel
		}
		return
	}
	now := c.now()
	c.sessions[sessionID] = &sessionContext{
		createdAt: now,
		callerID:  callerID,
		channel:   channel,
		callID:    newCallID(now, sessionID),
	}
	c.log.Info("chat.session_context_init", "session", sessionID, "channel", channel, "has_caller", callerID != "")
}

func newCallID(now time.Time, sessionID string) string {
	suffix := sessionID
	if len(suffix) > 10 {
		suffix = suffix[len(suffix)-10:]
	}
	return fmt.Sprintf("%d%s", now.Unix(), suffix)
}

func (c *Contexts) session(sessionID string) *sessionContext {
	if _, ok := c.sessions[sessionID]; !ok {
		c.Init(sessionID, "", "web")
	}
	return c.sessions[sessionID]
}

// CallerID returns the phone number the session arrived from, if known.
func (c *Contexts) CallerID(sessionID string) string {
	return c.session(sessionID).callerID
}

// Channel returns the session's channel ("web", "ivr").
func (c *Contexts) Channel(sessionID string) string {
	return c.session(sessionID).channel
}

// CallID returns the upstream correlation id minted for this session.
func (c *Contexts) CallID(sessionID string) string {
	return c.session(sessionID).callID
}

// SetRetrievedAccounts stores the accounts found for the caller's number
// and resets any in-flight selection.
func (c *Contexts) SetRetrievedAccounts(sessionID string, accounts []bank.AccountRef) {
	sc := c.session(sessionID)
	sc.retrieved = accounts
	sc.accountFetched = true
	sc.selectedAccount = ""
	sc.awaitingPIN = false
	c.log.Info("chat.accounts_retrieved", "session", sessionID, "count", len(accounts))
}

// RetrievedAccounts returns the accounts fetched for this session.
func (c *Contexts) RetrievedAccounts(sessionID string) []bank.AccountRef {
	return c.session(sessionID).retrieved
}

// HasAccounts reports whether a caller lookup has run for this session.
func (c *Contexts) HasAccounts(sessionID string) bool {
	return c.session(sessionID).accountFetched
}

// SelectAccount marks the account the customer confirmed and moves the
// flow to awaiting-PIN. Only full account numbers are accepted.
func (c *Contexts) SelectAccount(sessionID, accountNumber string) error {
	if len(accountNumber) < minAccountLen {
		return fmt.Errorf("%w: %q", ErrShortAccount, accountNumber)
	}
	sc := c.session(sessionID)
	sc.selectedAccount = accountNumber
	sc.awaitingPIN = true
	c.log.Info("chat.account_selected", "session", sessionID)
	return nil
}

// SelectedAccount returns the confirmed account number, or "" when none
// is selected. A stored short number is treated as unselected.
func (c *Contexts) SelectedAccount(sessionID string) string {
	acct := c.session(sessionID).selectedAccount
	if len(acct) < minAccountLen {
		return ""
	}
	return acct
}

// AccountSelected reports whether the customer has confirmed an account.
func (c *Contexts) AccountSelected(sessionID string) bool {
	return c.session(sessionID).selectedAccount != ""
}

// AwaitingPIN reports whether the next customer message is expected to
// be a PIN.
func (c *Contexts) AwaitingPIN(sessionID string) bool {
	return c.session(sessionID).awaitingPIN
}

// ResetSelection clears a broken selection so the customer can start
// over from their account digits.
func (c *Contexts) ResetSelection(sessionID string) {
	sc := c.session(sessionID)
	sc.selectedAccount = ""
	sc.awaitingPIN = false
}

// End drops a session's context. Reports whether it existed.
func (c *Contexts) End(sessionID string) bool {
	if _, ok := c.sessions[sessionID]; !ok {
		return false
	}
	delete(c.sessions, sessionID)
	c.log.Info("chat.session_context_ended", "session", sessionID)
	return true
}

// ClearExpired drops contexts for sessions the tracker expired.
func (c *Contexts) ClearExpired(sessionIDs []string) {
	for _, id := range sessionIDs {
		delete(c.sessions, id)
	}
}
