package chat

import (
	"context"
	"strings"
	"testing"

	accountsvc "bankassist/cmd/internal/accounts"
	"bankassist/cmd/internal/auth"
	"bankassist/cmd/internal/bank"
	"bankassist/cmd/internal/llm"
	"bankassist/cmd/internal/mobileauth"
	"bankassist/cmd/internal/tools"
	chatv1 "bankassist/contracts/chat/v1"
)

// sample data from the in-memory bank core
const (
	testMobile  = "01712345678"
	testAccount = "1311002345678"
	testMasked  = "131100***5678"
	testPIN     = "1234"
)

type botHookCounts struct {
	authenticated int
	ended         int
	expired       int
}

func newTestBot(t *testing.T, script *llm.Script) (*Bot, *botHookCounts) {
	t.Helper()

	log := testLogger()
	client := bank.NewMemoryClient(log)

	authSvc := auth.NewService(log, client)
	accounts := accountsvc.NewService(log, client)
	mobileAuth := mobileauth.NewService(log, client)

	registry := tools.NewRegistry(log)
	registry.Register(authSvc)
	registry.Register(accounts)
	registry.Register(mobileAuth)

	counts := &botHookCounts{}
	bot := NewBot(Config{
		Log:          log,
		Provider:     script,
		Registry:     registry,
		Tracker:      auth.NewTracker(log),
		Auth:         authSvc,
		Accounts:     accounts,
		MobileAuth:   mobileAuth,
		SystemPrompt: "You are a banking assistant.",
		Hooks: Hooks{
			Authenticated:   func() { counts.authenticated++ },
			SessionEnded:    func() { counts.ended++ },
			SessionsExpired: func(n int) { counts.expired += n },
		},
	})
	return bot, counts
}

func process(t *testing.T, b *Bot, sessionID, message string) string {
	t.Helper()
	reply, err := b.ProcessMessage(context.Background(), sessionID, message, testMobile, "ivr")
	if err != nil {
		t.Fatalf("ProcessMessage(%q): %v", message, err)
	}
	return reply
}

func TestFullAuthenticationFlow(t *testing.T) {
	t.Parallel()

	// The deterministic flow never reaches the model.
	b, counts := newTestBot(t, llm.NewScript())
	const sid = "sess-flow-1"

	// Restricted topics are refused before anything else.
	if got := process(t, b, sid, "can I get a loan?"); got != replyRestricted {
		t.Fatalf("restricted reply=%q", got)
	}

	// A balance ask before authentication requests the last 4 digits.
	if got := process(t, b, sid, "what is my balance?"); got != replyAskLastDigits {
		t.Fatalf("balance ask reply=%q", got)
	}

	// The last 4 digits select the account and move to awaiting-PIN.
	got := process(t, b, sid, "5678")
	if !strings.Contains(got, testMasked) || !strings.Contains(got, "4-digit PIN") {
		t.Fatalf("account confirm reply=%q", got)
	}
	if !b.contexts.AwaitingPIN(sid) {
		t.Fatal("flow must be awaiting the PIN")
	}

	// A wrong PIN is rejected and the flow stays put.
	if got := process(t, b, sid, "0000"); got != replyWrongPIN {
		t.Fatalf("wrong pin reply=%q", got)
	}
	if counts.authenticated != 0 {
		t.Fatal("wrong pin must not authenticate")
	}

	// The correct PIN authenticates and reads back the details.
	got = process(t, b, sid, testPIN)
	if !strings.HasPrefix(got, "Thank you for providing your PIN.") {
		t.Fatalf("auth reply=%q", got)
	}
	for _, want := range []string{"1250.75", "BDT", "OPERATIVE", "2025-01-15"} {
		if !strings.Contains(got, want) {
			t.Fatalf("auth reply missing %q: %q", want, got)
		}
	}
	if counts.authenticated != 1 {
		t.Fatalf("authenticated hook fired %d times", counts.authenticated)
	}
	if !b.tracker.IsAuthenticated(sid) {
		t.Fatal("tracker must hold the session")
	}
	if acct, _ := b.tracker.AuthenticatedAccount(sid); acct != testAccount {
		t.Fatalf("bound account=%q", acct)
	}

	// The PIN itself never enters the transcript.
	for _, msg := range b.transcripts.History(sid) {
		for _, tc := range msg.ToolCalls {
			if strings.Contains(tc.Function.Arguments, testPIN) {
				t.Fatalf("plaintext pin in transcript: %s", tc.Function.Arguments)
			}
		}
	}

	// Authenticated field queries skip the model entirely.
	if got := process(t, b, sid, "what is my balance?"); !strings.Contains(got, "1250.75") {
		t.Fatalf("field query reply=%q", got)
	}
	if got := process(t, b, sid, "what's the status?"); !strings.Contains(got, "OPERATIVE") {
		t.Fatalf("status query reply=%q", got)
	}

	// Teardown.
	if !b.EndSession(sid) {
		t.Fatal("EndSession must report true")
	}
	if b.EndSession(sid) {
		t.Fatal("second EndSession must report false")
	}
	if counts.ended != 1 {
		t.Fatalf("ended hook fired %d times", counts.ended)
	}
}

func TestUnknownDigitsDoNotSelect(t *testing.T) {
	t.Parallel()

	b, _ := newTestBot(t, llm.NewScript())
	const sid = "sess-digits"

	got := process(t, b, sid, "it ends with 0042")
	if !strings.Contains(got, "0042") || !strings.Contains(got, "couldn't find an account") {
		t.Fatalf("no-match reply=%q", got)
	}
	if b.contexts.AccountSelected(sid) {
		t.Fatal("no selection on a failed match")
	}
}

func TestNonPINWhileAwaiting(t *testing.T) {
	t.Parallel()

	b, _ := newTestBot(t, llm.NewScript())
	const sid = "sess-nopin"

	process(t, b, sid, "5678")
	if got := process(t, b, sid, "why do you need that?"); got != replyNeedPIN {
		t.Fatalf("non-pin reply=%q", got)
	}
	if !b.contexts.AwaitingPIN(sid) {
		t.Fatal("flow must keep awaiting the PIN")
	}
}

func TestMissingCallerID(t *testing.T) {
	t.Parallel()

	b, _ := newTestBot(t, llm.NewScript())

	reply, err := b.ProcessMessage(context.Background(), "sess-nocaller", "5678", "", "web")
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if reply != replyNoCallerID {
		t.Fatalf("reply=%q", reply)
	}
}

func TestModelTurnWithToolCalls(t *testing.T) {
	t.Parallel()

	script := llm.NewScript(
		llm.Reply{ToolCalls: []chatv1.ToolCall{{
			ID:   "call_1",
			Type: "function",
			Function: chatv1.FunctionCall{
				Name:      "get_accounts_by_mobile",
				Arguments: `{"mobile_number":"` + testMobile + `"}`,
			},
		}}},
		llm.Reply{Content: "I found accounts on your number. Please share the last 4 digits."},
	)
	b, _ := newTestBot(t, script)
	const sid = "sess-model"

	got := process(t, b, sid, "hello, I need help with my account")
	if got != "I found accounts on your number. Please share the last 4 digits." {
		t.Fatalf("reply=%q", got)
	}
	if len(script.Calls) != 2 {
		t.Fatalf("model called %d times, want 2", len(script.Calls))
	}
	if !b.contexts.HasAccounts(sid) {
		t.Fatal("lookup result must land in the session context")
	}

	// The tool response visible to the model is sanitized: no account
	// numbers, only a found signal.
	var toolResp string
	for _, msg := range b.transcripts.History(sid) {
		if msg.Role == chatv1.RoleTool && msg.ToolCallID == "call_1" {
			toolResp = msg.Content
		}
	}
	if toolResp == "" {
		t.Fatal("tool response missing from transcript")
	}
	if strings.Contains(toolResp, testAccount) || strings.Contains(toolResp, testMasked) {
		t.Fatalf("tool response leaks account numbers: %s", toolResp)
	}
	if !strings.Contains(toolResp, `"accounts_found":true`) {
		t.Fatalf("tool response missing found signal: %s", toolResp)
	}
}

func TestModelValidatePINAuthenticates(t *testing.T) {
	t.Parallel()

	script := llm.NewScript(
		llm.Reply{ToolCalls: []chatv1.ToolCall{
			{
				ID:   "call_va",
				Type: "function",
				Function: chatv1.FunctionCall{
					Name:      "validate_account",
					Arguments: `{"account_number":"` + testAccount + `"}`,
				},
			},
			{
				ID:   "call_vp",
				Type: "function",
				Function: chatv1.FunctionCall{
					Name:      "validate_pin",
					Arguments: `{"account_number":"` + testAccount + `","pin":"` + testPIN + `"}`,
				},
			},
		}},
		llm.Reply{Content: "You are authenticated."},
	)
	b, counts := newTestBot(t, script)
	const sid = "sess-model-pin"

	got := process(t, b, sid, "account "+testAccount+" pin "+testPIN)
	if got != "You are authenticated." {
		t.Fatalf("reply=%q", got)
	}
	if !b.tracker.IsAuthenticated(sid) {
		t.Fatal("validate_pin success must authenticate the session")
	}
	if counts.authenticated != 1 {
		t.Fatalf("authenticated hook fired %d times", counts.authenticated)
	}

	// Recorded arguments mask the PIN.
	for _, msg := range b.transcripts.History(sid) {
		for _, tc := range msg.ToolCalls {
			if tc.Function.Name == "validate_pin" && !strings.Contains(tc.Function.Arguments, `"pin":"****"`) {
				t.Fatalf("recorded pin not masked: %s", tc.Function.Arguments)
			}
		}
	}
}

func TestFailedValidationSkipsPINCheck(t *testing.T) {
	t.Parallel()

	script := llm.NewScript(
		llm.Reply{ToolCalls: []chatv1.ToolCall{
			{
				ID:   "call_va",
				Type: "function",
				Function: chatv1.FunctionCall{
					Name:      "validate_account",
					Arguments: `{"account_number":"9999999999999"}`,
				},
			},
			{
				ID:   "call_vp",
				Type: "function",
				Function: chatv1.FunctionCall{
					Name:      "validate_pin",
					Arguments: `{"account_number":"9999999999999","pin":"` + testPIN + `"}`,
				},
			},
		}},
		llm.Reply{Content: "I couldn't find that account. Please check the number."},
	)
	b, counts := newTestBot(t, script)
	const sid = "sess-badacct"

	process(t, b, sid, "my account is 9999999999999, pin "+testPIN)
	if b.tracker.IsAuthenticated(sid) {
		t.Fatal("failed validation must never end authenticated")
	}
	if counts.authenticated != 0 {
		t.Fatal("authenticated hook must not fire")
	}

	// validate_pin was skipped: no tool response linked to its call id.
	for _, msg := range b.transcripts.History(sid) {
		if msg.Role == chatv1.RoleTool && msg.ToolCallID == "call_vp" {
			t.Fatal("pin check ran despite failed account validation")
		}
	}
}

func TestRestrictedModelReplyOverridden(t *testing.T) {
	t.Parallel()

	script := llm.NewScript(
		llm.Reply{Content: "You could consider a personal loan for that."},
	)
	b, _ := newTestBot(t, script)

	if got := process(t, b, "sess-override", "what are my options?"); got != replyRestrictedOverride {
		t.Fatalf("reply=%q", got)
	}
}

func TestEmptyModelReply(t *testing.T) {
	t.Parallel()

	script := llm.NewScript(llm.Reply{})
	b, _ := newTestBot(t, script)

	if got := process(t, b, "sess-empty", "hello there"); got != replyEmptyModel {
		t.Fatalf("reply=%q", got)
	}
}

func TestProviderErrorPropagates(t *testing.T) {
	t.Parallel()

	b, _ := newTestBot(t, llm.NewScript()) // zero replies: first call errors

	if _, err := b.ProcessMessage(context.Background(), "sess-err", "hello", testMobile, "web"); err == nil {
		t.Fatal("provider failure must surface as an error")
	}
}

func TestInjectPrompt(t *testing.T) {
	t.Parallel()

	b, _ := newTestBot(t, llm.NewScript())
	const sid = "sess-inject"

	if !b.InjectPrompt(sid, "Speak Bangla where possible.") {
		t.Fatal("InjectPrompt must report true")
	}
	hist := b.transcripts.History(sid)
	last := hist[len(hist)-1]
	if last.Role != chatv1.RoleSystem || last.Content != "Speak Bangla where possible." {
		t.Fatalf("injected prompt not recorded: %+v", last)
	}
}

func TestActiveSessions(t *testing.T) {
	t.Parallel()

	b, _ := newTestBot(t, llm.NewScript())

	if got := b.ActiveSessions(); got != 0 {
		t.Fatalf("ActiveSessions=%d want 0", got)
	}

	process(t, b, "sess-a", "5678")
	process(t, b, "sess-a", testPIN)

	if got := b.ActiveSessions(); got != 1 {
		t.Fatalf("ActiveSessions=%d want 1", got)
	}
}
