// Package chat orchestrates banking conversations: transcripts, session
// call context, the authentication flow, and the model round-trips with
// tool execution.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	accountsvc "bankassist/cmd/internal/accounts"
	"bankassist/cmd/internal/auth"
	"bankassist/cmd/internal/llm"
	"bankassist/cmd/internal/mobileauth"
	"bankassist/cmd/internal/tools"
	chatv1 "bankassist/contracts/chat/v1"
)

// Customer-facing replies for flow states the model never sees.
const (
	replyRestricted = "I'm sorry, but I can only provide account balance information for standard deposit accounts. " +
		"For inquiries regarding other products like loans, credit cards, or investments, " +
		"please contact our customer support team."
	replyRestrictedOverride = "I'm sorry, but I can only provide account balance information for standard deposit accounts. " +
		"For inquiries regarding other products, please contact our customer support team."
	replyAskLastDigits = "To assist you with your account balance, I'll need to verify your account. " +
		"Please provide the last 4 digits of your account number."
	replyNeedPIN      = "I need your 4-digit PIN to authenticate your account. Please enter only your PIN."
	replySessionError = "There was an error with your session. Please start over with your account number."
	replyWrongPIN     = "Sorry, the PIN you provided is incorrect. Please try again with the correct 4-digit PIN."
	replyNoCallerID   = "I need your mobile number to proceed. Please contact customer support."
	replyNoAccounts   = "I'm sorry, but I couldn't find any accounts associated with your phone number."
	replyLookupFailed = "Sorry, I'm having trouble retrieving your account information. Please try again later."
	replyEmptyModel   = "I apologize, but I'm having trouble generating a response. Please try again."
)

// Hooks let the serving layer observe session lifecycle events. Nil
// fields are skipped.
type Hooks struct {
	SessionsExpired func(count int)
	Authenticated   func()
	SessionEnded    func()
}

// Config wires a Bot.
type Config struct {
	Log        *slog.Logger
	Provider   llm.Provider
	Registry   *tools.Registry
	Tracker    *auth.Tracker
	Auth       *auth.Service
	Accounts   *accountsvc.Service
	MobileAuth *mobileauth.Service
	// SystemPrompt seeds every transcript.
	SystemPrompt string
	// Domains restricts which tool domains the model may call.
	// Empty means all registered domains.
	Domains []string
	Hooks   Hooks
}

// Bot runs the conversation flow. All session state lives behind one
// mutex: the tracker, transcripts and contexts are plain maps with a
// single synchronous owner.
type Bot struct {
	mu sync.Mutex

	log        *slog.Logger
	provider   llm.Provider
	registry   *tools.Registry
	tracker    *auth.Tracker
	authSvc    *auth.Service
	accounts   *accountsvc.Service
	mobileAuth *mobileauth.Service

	transcripts *Transcripts
	contexts    *Contexts
	keywords    *KeywordMatcher
	domains     []string
	hooks       Hooks
}

// NewBot constructs the orchestrator.
func NewBot(cfg Config) *Bot {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	domains := cfg.Domains
	if len(domains) == 0 {
		domains = cfg.Registry.Domains()
	}
	log.Info("chat.bot_init", "domains", strings.Join(domains, ","))
	return &Bot{
		log:         log,
		provider:    cfg.Provider,
		registry:    cfg.Registry,
		tracker:     cfg.Tracker,
		authSvc:     cfg.Auth,
		accounts:    cfg.Accounts,
		mobileAuth:  cfg.MobileAuth,
		transcripts: NewTranscripts(log, cfg.SystemPrompt),
		contexts:    NewContexts(log),
		keywords:    NewKeywordMatcher(RestrictedKeywords),
		domains:     domains,
		hooks:       cfg.Hooks,
	}
}

// ProcessMessage runs one customer turn and returns the assistant reply.
func (b *Bot) ProcessMessage(ctx context.Context, sessionID, message, callerID, channel string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.log.Info("chat.message", "session", sessionID, "channel", channel)
	b.contexts.Init(sessionID, callerID, channel)

	expired := b.tracker.CleanupExpired()
	if len(expired) > 0 {
		b.transcripts.ClearExpired(expired)
		b.contexts.ClearExpired(expired)
		if b.hooks.SessionsExpired != nil {
			b.hooks.SessionsExpired(len(expired))
		}
	}
	b.tracker.UpdateActivity(sessionID)

	if b.keywords.Match(message) {
		b.log.Info("chat.restricted_message", "session", sessionID)
		return replyRestricted, nil
	}

	if b.tracker.IsAuthenticated(sessionID) {
		account, _ := b.tracker.AuthenticatedAccount(sessionID)
		if reply := b.fieldQuery(ctx, sessionID, account, message); reply != "" {
			return reply, nil
		}
	}

	if strings.Contains(strings.ToLower(message), "balance") && !b.tracker.IsAuthenticated(sessionID) {
		b.transcripts.AddAssistant(sessionID, replyAskLastDigits)
		return replyAskLastDigits, nil
	}

	if reply, handled := b.advanceAuthFlow(ctx, sessionID, message); handled {
		return reply, nil
	}

	return b.modelTurn(ctx, sessionID, message)
}

// modelTurn runs the LLM round, executes any tool calls, and runs the
// follow-up round to phrase the tool results.
func (b *Bot) modelTurn(ctx context.Context, sessionID, message string) (string, error) {
	b.transcripts.AddUser(sessionID, message)

	if b.contexts.HasAccounts(sessionID) && !b.contexts.AccountSelected(sessionID) {
		b.transcripts.AddSystem(sessionID,
			"The user has accounts associated with their phone number. "+
				"Ask them to provide the last 4 digits of their account number to proceed. "+
				"IMPORTANT: DO NOT list or reveal any account numbers or account masks.")
	}

	reply, err := b.provider.Complete(ctx, b.transcripts.History(sessionID), b.registry.Tools(b.domains...))
	if err != nil {
		return "", fmt.Errorf("chat: completion: %w", err)
	}

	if reply.HasToolCalls() {
		b.log.Info("chat.tool_calls", "session", sessionID, "count", len(reply.ToolCalls))
		b.executeToolCalls(ctx, sessionID, reply.ToolCalls)
		b.addSecurityGuidance(sessionID)

		reply, err = b.provider.Complete(ctx, b.transcripts.History(sessionID), nil)
		if err != nil {
			return "", fmt.Errorf("chat: follow-up completion: %w", err)
		}
	}

	content := reply.Content
	if content == "" {
		content = replyEmptyModel
	}
	if b.keywords.Match(content) {
		b.log.Info("chat.restricted_reply", "session", sessionID)
		content = replyRestrictedOverride
	}
	b.transcripts.AddAssistant(sessionID, content)
	return content, nil
}

// advanceAuthFlow handles the deterministic part of authentication:
// collecting the PIN for a selected account, or matching the customer's
// last-4 digits against the accounts on their line. Returns handled=false
// when the message belongs to the model instead.
func (b *Bot) advanceAuthFlow(ctx context.Context, sessionID, message string) (string, bool) {
	if b.contexts.AccountSelected(sessionID) &&
		b.contexts.AwaitingPIN(sessionID) &&
		!b.tracker.IsAuthenticated(sessionID) {
		return b.collectPIN(ctx, sessionID, message), true
	}

	digits := ExtractLastDigits(message)
	if digits == "" {
		return "", false
	}
	return b.selectAccountByDigits(ctx, sessionID, digits), true
}

// collectPIN handles messages while awaiting the PIN. Any 4-digit
// message counts as the PIN here, so it is never misread as account
// digits.
func (b *Bot) collectPIN(ctx context.Context, sessionID, message string) string {
	pin := ExtractPIN(message)
	if pin == "" {
		b.transcripts.AddAssistant(sessionID, replyNeedPIN)
		return replyNeedPIN
	}

	account := b.contexts.SelectedAccount(sessionID)
	if account == "" {
		b.log.Error("chat.awaiting_pin_without_account", "session", sessionID)
		b.contexts.ResetSelection(sessionID)
		b.transcripts.AddAssistant(sessionID, replySessionError)
		return replySessionError
	}

	caller := b.contexts.CallerID(sessionID)
	result := b.authSvc.ValidatePIN(ctx, account, pin, caller)

	// The transcript gets a masked rendition of the check so the PIN
	// itself never enters the history.
	b.recordMaskedToolCall(sessionID, "pin_validation_call", "validate_pin", account, caller)
	b.transcripts.AddToolResponse(sessionID, "pin_validation_call", encodeJSON(result))

	if !result.Valid {
		b.transcripts.AddAssistant(sessionID, replyWrongPIN)
		return replyWrongPIN
	}

	b.tracker.Authenticate(sessionID, account)
	if b.hooks.Authenticated != nil {
		b.hooks.Authenticated()
	}

	details, _ := b.accounts.Details(ctx, account, caller, b.contexts.CallID(sessionID))
	b.recordMaskedToolCall(sessionID, "get_account_details_call", "get_account_details", account, caller)
	b.transcripts.AddToolResponse(sessionID, "get_account_details_call", encodeJSON(details))

	reply := "Thank you for providing your PIN. You're now authenticated."
	if details.Found {
		d := details.Account
		reply = fmt.Sprintf(
			"Thank you for providing your PIN. Here are your account details:\n\n"+
				"- **Current Balance:** %s\n"+
				"- **Currency:** %s\n"+
				"- **Account Status:** %s\n"+
				"- **Last Transaction Date:** %s",
			accountsvc.FormatAmount(d.CurrentBalance, d.Currency), d.Currency, d.Status, d.LastTxnDate)
	}
	b.transcripts.AddAssistant(sessionID, reply)
	return reply
}

// selectAccountByDigits matches the customer's last-4 digits against the
// accounts registered on their line and moves the flow to awaiting-PIN.
func (b *Bot) selectAccountByDigits(ctx context.Context, sessionID, digits string) string {
	caller := b.contexts.CallerID(sessionID)
	if caller == "" {
		b.log.Warn("chat.no_caller_for_lookup", "session", sessionID)
		b.transcripts.AddAssistant(sessionID, replyNoCallerID)
		return replyNoCallerID
	}

	result := b.mobileAuth.AccountsByMobile(ctx, caller, b.contexts.CallID(sessionID))
	switch {
	case result.Status == "error":
		b.transcripts.AddAssistant(sessionID, replyLookupFailed)
		return replyLookupFailed
	case result.Status != "success" || len(result.Accounts) == 0:
		b.transcripts.AddAssistant(sessionID, replyNoAccounts)
		return replyNoAccounts
	}

	b.contexts.SetRetrievedAccounts(sessionID, result.Accounts)

	for _, ref := range result.Accounts {
		if !strings.HasSuffix(ref.Number, digits) {
			continue
		}
		if err := b.contexts.SelectAccount(sessionID, ref.Number); err != nil {
			b.log.Error("chat.select_account_fail", "session", sessionID, "err", err)
			b.transcripts.AddAssistant(sessionID, replySessionError)
			return replySessionError
		}
		b.transcripts.AddSystem(sessionID,
			fmt.Sprintf("User confirmed account %s. Now ask for 4-digit PIN to authenticate.", ref.Masked))
		reply := fmt.Sprintf(
			"Thank you for confirming your account %s. For security, please provide your 4-digit PIN.", ref.Masked)
		b.transcripts.AddAssistant(sessionID, reply)
		return reply
	}

	b.log.Warn("chat.no_account_match", "session", sessionID, "suffix", digits)
	reply := fmt.Sprintf(
		"I'm sorry, but I couldn't find an account ending with %s for this phone number. Please check and try again.", digits)
	b.transcripts.AddAssistant(sessionID, reply)
	return reply
}

// executeToolCalls runs the model's tool calls. validate_account runs
// first so a failed existence check can short-circuit the PIN check in
// the same batch. PINs in arguments are masked before anything is
// written to the transcript.
func (b *Bot) executeToolCalls(ctx context.Context, sessionID string, calls []chatv1.ToolCall) {
	caller := b.contexts.CallerID(sessionID)
	callID := b.contexts.CallID(sessionID)

	validatedID := ""
	validationFailed := false

	for _, call := range calls {
		if call.Function.Name != "validate_account" {
			continue
		}
		validatedID = call.ID

		args := decodeArgs(b.log, call.Function.Arguments)
		if caller != "" {
			args["mobile_number"] = caller
		}
		b.recordToolCall(sessionID, call, args)

		result, err := b.registry.Execute(ctx, "validate_account", args)
		if err != nil {
			b.log.Error("chat.tool_fail", "tool", "validate_account", "err", err)
			b.transcripts.AddToolResponse(sessionID, call.ID, encodeJSON(map[string]any{"error": err.Error(), "valid": false}))
			validationFailed = true
			break
		}
		b.transcripts.AddToolResponse(sessionID, call.ID, encodeJSON(result))

		vr, ok := result.(auth.ValidationResult)
		if ok && vr.Valid {
			b.selectValidatedAccount(ctx, sessionID, args)
			break
		}
		validationFailed = true
		if acct, _ := args["account_number"].(string); len(acct) <= 4 {
			b.transcripts.AddAssistant(sessionID, fmt.Sprintf(
				"I'm sorry, but I couldn't find an account ending with %s associated with your phone number. "+
					"Please check the last 4 digits of your account number and try again.", acct))
			return
		}
		break
	}

	for _, call := range calls {
		name := call.Function.Name
		if name == "validate_account" && call.ID == validatedID {
			continue
		}
		if name == "validate_pin" && validationFailed {
			b.log.Info("chat.skip_pin_validation", "session", sessionID)
			continue
		}

		args := decodeArgs(b.log, call.Function.Arguments)
		sanitized := cloneArgs(args)
		if _, ok := sanitized["pin"]; ok {
			sanitized["pin"] = "****"
		}
		if name == "get_accounts_by_mobile" {
			if _, ok := args["call_id"]; !ok {
				args["call_id"] = callID
				sanitized["call_id"] = callID
			}
		}
		if caller != "" && (name == "validate_account" || name == "validate_pin" || name == "get_account_details") {
			args["mobile_number"] = caller
			sanitized["mobile_number"] = caller
		}

		b.recordToolCall(sessionID, call, sanitized)
		result, err := b.registry.Execute(ctx, name, args)
		if err != nil {
			b.log.Error("chat.tool_fail", "tool", name, "err", err)
			b.transcripts.AddToolResponse(sessionID, call.ID, encodeJSON(map[string]string{"error": err.Error()}))
			continue
		}
		b.applyToolResult(ctx, sessionID, name, args, result, call.ID)
	}
}

// applyToolResult records the tool response and folds the result into
// session state. Account lookups are sanitized to a found/not-found
// signal so the model can never echo account numbers.
func (b *Bot) applyToolResult(ctx context.Context, sessionID, name string, args map[string]any, result any, toolCallID string) {
	switch r := result.(type) {
	case mobileauth.Result:
		b.transcripts.AddToolResponse(sessionID, toolCallID, encodeJSON(map[string]any{
			"status":         r.Status,
			"message":        r.Message,
			"accounts_found": len(r.Accounts) > 0,
		}))
		if r.Status == "success" {
			b.contexts.SetRetrievedAccounts(sessionID, r.Accounts)
			b.transcripts.AddSystem(sessionID, fmt.Sprintf(
				"The system has found %d account(s) associated with the caller's phone number. "+
					"Ask the user to provide the last 4 digits of their account number to confirm which account they want to access. "+
					"IMPORTANT: Do not list or reveal any account numbers to the user. This is a security measure.", len(r.Accounts)))
		}

	case auth.ValidationResult:
		b.transcripts.AddToolResponse(sessionID, toolCallID, encodeJSON(r))
		if !r.Valid {
			return
		}
		switch name {
		case "validate_account":
			b.selectValidatedAccount(ctx, sessionID, args)
		case "validate_pin":
			account := b.fullAccountNumber(ctx, sessionID, stringArg(args, "account_number"))
			b.tracker.Authenticate(sessionID, account)
			if b.hooks.Authenticated != nil {
				b.hooks.Authenticated()
			}
		}

	case accountsvc.DetailsResult:
		b.transcripts.AddToolResponse(sessionID, toolCallID, encodeJSON(r))
		if name == "get_account_details" && r.Found {
			b.tracker.Authenticate(sessionID, r.Account.Number)
			if b.hooks.Authenticated != nil {
				b.hooks.Authenticated()
			}
		}

	default:
		b.transcripts.AddToolResponse(sessionID, toolCallID, encodeJSON(result))
	}
}

// selectValidatedAccount moves a successfully validated account into the
// awaiting-PIN state, resolving last-4 references to the full number.
func (b *Bot) selectValidatedAccount(ctx context.Context, sessionID string, args map[string]any) {
	account := b.fullAccountNumber(ctx, sessionID, stringArg(args, "account_number"))
	if err := b.contexts.SelectAccount(sessionID, account); err != nil {
		b.log.Error("chat.select_account_fail", "session", sessionID, "err", err)
		b.transcripts.AddSystem(sessionID,
			"There was an error with the account number validation. Ask the user to try again with the correct account number.")
	}
}

// fullAccountNumber resolves a last-4 account reference to the full
// number: the selected account first, then the session's retrieved
// accounts, then a fresh lookup against the caller's line. Full numbers
// pass through untouched.
func (b *Bot) fullAccountNumber(ctx context.Context, sessionID, account string) string {
	if len(account) > 4 {
		return account
	}
	if selected := b.contexts.SelectedAccount(sessionID); selected != "" {
		return selected
	}
	for _, ref := range b.contexts.RetrievedAccounts(sessionID) {
		if strings.HasSuffix(ref.Number, account) {
			return ref.Number
		}
	}
	if caller := b.contexts.CallerID(sessionID); caller != "" {
		if full, ok := b.authSvc.ResolveAccount(ctx, account, caller); ok {
			return full
		}
	}
	b.log.Warn("chat.short_account_unresolved", "session", sessionID, "suffix", account)
	return account
}

// fieldQuery answers single-field questions for authenticated sessions
// without a model round-trip.
func (b *Bot) fieldQuery(ctx context.Context, sessionID, accountNumber, message string) string {
	lower := strings.ToLower(message)
	var field string
	switch {
	case strings.Contains(lower, "balance") || strings.Contains(lower, "how much"):
		field = "balance"
	case strings.Contains(lower, "last transaction"):
		field = "last_transaction"
	case strings.Contains(lower, "status"):
		field = "status"
	case strings.Contains(lower, "currency"):
		field = "currency"
	case strings.Contains(lower, "account type") || strings.Contains(lower, "type of account"):
		field = "account_type"
	default:
		return ""
	}

	details, _ := b.accounts.Details(ctx, accountNumber, b.contexts.CallerID(sessionID), b.contexts.CallID(sessionID))
	if !details.Found {
		return ""
	}
	d := details.Account

	switch field {
	case "balance":
		return fmt.Sprintf("Your current balance is %s.", accountsvc.FormatAmount(d.CurrentBalance, d.Currency))
	case "last_transaction":
		return fmt.Sprintf("Your last transaction was on %s.", d.LastTxnDate)
	case "status":
		return fmt.Sprintf("Your account status is '%s'.", d.Status)
	case "currency":
		c := accountsvc.CurrencyDetails(d.Currency)
		return fmt.Sprintf("Your account is denominated in %s (%s).", c.Name, c.Code)
	case "account_type":
		t := accountsvc.AccountTypeDetails(d.ProductType)
		return fmt.Sprintf("You have a %s (%s).", t.Name, t.Code)
	}
	return ""
}

// InjectPrompt adds a system instruction to a session's transcript.
func (b *Bot) InjectPrompt(sessionID, prompt string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transcripts.AddSystem(sessionID, prompt)
	b.log.Info("chat.prompt_injected", "session", sessionID)
	return true
}

// EndSession tears down every piece of a session's state. Reports
// whether anything existed to tear down.
func (b *Bot) EndSession(sessionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	transcriptEnded := b.transcripts.End(sessionID)
	authEnded := b.tracker.EndSession(sessionID)
	contextEnded := b.contexts.End(sessionID)
	ended := transcriptEnded || authEnded || contextEnded
	if ended && b.hooks.SessionEnded != nil {
		b.hooks.SessionEnded()
	}
	return ended
}

// ActiveSessions reports how many sessions currently hold auth state.
func (b *Bot) ActiveSessions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tracker.Len()
}

func (b *Bot) addSecurityGuidance(sessionID string) {
	switch {
	case b.tracker.IsAuthenticated(sessionID):
		b.transcripts.AddSystem(sessionID,
			"Remember to include ALL available account information in your response, "+
				"including balance, currency, account status, and last transaction date if available.")
	case b.contexts.HasAccounts(sessionID) && b.contexts.AccountSelected(sessionID):
		b.transcripts.AddSystem(sessionID,
			"The user has selected an account. Ask for their 4-digit PIN to authenticate.")
	case b.contexts.HasAccounts(sessionID):
		b.transcripts.AddSystem(sessionID,
			"The user has accounts, but hasn't selected one yet. Ask them to provide the "+
				"last 4 digits of their account number. DO NOT list or reveal any account numbers.")
	}
}

// recordMaskedToolCall writes a synthetic tool call into the transcript
// with the PIN replaced, mirroring the checks the flow ran on the
// model's behalf.
func (b *Bot) recordMaskedToolCall(sessionID, callID, name, account, mobile string) {
	b.transcripts.AddToolCall(sessionID, chatv1.ToolCall{
		ID:   callID,
		Type: "function",
		Function: chatv1.FunctionCall{
			Name: name,
			Arguments: encodeJSON(map[string]string{
				"account_number": account,
				"pin":            "****",
				"mobile_number":  mobile,
			}),
		},
	})
}

func (b *Bot) recordToolCall(sessionID string, call chatv1.ToolCall, args map[string]any) {
	recorded := call
	recorded.Function.Arguments = encodeJSON(args)
	b.transcripts.AddToolCall(sessionID, recorded)
}

func decodeArgs(log *slog.Logger, raw string) map[string]any {
	args := make(map[string]any)
	if raw == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		log.Error("chat.tool_args_malformed", "err", err)
	}
	return args
}

func cloneArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func encodeJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
