package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"bankassist/cmd/internal/bank"
	chatv1 "bankassist/contracts/chat/v1"
)

// ErrMissingArgument is returned when a required tool argument is absent.
var ErrMissingArgument = errors.New("missing tool argument")

// ValidationResult is the tool response shape for account and PIN checks.
type ValidationResult struct {
	Valid         bool   `json:"valid"`
	Message       string `json:"message"`
	AccountStatus string `json:"account_status,omitempty"`
}

// Service exposes the authentication tools (validate_account, validate_pin)
// backed by the bank core. It performs the checks only; recording the
// resulting session state is the caller's job via Tracker.
type Service struct {
	log    *slog.Logger
	client bank.Client
}

// NewService constructs the authentication tool service.
func NewService(log *slog.Logger, client bank.Client) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{log: log, client: client}
}

// Domain identifies this service in the registry.
func (s *Service) Domain() string { return "authentication" }

// Tools lists the authentication tool definitions.
func (s *Service) Tools() []chatv1.Tool {
	return []chatv1.Tool{
		chatv1.FunctionTool(chatv1.FunctionDef{
			Name:        "validate_account",
			Description: "Validates if an account number exists in the system",
			Parameters: []byte(`{
				"type": "object",
				"properties": {
					"account_number": {"type": "string", "description": "The account number to validate"},
					"mobile_number": {"type": "string", "description": "Optional mobile number for additional validation"}
				},
				"required": ["account_number"]
			}`),
		}),
		chatv1.FunctionTool(chatv1.FunctionDef{
			Name:        "validate_pin",
			Description: "Validates if the PIN is correct for the given account number",
			Parameters: []byte(`{
				"type": "object",
				"properties": {
					"account_number": {"type": "string", "description": "The account number"},
					"pin": {"type": "string", "description": "The PIN to validate"},
					"mobile_number": {"type": "string", "description": "Optional mobile number for additional validation"}
				},
				"required": ["account_number", "pin"]
			}`),
		}),
	}
}

// Execute runs one authentication tool.
func (s *Service) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "validate_account":
		account, err := StringArg(args, "account_number")
		if err != nil {
			return nil, err
		}
		return s.ValidateAccount(ctx, account, optString(args, "mobile_number")), nil
	case "validate_pin":
		account, err := StringArg(args, "account_number")
		if err != nil {
			return nil, err
		}
		pin, err := StringArg(args, "pin")
		if err != nil {
			return nil, err
		}
		return s.ValidatePIN(ctx, account, pin, optString(args, "mobile_number")), nil
	default:
		return nil, fmt.Errorf("authentication: unknown tool %q", name)
	}
}

// ValidateAccount checks whether an account exists. The model often passes
// only the last four digits the customer read out; when a mobile number is
// available those are resolved to the full account first.
func (s *Service) ValidateAccount(ctx context.Context, accountNumber, mobile string) ValidationResult {
	accountNumber, ok := s.ResolveAccount(ctx, accountNumber, mobile)
	if !ok {
		return ValidationResult{Valid: false, Message: "Account not found"}
	}

	details, err := s.client.AccountDetails(ctx, accountNumber, mobile, "")
	if err != nil {
		s.log.Info("auth.validate_account", "account", maskAccount(accountNumber), "valid", false, "err", err)
		return ValidationResult{Valid: false, Message: "Account not found"}
	}

	s.log.Info("auth.validate_account", "account", maskAccount(accountNumber), "valid", true)
	return ValidationResult{Valid: true, Message: "Account found", AccountStatus: details.Status}
}

// ValidatePIN checks a card PIN. Wrong PINs and lookup failures both come
// back as invalid results rather than errors: the conversation must keep
// moving either way.
func (s *Service) ValidatePIN(ctx context.Context, accountNumber, pin, mobile string) ValidationResult {
	accountNumber, ok := s.ResolveAccount(ctx, accountNumber, mobile)
	if !ok {
		return ValidationResult{Valid: false, Message: "Account not found"}
	}

	valid, err := s.client.VerifyPIN(ctx, accountNumber, pin, mobile, "")
	if err != nil {
		s.log.Info("auth.validate_pin", "account", maskAccount(accountNumber), "valid", false, "err", err)
		return ValidationResult{Valid: false, Message: "Invalid PIN"}
	}

	s.log.Info("auth.validate_pin", "account", maskAccount(accountNumber), "valid", valid)
	if !valid {
		return ValidationResult{Valid: false, Message: "Invalid PIN"}
	}
	return ValidationResult{Valid: true, Message: "PIN validated"}
}

// ResolveAccount expands a short (last-4-digits) account reference to the
// full account number via mobile lookup. Full numbers pass through untouched.
// The second return is false only when a short reference cannot be matched.
func (s *Service) ResolveAccount(ctx context.Context, accountNumber, mobile string) (string, bool) {
	if len(accountNumber) > 4 || mobile == "" {
		return accountNumber, true
	}

	refs, err := s.client.AccountsByMobile(ctx, mobile, "")
	if err != nil {
		s.log.Warn("auth.resolve_account.lookup_fail", "err", err)
		return accountNumber, false
	}
	for _, ref := range refs {
		if strings.HasSuffix(ref.Number, accountNumber) {
			return ref.Number, true
		}
	}
	s.log.Warn("auth.resolve_account.no_match", "suffix", accountNumber)
	return accountNumber, false
}

// StringArg extracts a required string argument from a decoded payload.
func StringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingArgument, key)
	}
	return v, nil
}

func optString(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}
