// Package mobileauth exposes the caller-line lookup tool: the accounts
// reachable from the mobile number a customer is calling from.
package mobileauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bankassist/cmd/internal/auth"
	"bankassist/cmd/internal/bank"
	chatv1 "bankassist/contracts/chat/v1"
)

// Result is the tool response for a mobile-number account lookup.
type Result struct {
	Status   string            `json:"status"`
	Message  string            `json:"message"`
	Accounts []bank.AccountRef `json:"accounts,omitempty"`
}

// Service answers mobile-number lookups against the bank core.
type Service struct {
	log    *slog.Logger
	client bank.Client
}

// NewService constructs the mobile-auth tool service.
func NewService(log *slog.Logger, client bank.Client) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{log: log, client: client}
}

// Domain identifies this service in the registry.
func (s *Service) Domain() string { return "mobile_auth" }

// Tools lists the mobile-auth tool definitions.
func (s *Service) Tools() []chatv1.Tool {
	return []chatv1.Tool{
		chatv1.FunctionTool(chatv1.FunctionDef{
			Name:        "get_accounts_by_mobile",
			Description: "Gets the masked accounts registered against a mobile number",
			Parameters: []byte(`{
				"type": "object",
				"properties": {
					"mobile_number": {"type": "string", "description": "The customer's mobile number"}
				},
				"required": ["mobile_number"]
			}`),
		}),
	}
}

// Execute runs one mobile-auth tool.
func (s *Service) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	if name != "get_accounts_by_mobile" {
		return nil, fmt.Errorf("mobile_auth: unknown tool %q", name)
	}
	mobile, err := auth.StringArg(args, "mobile_number")
	if err != nil {
		return nil, err
	}
	callID, _ := args["call_id"].(string)
	return s.AccountsByMobile(ctx, mobile, callID), nil
}

// AccountsByMobile looks up the accounts registered against a mobile
// number. Lookup failures come back as an error-status result so the
// conversation can continue.
func (s *Service) AccountsByMobile(ctx context.Context, mobile, callID string) Result {
	refs, err := s.client.AccountsByMobile(ctx, mobile, callID)
	switch {
	case errors.Is(err, bank.ErrNoAccounts):
		s.log.Info("mobileauth.lookup", "found", 0)
		return Result{Status: "not_found", Message: "No accounts found for this mobile number"}
	case err != nil:
		s.log.Warn("mobileauth.lookup_fail", "err", err)
		return Result{Status: "error", Message: "Account lookup is unavailable right now"}
	}
	s.log.Info("mobileauth.lookup", "found", len(refs))
	return Result{Status: "success", Message: fmt.Sprintf("Found %d account(s)", len(refs)), Accounts: refs}
}
