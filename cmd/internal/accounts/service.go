// Package accounts exposes account-information tools: full detail
// snapshots, single-field queries, and the reference tables for
// currencies and account types.
package accounts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"bankassist/cmd/internal/auth"
	"bankassist/cmd/internal/bank"
	chatv1 "bankassist/contracts/chat/v1"
)

// Service answers account-information tool calls against the bank core.
// Authorization is the caller's concern: the orchestrator only dispatches
// here for sessions that already hold an authenticated account.
type Service struct {
	log    *slog.Logger
	client bank.Client
}

// NewService constructs the account tool service.
func NewService(log *slog.Logger, client bank.Client) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{log: log, client: client}
}

// Domain identifies this service in the registry.
func (s *Service) Domain() string { return "account" }

// Tools lists the account tool definitions.
func (s *Service) Tools() []chatv1.Tool {
	return []chatv1.Tool{
		chatv1.FunctionTool(chatv1.FunctionDef{
			Name:        "get_account_details",
			Description: "Gets the full details of an account after authentication",
			Parameters: []byte(`{
				"type": "object",
				"properties": {
					"account_number": {"type": "string", "description": "The account number"}
				},
				"required": ["account_number"]
			}`),
		}),
		chatv1.FunctionTool(chatv1.FunctionDef{
			Name:        "get_account_field",
			Description: "Gets a single field of an account, such as the balance or status",
			Parameters: []byte(`{
				"type": "object",
				"properties": {
					"account_number": {"type": "string", "description": "The account number"},
					"field": {"type": "string", "description": "The field to fetch, e.g. balance, status, account_type"}
				},
				"required": ["account_number", "field"]
			}`),
		}),
		chatv1.FunctionTool(chatv1.FunctionDef{
			Name:        "get_currency_details",
			Description: "Gets the name and symbol for a currency code",
			Parameters: []byte(`{
				"type": "object",
				"properties": {
					"currency": {"type": "string", "description": "ISO currency code, e.g. BDT"}
				},
				"required": ["currency"]
			}`),
		}),
		chatv1.FunctionTool(chatv1.FunctionDef{
			Name:        "get_account_type_details",
			Description: "Explains a bank account type code such as SB or CA",
			Parameters: []byte(`{
				"type": "object",
				"properties": {
					"account_type": {"type": "string", "description": "Account type code, e.g. SB"}
				},
				"required": ["account_type"]
			}`),
		}),
	}
}

// Execute runs one account tool.
func (s *Service) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "get_account_details":
		account, err := auth.StringArg(args, "account_number")
		if err != nil {
			return nil, err
		}
		return s.Details(ctx, account, mobileArg(args), callIDArg(args))
	case "get_account_field":
		account, err := auth.StringArg(args, "account_number")
		if err != nil {
			return nil, err
		}
		field, err := auth.StringArg(args, "field")
		if err != nil {
			return nil, err
		}
		return s.Field(ctx, account, field, mobileArg(args), callIDArg(args))
	case "get_currency_details":
		code, err := auth.StringArg(args, "currency")
		if err != nil {
			return nil, err
		}
		return CurrencyDetails(code), nil
	case "get_account_type_details":
		code, err := auth.StringArg(args, "account_type")
		if err != nil {
			return nil, err
		}
		return AccountTypeDetails(code), nil
	default:
		return nil, fmt.Errorf("account: unknown tool %q", name)
	}
}

// DetailsResult is the tool response for a full account snapshot.
type DetailsResult struct {
	Found   bool          `json:"found"`
	Message string        `json:"message,omitempty"`
	Account *bank.Details `json:"account,omitempty"`
}

// Details fetches the full account snapshot.
func (s *Service) Details(ctx context.Context, accountNumber, mobile, callID string) (DetailsResult, error) {
	d, err := s.client.AccountDetails(ctx, accountNumber, mobile, callID)
	if err != nil {
		s.log.Info("accounts.details", "account", mask(accountNumber), "found", false, "err", err)
		return DetailsResult{Found: false, Message: "Account not found"}, nil
	}
	s.log.Info("accounts.details", "account", mask(accountNumber), "found", true)
	return DetailsResult{Found: true, Account: &d}, nil
}

// FieldResult is the tool response for a single-field query.
type FieldResult struct {
	Found   bool   `json:"found"`
	Field   string `json:"field,omitempty"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message,omitempty"`
}

// Field fetches one field of an account, applying the customer-facing
// name for the field and currency formatting for money amounts.
func (s *Service) Field(ctx context.Context, accountNumber, field, mobile, callID string) (FieldResult, error) {
	d, err := s.client.AccountDetails(ctx, accountNumber, mobile, callID)
	if err != nil {
		return FieldResult{Found: false, Message: "Account not found"}, nil
	}

	name, value, ok := lookupField(d, field)
	if !ok {
		return FieldResult{Found: false, Message: fmt.Sprintf("Unknown field %q", field)}, nil
	}
	return FieldResult{Found: true, Field: name, Value: value}, nil
}

// lookupField maps the model's field names (and common aliases) onto the
// account snapshot.
func lookupField(d bank.Details, field string) (name, value string, ok bool) {
	switch normalizeField(field) {
	case "balance", "current_balance":
		return "current balance", FormatAmount(d.CurrentBalance, d.Currency), true
	case "available_balance":
		return "available balance", FormatAmount(d.AvailableBalance, d.Currency), true
	case "status", "account_status":
		return "account status", d.Status, true
	case "account_type", "product_type", "type":
		return "account type", AccountTypeDetails(d.ProductType).Name, true
	case "product", "product_name":
		return "product", d.ProductName, true
	case "currency":
		return "currency", CurrencyDetails(d.Currency).Name, true
	case "holder_name", "name", "account_holder":
		return "account holder", d.HolderName, true
	case "last_transaction", "last_txn_date", "last_transaction_date":
		return "last transaction date", d.LastTxnDate, true
	case "open_date", "opening_date":
		return "opening date", d.OpenDate, true
	case "branch", "branch_code":
		return "branch code", d.BranchCode, true
	default:
		return "", "", false
	}
}

func normalizeField(field string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(field)), " ", "_")
}

// Currency is a reference-table entry for a supported currency.
type Currency struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

var currencies = map[string]Currency{
	"BDT": {Code: "BDT", Name: "Bangladeshi Taka", Symbol: "৳"},
	"USD": {Code: "USD", Name: "US Dollar", Symbol: "$"},
	"EUR": {Code: "EUR", Name: "Euro", Symbol: "€"},
	"GBP": {Code: "GBP", Name: "British Pound", Symbol: "£"},
}

// CurrencyDetails resolves a currency code. Unknown codes come back with
// the code echoed as both name and symbol so replies stay readable.
func CurrencyDetails(code string) Currency {
	code = strings.ToUpper(strings.TrimSpace(code))
	if c, ok := currencies[code]; ok {
		return c
	}
	return Currency{Code: code, Name: code, Symbol: code}
}

// FormatAmount renders a money amount with its currency symbol.
func FormatAmount(amount, currency string) string {
	c := CurrencyDetails(currency)
	if c.Symbol == c.Code {
		return amount + " " + c.Code
	}
	return c.Symbol + amount
}

// AccountType is a reference-table entry for an account type code.
type AccountType struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var accountTypes = map[string]AccountType{
	"SB": {Code: "SB", Name: "Savings Account", Description: "A deposit account that earns interest on the balance"},
	"CA": {Code: "CA", Name: "Current Account", Description: "A transactional account for day-to-day banking with no withdrawal limits"},
	"TD": {Code: "TD", Name: "Term Deposit", Description: "A fixed-term deposit that earns a higher interest rate until maturity"},
	"RD": {Code: "RD", Name: "Recurring Deposit", Description: "A deposit scheme with fixed monthly installments"},
}

// AccountTypeDetails resolves an account type code. Unknown codes echo the
// code as the name.
func AccountTypeDetails(code string) AccountType {
	code = strings.ToUpper(strings.TrimSpace(code))
	if t, ok := accountTypes[code]; ok {
		return t
	}
	return AccountType{Code: code, Name: code, Description: "Account type"}
}

func mask(account string) string {
	if len(account) <= 4 {
		return account
	}
	return "***" + account[len(account)-4:]
}

func mobileArg(args map[string]any) string {
	v, _ := args["mobile_number"].(string)
	return v
}

func callIDArg(args map[string]any) string {
	v, _ := args["call_id"].(string)
	return v
}
