// Package bank abstracts the bank core the assistant talks to.
//
// Three backends implement the same Client interface: an in-memory client
// seeded with sample accounts (dev default), a Postgres-backed bank core,
// and an HTTP client for the upstream middleware API. The chat layer never
// sees which one it is talking to.
package bank

import (
	"context"
	"errors"
)

var (
	// ErrAccountNotFound is returned when an account number does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrNoAccounts is returned when a mobile number has no linked accounts.
	ErrNoAccounts = errors.New("no accounts for mobile number")

	// ErrUnavailable is returned when the backing bank core cannot be reached.
	ErrUnavailable = errors.New("bank core unavailable")
)

// AccountRef is a lookup result: the full account number plus the masked
// form safe to read back to a customer.
type AccountRef struct {
	Number string
	Masked string
}

// Details is the account view exposed to the assistant's tools.
// Balances stay strings: the upstream middleware emits them with trailing
// whitespace and formatting is a presentation concern.
type Details struct {
	Number           string
	HolderName       string
	Status           string
	ProductType      string
	ProductName      string
	Currency         string
	CurrentBalance   string
	AvailableBalance string
	LastTxnDate      string
	OpenDate         string
	BranchCode       string
	Mobile           string
}

// Client is the bank core contract.
//
// callID is an opaque tracking identifier threaded through for audit
// correlation; implementations may ignore it.
type Client interface {
	// AccountsByMobile lists accounts linked to a mobile number.
	AccountsByMobile(ctx context.Context, mobile, callID string) ([]AccountRef, error)

	// VerifyPIN checks a card PIN for an account. A wrong PIN is
	// (false, nil); errors are reserved for lookup/transport failures.
	VerifyPIN(ctx context.Context, accountNumber, pin, mobile, callID string) (bool, error)

	// AccountDetails fetches the account view for accountNumber.
	AccountDetails(ctx context.Context, accountNumber, mobile, callID string) (Details, error)
}
