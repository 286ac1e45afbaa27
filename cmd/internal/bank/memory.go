package bank

import (
	"context"
	"log/slog"
)

type memoryAccount struct {
	ref     AccountRef
	pin     string
	mobile  string
	details Details
}

// MemoryClient is the dev/test backend: a fixed set of sample accounts with
// plaintext PINs, no I/O. It mirrors the sample data the upstream middleware
// returns so the full flow can be exercised offline.
type MemoryClient struct {
	log      *slog.Logger
	accounts map[string]memoryAccount // account number -> account
	byMobile map[string][]string      // normalized mobile -> account numbers
}

// NewMemoryClient constructs a MemoryClient seeded with sample accounts.
func NewMemoryClient(log *slog.Logger) *MemoryClient {
	if log == nil {
		log = slog.Default()
	}
	c := &MemoryClient{
		log:      log,
		accounts: make(map[string]memoryAccount),
		byMobile: make(map[string][]string),
	}
	for _, a := range sampleAccounts() {
		c.accounts[a.ref.Number] = a
		mobile := NormalizeMobile(a.mobile)
		c.byMobile[mobile] = append(c.byMobile[mobile], a.ref.Number)
	}
	c.log.Info("bank.memory.ready", "accounts", len(c.accounts))
	return c
}

// AccountsByMobile lists sample accounts linked to mobile.
func (c *MemoryClient) AccountsByMobile(ctx context.Context, mobile, callID string) ([]AccountRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	numbers := c.byMobile[NormalizeMobile(mobile)]
	if len(numbers) == 0 {
		return nil, ErrNoAccounts
	}

	refs := make([]AccountRef, 0, len(numbers))
	for _, n := range numbers {
		refs = append(refs, c.accounts[n].ref)
	}
	return refs, nil
}

// VerifyPIN compares against the seeded plaintext PIN.
func (c *MemoryClient) VerifyPIN(ctx context.Context, accountNumber, pin, mobile, callID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	a, ok := c.accounts[accountNumber]
	if !ok {
		return false, ErrAccountNotFound
	}
	return a.pin == pin, nil
}

// AccountDetails returns the seeded account view.
func (c *MemoryClient) AccountDetails(ctx context.Context, accountNumber, mobile, callID string) (Details, error) {
	if err := ctx.Err(); err != nil {
		return Details{}, err
	}

	a, ok := c.accounts[accountNumber]
	if !ok {
		return Details{}, ErrAccountNotFound
	}
	return a.details, nil
}

// sampleAccounts reproduces the upstream sample data: one customer, one
// mobile number, three operative savings accounts.
func sampleAccounts() []memoryAccount {
	return []memoryAccount{
		{
			ref:    AccountRef{Number: "1311002345678", Masked: "131100***5678"},
			pin:    "1234",
			mobile: "01712345678",
			details: Details{
				Number:           "1311002345678",
				HolderName:       "AHMED RAHMAN",
				Status:           "OPERATIVE",
				ProductType:      "SB",
				ProductName:      "MTB REGULARSAVINGSSTAFF",
				Currency:         "BDT",
				CurrentBalance:   "1250.75",
				AvailableBalance: "1250.75",
				LastTxnDate:      "2025-01-15",
				OpenDate:         "2023-06-12",
				BranchCode:       "00057",
				Mobile:           "01712345678",
			},
		},
		{
			ref:    AccountRef{Number: "1308001234567", Masked: "130800***4567"},
			pin:    "5678",
			mobile: "01712345678",
			details: Details{
				Number:           "1308001234567",
				HolderName:       "AHMED RAHMAN",
				Status:           "OPERATIVE",
				ProductType:      "SB",
				ProductName:      "MTB REGULAR SAVINGS",
				Currency:         "BDT",
				CurrentBalance:   "8540.25",
				AvailableBalance: "8540.25",
				LastTxnDate:      "2025-01-20",
				OpenDate:         "2023-08-23",
				BranchCode:       "00012",
				Mobile:           "01712345678",
			},
		},
		{
			ref:    AccountRef{Number: "1311003456789", Masked: "131100***6789"},
			pin:    "9012",
			mobile: "01712345678",
			details: Details{
				Number:           "1311003456789",
				HolderName:       "AHMED RAHMAN",
				Status:           "OPERATIVE",
				ProductType:      "SB",
				ProductName:      "MTB REGULAR SAVINGS",
				Currency:         "BDT",
				CurrentBalance:   "25480.50",
				AvailableBalance: "25480.50",
				LastTxnDate:      "2025-02-01",
				OpenDate:         "2024-01-05",
				BranchCode:       "00034",
				Mobile:           "01712345678",
			},
		},
	}
}
