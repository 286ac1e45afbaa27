package bank

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func testClient() *MemoryClient {
	return NewMemoryClient(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAccountsByMobile(t *testing.T) {
	t.Parallel()

	c := testClient()
	ctx := context.Background()

	refs, err := c.AccountsByMobile(ctx, "01712345678", "")
	if err != nil {
		t.Fatalf("AccountsByMobile: %v", err)
	}
	if len(refs) != 3 {
		t.Fatalf("got %d accounts, want 3", len(refs))
	}
	for _, r := range refs {
		if r.Number == "" || r.Masked == "" {
			t.Fatalf("incomplete ref: %+v", r)
		}
	}

	// Country-code and formatting variants normalize to the same customer.
	for _, mobile := range []string{"8801712345678", "+880 1712-345678", "1712345678"} {
		if _, err := c.AccountsByMobile(ctx, mobile, ""); err != nil {
			t.Fatalf("AccountsByMobile(%q): %v", mobile, err)
		}
	}

	if _, err := c.AccountsByMobile(ctx, "01900000000", ""); !errors.Is(err, ErrNoAccounts) {
		t.Fatalf("unknown mobile: err=%v", err)
	}
}

func TestVerifyPIN(t *testing.T) {
	t.Parallel()

	c := testClient()
	ctx := context.Background()

	ok, err := c.VerifyPIN(ctx, "1311002345678", "1234", "", "")
	if err != nil || !ok {
		t.Fatalf("correct pin: ok=%v err=%v", ok, err)
	}

	ok, err = c.VerifyPIN(ctx, "1311002345678", "4321", "", "")
	if err != nil || ok {
		t.Fatalf("wrong pin must be (false, nil): ok=%v err=%v", ok, err)
	}

	if _, err := c.VerifyPIN(ctx, "0000000000000", "1234", "", ""); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("missing account: err=%v", err)
	}
}

func TestAccountDetails(t *testing.T) {
	t.Parallel()

	c := testClient()
	ctx := context.Background()

	d, err := c.AccountDetails(ctx, "1308001234567", "", "")
	if err != nil {
		t.Fatalf("AccountDetails: %v", err)
	}
	if d.HolderName != "AHMED RAHMAN" || d.Currency != "BDT" || d.CurrentBalance != "8540.25" {
		t.Fatalf("unexpected details: %+v", d)
	}

	if _, err := c.AccountDetails(ctx, "0000000000000", "", ""); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("missing account: err=%v", err)
	}
}

func TestContextCancellation(t *testing.T) {
	t.Parallel()

	c := testClient()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.AccountsByMobile(ctx, "01712345678", ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("AccountsByMobile with canceled ctx: %v", err)
	}
	if _, err := c.VerifyPIN(ctx, "1311002345678", "1234", "", ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("VerifyPIN with canceled ctx: %v", err)
	}
	if _, err := c.AccountDetails(ctx, "1311002345678", "", ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("AccountDetails with canceled ctx: %v", err)
	}
}
