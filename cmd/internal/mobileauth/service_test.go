package mobileauth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"bankassist/cmd/internal/auth"
	"bankassist/cmd/internal/bank"
)

type failingClient struct{ bank.Client }

func (failingClient) AccountsByMobile(context.Context, string, string) ([]bank.AccountRef, error) {
	return nil, bank.ErrUnavailable
}

func testService() *Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(log, bank.NewMemoryClient(log))
}

func TestAccountsByMobile(t *testing.T) {
	t.Parallel()

	s := testService()
	ctx := context.Background()

	got := s.AccountsByMobile(ctx, "01712345678", "")
	if got.Status != "success" || len(got.Accounts) != 3 {
		t.Fatalf("known mobile: %+v", got)
	}
	if got.Message != "Found 3 account(s)" {
		t.Fatalf("message=%q", got.Message)
	}

	got = s.AccountsByMobile(ctx, "01900000000", "")
	if got.Status != "not_found" || len(got.Accounts) != 0 {
		t.Fatalf("unknown mobile: %+v", got)
	}
}

func TestLookupFailureBecomesErrorStatus(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewService(log, failingClient{})

	got := s.AccountsByMobile(context.Background(), "01712345678", "")
	if got.Status != "error" || len(got.Accounts) != 0 {
		t.Fatalf("unavailable core: %+v", got)
	}
}

func TestExecute(t *testing.T) {
	t.Parallel()

	s := testService()
	ctx := context.Background()

	res, err := s.Execute(ctx, "get_accounts_by_mobile", map[string]any{"mobile_number": "01712345678"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if r, ok := res.(Result); !ok || r.Status != "success" {
		t.Fatalf("result=%#v", res)
	}

	if _, err := s.Execute(ctx, "get_accounts_by_mobile", map[string]any{}); !errors.Is(err, auth.ErrMissingArgument) {
		t.Fatalf("missing mobile: err=%v", err)
	}
	if _, err := s.Execute(ctx, "get_balance", nil); err == nil {
		t.Fatal("unknown tool must error")
	}
}
