package bank

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bankassist/cmd/security/pin"
)

// PostgresClient is a Client backed by a locally hosted bank core in
// PostgreSQL. PINs are stored as Argon2id hashes, never plaintext.
//
// Ownership model:
// - PostgresClient does NOT own the pgx pool. The caller must close it.
type PostgresClient struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresClient behavior.
type PostgresOption func(*PostgresClient) error

// WithSchema sets the DB schema used by this client (default: "bank").
// The schema name is validated and safely quoted in queries.
func WithSchema(schema string) PostgresOption {
	return func(c *PostgresClient) error {
		if !isValidPGIdent(schema) {
			return errors.New("bank: invalid schema identifier")
		}
		c.schema = schema
		return nil
	}
}

// NewPostgresClient constructs a Postgres-backed bank Client.
func NewPostgresClient(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresClient, error) {
	c := &PostgresClient{pool: pool, schema: "bank"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.pool == nil {
		return nil, errors.New("bank: nil pool")
	}
	return c, nil
}

// AccountsByMobile lists accounts linked to a mobile number.
func (c *PostgresClient) AccountsByMobile(ctx context.Context, mobile, callID string) ([]AccountRef, error) {
	q := fmt.Sprintf(
		`SELECT account_number, masked_account FROM %s.accounts WHERE mobile = $1 ORDER BY account_number`,
		quoteIdent(c.schema),
	)

	rows, err := c.pool.Query(ctx, q, NormalizeMobile(mobile))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var refs []AccountRef
	for rows.Next() {
		var r AccountRef
		if err := rows.Scan(&r.Number, &r.Masked); err != nil {
			return nil, err
		}
		refs = append(refs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(refs) == 0 {
		return nil, ErrNoAccounts
	}
	return refs, nil
}

// VerifyPIN checks the submitted PIN against the stored Argon2id hash.
func (c *PostgresClient) VerifyPIN(ctx context.Context, accountNumber, pinPlain, mobile, callID string) (bool, error) {
	q := fmt.Sprintf(
		`SELECT pin_hash FROM %s.accounts WHERE account_number = $1`,
		quoteIdent(c.schema),
	)

	var encoded string
	err := c.pool.QueryRow(ctx, q, accountNumber).Scan(&encoded)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrAccountNotFound
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	ok, err := pin.Verify(encoded, pinPlain)
	if err != nil {
		// A corrupt stored hash means the PIN cannot match; it is not
		// the caller's transport problem.
		return false, nil
	}
	return ok, nil
}

// AccountDetails fetches the account view for accountNumber.
func (c *PostgresClient) AccountDetails(ctx context.Context, accountNumber, mobile, callID string) (Details, error) {
	q := fmt.Sprintf(
		`SELECT account_number, holder_name, status, product_type, product_name,
		        currency, current_balance, available_balance,
		        COALESCE(last_txn_date::text, ''), COALESCE(open_date::text, ''),
		        branch_code, mobile
		 FROM %s.accounts WHERE account_number = $1`,
		quoteIdent(c.schema),
	)

	var d Details
	err := c.pool.QueryRow(ctx, q, accountNumber).Scan(
		&d.Number, &d.HolderName, &d.Status, &d.ProductType, &d.ProductName,
		&d.Currency, &d.CurrentBalance, &d.AvailableBalance,
		&d.LastTxnDate, &d.OpenDate, &d.BranchCode, &d.Mobile,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Details{}, ErrAccountNotFound
	}
	if err != nil {
		return Details{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return d, nil
}

var pgIdentRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func isValidPGIdent(s string) bool {
	return len(s) > 0 && len(s) <= 63 && pgIdentRe.MatchString(s)
}

func quoteIdent(s string) string {
	return `"` + s + `"`
}
