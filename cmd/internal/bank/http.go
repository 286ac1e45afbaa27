package bank

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Upstream connection names, assigned by the middleware operator.
const (
	connAccountsByMobile = "MWSEIBMN"
	connVerifyPIN        = "MWVRFTPN"
	connAccountDetails   = "MWSADART"
)

// HTTPClient talks to the upstream middleware API over HTTP.
//
// The upstream wraps every payload in a status/response envelope; this client
// decodes it into the domain types so callers never see the wire shape.
type HTTPClient struct {
	log     *slog.Logger
	baseURL string
	secret  string
	http    *http.Client
}

// NewHTTPClient constructs an upstream middleware client.
func NewHTTPClient(log *slog.Logger, baseURL, secret string, timeout time.Duration) *HTTPClient {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		log:     log,
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		http:    &http.Client{Timeout: timeout},
	}
}

// upstream wire envelope.
type envelope struct {
	Status struct {
		GStatus bool   `json:"gstatus"`
		GMMsg   string `json:"gmmsg"`
	} `json:"status"`
	Response struct {
		Status       string            `json:"Status"`
		ResponseData []json.RawMessage `json:"responseData"`
	} `json:"response"`
}

type upstreamAccountRef struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type upstreamDetails struct {
	AccNo            string `json:"accNo"`
	AccName          string `json:"accName"`
	AccStatus        string `json:"accStatus"`
	ProductType      string `json:"productType"`
	ProductName      string `json:"productName"`
	CurrencyCode     string `json:"currencyCode"`
	CurrentBalance   string `json:"currentBalance"`
	AvailableBalance string `json:"availableBalance"`
	LastTxnDate      string `json:"lastTxnDate"`
	AccOpenDate      string `json:"accOpenDate"`
	BranchCode       string `json:"branchCode"`
	Mobile           string `json:"mobile"`
}

// AccountsByMobile lists accounts linked to a mobile number.
func (c *HTTPClient) AccountsByMobile(ctx context.Context, mobile, callID string) ([]AccountRef, error) {
	if callID == "" {
		callID = NewCallID(time.Now())
	}
	params := url.Values{
		"secret":   {c.secret},
		"rm":       {"I"},
		"callid":   {callID},
		"connname": {connAccountsByMobile},
		"cli":      {NormalizeMobile(mobile)},
	}

	var env envelope
	if err := c.get(ctx, "/account/account-info-by-mobile-no", params, &env); err != nil {
		return nil, err
	}
	if !env.Status.GStatus || len(env.Response.ResponseData) == 0 {
		return nil, ErrNoAccounts
	}

	refs := make([]AccountRef, 0, len(env.Response.ResponseData))
	for _, raw := range env.Response.ResponseData {
		var u upstreamAccountRef
		if err := json.Unmarshal(raw, &u); err != nil || u.Key == "" {
			continue
		}
		refs = append(refs, AccountRef{Number: u.Key, Masked: u.Value})
	}
	if len(refs) == 0 {
		return nil, ErrNoAccounts
	}
	return refs, nil
}

// VerifyPIN checks a card PIN via the upstream verify-tpin endpoint.
// The PIN travels as a query parameter upstream and is never logged here.
func (c *HTTPClient) VerifyPIN(ctx context.Context, accountNumber, pinPlain, mobile, callID string) (bool, error) {
	if callID == "" {
		callID = NewCallID(time.Now())
	}
	params := url.Values{
		"secret":   {c.secret},
		"rm":       {"I"},
		"callid":   {callID},
		"connname": {connVerifyPIN},
		"cli":      {NormalizeMobile(mobile)},
		"ccn":      {accountNumber},
		"crp":      {pinPlain},
	}

	var env envelope
	if err := c.get(ctx, "/card/verify-tpin", params, &env); err != nil {
		return false, err
	}
	return env.Status.GStatus && env.Response.Status == "Successfull", nil
}

// AccountDetails fetches the account view for accountNumber.
func (c *HTTPClient) AccountDetails(ctx context.Context, accountNumber, mobile, callID string) (Details, error) {
	now := time.Now()
	if callID == "" {
		callID = NewCallID(now)
	}
	params := url.Values{
		"secret":    {c.secret},
		"rm":        {"I"},
		"callid":    {callID},
		"connname":  {connAccountDetails},
		"cli":       {NormalizeMobile(mobile)},
		"acc":       {accountNumber},
		"channelId": {"102"},
		"refNo":     {NewRefNo(now)},
	}

	var env envelope
	if err := c.get(ctx, "/account/common-api-function", params, &env); err != nil {
		return Details{}, err
	}
	if !env.Status.GStatus || len(env.Response.ResponseData) == 0 {
		return Details{}, ErrAccountNotFound
	}

	var u upstreamDetails
	if err := json.Unmarshal(env.Response.ResponseData[0], &u); err != nil {
		return Details{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return Details{
		Number:           u.AccNo,
		HolderName:       u.AccName,
		Status:           u.AccStatus,
		ProductType:      u.ProductType,
		ProductName:      u.ProductName,
		Currency:         u.CurrencyCode,
		CurrentBalance:   strings.TrimSpace(u.CurrentBalance),
		AvailableBalance: strings.TrimSpace(u.AvailableBalance),
		LastTxnDate:      u.LastTxnDate,
		OpenDate:         u.AccOpenDate,
		BranchCode:       u.BranchCode,
		Mobile:           u.Mobile,
	}, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, dst *envelope) error {
	u := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("bank.upstream.fail", "path", path, "err", err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	// The secret and PIN live in the query string: log the path only.
	c.log.Info("bank.upstream.call",
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: upstream status %d", ErrUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	return nil
}
