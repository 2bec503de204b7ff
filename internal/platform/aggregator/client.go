// Package aggregator is the HTTP client of the bank data aggregator.
package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/financial-twin-engine/internal/config"
	"github.com/financial-twin-engine/internal/domain/transaction"
	"github.com/financial-twin-engine/internal/platform/retry"
)

const (
	dateLayout       = "2006-01-02"
	transactionsPath = "/transactions/delta"
	accountsPath     = "/accounts/get"
	maxPages         = 100
)

var minorUnits = decimal.NewFromInt(100)

// HTTPClient talks JSON over HTTP to the aggregator
type HTTPClient struct {
	baseURL  string
	clientID string
	secret   string
	timeout  time.Duration
	policy   retry.Policy
	http     *http.Client
	logger   *slog.Logger
}

func NewHTTPClient(logger *slog.Logger, cfg *config.AggregatorConfig) *HTTPClient {
	return &HTTPClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		clientID: cfg.ClientID,
		secret:   cfg.Secret,
		timeout:  cfg.Timeout,
		policy: retry.Policy{
			MaxAttempts:    cfg.MaxAttempts,
			InitialBackoff: cfg.InitialBackoff,
		},
		http:   &http.Client{},
		logger: logger.With("component", "aggregator_client"),
	}
}

// FetchTransactions pages through the delta since the given date
func (c *HTTPClient) FetchTransactions(ctx context.Context, accessToken string, since time.Time) (*Delta, error) {
	delta := &Delta{}
	cursor := ""

	for page := 0; page < maxPages; page++ {
		req := deltaRequest{
			ClientID:    c.clientID,
			Secret:      c.secret,
			AccessToken: accessToken,
			StartDate:   since.UTC().Format(dateLayout),
			Cursor:      cursor,
		}

		var resp deltaResponse
		if err := c.post(ctx, "fetch_transactions", transactionsPath, req, &resp); err != nil {
			return nil, err
		}

		for _, w := range resp.Added {
			tx, err := w.toTransaction()
			if err != nil {
				return nil, err
			}
			delta.Added = append(delta.Added, tx)
		}
		for _, w := range resp.Modified {
			tx, err := w.toTransaction()
			if err != nil {
				return nil, err
			}
			delta.Modified = append(delta.Modified, tx)
		}
		for _, r := range resp.Removed {
			delta.Removed = append(delta.Removed, r.TransactionID)
		}

		if !resp.HasMore || resp.NextCursor == "" {
			return delta, nil
		}
		cursor = resp.NextCursor
	}

	return nil, ErrUpstream{Op: "fetch_transactions", Message: "too many pages"}
}

func (c *HTTPClient) FetchAccounts(ctx context.Context, accessToken string) ([]transaction.Account, error) {
	req := accountsRequest{ClientID: c.clientID, Secret: c.secret, AccessToken: accessToken}

	var resp accountsResponse
	if err := c.post(ctx, "fetch_accounts", accountsPath, req, &resp); err != nil {
		return nil, err
	}

	accounts := make([]transaction.Account, 0, len(resp.Accounts))
	for _, w := range resp.Accounts {
		balance, err := toMinor(w.Balance)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", w.AccountID, err)
		}
		accounts = append(accounts, transaction.Account{
			ID:      w.AccountID,
			Name:    w.Name,
			Type:    transaction.AccountType(strings.ToLower(w.Type)),
			Subtype: w.Subtype,
			Balance: balance,
		})
	}
	return accounts, nil
}

// post sends one JSON request with the per-call timeout, retrying transient failures
func (c *HTTPClient) post(ctx context.Context, op, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", op, err)
	}

	return retry.Do(ctx, c.policy, func(ctx context.Context, attempt int) error {
		err := c.do(ctx, op, path, payload, out)
		if err == nil || retry.IsPermanent(err) {
			return err
		}

		var upstream ErrUpstream
		if errors.As(err, &upstream) && !upstream.Retryable() {
			return retry.Permanent(err)
		}
		c.logger.Warn("Aggregator call failed", "op", op, "attempt", attempt, "error", err)
		return err
	})
}

func (c *HTTPClient) do(ctx context.Context, op, path string, payload []byte, out any) error {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to build %s request: %w", op, err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpstream{Op: op, Message: "request failed"}, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpstream{Op: op, StatusCode: resp.StatusCode, Message: "read body"}, err)
	}

	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		_ = json.Unmarshal(body, &e)
		msg := e.ErrorMessage
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return ErrUpstream{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return retry.Permanent(fmt.Errorf("%w: %w", ErrUpstream{Op: op, StatusCode: resp.StatusCode, Message: "malformed response"}, err))
	}
	return nil
}

func (w wireTransaction) toTransaction() (transaction.Transaction, error) {
	date, err := time.Parse(dateLayout, w.Date)
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("transaction %s: invalid date %q: %w", w.TransactionID, w.Date, err)
	}
	amount, err := toMinor(w.Amount)
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("transaction %s: %w", w.TransactionID, err)
	}

	merchant := w.MerchantName
	if merchant == "" {
		merchant = w.Name
	}

	return transaction.Transaction{
		ID:              w.TransactionID,
		AccountID:       w.AccountID,
		Date:            date,
		Amount:          amount,
		MerchantText:    merchant,
		RawCategoryHint: w.CategoryHint,
		HintConfidence:  w.CategoryConfidence,
	}, nil
}

// toMinor converts a decimal major-unit amount to integer minor units
func toMinor(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d.Mul(minorUnits).Round(0).IntPart(), nil
}
