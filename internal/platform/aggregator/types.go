package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/financial-twin-engine/internal/domain/transaction"
)

var ErrInvalidAmount = errors.New("aggregator returned an unparseable amount")

// Delta is the change set since the last successful sync
type Delta struct {
	Added    []transaction.Transaction
	Modified []transaction.Transaction
	Removed  []string
}

// Client is the bank aggregator collaborator
type Client interface {
	FetchTransactions(ctx context.Context, accessToken string, since time.Time) (*Delta, error)
	FetchAccounts(ctx context.Context, accessToken string) ([]transaction.Account, error)
}

// ErrUpstream is a failed aggregator call
type ErrUpstream struct {
	Op         string
	StatusCode int
	Message    string
}

func (e ErrUpstream) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("aggregator %s failed with status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("aggregator %s failed: %s", e.Op, e.Message)
}

// Is implements the errors.Is interface for ErrUpstream
func (e ErrUpstream) Is(target error) bool {
	t, ok := target.(ErrUpstream)
	if !ok {
		return false
	}
	if t.Op == "" && t.StatusCode == 0 {
		return true
	}
	return e.Op == t.Op && (t.StatusCode == 0 || e.StatusCode == t.StatusCode)
}

// Retryable reports whether a later attempt can succeed
func (e ErrUpstream) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}

type deltaRequest struct {
	ClientID    string `json:"client_id"`
	Secret      string `json:"secret"`
	AccessToken string `json:"access_token"`
	StartDate   string `json:"start_date"`
	Cursor      string `json:"cursor,omitempty"`
}

type deltaResponse struct {
	Added      []wireTransaction `json:"added"`
	Modified   []wireTransaction `json:"modified"`
	Removed    []wireRemoved     `json:"removed"`
	NextCursor string            `json:"next_cursor"`
	HasMore    bool              `json:"has_more"`
}

// wireTransaction amounts are major units as decimal strings; positive is money out
type wireTransaction struct {
	TransactionID      string  `json:"transaction_id"`
	AccountID          string  `json:"account_id"`
	Date               string  `json:"date"`
	Amount             string  `json:"amount"`
	MerchantName       string  `json:"merchant_name"`
	Name               string  `json:"name"`
	CategoryHint       string  `json:"category_hint"`
	CategoryConfidence float64 `json:"category_confidence"`
}

type wireRemoved struct {
	TransactionID string `json:"transaction_id"`
}

type accountsRequest struct {
	ClientID    string `json:"client_id"`
	Secret      string `json:"secret"`
	AccessToken string `json:"access_token"`
}

type accountsResponse struct {
	Accounts []wireAccount `json:"accounts"`
}

type wireAccount struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Subtype   string `json:"subtype"`
	Balance   string `json:"current_balance"`
}

type errorResponse struct {
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}
