package aggregator

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/financial-twin-engine/internal/config"
	"github.com/financial-twin-engine/internal/domain/transaction"
)

func newTestClient(url string) *HTTPClient {
	return NewHTTPClient(slog.Default(), &config.AggregatorConfig{
		BaseURL:        url,
		ClientID:       "client",
		Secret:         "secret",
		Timeout:        time.Second,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
	})
}

func TestHTTPClient_FetchTransactions(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, transactionsPath, r.URL.Path)
		var req deltaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tok", req.AccessToken)
		assert.Equal(t, "2025-01-01", req.StartDate)

		atomic.AddInt32(&calls, 1)
		if req.Cursor == "" {
			_ = json.NewEncoder(w).Encode(deltaResponse{
				Added: []wireTransaction{
					{TransactionID: "t1", AccountID: "a1", Date: "2025-01-03", Amount: "4.75", MerchantName: "STARBUCKS #4821", CategoryHint: "other", CategoryConfidence: 0.9},
				},
				NextCursor: "page-2",
				HasMore:    true,
			})
			return
		}
		_ = json.NewEncoder(w).Encode(deltaResponse{
			Added:    []wireTransaction{{TransactionID: "t2", AccountID: "a1", Date: "2025-01-15", Amount: "-3000.00", Name: "ACME PAYROLL"}},
			Modified: []wireTransaction{{TransactionID: "t0", AccountID: "a1", Date: "2024-12-30", Amount: "12.1"}},
			Removed:  []wireRemoved{{TransactionID: "gone"}},
		})
	}))
	defer server.Close()

	delta, err := newTestClient(server.URL).FetchTransactions(context.Background(), "tok", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls)

	require.Len(t, delta.Added, 2)
	assert.Equal(t, int64(475), delta.Added[0].Amount)
	assert.Equal(t, "STARBUCKS #4821", delta.Added[0].MerchantText)
	assert.InDelta(t, 0.9, delta.Added[0].HintConfidence, 1e-9)
	assert.Equal(t, int64(-300000), delta.Added[1].Amount)
	assert.Equal(t, "ACME PAYROLL", delta.Added[1].MerchantText)

	require.Len(t, delta.Modified, 1)
	assert.Equal(t, int64(1210), delta.Modified[0].Amount)
	assert.Equal(t, []string{"gone"}, delta.Removed)
}

func TestHTTPClient_RetriesTransientFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(accountsResponse{Accounts: []wireAccount{
			{AccountID: "chk", Name: "Checking", Type: "Depository", Subtype: "checking", Balance: "6000.00"},
		}})
	}))
	defer server.Close()

	accounts, err := newTestClient(server.URL).FetchAccounts(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls)
	require.Len(t, accounts, 1)
	assert.Equal(t, transaction.AccountTypeDepository, accounts[0].Type)
	assert.Equal(t, int64(600000), accounts[0].Balance)
}

func TestHTTPClient_ClientErrorsAreNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(errorResponse{ErrorCode: "ITEM_LOGIN_REQUIRED", ErrorMessage: "login required"})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchAccounts(context.Background(), "tok")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream{Op: "fetch_accounts", StatusCode: http.StatusBadRequest})
	assert.Contains(t, err.Error(), "login required")
	assert.Equal(t, int32(1), calls)
}

func TestHTTPClient_ExhaustedRetriesSurfaceUpstreamError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchTransactions(context.Background(), "tok", time.Now())
	assert.ErrorIs(t, err, ErrUpstream{})
	assert.Equal(t, int32(3), calls)
}

func TestToMinor(t *testing.T) {
	v, err := toMinor("19.999")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), v)

	_, err = toMinor("abc")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}
