// Package ledger is the HTTP client of the external verification ledger that
// timestamps snapshot content hashes.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/financial-twin-engine/internal/config"
)

var (
	ErrNotFound     = errors.New("hash not anchored on ledger")
	ErrSubmitFailed = errors.New("ledger submission failed")
	ErrLookupFailed = errors.New("ledger lookup failed")
)

// Receipt is the ledger's proof that a hash was recorded
type Receipt struct {
	TransactionID string    `json:"transaction_id"`
	ContentHash   string    `json:"content_hash"`
	Timestamp     time.Time `json:"timestamp"`
}

// Client is the verification ledger collaborator
type Client interface {
	Submit(ctx context.Context, contentHash string) (*Receipt, error)
	Lookup(ctx context.Context, contentHash string) (*Receipt, error)
}

// HTTPClient performs one bounded call per operation; retries belong to the caller
type HTTPClient struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *http.Client
	logger  *slog.Logger
}

func NewHTTPClient(logger *slog.Logger, cfg *config.LedgerConfig) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		http:    &http.Client{},
		logger:  logger.With("component", "ledger_client"),
	}
}

func (c *HTTPClient) Submit(ctx context.Context, contentHash string) (*Receipt, error) {
	body, err := json.Marshal(map[string]string{"content_hash": contentHash})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}

	status, payload, err := c.call(ctx, http.MethodPost, "/anchors", body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, fmt.Errorf("%w: status %d: %s", ErrSubmitFailed, status, strings.TrimSpace(string(payload)))
	}

	var receipt Receipt
	if err := json.Unmarshal(payload, &receipt); err != nil {
		return nil, fmt.Errorf("%w: malformed receipt: %w", ErrSubmitFailed, err)
	}
	if receipt.TransactionID == "" {
		return nil, fmt.Errorf("%w: receipt without transaction id", ErrSubmitFailed)
	}
	return &receipt, nil
}

func (c *HTTPClient) Lookup(ctx context.Context, contentHash string) (*Receipt, error) {
	status, payload, err := c.call(ctx, http.MethodGet, "/anchors/"+url.PathEscape(contentHash), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}

	switch status {
	case http.StatusOK:
		var receipt Receipt
		if err := json.Unmarshal(payload, &receipt); err != nil {
			return nil, fmt.Errorf("%w: malformed receipt: %w", ErrLookupFailed, err)
		}
		return &receipt, nil
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("%w: status %d", ErrLookupFailed, status)
	}
}

func (c *HTTPClient) call(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("Ledger call failed", "method", method, "path", path, "error", err)
		return 0, nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, payload, nil
}
