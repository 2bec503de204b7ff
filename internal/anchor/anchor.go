// Package anchor timestamps snapshot content hashes on the external verification
// ledger and keeps a local record of the outcome. Anchoring is fire-and-forget
// from the sync run's point of view: a ledger outage leaves the record FAILED and
// the snapshot servable.
package anchor

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/financial-twin-engine/internal/config"
	"github.com/financial-twin-engine/internal/domain/outbox"
	"github.com/financial-twin-engine/internal/domain/shared"
	"github.com/financial-twin-engine/internal/domain/snapshot"
	"github.com/financial-twin-engine/internal/domain/verification"
	"github.com/financial-twin-engine/internal/platform/ledger"
	"github.com/financial-twin-engine/internal/platform/retry"
)

var ErrInvalidHash = errors.New("content hash must be 64 lowercase hex characters")

// VerifyResult is the ledger's answer for a content hash
type VerifyResult struct {
	ContentHash         string     `json:"content_hash"`
	Valid               bool       `json:"valid"`
	LedgerTransactionID string     `json:"ledger_transaction_id,omitempty"`
	LedgerTimestamp     *time.Time `json:"ledger_timestamp,omitempty"`
}

type Anchor struct {
	records verification.Repository
	ledger  ledger.Client
	policy  retry.Policy
	logger  *slog.Logger
}

func NewAnchor(logger *slog.Logger, records verification.Repository, client ledger.Client, cfg *config.LedgerConfig) *Anchor {
	return &Anchor{
		records: records,
		ledger:  client,
		policy: retry.Policy{
			MaxAttempts:    cfg.MaxAttempts,
			InitialBackoff: cfg.InitialBackoff,
			MaxBackoff:     cfg.MaxBackoff,
		},
		logger: logger.With("component", "verification_anchor"),
	}
}

// AnchorSnapshot anchors a committed snapshot
func (a *Anchor) AnchorSnapshot(ctx context.Context, s *snapshot.Snapshot) (*verification.Record, error) {
	return a.Anchor(ctx, outbox.AnchorRequest{SnapshotID: s.ID, TwinID: s.TwinID, ContentHash: s.ContentHash})
}

// Anchor submits the hash to the ledger with bounded retries. An exhausted
// submission is recorded as FAILED and is not an error; only a failure to
// persist the record or a cancelled context is returned.
func (a *Anchor) Anchor(ctx context.Context, req outbox.AnchorRequest) (*verification.Record, error) {
	logger := a.logger.With("snapshot_id", req.SnapshotID.String(), "content_hash", req.ContentHash)
	if req.CorrelationID != "" {
		logger = logger.With("correlation_id", req.CorrelationID)
	}

	record, err := a.records.GetBySnapshotID(ctx, req.SnapshotID)
	switch {
	case err == nil && record.Status == shared.VerificationStatusVerified:
		logger.Debug("Snapshot already anchored", "ledger_transaction_id", record.LedgerTransactionID)
		return record, nil
	case err == nil:
		record.Status = shared.VerificationStatusPending
		record.ErrorReason = ""
	case errors.Is(err, verification.ErrRecordNotFound{}):
		record = verification.NewPendingRecord(req.SnapshotID, req.TwinID, req.ContentHash)
	default:
		return nil, fmt.Errorf("failed to load verification record: %w", err)
	}

	if err := a.records.Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to record pending anchor: %w", err)
	}

	var receipt *ledger.Receipt
	submitErr := retry.Do(ctx, a.policy, func(ctx context.Context, attempt int) error {
		record.Attempts++
		var err error
		receipt, err = a.ledger.Submit(ctx, req.ContentHash)
		if err != nil {
			logger.Warn("Ledger submission failed", "attempt", attempt, "error", err)
		}
		return err
	})

	if submitErr != nil {
		if ctx.Err() != nil {
			// Left PENDING so the outbox poller picks it up again
			return nil, fmt.Errorf("anchoring interrupted: %w", ctx.Err())
		}
		record.MarkFailed(submitErr.Error())
		logger.Error("Anchoring gave up", "attempts", record.Attempts, "error", submitErr)
	} else {
		record.MarkVerified(receipt.TransactionID, receipt.Timestamp)
		logger.Info("Snapshot anchored", "ledger_transaction_id", receipt.TransactionID, "attempts", record.Attempts)
	}

	if err := a.records.Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to record anchor outcome: %w", err)
	}
	return record, nil
}

// Verify asks the ledger whether it knows the hash. Local records are not consulted.
func (a *Anchor) Verify(ctx context.Context, contentHash string) (*VerifyResult, error) {
	if !ValidHash(contentHash) {
		return nil, ErrInvalidHash
	}

	receipt, err := a.ledger.Lookup(ctx, contentHash)
	if errors.Is(err, ledger.ErrNotFound) {
		return &VerifyResult{ContentHash: contentHash, Valid: false}, nil
	}
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{
		ContentHash:         contentHash,
		Valid:               true,
		LedgerTransactionID: receipt.TransactionID,
	}
	if !receipt.Timestamp.IsZero() {
		ts := receipt.Timestamp.UTC()
		result.LedgerTimestamp = &ts
	}
	return result, nil
}

// Status returns the local anchoring record; a snapshot without one is pending
func (a *Anchor) Status(ctx context.Context, snapshotID uuid.UUID) (*verification.Record, error) {
	record, err := a.records.GetBySnapshotID(ctx, snapshotID)
	if errors.Is(err, verification.ErrRecordNotFound{}) {
		return &verification.Record{SnapshotID: snapshotID, Status: shared.VerificationStatusPending}, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ValidHash reports whether s looks like a hex SHA-256 digest
func ValidHash(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
