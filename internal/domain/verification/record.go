package verification

import (
	"time"

	"github.com/financial-twin-engine/internal/domain/shared"
	"github.com/google/uuid"
)

// Record is the anchoring proof of one snapshot
type Record struct {
	SnapshotID          uuid.UUID                 `json:"snapshot_id" bson:"snapshot_id"`
	TwinID              uuid.UUID                 `json:"twin_id" bson:"twin_id"`
	ContentHash         string                    `json:"content_hash" bson:"content_hash"`
	LedgerTransactionID string                    `json:"ledger_transaction_id,omitempty" bson:"ledger_transaction_id,omitempty"`
	LedgerTimestamp     *time.Time                `json:"ledger_timestamp,omitempty" bson:"ledger_timestamp,omitempty"`
	Verified            bool                      `json:"verified" bson:"verified"`
	Status              shared.VerificationStatus `json:"status" bson:"status"`
	ErrorReason         string                    `json:"error_reason,omitempty" bson:"error_reason,omitempty"`
	Attempts            int                       `json:"attempts" bson:"attempts"`
	CreatedAt           time.Time                 `json:"created_at" bson:"created_at"`
	UpdatedAt           time.Time                 `json:"updated_at" bson:"updated_at"`
}

// NewPendingRecord starts the anchoring record of a snapshot
func NewPendingRecord(snapshotID, twinID uuid.UUID, contentHash string) *Record {
	now := time.Now().UTC()
	return &Record{
		SnapshotID:  snapshotID,
		TwinID:      twinID,
		ContentHash: contentHash,
		Status:      shared.VerificationStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// MarkVerified records the ledger receipt
func (r *Record) MarkVerified(ledgerTxID string, ledgerTimestamp time.Time) {
	ts := ledgerTimestamp.UTC()
	r.LedgerTransactionID = ledgerTxID
	r.LedgerTimestamp = &ts
	r.Verified = true
	r.Status = shared.VerificationStatusVerified
	r.ErrorReason = ""
	r.UpdatedAt = time.Now().UTC()
}

// MarkFailed records that anchoring was given up; the snapshot stays servable
func (r *Record) MarkFailed(reason string) {
	r.Verified = false
	r.Status = shared.VerificationStatusFailed
	r.ErrorReason = reason
	r.UpdatedAt = time.Now().UTC()
}
