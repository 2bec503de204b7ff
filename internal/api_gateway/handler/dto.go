package handler

import (
	"time"

	"github.com/financial-twin-engine/internal/api_gateway/service"
	"github.com/financial-twin-engine/internal/domain/snapshot"
	"github.com/financial-twin-engine/internal/domain/syncrun"
	"github.com/financial-twin-engine/internal/domain/twin"
	"github.com/financial-twin-engine/internal/domain/verification"
)

// RegisterTwinRequest links an aggregator item to a new twin
type RegisterTwinRequest struct {
	ItemID      string `json:"item_id" binding:"required"`
	AccessToken string `json:"access_token" binding:"required"`
}

// StressTestRequest is a hypothetical scenario; percentages are relative changes
type StressTestRequest struct {
	IncomeChangePct  float64 `json:"income_change_pct"`
	ExpenseChangePct float64 `json:"expense_change_pct"`
	OneTimeShock     int64   `json:"one_time_shock"`
}

// AggregatorWebhookRequest is the aggregator's change notification
type AggregatorWebhookRequest struct {
	WebhookID   string `json:"webhook_id" binding:"required"`
	WebhookType string `json:"webhook_type" binding:"required"`
	ItemID      string `json:"item_id" binding:"required"`
}

// HistoryParams bounds the snapshot history; zero means the default
type HistoryParams struct {
	Limit int `form:"limit"`
}

// BenchmarkParams identify the peer cohort
type BenchmarkParams struct {
	AgeBand    string `form:"age_band" binding:"required"`
	IncomeBand string `form:"income_band" binding:"required"`
	Region     string `form:"region" binding:"required"`
}

// ExplainParams select the pillar and evidence count
type ExplainParams struct {
	Pillar string `form:"pillar" binding:"required"`
	Limit  int    `form:"limit"`
}

// TwinResponse represents a registered twin
type TwinResponse struct {
	ID        string `json:"id"`
	ItemID    string `json:"item_id"`
	CreatedAt string `json:"created_at"`
}

// SnapshotResponse represents a snapshot in API responses
type SnapshotResponse struct {
	ID                   string             `json:"id"`
	TwinID               string             `json:"twin_id"`
	CreatedAt            string             `json:"created_at"`
	PillarScores         snapshot.Pillars   `json:"pillar_scores"`
	Overall              float64            `json:"overall"`
	LendingReadiness     snapshot.Readiness `json:"lending_readiness"`
	TransactionCount     int                `json:"transaction_count"`
	AnalysisWindowMonths int                `json:"analysis_window_months"`
	LowConfidence        bool               `json:"low_confidence"`
	WeightsVersion       string             `json:"weights_version"`
	RunwayMonths         float64            `json:"runway_months"`
	ContentHash          string             `json:"content_hash"`
}

// VerificationResponse is the anchoring state of a snapshot
type VerificationResponse struct {
	Status              string `json:"status"`
	Verified            bool   `json:"verified"`
	LedgerTransactionID string `json:"ledger_transaction_id,omitempty"`
	LedgerTimestamp     string `json:"ledger_timestamp,omitempty"`
}

// SnapshotDetailResponse is one stored snapshot with its integrity check
type SnapshotDetailResponse struct {
	Snapshot     SnapshotResponse      `json:"snapshot"`
	Verification *VerificationResponse `json:"verification,omitempty"`
	IntegrityOK  bool                  `json:"integrity_ok"`
}

// SyncStatusResponse summarizes the latest sync run
type SyncStatusResponse struct {
	RunID        string `json:"run_id"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	CreatedAt    string `json:"created_at"`
	ProcessedAt  string `json:"processed_at,omitempty"`
}

// ProfileResponse is the twin's current profile
type ProfileResponse struct {
	TwinID       string               `json:"twin_id"`
	Snapshot     SnapshotResponse     `json:"snapshot"`
	Verification VerificationResponse `json:"verification"`
	LastSync     *SyncStatusResponse  `json:"last_sync,omitempty"`
	LastSyncedAt string               `json:"last_synced_at,omitempty"`
	Message      string               `json:"message,omitempty"`
}

func mapTwinToResponse(t *twin.Twin) TwinResponse {
	return TwinResponse{
		ID:        t.ID.String(),
		ItemID:    t.ItemID,
		CreatedAt: t.CreatedAt.Format(time.RFC3339),
	}
}

func mapSnapshotToResponse(s *snapshot.Snapshot) SnapshotResponse {
	return SnapshotResponse{
		ID:                   s.ID.String(),
		TwinID:               s.TwinID.String(),
		CreatedAt:            s.CreatedAt.Format(time.RFC3339),
		PillarScores:         s.Pillars,
		Overall:              s.Overall,
		LendingReadiness:     s.Readiness,
		TransactionCount:     s.TransactionCount,
		AnalysisWindowMonths: s.AnalysisWindowMonths,
		LowConfidence:        s.LowConfidence,
		WeightsVersion:       s.WeightsVersion,
		RunwayMonths:         s.RunwayMonths,
		ContentHash:          s.ContentHash,
	}
}

func mapVerificationToResponse(r *verification.Record) VerificationResponse {
	response := VerificationResponse{
		Status:              string(r.Status),
		Verified:            r.Verified,
		LedgerTransactionID: r.LedgerTransactionID,
	}
	if r.LedgerTimestamp != nil {
		response.LedgerTimestamp = r.LedgerTimestamp.Format(time.RFC3339)
	}
	return response
}

func mapRunToResponse(r *syncrun.Run) *SyncStatusResponse {
	response := &SyncStatusResponse{
		RunID:        r.ID.String(),
		Status:       string(r.Status),
		ErrorMessage: r.ErrorMessage,
		CreatedAt:    r.CreatedAt.Format(time.RFC3339),
	}
	if r.ProcessedAt != nil {
		response.ProcessedAt = r.ProcessedAt.Format(time.RFC3339)
	}
	return response
}

func mapProfileToResponse(p *service.Profile) ProfileResponse {
	response := ProfileResponse{
		TwinID:   p.TwinID.String(),
		Snapshot: mapSnapshotToResponse(p.Snapshot),
		Message:  p.Message,
	}
	if p.Verification != nil {
		response.Verification = mapVerificationToResponse(p.Verification)
	}
	if p.LastSync != nil {
		response.LastSync = mapRunToResponse(p.LastSync)
	}
	if p.LastSyncedAt != nil {
		response.LastSyncedAt = p.LastSyncedAt.Format(time.RFC3339)
	}
	return response
}
