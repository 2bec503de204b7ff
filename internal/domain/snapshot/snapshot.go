package snapshot

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is one immutable scoring result for a twin
type Snapshot struct {
	ID                   uuid.UUID `json:"id"`
	TwinID               uuid.UUID `json:"twin_id"`
	SyncRunID            uuid.UUID `json:"sync_run_id"`
	CreatedAt            time.Time `json:"created_at"`
	Pillars              Pillars   `json:"pillar_scores"`
	Overall              float64   `json:"overall"`
	Readiness            Readiness `json:"lending_readiness"`
	TransactionCount     int       `json:"transaction_count"`
	AnalysisWindowMonths int       `json:"analysis_window_months"`
	LowConfidence        bool      `json:"low_confidence"`
	WeightsVersion       string    `json:"weights_version"`
	RunwayMonths         float64   `json:"runway_months"`
	ContentHash          string    `json:"content_hash"`
}

// Draft is the scored content a new snapshot is built from
type Draft struct {
	SyncRunID            uuid.UUID
	Pillars              Pillars
	Overall              float64
	Readiness            Readiness
	TransactionCount     int
	AnalysisWindowMonths int
	LowConfidence        bool
	WeightsVersion       string
	RunwayMonths         float64
}

// New builds a snapshot from a draft and stamps its content hash
func New(twinID uuid.UUID, d Draft, now time.Time) (*Snapshot, error) {
	s := &Snapshot{
		ID:                   uuid.New(),
		TwinID:               twinID,
		SyncRunID:            d.SyncRunID,
		CreatedAt:            now.UTC(),
		Pillars:              d.Pillars,
		Overall:              d.Overall,
		Readiness:            d.Readiness,
		TransactionCount:     d.TransactionCount,
		AnalysisWindowMonths: d.AnalysisWindowMonths,
		LowConfidence:        d.LowConfidence,
		WeightsVersion:       d.WeightsVersion,
		RunwayMonths:         d.RunwayMonths,
	}
	hash, err := ContentHash(s)
	if err != nil {
		return nil, err
	}
	s.ContentHash = hash
	return s, nil
}
