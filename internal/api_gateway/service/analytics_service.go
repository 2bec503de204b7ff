package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/financial-twin-engine/internal/analytics"
	"github.com/financial-twin-engine/internal/domain/cohort"
	"github.com/financial-twin-engine/internal/domain/snapshot"
	"github.com/financial-twin-engine/internal/domain/transaction"
	"github.com/financial-twin-engine/internal/platform/narrative"
	"github.com/financial-twin-engine/internal/scoring"
	"github.com/google/uuid"
)

// AnomalyReport lists anomalies detected as of a date
type AnomalyReport struct {
	TwinID    uuid.UUID           `json:"twin_id"`
	AsOf      time.Time           `json:"as_of"`
	Anomalies []analytics.Anomaly `json:"anomalies"`
}

// Narrative is generated prose for one snapshot
type Narrative struct {
	SnapshotID uuid.UUID `json:"snapshot_id"`
	Text       string    `json:"text"`
}

// AnalyticsServiceImpl implements the AnalyticsService interface
type AnalyticsServiceImpl struct {
	snapshots    SnapshotReader
	transactions transaction.Repository
	scorer       analytics.Scorer
	cohorts      cohort.Source
	narrator     narrative.Generator
	anomalyCfg   analytics.AnomalyConfig
	windowMonths int
	logger       *slog.Logger
	now          func() time.Time
}

func NewAnalyticsService(
	logger *slog.Logger,
	snapshots SnapshotReader,
	transactions transaction.Repository,
	scorer analytics.Scorer,
	cohorts cohort.Source,
	narrator narrative.Generator,
	anomalyCfg analytics.AnomalyConfig,
	windowMonths int,
) *AnalyticsServiceImpl {
	return &AnalyticsServiceImpl{
		snapshots:    snapshots,
		transactions: transactions,
		scorer:       scorer,
		cohorts:      cohorts,
		narrator:     narrator,
		anomalyCfg:   anomalyCfg,
		windowMonths: windowMonths,
		logger:       logger.With("component", "analytics_service"),
		now:          time.Now,
	}
}

// input loads what the current snapshot was scored from. AsOf is the snapshot's
// creation time, which is the sync's fetch horizon.
func (s *AnalyticsServiceImpl) input(ctx context.Context, twinID uuid.UUID) (*snapshot.Snapshot, scoring.Input, error) {
	current, err := s.snapshots.Current(ctx, twinID)
	if err != nil {
		return nil, scoring.Input{}, err
	}

	txs, err := s.transactions.ListByTwin(ctx, twinID)
	if err != nil {
		return nil, scoring.Input{}, fmt.Errorf("failed to load transactions: %w", err)
	}
	accounts, err := s.transactions.ListAccounts(ctx, twinID)
	if err != nil {
		return nil, scoring.Input{}, fmt.Errorf("failed to load accounts: %w", err)
	}
	if txs == nil {
		txs = []transaction.Transaction{}
	}

	window := current.AnalysisWindowMonths
	if window <= 0 {
		window = s.windowMonths
	}
	return current, scoring.Input{
		Transactions: txs,
		Accounts:     accounts,
		WindowMonths: window,
		AsOf:         current.CreatedAt,
	}, nil
}

func (s *AnalyticsServiceImpl) StressTest(ctx context.Context, twinID uuid.UUID, params analytics.StressParams) (*analytics.StressResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	_, in, err := s.input(ctx, twinID)
	if err != nil {
		return nil, err
	}

	res, err := analytics.Stress(s.scorer, in, params)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Stress test computed",
		"twin_id", twinID.String(),
		"overall_delta", res.OverallDelta,
		"runway_months", res.RunwayMonths,
	)
	return res, nil
}

func (s *AnalyticsServiceImpl) Anomalies(ctx context.Context, twinID uuid.UUID) (*AnomalyReport, error) {
	txs, err := s.transactions.ListByTwin(ctx, twinID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	asOf := s.now().UTC()
	found := analytics.DetectAnomalies(txs, asOf, s.anomalyCfg)
	if found == nil {
		found = []analytics.Anomaly{}
	}
	return &AnomalyReport{TwinID: twinID, AsOf: asOf, Anomalies: found}, nil
}

func (s *AnalyticsServiceImpl) Benchmark(ctx context.Context, twinID uuid.UUID, key cohort.Key) (*analytics.Benchmark, error) {
	if err := key.Normalize().Validate(); err != nil {
		return nil, err
	}

	current, err := s.snapshots.Current(ctx, twinID)
	if err != nil {
		return nil, err
	}
	return analytics.BenchmarkSnapshot(ctx, s.cohorts, key, current)
}

func (s *AnalyticsServiceImpl) Explain(ctx context.Context, twinID uuid.UUID, pillar snapshot.PillarName, limit int) (*analytics.Explanation, error) {
	if _, err := snapshot.ParsePillar(string(pillar)); err != nil {
		return nil, err
	}

	current, in, err := s.input(ctx, twinID)
	if err != nil {
		return nil, err
	}

	result, err := s.scorer.Score(in)
	if err != nil {
		return nil, fmt.Errorf("failed to rescore twin: %w", err)
	}

	exp, err := analytics.Explain(result, in.Transactions, in.AsOf, pillar, limit)
	if err != nil {
		return nil, err
	}
	exp.Score = current.Pillars.Get(pillar)
	return exp, nil
}

func (s *AnalyticsServiceImpl) Narrative(ctx context.Context, twinID uuid.UUID) (*Narrative, error) {
	current, err := s.snapshots.Current(ctx, twinID)
	if err != nil {
		return nil, err
	}

	text, err := s.narrator.GenerateNarrative(ctx, narrative.SummaryFromSnapshot(current))
	if err != nil {
		s.logger.Error("Narrative generation failed", "twin_id", twinID.String(), "error", err)
		return nil, err
	}
	return &Narrative{SnapshotID: current.ID, Text: text}, nil
}
