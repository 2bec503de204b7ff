package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/financial-twin-engine/internal/analytics"
	"github.com/financial-twin-engine/internal/domain/cohort"
	"github.com/financial-twin-engine/internal/domain/snapshot"
	"github.com/financial-twin-engine/internal/domain/transaction"
	"github.com/financial-twin-engine/internal/platform/narrative"
	"github.com/financial-twin-engine/internal/scoring"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type analyticsFixture struct {
	twinID    uuid.UUID
	snap      *snapshot.Snapshot
	snapshots *MockSnapshotReader
	txRepo    *MockTransactionRepo
	narrator  *MockNarrator
	svc       *AnalyticsServiceImpl
}

func newAnalyticsFixture(t *testing.T) *analyticsFixture {
	t.Helper()
	w, err := scoring.DefaultWeights()
	require.NoError(t, err)
	engine, err := scoring.NewEngine(w, scoring.Options{})
	require.NoError(t, err)

	twinID := uuid.New()
	var txs []transaction.Transaction
	for m := 1; m <= 6; m++ {
		date := time.Date(2025, time.Month(m), 5, 0, 0, 0, 0, time.UTC)
		txs = append(txs,
			transaction.Transaction{ID: fmt.Sprintf("inc-%d", m), TwinID: twinID, Date: date, Amount: -500000, ResolvedCategory: transaction.CategoryIncome, IsIncomeDeposit: true},
			transaction.Transaction{ID: fmt.Sprintf("rent-%d", m), TwinID: twinID, Date: date, Amount: 200000, ResolvedCategory: transaction.CategoryHousing},
			transaction.Transaction{ID: fmt.Sprintf("dine-%d", m), TwinID: twinID, Date: date, Amount: 30000, ResolvedCategory: transaction.CategoryDining, MerchantText: "BISTRO"},
		)
	}
	accounts := []transaction.Account{{ID: "chk", TwinID: twinID, Type: transaction.AccountTypeDepository, Balance: 1200000}}

	result, err := engine.Score(scoring.Input{Transactions: txs, Accounts: accounts, WindowMonths: 6, AsOf: time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	snap, err := snapshot.New(twinID, result.Draft(uuid.New()), time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	f := &analyticsFixture{
		twinID:    twinID,
		snap:      snap,
		snapshots: new(MockSnapshotReader),
		txRepo:    new(MockTransactionRepo),
		narrator:  new(MockNarrator),
	}
	f.snapshots.On("Current", mock.Anything, twinID).Return(snap, nil)
	f.txRepo.On("ListByTwin", mock.Anything, twinID).Return(txs, nil)
	f.txRepo.On("ListAccounts", mock.Anything, twinID).Return(accounts, nil)

	cohorts := cohort.NewStaticSource(&cohort.Stats{
		Key:        cohort.Key{AgeBand: "25-34", IncomeBand: "50k-75k", Region: "us-west"},
		SampleSize: 800,
		Metrics:    map[string]cohort.MetricStats{cohort.MetricOverall: {Mean: snap.Overall, StdDev: 10}},
	})

	f.svc = NewAnalyticsService(discardLogger(), f.snapshots, f.txRepo, engine, cohorts, f.narrator, analytics.DefaultAnomalyConfig(), 12)
	f.svc.now = func() time.Time { return time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC) }
	return f
}

func TestAnalyticsService_StressTest(t *testing.T) {
	f := newAnalyticsFixture(t)

	t.Run("baseline matches the stored snapshot", func(t *testing.T) {
		res, err := f.svc.StressTest(context.Background(), f.twinID, analytics.StressParams{IncomeChangePct: -100})
		require.NoError(t, err)

		assert.InDelta(t, f.snap.Overall, res.Baseline.Overall, 1e-9)
		assert.Less(t, res.OverallDelta, 0.0)
		// $12,000 liquid over $2,300 monthly outflow
		assert.InDelta(t, 5.22, res.RunwayMonths, 0.01)
	})

	t.Run("stored snapshot is left byte for byte unchanged", func(t *testing.T) {
		g := newAnalyticsFixture(t)
		hashBefore := g.snap.ContentHash
		docBefore, err := snapshot.CanonicalDocument(g.snap)
		require.NoError(t, err)
		pillarsBefore := g.snap.Pillars

		_, err = g.svc.StressTest(context.Background(), g.twinID, analytics.StressParams{
			IncomeChangePct:  -50,
			ExpenseChangePct: 30,
			OneTimeShock:     500000,
		})
		require.NoError(t, err)

		docAfter, err := snapshot.CanonicalDocument(g.snap)
		require.NoError(t, err)
		hashAfter, err := snapshot.ContentHash(g.snap)
		require.NoError(t, err)
		assert.Equal(t, docBefore, docAfter)
		assert.Equal(t, hashBefore, g.snap.ContentHash)
		assert.Equal(t, hashBefore, hashAfter)
		assert.Equal(t, pillarsBefore, g.snap.Pillars)
	})

	t.Run("invalid scenario is rejected before any read", func(t *testing.T) {
		g := newAnalyticsFixture(t)
		_, err := g.svc.StressTest(context.Background(), g.twinID, analytics.StressParams{ExpenseChangePct: -120})
		assert.Error(t, err)
		g.txRepo.AssertNotCalled(t, "ListByTwin", mock.Anything, mock.Anything)
	})
}

func TestAnalyticsService_Anomalies(t *testing.T) {
	f := newAnalyticsFixture(t)

	report, err := f.svc.Anomalies(context.Background(), f.twinID)
	require.NoError(t, err)
	assert.NotNil(t, report.Anomalies)
	assert.Empty(t, report.Anomalies, "steady spend has no anomalies")
}

func TestAnalyticsService_Benchmark(t *testing.T) {
	f := newAnalyticsFixture(t)

	b, err := f.svc.Benchmark(context.Background(), f.twinID, cohort.Key{AgeBand: "25-34", IncomeBand: "50K-75K", Region: "US-WEST"})
	require.NoError(t, err)
	assert.InDelta(t, 50, b.Metrics[cohort.MetricOverall].Percentile, 0.01)

	_, err = f.svc.Benchmark(context.Background(), f.twinID, cohort.Key{AgeBand: "25-34"})
	assert.ErrorIs(t, err, cohort.ErrInvalidKey)

	_, err = f.svc.Benchmark(context.Background(), f.twinID, cohort.Key{AgeBand: "65+", IncomeBand: "x", Region: "y"})
	assert.ErrorIs(t, err, cohort.ErrCohortNotFound{})
}

func TestAnalyticsService_Explain(t *testing.T) {
	f := newAnalyticsFixture(t)

	exp, err := f.svc.Explain(context.Background(), f.twinID, snapshot.PillarSpendingDiscipline, 3)
	require.NoError(t, err)
	assert.Equal(t, f.snap.Pillars.SpendingDiscipline, exp.Score)
	require.Len(t, exp.Evidence, 3)
	assert.Equal(t, "BISTRO", exp.Evidence[0].MerchantText)

	_, err = f.svc.Explain(context.Background(), f.twinID, "luck", 3)
	assert.ErrorIs(t, err, snapshot.ErrUnknownPillar)
}

func TestAnalyticsService_Narrative(t *testing.T) {
	t.Run("sends scores only", func(t *testing.T) {
		f := newAnalyticsFixture(t)
		f.narrator.On("GenerateNarrative", mock.Anything, mock.MatchedBy(func(s narrative.ScoreSummary) bool {
			return s.Overall == f.snap.Overall && len(s.Pillars) == len(snapshot.AllPillars)
		})).Return("Steady income and modest spending.", nil)

		n, err := f.svc.Narrative(context.Background(), f.twinID)
		require.NoError(t, err)
		assert.Equal(t, f.snap.ID, n.SnapshotID)
		assert.Equal(t, "Steady income and modest spending.", n.Text)
		f.txRepo.AssertNotCalled(t, "ListByTwin", mock.Anything, mock.Anything)
	})

	t.Run("collaborator failure", func(t *testing.T) {
		f := newAnalyticsFixture(t)
		f.narrator.On("GenerateNarrative", mock.Anything, mock.Anything).Return("", errors.New("quota"))

		_, err := f.svc.Narrative(context.Background(), f.twinID)
		assert.EqualError(t, err, "quota")
	})
}
