package scoring

import (
	"fmt"
	"testing"
	"time"

	"github.com/financial-twin-engine/internal/domain/snapshot"
	"github.com/financial-twin-engine/internal/domain/transaction"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTwin = uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	w, err := DefaultWeights()
	require.NoError(t, err)
	e, err := NewEngine(w, Options{})
	require.NoError(t, err)
	return e
}

type builder struct {
	txs []transaction.Transaction
}

func (b *builder) add(month int, amount int64, category transaction.Category, income bool) {
	b.txs = append(b.txs, transaction.Transaction{
		ID:               fmt.Sprintf("tx-%d", len(b.txs)+1),
		TwinID:           testTwin,
		Date:             time.Date(2025, time.Month(month), 10, 0, 0, 0, 0, time.UTC),
		Amount:           amount,
		ResolvedCategory: category,
		IsIncomeDeposit:  income,
	})
}

// sixMonths builds a steady history: monthly income, discretionary and essential spend in dollars
func sixMonths(income, discretionary, essentials int64) []transaction.Transaction {
	b := &builder{}
	for m := 1; m <= 6; m++ {
		b.add(m, -income*100, transaction.CategoryIncome, true)
		if discretionary > 0 {
			b.add(m, discretionary*100, transaction.CategoryDining, false)
		}
		if essentials > 0 {
			b.add(m, essentials*100, transaction.CategoryHousing, false)
		}
	}
	return b.txs
}

func depository(dollars int64) []transaction.Account {
	return []transaction.Account{{ID: "chk", TwinID: testTwin, Type: transaction.AccountTypeDepository, Balance: dollars * 100}}
}

func assertBounded(t *testing.T, r *Result) {
	t.Helper()
	for _, p := range snapshot.AllPillars {
		v := r.Pillars.Get(p)
		assert.GreaterOrEqual(t, v, 0.0, "pillar %s", p)
		assert.LessOrEqual(t, v, 100.0, "pillar %s", p)
	}
	for _, p := range snapshot.AllProducts {
		v := r.Readiness.Get(p)
		assert.GreaterOrEqual(t, v, 0.0, "readiness %s", p)
		assert.LessOrEqual(t, v, 100.0, "readiness %s", p)
	}
	assert.GreaterOrEqual(t, r.Overall, 0.0)
	assert.LessOrEqual(t, r.Overall, 100.0)
}

func TestScore_InputErrors(t *testing.T) {
	e := newTestEngine(t)

	t.Run("NilTransactions", func(t *testing.T) {
		_, err := e.Score(Input{WindowMonths: 6})
		assert.ErrorIs(t, err, ErrNilTransactions)
	})

	t.Run("ZeroWindow", func(t *testing.T) {
		_, err := e.Score(Input{Transactions: []transaction.Transaction{}, WindowMonths: 0})
		assert.ErrorIs(t, err, ErrInvalidWindow)
	})

	t.Run("NegativeWindow", func(t *testing.T) {
		_, err := e.Score(Input{Transactions: []transaction.Transaction{}, WindowMonths: -3})
		assert.ErrorIs(t, err, ErrInvalidWindow)
	})

	t.Run("MalformedTransaction", func(t *testing.T) {
		_, err := e.Score(Input{Transactions: []transaction.Transaction{{ID: "x", TwinID: testTwin}}, WindowMonths: 6})
		assert.ErrorIs(t, err, ErrMalformedTransaction)
	})
}

func TestScore_Deterministic(t *testing.T) {
	e := newTestEngine(t)
	in := Input{Transactions: sixMonths(4000, 1200, 1500), Accounts: depository(8000), WindowMonths: 12}

	first, err := e.Score(in)
	require.NoError(t, err)
	second, err := e.Score(in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, first.Overall, OverallFromPillars(first.Pillars, e.Weights().Overall))
	assert.Equal(t, OverallFromPillars(first.Pillars, e.Weights().Overall), OverallFromPillars(first.Pillars, e.Weights().Overall))
}

func TestScore_DegenerateInputsStayBounded(t *testing.T) {
	e := newTestEngine(t)

	allIncome := &builder{}
	allDebt := &builder{}
	for m := 1; m <= 4; m++ {
		allIncome.add(m, -500000, transaction.CategoryIncome, true)
		allDebt.add(m, 90000, transaction.CategoryDebtPayment, false)
	}
	volatile := &builder{}
	volatile.add(1, -100, transaction.CategoryIncome, true)
	volatile.add(2, -9000000, transaction.CategoryIncome, true)
	volatile.add(2, 8000000, transaction.CategoryShopping, false)
	volatile.add(3, 5000000, transaction.CategoryDebtPayment, false)

	testCases := []struct {
		name     string
		txs      []transaction.Transaction
		accounts []transaction.Account
	}{
		{"ZeroTransactions", []transaction.Transaction{}, nil},
		{"AllIncome", allIncome.txs, depository(1000)},
		{"AllDebt", allDebt.txs, depository(0)},
		{"Volatile", volatile.txs, depository(1_000_000)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := e.Score(Input{Transactions: tc.txs, Accounts: tc.accounts, WindowMonths: 12})
			require.NoError(t, err)
			assertBounded(t, r)
		})
	}

	t.Run("AllDebtHasZeroDebtScore", func(t *testing.T) {
		r, err := e.Score(Input{Transactions: allDebt.txs, WindowMonths: 12})
		require.NoError(t, err)
		assert.Equal(t, 0.0, r.Pillars.DebtTrajectory)
		assert.Equal(t, 0.0, r.Pillars.IncomeStability)
	})

	t.Run("ZeroTransactionsIsLowConfidence", func(t *testing.T) {
		r, err := e.Score(Input{Transactions: []transaction.Transaction{}, WindowMonths: 12})
		require.NoError(t, err)
		assert.True(t, r.LowConfidence)
		assert.Equal(t, 0, r.TransactionCount)
		assert.Equal(t, neutralScore, r.Pillars.SpendingDiscipline)
		assert.Equal(t, 100.0, r.Pillars.DebtTrajectory)
	})
}

func TestScore_SpendingDisciplineIsMonotonic(t *testing.T) {
	e := newTestEngine(t)

	heavy, err := e.Score(Input{Transactions: sixMonths(4000, 3500, 0), Accounts: depository(5000), WindowMonths: 6})
	require.NoError(t, err)
	light, err := e.Score(Input{Transactions: sixMonths(4000, 1500, 0), Accounts: depository(5000), WindowMonths: 6})
	require.NoError(t, err)

	assert.Less(t, heavy.Pillars.SpendingDiscipline, light.Pillars.SpendingDiscipline)
	assert.Greater(t, light.Pillars.SpendingDiscipline-heavy.Pillars.SpendingDiscipline, 25.0)
	assert.InDelta(t, 12.5, heavy.Pillars.SpendingDiscipline, 0.01)
	assert.InDelta(t, 62.5, light.Pillars.SpendingDiscipline, 0.01)
}

func TestScore_IncomeStability(t *testing.T) {
	e := newTestEngine(t)

	steady, err := e.Score(Input{Transactions: sixMonths(4000, 0, 1000), WindowMonths: 6})
	require.NoError(t, err)
	assert.InDelta(t, 90, steady.Pillars.IncomeStability, 0.01, "zero variance, flat trend")

	b := &builder{}
	for m, amount := range []int64{1000, 6000, 500, 7000, 800, 5000} {
		b.add(m+1, -amount*100, transaction.CategoryIncome, true)
	}
	erratic, err := e.Score(Input{Transactions: b.txs, WindowMonths: 6})
	require.NoError(t, err)
	assert.Less(t, erratic.Pillars.IncomeStability, steady.Pillars.IncomeStability)
}

func TestScore_Resilience(t *testing.T) {
	e := newTestEngine(t)

	b := &builder{}
	for m := 1; m <= 6; m++ {
		b.add(m, 300000, transaction.CategoryHousing, false)
	}
	r, err := e.Score(Input{Transactions: b.txs, Accounts: depository(6000), WindowMonths: 6})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, r.Metrics.RunwayMonths, 0.01)
	assert.InDelta(t, 100*2.0/DefaultRunwayCapMonths, r.Pillars.FinancialResilience, 0.01)

	surplus, err := e.Score(Input{Transactions: sixMonths(4000, 500, 1000), WindowMonths: 6})
	require.NoError(t, err)
	assert.Equal(t, 100.0, surplus.Pillars.FinancialResilience)
	assert.Equal(t, DefaultRunwayCapMonths, surplus.Metrics.RunwayMonths)
}

func TestScore_GrowthMomentum(t *testing.T) {
	e := newTestEngine(t)

	rising := &builder{}
	falling := &builder{}
	for m := 1; m <= 6; m++ {
		rising.add(m, -400000, transaction.CategoryIncome, true)
		rising.add(m, int64(400000-m*30000), transaction.CategoryHousing, false)
		falling.add(m, -400000, transaction.CategoryIncome, true)
		falling.add(m, int64(200000+m*30000), transaction.CategoryHousing, false)
	}

	up, err := e.Score(Input{Transactions: rising.txs, WindowMonths: 6})
	require.NoError(t, err)
	down, err := e.Score(Input{Transactions: falling.txs, WindowMonths: 6})
	require.NoError(t, err)

	assert.Greater(t, up.Pillars.GrowthMomentum, neutralScore)
	assert.Less(t, down.Pillars.GrowthMomentum, neutralScore)
}

func TestScore_WindowAndConfidence(t *testing.T) {
	e := newTestEngine(t)
	txs := sixMonths(4000, 1000, 1000)

	r, err := e.Score(Input{Transactions: txs, WindowMonths: 2, AsOf: time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Equal(t, 6, r.TransactionCount, "only May and June are in the window")
	assert.Equal(t, 2, r.Metrics.MonthsOfData)
	assert.True(t, r.LowConfidence)
	assert.Equal(t, 2, r.AnalysisWindowMonths)

	full, err := e.Score(Input{Transactions: txs, WindowMonths: 12})
	require.NoError(t, err)
	assert.False(t, full.LowConfidence)
	assert.Equal(t, len(txs), full.TransactionCount)
	assert.Equal(t, "2025.1", full.WeightsVersion)
}

func TestReadinessFromPillars(t *testing.T) {
	e := newTestEngine(t)
	p := snapshot.Pillars{IncomeStability: 80, SpendingDiscipline: 60, DebtTrajectory: 100, FinancialResilience: 40, GrowthMomentum: 50}

	full := e.ReadinessFromPillars(p, 24)
	assert.InDelta(t, 0.25*80+0.25*60+0.25*100+0.15*40+0.10*50, full.Personal, 0.01)
	assert.InDelta(t, 0.35*80+0.10*60+0.15*100+0.35*40+0.05*50-5, full.Mortgage, 0.01)

	short := e.ReadinessFromPillars(p, 4)
	assert.InDelta(t, full.Personal, short.Personal, 0.01, "personal needs 3 months")
	assert.InDelta(t, full.Mortgage-15, short.Mortgage, 0.01, "mortgage needs 12 months")
	assert.InDelta(t, full.Auto-10, short.Auto, 0.01)

	zero := e.ReadinessFromPillars(snapshot.Pillars{}, 0)
	assert.Equal(t, 0.0, zero.Mortgage, "penalties never push below zero")
}
