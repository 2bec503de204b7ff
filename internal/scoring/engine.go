// Package scoring turns a categorized transaction history and account balances
// into five pillar scores, an overall score and per-product lending readiness.
// The engine is pure and safe for concurrent use.
package scoring

import (
	"errors"
	"fmt"
	"time"

	"github.com/financial-twin-engine/internal/domain/snapshot"
	"github.com/financial-twin-engine/internal/domain/transaction"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultMinMonths       = 3
	DefaultRunwayCapMonths = 12.0
)

var (
	ErrNilTransactions      = errors.New("transaction set is nil")
	ErrInvalidWindow        = errors.New("analysis window must be positive")
	ErrMalformedTransaction = errors.New("malformed transaction")
	ErrNilWeights           = errors.New("weights are required")
)

// Options tune the engine; zero values fall back to defaults
type Options struct {
	MinMonths       int
	RunwayCapMonths float64
}

// Input is everything a scoring run reads
type Input struct {
	Transactions []transaction.Transaction
	Accounts     []transaction.Account
	WindowMonths int
	// AsOf closes the window; zero means the latest transaction date
	AsOf time.Time
}

// Result is a complete scoring outcome
type Result struct {
	Pillars              snapshot.Pillars   `json:"pillar_scores"`
	Overall              float64            `json:"overall"`
	Readiness            snapshot.Readiness `json:"lending_readiness"`
	LowConfidence        bool               `json:"low_confidence"`
	TransactionCount     int                `json:"transaction_count"`
	AnalysisWindowMonths int                `json:"analysis_window_months"`
	WeightsVersion       string             `json:"weights_version"`
	Metrics              Metrics            `json:"metrics"`
}

// Draft converts the result into snapshot content
func (r *Result) Draft(syncRunID uuid.UUID) snapshot.Draft {
	return snapshot.Draft{
		SyncRunID:            syncRunID,
		Pillars:              r.Pillars,
		Overall:              r.Overall,
		Readiness:            r.Readiness,
		TransactionCount:     r.TransactionCount,
		AnalysisWindowMonths: r.AnalysisWindowMonths,
		LowConfidence:        r.LowConfidence,
		WeightsVersion:       r.WeightsVersion,
		RunwayMonths:         r.Metrics.RunwayMonths,
	}
}

type Engine struct {
	weights   *Weights
	minMonths int
	runwayCap float64
}

func NewEngine(weights *Weights, opts Options) (*Engine, error) {
	if weights == nil {
		return nil, ErrNilWeights
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{weights: weights, minMonths: opts.MinMonths, runwayCap: opts.RunwayCapMonths}
	if e.minMonths <= 0 {
		e.minMonths = DefaultMinMonths
	}
	if e.runwayCap <= 0 {
		e.runwayCap = DefaultRunwayCapMonths
	}
	return e, nil
}

func (e *Engine) Weights() *Weights {
	return e.weights
}

// Score computes pillars, overall and readiness. Sparse history sets
// LowConfidence instead of failing.
func (e *Engine) Score(in Input) (*Result, error) {
	if in.Transactions == nil {
		return nil, ErrNilTransactions
	}
	if in.WindowMonths <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWindow, in.WindowMonths)
	}
	for _, tx := range in.Transactions {
		if err := tx.Validate(); err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrMalformedTransaction, tx.ID, err)
		}
	}

	asOf := in.AsOf
	if asOf.IsZero() {
		asOf = LatestDate(in.Transactions)
	}

	windowed := InWindow(in.Transactions, asOf, in.WindowMonths)
	series := buildSeries(windowed)
	liquid := decimal.NewFromInt(transaction.LiquidBalance(in.Accounts))

	var m Metrics
	m.MonthsOfData = series.len()
	m.AvgMonthlyIncome = round2(mean(series.income))
	m.AvgMonthlyOutflow = round2(mean(series.outflow))
	m.AvgMonthlyDiscretionary = round2(mean(series.discretionary))
	m.AvgMonthlyDebt = round2(mean(series.debt))

	pillars := snapshot.Pillars{
		IncomeStability:     incomeStability(series, &m),
		SpendingDiscipline:  spendingDiscipline(series, &m),
		DebtTrajectory:      debtTrajectory(series, &m),
		FinancialResilience: financialResilience(series, toMajor(liquid), e.runwayCap, &m),
		GrowthMomentum:      growthMomentum(series, &m),
	}

	return &Result{
		Pillars:              pillars,
		Overall:              OverallFromPillars(pillars, e.weights.Overall),
		Readiness:            e.ReadinessFromPillars(pillars, m.MonthsOfData),
		LowConfidence:        m.MonthsOfData < e.minMonths,
		TransactionCount:     len(windowed),
		AnalysisWindowMonths: in.WindowMonths,
		WeightsVersion:       e.weights.Version,
		Metrics:              m,
	}, nil
}

// OverallFromPillars is the fixed-weight aggregate of the five pillars
func OverallFromPillars(p snapshot.Pillars, w PillarWeights) float64 {
	return bounded(w.Apply(p))
}

// ReadinessFromPillars recombines pillars per lending product
func (e *Engine) ReadinessFromPillars(p snapshot.Pillars, monthsOfData int) snapshot.Readiness {
	var r snapshot.Readiness
	for _, product := range snapshot.AllProducts {
		pw := e.weights.Readiness[product]
		v := pw.Pillars.Apply(p) + pw.Adjustment
		if monthsOfData < pw.MinHistoryMonths {
			v -= pw.HistoryPenalty
		}
		r.Set(product, bounded(v))
	}
	return r
}

// LatestDate returns the most recent transaction date, zero for an empty set
func LatestDate(txs []transaction.Transaction) time.Time {
	var latest time.Time
	for _, tx := range txs {
		if tx.Date.After(latest) {
			latest = tx.Date
		}
	}
	if latest.IsZero() {
		return time.Unix(0, 0).UTC()
	}
	return latest
}
