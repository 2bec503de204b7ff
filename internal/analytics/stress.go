// Package analytics derives read-only views from a twin's transactions and
// snapshots: stress scenarios, spending anomalies, cohort percentiles and
// per-pillar explanations. Nothing here writes a snapshot.
package analytics

import (
	"math"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"github.com/financial-twin-engine/internal/domain/snapshot"
	"github.com/financial-twin-engine/internal/domain/transaction"
	"github.com/financial-twin-engine/internal/scoring"
)

// Scorer is the scoring engine as seen by the simulator
type Scorer interface {
	Score(in scoring.Input) (*scoring.Result, error)
}

// StressParams is a hypothetical scenario. Percentages are relative changes,
// -100 removes the flow entirely. The shock is in minor units.
type StressParams struct {
	IncomeChangePct  float64 `json:"income_change_pct"`
	ExpenseChangePct float64 `json:"expense_change_pct"`
	OneTimeShock     int64   `json:"one_time_shock"`
}

func (p StressParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.IncomeChangePct, validation.Min(-100.0)),
		validation.Field(&p.ExpenseChangePct, validation.Min(-100.0)),
		validation.Field(&p.OneTimeShock, validation.Min(int64(0))),
	)
}

// StressResult compares the scenario with the unchanged baseline
type StressResult struct {
	Params               StressParams       `json:"params"`
	Baseline             *scoring.Result    `json:"baseline"`
	Stressed             *scoring.Result    `json:"stressed"`
	PillarDelta          snapshot.Pillars   `json:"pillar_delta"`
	OverallDelta         float64            `json:"overall_delta"`
	ReadinessDelta       snapshot.Readiness `json:"readiness_delta"`
	BaselineRunwayMonths float64            `json:"baseline_runway_months"`
	RunwayMonths         float64            `json:"runway_months"`
}

// Stress re-scores the input under the scenario. The input slices are not modified.
func Stress(scorer Scorer, in scoring.Input, params StressParams) (*StressResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	baseline, err := scorer.Score(in)
	if err != nil {
		return nil, err
	}

	stressedIn := in
	stressedIn.Transactions = applyFlows(in.Transactions, params)
	stressedIn.Accounts = applyShock(in.Accounts, params.OneTimeShock)

	stressed, err := scorer.Score(stressedIn)
	if err != nil {
		return nil, err
	}

	return &StressResult{
		Params:               params,
		Baseline:             baseline,
		Stressed:             stressed,
		PillarDelta:          roundPillars(stressed.Pillars.Sub(baseline.Pillars)),
		OverallDelta:         round2(stressed.Overall - baseline.Overall),
		ReadinessDelta:       roundReadiness(stressed.Readiness.Sub(baseline.Readiness)),
		BaselineRunwayMonths: baseline.Metrics.RunwayMonths,
		RunwayMonths:         stressed.Metrics.RunwayMonths,
	}, nil
}

func applyFlows(txs []transaction.Transaction, p StressParams) []transaction.Transaction {
	incomeFactor := decimal.NewFromFloat(1 + p.IncomeChangePct/100)
	expenseFactor := decimal.NewFromFloat(1 + p.ExpenseChangePct/100)

	out := make([]transaction.Transaction, len(txs))
	for i, tx := range txs {
		switch {
		case tx.IsIncomeDeposit:
			tx.Amount = scaleMinor(tx.Amount, incomeFactor)
		case tx.Outflow() > 0:
			tx.Amount = scaleMinor(tx.Amount, expenseFactor)
		}
		out[i] = tx
	}
	return out
}

// applyShock drains liquid balances in account order until the shock is covered
func applyShock(accounts []transaction.Account, shock int64) []transaction.Account {
	out := make([]transaction.Account, len(accounts))
	copy(out, accounts)

	remaining := shock
	for i := range out {
		if remaining <= 0 {
			break
		}
		if !out[i].IsLiquid() || out[i].Balance <= 0 {
			continue
		}
		take := min(out[i].Balance, remaining)
		out[i].Balance -= take
		remaining -= take
	}
	return out
}

func scaleMinor(amount int64, factor decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(factor).Round(0).IntPart()
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func roundPillars(p snapshot.Pillars) snapshot.Pillars {
	return snapshot.Pillars{
		IncomeStability:     round2(p.IncomeStability),
		SpendingDiscipline:  round2(p.SpendingDiscipline),
		DebtTrajectory:      round2(p.DebtTrajectory),
		FinancialResilience: round2(p.FinancialResilience),
		GrowthMomentum:      round2(p.GrowthMomentum),
	}
}

func roundReadiness(r snapshot.Readiness) snapshot.Readiness {
	return snapshot.Readiness{
		Personal:      round2(r.Personal),
		Auto:          round2(r.Auto),
		Mortgage:      round2(r.Mortgage),
		SmallBusiness: round2(r.SmallBusiness),
	}
}
