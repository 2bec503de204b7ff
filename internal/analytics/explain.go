package analytics

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/financial-twin-engine/internal/domain/snapshot"
	"github.com/financial-twin-engine/internal/domain/transaction"
	"github.com/financial-twin-engine/internal/scoring"
)

const (
	DefaultExplainLimit = 5
	MaxExplainLimit     = 50
)

var ErrInvalidExplainLimit = errors.New("limit must be between 1 and 50")

// Impact tells whether a transaction pushes a pillar up or down
type Impact string

const (
	ImpactPositive Impact = "positive"
	ImpactNegative Impact = "negative"
)

// Evidence is one transaction that drives a pillar
type Evidence struct {
	TransactionID string               `json:"transaction_id"`
	Date          time.Time            `json:"date"`
	MerchantText  string               `json:"merchant_text"`
	Amount        int64                `json:"amount"`
	Category      transaction.Category `json:"category"`
	Impact        Impact               `json:"impact"`
}

// Explanation is the evidence behind one pillar score
type Explanation struct {
	Pillar   snapshot.PillarName `json:"pillar"`
	Score    float64             `json:"score"`
	Reasons  []string            `json:"reasons"`
	Evidence []Evidence          `json:"evidence"`
}

// Explain selects the transactions inside the scored window that drive the pillar,
// largest absolute amount first. A zero limit means DefaultExplainLimit.
func Explain(result *scoring.Result, txs []transaction.Transaction, asOf time.Time, pillar snapshot.PillarName, limit int) (*Explanation, error) {
	if limit == 0 {
		limit = DefaultExplainLimit
	}
	if limit < 0 || limit > MaxExplainLimit {
		return nil, ErrInvalidExplainLimit
	}
	if _, err := snapshot.ParsePillar(string(pillar)); err != nil {
		return nil, err
	}

	if asOf.IsZero() {
		asOf = scoring.LatestDate(txs)
	}
	window := txs
	if result.AnalysisWindowMonths > 0 {
		window = scoring.InWindow(txs, asOf, result.AnalysisWindowMonths)
	}

	deposits := depositBaseline(window)
	var evidence []Evidence
	for _, tx := range window {
		if impact, ok := classify(pillar, tx, deposits); ok {
			evidence = append(evidence, Evidence{
				TransactionID: tx.ID,
				Date:          tx.Date,
				MerchantText:  tx.MerchantText,
				Amount:        tx.Amount,
				Category:      tx.ResolvedCategory,
				Impact:        impact,
			})
		}
	}

	sort.SliceStable(evidence, func(i, j int) bool {
		ai, aj := abs64(evidence[i].Amount), abs64(evidence[j].Amount)
		if ai != aj {
			return ai > aj
		}
		return evidence[i].TransactionID < evidence[j].TransactionID
	})
	if len(evidence) > limit {
		evidence = evidence[:limit]
	}

	return &Explanation{
		Pillar:   pillar,
		Score:    result.Pillars.Get(pillar),
		Reasons:  reasons(pillar, result.Metrics),
		Evidence: evidence,
	}, nil
}

// deposits sums the income deposits of the window
type deposits struct {
	total int64
	count int64
}

func depositBaseline(txs []transaction.Transaction) deposits {
	var d deposits
	for _, tx := range txs {
		if tx.IsIncomeDeposit {
			d.total += tx.Inflow()
			d.count++
		}
	}
	return d
}

// belowMean compares in integers: amount < total/count
func (d deposits) belowMean(amount int64) bool {
	return d.count > 0 && amount*d.count < d.total
}

func classify(pillar snapshot.PillarName, tx transaction.Transaction, d deposits) (Impact, bool) {
	switch pillar {
	case snapshot.PillarIncomeStability:
		if !tx.IsIncomeDeposit {
			break
		}
		if d.belowMean(tx.Inflow()) {
			return ImpactNegative, true
		}
		return ImpactPositive, true
	case snapshot.PillarSpendingDiscipline:
		if tx.Outflow() > 0 && tx.ResolvedCategory.IsDiscretionary() {
			return ImpactNegative, true
		}
	case snapshot.PillarDebtTrajectory:
		if tx.Outflow() > 0 && tx.ResolvedCategory == transaction.CategoryDebtPayment {
			return ImpactNegative, true
		}
	case snapshot.PillarFinancialResilience:
		if tx.Outflow() > 0 && tx.ResolvedCategory != transaction.CategoryTransfer {
			return ImpactNegative, true
		}
	case snapshot.PillarGrowthMomentum:
		if tx.IsIncomeDeposit {
			return ImpactPositive, true
		}
		if tx.Outflow() > 0 && tx.ResolvedCategory != transaction.CategoryTransfer {
			return ImpactNegative, true
		}
	}
	return "", false
}

func reasons(pillar snapshot.PillarName, m scoring.Metrics) []string {
	var out []string
	switch pillar {
	case snapshot.PillarIncomeStability:
		if m.AvgMonthlyIncome <= 0 {
			return []string{"no income deposits in the analysis window"}
		}
		out = append(out,
			fmt.Sprintf("average monthly income %.2f", m.AvgMonthlyIncome),
			fmt.Sprintf("income varies %.0f%% month to month", m.IncomeCV*100),
			"income trend is "+direction(m.IncomeSlope),
		)
	case snapshot.PillarSpendingDiscipline:
		out = append(out,
			fmt.Sprintf("discretionary spend is %.0f%% of income", m.DiscretionaryRatio*100),
			"discretionary share is "+direction(m.DiscretionaryRatioSlope),
		)
	case snapshot.PillarDebtTrajectory:
		if m.AvgMonthlyDebt <= 0 {
			return []string{"no debt payments in the analysis window"}
		}
		out = append(out,
			fmt.Sprintf("debt payments are %.0f%% of income", m.DebtToIncome*100),
			"debt payments are "+direction(m.DebtSlope),
		)
	case snapshot.PillarFinancialResilience:
		out = append(out, fmt.Sprintf("liquid balance %.2f", m.LiquidBalance))
		if m.NetMonthlyBurn > 0 {
			out = append(out, fmt.Sprintf("net monthly burn %.2f leaves %.1f months of runway", m.NetMonthlyBurn, m.RunwayMonths))
		} else {
			out = append(out, "income covers monthly outflows")
		}
	case snapshot.PillarGrowthMomentum:
		if m.MonthsOfData < 2 {
			return []string{"not enough months to measure a trend"}
		}
		out = append(out, "monthly net cash flow is "+direction(m.NetSlope))
	}
	return out
}

func direction(slope float64) string {
	switch {
	case slope > 0.001:
		return "rising"
	case slope < -0.001:
		return "falling"
	}
	return "flat"
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
