package scoring

import (
	"time"

	"github.com/financial-twin-engine/internal/domain/transaction"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type monthTotals struct {
	income        decimal.Decimal
	outflow       decimal.Decimal
	discretionary decimal.Decimal
	debt          decimal.Decimal
}

// monthlySeries holds per-month totals in major currency units
type monthlySeries struct {
	months        []time.Time
	income        []float64
	outflow       []float64
	discretionary []float64
	debt          []float64
}

func (s monthlySeries) len() int { return len(s.months) }

func (s monthlySeries) net() []float64 {
	out := make([]float64, len(s.months))
	for i := range s.months {
		out[i] = s.income[i] - s.outflow[i]
	}
	return out
}

func sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}

// windowStart is the first calendar month included for a window ending in asOf's month
func windowStart(asOf time.Time, windowMonths int) time.Time {
	end := monthOf(asOf)
	return end.AddDate(0, -(windowMonths - 1), 0)
}

func monthOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// InWindow filters transactions to the windowMonths calendar months ending with asOf's month
func InWindow(txs []transaction.Transaction, asOf time.Time, windowMonths int) []transaction.Transaction {
	start := windowStart(asOf, windowMonths)
	end := monthOf(asOf).AddDate(0, 1, 0)
	out := make([]transaction.Transaction, 0, len(txs))
	for _, tx := range txs {
		m := tx.MonthKey()
		if !m.Before(start) && m.Before(end) {
			out = append(out, tx)
		}
	}
	return out
}

// buildSeries aggregates transactions into a gap-free monthly series spanning
// the first to the last month that has data
func buildSeries(txs []transaction.Transaction) monthlySeries {
	if len(txs) == 0 {
		return monthlySeries{}
	}

	totals := make(map[time.Time]*monthTotals)
	first, last := txs[0].MonthKey(), txs[0].MonthKey()
	for _, tx := range txs {
		m := tx.MonthKey()
		if m.Before(first) {
			first = m
		}
		if m.After(last) {
			last = m
		}
		t, ok := totals[m]
		if !ok {
			t = &monthTotals{}
			totals[m] = t
		}

		if in := tx.Inflow(); in > 0 {
			t.income = t.income.Add(decimal.NewFromInt(in))
		}
		out := tx.Outflow()
		if out == 0 || tx.ResolvedCategory == transaction.CategoryTransfer {
			continue
		}
		amount := decimal.NewFromInt(out)
		t.outflow = t.outflow.Add(amount)
		if tx.ResolvedCategory.IsDiscretionary() {
			t.discretionary = t.discretionary.Add(amount)
		}
		if tx.ResolvedCategory == transaction.CategoryDebtPayment {
			t.debt = t.debt.Add(amount)
		}
	}

	var s monthlySeries
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		t := totals[m]
		if t == nil {
			t = &monthTotals{}
		}
		s.months = append(s.months, m)
		s.income = append(s.income, toMajor(t.income))
		s.outflow = append(s.outflow, toMajor(t.outflow))
		s.discretionary = append(s.discretionary, toMajor(t.discretionary))
		s.debt = append(s.debt, toMajor(t.debt))
	}
	return s
}

func toMajor(minor decimal.Decimal) float64 {
	return minor.Div(hundred).InexactFloat64()
}
