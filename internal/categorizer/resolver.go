// Package categorizer resolves each transaction to exactly one spending category.
// Resolution is pure: a confident classifier hint wins, otherwise an ordered rule
// list is walked and the first matching rule decides.
package categorizer

import (
	"strings"

	"github.com/financial-twin-engine/internal/domain/transaction"
)

// DefaultHintThreshold is the confidence a hint must exceed to be trusted
const DefaultHintThreshold = 0.6

const ruleConfidence = 0.75

// Source tells which path produced a category
type Source string

const (
	SourceHint    Source = "hint"
	SourceRule    Source = "rule"
	SourceDefault Source = "default"
)

// Resolution is a category with its provenance
type Resolution struct {
	Category   transaction.Category `json:"category"`
	Source     Source               `json:"source"`
	Rule       string               `json:"rule,omitempty"`
	Confidence float64              `json:"confidence"`
}

// Resolver is safe for concurrent use; it never mutates its rule set
type Resolver struct {
	rules     *RuleSet
	threshold float64
}

func NewResolver(rules *RuleSet, hintThreshold float64) *Resolver {
	return &Resolver{rules: rules, threshold: hintThreshold}
}

// Resolve returns the category of a transaction
func (r *Resolver) Resolve(tx transaction.Transaction) transaction.Category {
	return r.ResolveDetailed(tx).Category
}

// ResolveDetailed returns the category and the path that produced it
func (r *Resolver) ResolveDetailed(tx transaction.Transaction) Resolution {
	if tx.RawCategoryHint != "" && tx.HintConfidence > r.threshold {
		if c, ok := r.rules.hintCategory(tx.RawCategoryHint); ok && c != transaction.CategoryOther {
			return Resolution{Category: c, Source: SourceHint, Confidence: tx.HintConfidence}
		}
	}

	merchant := strings.ToUpper(strings.TrimSpace(tx.MerchantText))
	if merchant == "" {
		return Resolution{Category: transaction.CategoryOther, Source: SourceDefault}
	}

	for i := range r.rules.rules {
		rule := &r.rules.rules[i]
		if rule.Matches(merchant) {
			return Resolution{Category: rule.category, Source: SourceRule, Rule: rule.Name, Confidence: ruleConfidence}
		}
	}

	return Resolution{Category: transaction.CategoryOther, Source: SourceDefault}
}

// Categorize returns copies of txs with ResolvedCategory set; inputs are untouched.
// An inflow resolved to income is flagged as an income deposit.
func (r *Resolver) Categorize(txs []transaction.Transaction) []transaction.Transaction {
	out := make([]transaction.Transaction, len(txs))
	for i, tx := range txs {
		res := r.ResolveDetailed(tx)
		c := tx.WithCategory(res.Category, res.Confidence)
		if c.Amount < 0 && c.ResolvedCategory == transaction.CategoryIncome {
			c.IsIncomeDeposit = true
		}
		out[i] = c
	}
	return out
}
