package categorizer

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/financial-twin-engine/internal/domain/transaction"
)

const (
	recurringMinMonths = 3
	recurringTolerance = 0.15
)

var merchantNoise = regexp.MustCompile(`[#*]|\d+`)

// normalizeMerchant strips store numbers and punctuation noise so that
// "STARBUCKS #4821" and "STARBUCKS #1102" group together
func normalizeMerchant(s string) string {
	s = merchantNoise.ReplaceAllString(strings.ToUpper(s), " ")
	return strings.Join(strings.Fields(s), " ")
}

// DetectRecurring flags outflows from a merchant that appear in at least three
// distinct months with amounts within 15% of that merchant's median.
// It returns copies; inputs are untouched.
func DetectRecurring(txs []transaction.Transaction) []transaction.Transaction {
	out := make([]transaction.Transaction, len(txs))
	copy(out, txs)

	groups := make(map[string][]int)
	for i, tx := range out {
		if tx.Outflow() == 0 {
			continue
		}
		key := normalizeMerchant(tx.MerchantText)
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], i)
	}

	for _, idx := range groups {
		if len(idx) < recurringMinMonths {
			continue
		}
		amounts := make([]int64, len(idx))
		for j, i := range idx {
			amounts[j] = out[i].Amount
		}
		median := medianInt64(amounts)
		if median <= 0 {
			continue
		}

		var within []int
		months := make(map[time.Time]struct{})
		for _, i := range idx {
			if math.Abs(float64(out[i].Amount)-median) <= recurringTolerance*median {
				within = append(within, i)
				months[out[i].MonthKey()] = struct{}{}
			}
		}
		if len(months) < recurringMinMonths {
			continue
		}
		for _, i := range within {
			out[i].IsRecurring = true
		}
	}

	return out
}

func medianInt64(values []int64) float64 {
	sorted := make([]int64, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	n := len(sorted)
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2
}
