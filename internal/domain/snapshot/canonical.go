package snapshot

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
)

// fixed is a score rendered with exactly two fractional digits
type fixed float64

// CanonicalDocument renders the hashed content of a snapshot: a JSON object with
// keys sorted at every level, scores fixed to two decimals, and no whitespace.
func CanonicalDocument(s *Snapshot) ([]byte, error) {
	doc := map[string]any{
		"analysis_window_months": s.AnalysisWindowMonths,
		"lending_readiness": map[string]any{
			string(ProductAuto):          fixed(s.Readiness.Auto),
			string(ProductMortgage):      fixed(s.Readiness.Mortgage),
			string(ProductPersonal):      fixed(s.Readiness.Personal),
			string(ProductSmallBusiness): fixed(s.Readiness.SmallBusiness),
		},
		"overall": fixed(s.Overall),
		"pillar_scores": map[string]any{
			string(PillarDebtTrajectory):      fixed(s.Pillars.DebtTrajectory),
			string(PillarFinancialResilience): fixed(s.Pillars.FinancialResilience),
			string(PillarGrowthMomentum):      fixed(s.Pillars.GrowthMomentum),
			string(PillarIncomeStability):     fixed(s.Pillars.IncomeStability),
			string(PillarSpendingDiscipline):  fixed(s.Pillars.SpendingDiscipline),
		},
		"transaction_count": s.TransactionCount,
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ContentHash returns the hex SHA-256 of the canonical document
func ContentHash(s *Snapshot) (string, error) {
	doc, err := CanonicalDocument(s)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize snapshot: %w", err)
	}
	sum := sha256.Sum256(doc)
	return hex.EncodeToString(sum[:]), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case fixed:
		buf.WriteString(decimal.NewFromFloat(float64(val)).StringFixed(2))
	case int:
		buf.WriteString(strconv.Itoa(val))
	default:
		return fmt.Errorf("unsupported canonical value %T", v)
	}
	return nil
}
