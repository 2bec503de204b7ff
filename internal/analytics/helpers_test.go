package analytics

import (
	"fmt"
	"time"

	"github.com/financial-twin-engine/internal/domain/transaction"
	"github.com/google/uuid"
)

var testTwin = uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")

type builder struct {
	txs []transaction.Transaction
}

func (b *builder) add(month int, dollars int64, category transaction.Category, merchant string) {
	income := category == transaction.CategoryIncome
	amount := dollars * 100
	if income {
		amount = -amount
	}
	b.txs = append(b.txs, transaction.Transaction{
		ID:               fmt.Sprintf("tx-%02d", len(b.txs)+1),
		TwinID:           testTwin,
		Date:             time.Date(2025, time.Month(month), 10, 0, 0, 0, 0, time.UTC),
		Amount:           amount,
		MerchantText:     merchant,
		ResolvedCategory: category,
		IsIncomeDeposit:  income,
	})
}

func endOf(month int) time.Time {
	return time.Date(2025, time.Month(month), 28, 0, 0, 0, 0, time.UTC)
}

func firstOf(month int) time.Time {
	return time.Date(2025, time.Month(month), 1, 12, 0, 0, 0, time.UTC)
}
