package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/financial-twin-engine/internal/domain/transaction"
	"github.com/financial-twin-engine/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransactionRepository implements the transaction.Repository interface for PostgreSQL
type TransactionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewTransactionRepository(logger *slog.Logger, db *persistence.PostgresDB) transaction.Repository {
	return &TransactionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *TransactionRepository) WithTx(tx pgx.Tx) transaction.Repository {
	return &TransactionRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Upsert inserts new transactions and replaces changed ones in place, keyed by (twin_id, id)
func (r *TransactionRepository) Upsert(ctx context.Context, txs []transaction.Transaction) error {
	query := `
		INSERT INTO transactions (twin_id, id, account_id, date, amount, merchant_text, raw_category_hint,
			hint_confidence, resolved_category, is_recurring, is_income_deposit, confidence_score, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		ON CONFLICT (twin_id, id) DO UPDATE SET
			account_id = EXCLUDED.account_id,
			date = EXCLUDED.date,
			amount = EXCLUDED.amount,
			merchant_text = EXCLUDED.merchant_text,
			raw_category_hint = EXCLUDED.raw_category_hint,
			hint_confidence = EXCLUDED.hint_confidence,
			resolved_category = EXCLUDED.resolved_category,
			is_recurring = EXCLUDED.is_recurring,
			is_income_deposit = EXCLUDED.is_income_deposit,
			confidence_score = EXCLUDED.confidence_score,
			updated_at = NOW()
	`

	for _, tx := range txs {
		_, err := r.querier.Exec(ctx, query,
			tx.TwinID,
			tx.ID,
			tx.AccountID,
			tx.Date,
			tx.Amount,
			tx.MerchantText,
			tx.RawCategoryHint,
			tx.HintConfidence,
			string(tx.ResolvedCategory),
			tx.IsRecurring,
			tx.IsIncomeDeposit,
			tx.ConfidenceScore,
		)
		if err != nil {
			r.logger.Error("Failed to upsert transaction", "twin_id", tx.TwinID.String(), "transaction_id", tx.ID, "error", err)
			return fmt.Errorf("failed to upsert transaction %s: %w", tx.ID, err)
		}
	}

	return nil
}

// Delete removes transactions the aggregator reported as removed
func (r *TransactionRepository) Delete(ctx context.Context, twinID uuid.UUID, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `DELETE FROM transactions WHERE twin_id = $1 AND id = ANY($2)`

	if _, err := r.querier.Exec(ctx, query, twinID, ids); err != nil {
		r.logger.Error("Failed to delete transactions", "twin_id", twinID.String(), "count", len(ids), "error", err)
		return fmt.Errorf("failed to delete transactions: %w", err)
	}
	return nil
}

// ListByTwin returns the full stored transaction set ordered by date
func (r *TransactionRepository) ListByTwin(ctx context.Context, twinID uuid.UUID) ([]transaction.Transaction, error) {
	query := `
		SELECT twin_id, id, account_id, date, amount, merchant_text, raw_category_hint, hint_confidence,
			resolved_category, is_recurring, is_income_deposit, confidence_score
		FROM transactions
		WHERE twin_id = $1
		ORDER BY date ASC, id ASC
	`

	rows, err := r.querier.Query(ctx, query, twinID)
	if err != nil {
		r.logger.Error("Failed to list transactions", "twin_id", twinID.String(), "error", err)
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]transaction.Transaction, 0)
	for rows.Next() {
		var tx transaction.Transaction
		var category string
		err := rows.Scan(
			&tx.TwinID,
			&tx.ID,
			&tx.AccountID,
			&tx.Date,
			&tx.Amount,
			&tx.MerchantText,
			&tx.RawCategoryHint,
			&tx.HintConfidence,
			&category,
			&tx.IsRecurring,
			&tx.IsIncomeDeposit,
			&tx.ConfidenceScore,
		)
		if err != nil {
			r.logger.Error("Failed to scan transaction", "error", err)
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.ResolvedCategory = transaction.Category(category)
		txs = append(txs, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over transactions: %w", err)
	}
	return txs, nil
}

// ReplaceAccounts upserts the given accounts and drops the ones no longer linked
func (r *TransactionRepository) ReplaceAccounts(ctx context.Context, twinID uuid.UUID, accounts []transaction.Account) error {
	upsert := `
		INSERT INTO accounts (twin_id, id, name, type, subtype, balance, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (twin_id, id) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			subtype = EXCLUDED.subtype,
			balance = EXCLUDED.balance,
			updated_at = NOW()
	`

	ids := make([]string, 0, len(accounts))
	for _, a := range accounts {
		if _, err := r.querier.Exec(ctx, upsert, twinID, a.ID, a.Name, string(a.Type), a.Subtype, a.Balance); err != nil {
			r.logger.Error("Failed to upsert account", "twin_id", twinID.String(), "account_id", a.ID, "error", err)
			return fmt.Errorf("failed to upsert account %s: %w", a.ID, err)
		}
		ids = append(ids, a.ID)
	}

	prune := `DELETE FROM accounts WHERE twin_id = $1 AND NOT (id = ANY($2))`
	if _, err := r.querier.Exec(ctx, prune, twinID, ids); err != nil {
		r.logger.Error("Failed to prune accounts", "twin_id", twinID.String(), "error", err)
		return fmt.Errorf("failed to prune accounts: %w", err)
	}
	return nil
}

func (r *TransactionRepository) ListAccounts(ctx context.Context, twinID uuid.UUID) ([]transaction.Account, error) {
	query := `
		SELECT twin_id, id, name, type, subtype, balance
		FROM accounts
		WHERE twin_id = $1
		ORDER BY id ASC
	`

	rows, err := r.querier.Query(ctx, query, twinID)
	if err != nil {
		r.logger.Error("Failed to list accounts", "twin_id", twinID.String(), "error", err)
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]transaction.Account, 0)
	for rows.Next() {
		var a transaction.Account
		var accountType string
		if err := rows.Scan(&a.TwinID, &a.ID, &a.Name, &accountType, &a.Subtype, &a.Balance); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		a.Type = transaction.AccountType(accountType)
		accounts = append(accounts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over accounts: %w", err)
	}
	return accounts, nil
}
