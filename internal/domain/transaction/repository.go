package transaction

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository persists a twin's transaction set and linked accounts
type Repository interface {
	// Upsert inserts new rows and replaces changed ones, keyed by transaction id
	Upsert(ctx context.Context, txs []Transaction) error
	Delete(ctx context.Context, twinID uuid.UUID, ids []string) error
	ListByTwin(ctx context.Context, twinID uuid.UUID) ([]Transaction, error)
	ReplaceAccounts(ctx context.Context, twinID uuid.UUID, accounts []Account) error
	ListAccounts(ctx context.Context, twinID uuid.UUID) ([]Account, error)
	WithTx(tx pgx.Tx) Repository
}
