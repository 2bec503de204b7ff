// Package postgres provides PostgreSQL implementations of the domain repositories.
// Every repository can be bound to a transaction with WithTx so that a sync run
// commits its transactions, snapshot, outbox row and run status atomically.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/financial-twin-engine/internal/domain/twin"
	"github.com/financial-twin-engine/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const twinColumns = `id, item_id, access_token, last_synced_at, current_snapshot_id, created_at, updated_at`

// TwinRepository implements the twin.Repository interface for PostgreSQL
type TwinRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

func NewTwinRepository(logger *slog.Logger, db *persistence.PostgresDB) twin.Repository {
	return &TwinRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *TwinRepository) WithTx(tx pgx.Tx) twin.Repository {
	return &TwinRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new twin. An item can be linked to one twin only.
func (r *TwinRepository) Create(ctx context.Context, t *twin.Twin) error {
	query := `
		INSERT INTO twins (id, item_id, access_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.querier.Exec(ctx, query, t.ID, t.ItemID, t.AccessToken, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if persistence.IsUniqueViolation(err, "twins_item_id_key") {
			return twin.ErrDuplicateItem{ItemID: t.ItemID}
		}
		r.logger.Error("Failed to create twin", "item_id", t.ItemID, "error", err)
		return fmt.Errorf("failed to create twin: %w", err)
	}

	return nil
}

func (r *TwinRepository) GetByID(ctx context.Context, id uuid.UUID) (*twin.Twin, error) {
	query := `SELECT ` + twinColumns + ` FROM twins WHERE id = $1`
	t, err := scanTwin(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, twin.ErrTwinNotFound{TwinID: id}
		}
		r.logger.Error("Failed to get twin", "twin_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get twin: %w", err)
	}
	return t, nil
}

func (r *TwinRepository) GetByItemID(ctx context.Context, itemID string) (*twin.Twin, error) {
	query := `SELECT ` + twinColumns + ` FROM twins WHERE item_id = $1`
	t, err := scanTwin(r.querier.QueryRow(ctx, query, itemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, twin.ErrTwinNotFound{ItemID: itemID}
		}
		r.logger.Error("Failed to get twin by item", "item_id", itemID, "error", err)
		return nil, fmt.Errorf("failed to get twin by item: %w", err)
	}
	return t, nil
}

// LockForUpdate takes a row lock on the twin. Use inside a transaction.
func (r *TwinRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*twin.Twin, error) {
	query := `SELECT ` + twinColumns + ` FROM twins WHERE id = $1 FOR UPDATE`
	t, err := scanTwin(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, twin.ErrTwinNotFound{TwinID: id}
		}
		r.logger.Error("Failed to lock twin", "twin_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to lock twin: %w", err)
	}
	return t, nil
}

// AdvanceSync moves the current snapshot pointer and the delta horizon
func (r *TwinRepository) AdvanceSync(ctx context.Context, id uuid.UUID, snapshotID uuid.UUID, syncedAt time.Time) error {
	query := `
		UPDATE twins
		SET current_snapshot_id = $1, last_synced_at = $2, updated_at = NOW()
		WHERE id = $3
	`

	result, err := r.querier.Exec(ctx, query, snapshotID, syncedAt, id)
	if err != nil {
		r.logger.Error("Failed to advance twin sync", "twin_id", id.String(), "error", err)
		return fmt.Errorf("failed to advance twin sync: %w", err)
	}
	if result.RowsAffected() == 0 {
		return twin.ErrTwinNotFound{TwinID: id}
	}
	return nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTwin(row rowScanner) (*twin.Twin, error) {
	var t twin.Twin
	err := row.Scan(
		&t.ID,
		&t.ItemID,
		&t.AccessToken,
		&t.LastSyncedAt,
		&t.CurrentSnapshotID,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
