package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/financial-twin-engine/internal/domain/syncrun"
	"github.com/financial-twin-engine/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	syncRunColumns = `id, twin_id, trigger_event_id, status, new_transaction_count, updated_transaction_count,
		removed_transaction_count, snapshot_id, error_message, correlation_id, created_at, started_at, processed_at`

	oneProcessingPerTwinIndex = "sync_runs_one_processing_per_twin"
)

// SyncRunRepository implements the syncrun.Repository interface for PostgreSQL
type SyncRunRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewSyncRunRepository(logger *slog.Logger, db *persistence.PostgresDB) syncrun.Repository {
	return &SyncRunRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *SyncRunRepository) WithTx(tx pgx.Tx) syncrun.Repository {
	return &SyncRunRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// CreateIfAbsent records a RECEIVED run unless its trigger event id was already seen
func (r *SyncRunRepository) CreateIfAbsent(ctx context.Context, run *syncrun.Run) (bool, error) {
	query := `
		INSERT INTO sync_runs (id, twin_id, trigger_event_id, status, correlation_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (trigger_event_id) DO NOTHING
	`

	result, err := r.querier.Exec(ctx, query,
		run.ID,
		run.TwinID,
		run.TriggerEventID,
		string(run.Status),
		run.CorrelationID,
		run.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create sync run", "trigger_event_id", run.TriggerEventID, "error", err)
		return false, fmt.Errorf("failed to create sync run: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

func (r *SyncRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*syncrun.Run, error) {
	query := `SELECT ` + syncRunColumns + ` FROM sync_runs WHERE id = $1`

	run, err := scanSyncRun(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, syncrun.ErrRunNotFound{ID: id}
		}
		r.logger.Error("Failed to get sync run", "sync_run_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get sync run: %w", err)
	}
	return run, nil
}

// MarkProcessing moves RECEIVED -> PROCESSING. The partial unique index rejects
// a second PROCESSING run for the same twin.
func (r *SyncRunRepository) MarkProcessing(ctx context.Context, run *syncrun.Run) error {
	query := `
		UPDATE sync_runs
		SET status = $1, started_at = $2
		WHERE id = $3 AND status = $4
	`

	now := time.Now().UTC()
	result, err := r.querier.Exec(ctx, query, string(syncrun.StatusProcessing), now, run.ID, string(syncrun.StatusReceived))
	if err != nil {
		if persistence.IsUniqueViolation(err, oneProcessingPerTwinIndex) {
			return syncrun.ErrConcurrentRun{TwinID: run.TwinID}
		}
		r.logger.Error("Failed to mark sync run processing", "sync_run_id", run.ID.String(), "error", err)
		return fmt.Errorf("failed to mark sync run processing: %w", err)
	}
	if result.RowsAffected() == 0 {
		return syncrun.ErrInvalidTransition{RunID: run.ID, From: run.Status, To: syncrun.StatusProcessing}
	}

	run.Status = syncrun.StatusProcessing
	run.StartedAt = &now
	return nil
}

// MarkCompleted moves PROCESSING -> COMPLETED and records the produced snapshot
func (r *SyncRunRepository) MarkCompleted(ctx context.Context, run *syncrun.Run, snapshotID uuid.UUID, counts syncrun.Counts) error {
	query := `
		UPDATE sync_runs
		SET status = $1, snapshot_id = $2, new_transaction_count = $3, updated_transaction_count = $4,
			removed_transaction_count = $5, error_message = '', processed_at = $6
		WHERE id = $7 AND status = $8
	`

	now := time.Now().UTC()
	result, err := r.querier.Exec(ctx, query,
		string(syncrun.StatusCompleted),
		snapshotID,
		counts.New,
		counts.Updated,
		counts.Removed,
		now,
		run.ID,
		string(syncrun.StatusProcessing),
	)
	if err != nil {
		r.logger.Error("Failed to mark sync run completed", "sync_run_id", run.ID.String(), "error", err)
		return fmt.Errorf("failed to mark sync run completed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return syncrun.ErrInvalidTransition{RunID: run.ID, From: run.Status, To: syncrun.StatusCompleted}
	}

	run.Status = syncrun.StatusCompleted
	run.SnapshotID = &snapshotID
	run.NewTransactionCount = counts.New
	run.UpdatedTransactionCount = counts.Updated
	run.RemovedTransactionCount = counts.Removed
	run.ProcessedAt = &now
	return nil
}

// MarkFailed moves RECEIVED or PROCESSING -> FAILED with a captured reason
func (r *SyncRunRepository) MarkFailed(ctx context.Context, run *syncrun.Run, reason string) error {
	query := `
		UPDATE sync_runs
		SET status = $1, error_message = $2, processed_at = $3
		WHERE id = $4 AND status IN ($5, $6)
	`

	now := time.Now().UTC()
	result, err := r.querier.Exec(ctx, query,
		string(syncrun.StatusFailed),
		reason,
		now,
		run.ID,
		string(syncrun.StatusReceived),
		string(syncrun.StatusProcessing),
	)
	if err != nil {
		r.logger.Error("Failed to mark sync run failed", "sync_run_id", run.ID.String(), "error", err)
		return fmt.Errorf("failed to mark sync run failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return syncrun.ErrInvalidTransition{RunID: run.ID, From: run.Status, To: syncrun.StatusFailed}
	}

	run.Status = syncrun.StatusFailed
	run.ErrorMessage = reason
	run.ProcessedAt = &now
	return nil
}

func (r *SyncRunRepository) LatestByTwin(ctx context.Context, twinID uuid.UUID) (*syncrun.Run, error) {
	query := `
		SELECT ` + syncRunColumns + `
		FROM sync_runs
		WHERE twin_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	run, err := scanSyncRun(r.querier.QueryRow(ctx, query, twinID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, syncrun.ErrRunNotFound{TwinID: twinID}
		}
		r.logger.Error("Failed to get latest sync run", "twin_id", twinID.String(), "error", err)
		return nil, fmt.Errorf("failed to get latest sync run: %w", err)
	}
	return run, nil
}

// ListByStatus returns runs in the given status, oldest first
func (r *SyncRunRepository) ListByStatus(ctx context.Context, status syncrun.Status, limit int) ([]*syncrun.Run, error) {
	query := `
		SELECT ` + syncRunColumns + `
		FROM sync_runs
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.querier.Query(ctx, query, string(status), limit)
	if err != nil {
		r.logger.Error("Failed to list sync runs", "status", string(status), "error", err)
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*syncrun.Run, 0)
	for rows.Next() {
		run, err := scanSyncRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over sync runs: %w", err)
	}
	return runs, nil
}

// FailStale fails PROCESSING runs that started before the cutoff
func (r *SyncRunRepository) FailStale(ctx context.Context, startedBefore time.Time, reason string) (int64, error) {
	query := `
		UPDATE sync_runs
		SET status = $1, error_message = $2, processed_at = NOW()
		WHERE status = $3 AND started_at < $4
	`

	result, err := r.querier.Exec(ctx, query, string(syncrun.StatusFailed), reason, string(syncrun.StatusProcessing), startedBefore)
	if err != nil {
		r.logger.Error("Failed to fail stale sync runs", "error", err)
		return 0, fmt.Errorf("failed to fail stale sync runs: %w", err)
	}
	return result.RowsAffected(), nil
}

func scanSyncRun(row rowScanner) (*syncrun.Run, error) {
	var run syncrun.Run
	var status string
	err := row.Scan(
		&run.ID,
		&run.TwinID,
		&run.TriggerEventID,
		&status,
		&run.NewTransactionCount,
		&run.UpdatedTransactionCount,
		&run.RemovedTransactionCount,
		&run.SnapshotID,
		&run.ErrorMessage,
		&run.CorrelationID,
		&run.CreatedAt,
		&run.StartedAt,
		&run.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Status = syncrun.Status(status)
	return &run, nil
}
