package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/financial-twin-engine/internal/domain/snapshot"
	"github.com/financial-twin-engine/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const snapshotColumns = `s.id, s.twin_id, s.sync_run_id, s.created_at,
	s.income_stability, s.spending_discipline, s.debt_trajectory, s.financial_resilience, s.growth_momentum,
	s.overall, s.readiness_personal, s.readiness_auto, s.readiness_mortgage, s.readiness_small_biz,
	s.transaction_count, s.analysis_window_months, s.low_confidence, s.weights_version, s.runway_months, s.content_hash`

// SnapshotRepository implements the append-only snapshot.Repository for PostgreSQL
type SnapshotRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewSnapshotRepository(logger *slog.Logger, db *persistence.PostgresDB) snapshot.Repository {
	return &SnapshotRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *SnapshotRepository) WithTx(tx pgx.Tx) snapshot.Repository {
	return &SnapshotRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create appends a snapshot. Rows are never updated or deleted afterwards.
func (r *SnapshotRepository) Create(ctx context.Context, s *snapshot.Snapshot) error {
	query := `
		INSERT INTO snapshots (id, twin_id, sync_run_id, created_at,
			income_stability, spending_discipline, debt_trajectory, financial_resilience, growth_momentum,
			overall, readiness_personal, readiness_auto, readiness_mortgage, readiness_small_biz,
			transaction_count, analysis_window_months, low_confidence, weights_version, runway_months, content_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	_, err := r.querier.Exec(ctx, query,
		s.ID,
		s.TwinID,
		s.SyncRunID,
		s.CreatedAt,
		s.Pillars.IncomeStability,
		s.Pillars.SpendingDiscipline,
		s.Pillars.DebtTrajectory,
		s.Pillars.FinancialResilience,
		s.Pillars.GrowthMomentum,
		s.Overall,
		s.Readiness.Personal,
		s.Readiness.Auto,
		s.Readiness.Mortgage,
		s.Readiness.SmallBusiness,
		s.TransactionCount,
		s.AnalysisWindowMonths,
		s.LowConfidence,
		s.WeightsVersion,
		s.RunwayMonths,
		s.ContentHash,
	)
	if err != nil {
		r.logger.Error("Failed to create snapshot", "twin_id", s.TwinID.String(), "snapshot_id", s.ID.String(), "error", err)
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	return nil
}

func (r *SnapshotRepository) GetByID(ctx context.Context, id uuid.UUID) (*snapshot.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM snapshots s WHERE s.id = $1`

	s, err := scanSnapshot(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, snapshot.ErrSnapshotNotFound{SnapshotID: id}
		}
		r.logger.Error("Failed to get snapshot", "snapshot_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return s, nil
}

// GetCurrent prefers the twin's current pointer and falls back to the newest row
func (r *SnapshotRepository) GetCurrent(ctx context.Context, twinID uuid.UUID) (*snapshot.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM snapshots s
		LEFT JOIN twins t ON t.id = s.twin_id
		WHERE s.twin_id = $1
		ORDER BY COALESCE(s.id = t.current_snapshot_id, FALSE) DESC, s.created_at DESC, s.id DESC
		LIMIT 1
	`

	s, err := scanSnapshot(r.querier.QueryRow(ctx, query, twinID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, snapshot.ErrSnapshotNotFound{TwinID: twinID}
		}
		r.logger.Error("Failed to get current snapshot", "twin_id", twinID.String(), "error", err)
		return nil, fmt.Errorf("failed to get current snapshot: %w", err)
	}
	return s, nil
}

// ListByTwin returns up to limit snapshots, newest first
func (r *SnapshotRepository) ListByTwin(ctx context.Context, twinID uuid.UUID, limit int) ([]*snapshot.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM snapshots s
		WHERE s.twin_id = $1
		ORDER BY s.created_at DESC, s.id DESC
		LIMIT $2
	`

	rows, err := r.querier.Query(ctx, query, twinID, limit)
	if err != nil {
		r.logger.Error("Failed to list snapshots", "twin_id", twinID.String(), "error", err)
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]*snapshot.Snapshot, 0)
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			r.logger.Error("Failed to scan snapshot", "error", err)
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over snapshots: %w", err)
	}
	return snapshots, nil
}

func scanSnapshot(row rowScanner) (*snapshot.Snapshot, error) {
	var s snapshot.Snapshot
	var syncRunID *uuid.UUID
	err := row.Scan(
		&s.ID,
		&s.TwinID,
		&syncRunID,
		&s.CreatedAt,
		&s.Pillars.IncomeStability,
		&s.Pillars.SpendingDiscipline,
		&s.Pillars.DebtTrajectory,
		&s.Pillars.FinancialResilience,
		&s.Pillars.GrowthMomentum,
		&s.Overall,
		&s.Readiness.Personal,
		&s.Readiness.Auto,
		&s.Readiness.Mortgage,
		&s.Readiness.SmallBusiness,
		&s.TransactionCount,
		&s.AnalysisWindowMonths,
		&s.LowConfidence,
		&s.WeightsVersion,
		&s.RunwayMonths,
		&s.ContentHash,
	)
	if err != nil {
		return nil, err
	}
	if syncRunID != nil {
		s.SyncRunID = *syncRunID
	}
	return &s, nil
}
