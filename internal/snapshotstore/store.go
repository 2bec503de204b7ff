// Package snapshotstore is the append-only log of twin snapshots with a movable
// "current" pointer per twin. A commit inserts the snapshot and moves the pointer
// in one database transaction, so readers see either all of it or none.
package snapshotstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/financial-twin-engine/internal/domain/snapshot"
	"github.com/financial-twin-engine/internal/domain/twin"
	"github.com/financial-twin-engine/internal/platform/persistence"
)

const (
	DefaultHistoryLimit = 12
	MaxHistoryLimit     = 100
)

var ErrInvalidLimit = errors.New("limit must be between 1 and 100")

// Archiver keeps an off-database copy of committed snapshots
type Archiver interface {
	Archive(ctx context.Context, s *snapshot.Snapshot) error
}

// Ghost compares the current snapshot with the one before it
type Ghost struct {
	Current        *snapshot.Snapshot `json:"current"`
	Previous       *snapshot.Snapshot `json:"previous,omitempty"`
	PillarDelta    snapshot.Pillars   `json:"pillar_delta"`
	OverallDelta   float64            `json:"overall_delta"`
	ReadinessDelta snapshot.Readiness `json:"readiness_delta"`
}

type Store struct {
	db        persistence.TxRunner
	snapshots snapshot.Repository
	twins     twin.Repository
	archiver  Archiver
	logger    *slog.Logger
	now       func() time.Time
}

// NewStore wires the store; archiver may be nil
func NewStore(logger *slog.Logger, db persistence.TxRunner, snapshots snapshot.Repository, twins twin.Repository, archiver Archiver) *Store {
	return &Store{
		db:        db,
		snapshots: snapshots,
		twins:     twins,
		archiver:  archiver,
		logger:    logger.With("component", "snapshot_store"),
		now:       time.Now,
	}
}

// Commit appends a snapshot and makes it current in its own transaction
func (s *Store) Commit(ctx context.Context, twinID uuid.UUID, draft snapshot.Draft) (*snapshot.Snapshot, error) {
	var committed *snapshot.Snapshot
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		var err error
		committed, err = s.CommitTx(ctx, tx, twinID, draft, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return committed, nil
}

// CommitTx appends a snapshot inside the caller's transaction. The twin's current
// pointer and its sync horizon (syncedAt) move in the same transaction.
func (s *Store) CommitTx(ctx context.Context, tx pgx.Tx, twinID uuid.UUID, draft snapshot.Draft, syncedAt time.Time) (*snapshot.Snapshot, error) {
	snap, err := snapshot.New(twinID, draft, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.snapshots.WithTx(tx).Create(ctx, snap); err != nil {
		return nil, err
	}
	if err := s.twins.WithTx(tx).AdvanceSync(ctx, twinID, snap.ID, syncedAt.UTC()); err != nil {
		return nil, fmt.Errorf("failed to move current snapshot pointer: %w", err)
	}

	s.logger.Info("Snapshot committed",
		"twin_id", twinID.String(),
		"snapshot_id", snap.ID.String(),
		"overall", snap.Overall,
		"content_hash", snap.ContentHash,
	)
	return snap, nil
}

// Current returns the twin's current snapshot or ErrSnapshotNotFound
func (s *Store) Current(ctx context.Context, twinID uuid.UUID) (*snapshot.Snapshot, error) {
	return s.snapshots.GetCurrent(ctx, twinID)
}

func (s *Store) GetByID(ctx context.Context, snapshotID uuid.UUID) (*snapshot.Snapshot, error) {
	return s.snapshots.GetByID(ctx, snapshotID)
}

// History returns up to limit snapshots newest first; zero means the default
func (s *Store) History(ctx context.Context, twinID uuid.UUID, limit int) ([]*snapshot.Snapshot, error) {
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	if limit < 1 || limit > MaxHistoryLimit {
		return nil, ErrInvalidLimit
	}
	return s.snapshots.ListByTwin(ctx, twinID, limit)
}

// Ghost returns the current snapshot against its predecessor
func (s *Store) Ghost(ctx context.Context, twinID uuid.UUID) (*Ghost, error) {
	current, err := s.Current(ctx, twinID)
	if err != nil {
		return nil, err
	}

	recent, err := s.snapshots.ListByTwin(ctx, twinID, 2)
	if err != nil {
		return nil, err
	}

	ghost := &Ghost{Current: current}
	for _, snap := range recent {
		if snap.ID != current.ID {
			ghost.Previous = snap
			break
		}
	}
	if ghost.Previous == nil {
		return ghost, nil
	}

	ghost.PillarDelta = current.Pillars.Sub(ghost.Previous.Pillars)
	ghost.OverallDelta = round2(current.Overall - ghost.Previous.Overall)
	ghost.ReadinessDelta = current.Readiness.Sub(ghost.Previous.Readiness)
	return ghost, nil
}

// VerifyIntegrity recomputes the content hash of a stored snapshot
func VerifyIntegrity(s *snapshot.Snapshot) error {
	hash, err := snapshot.ContentHash(s)
	if err != nil {
		return err
	}
	if hash != s.ContentHash {
		return fmt.Errorf("%w: stored %s, computed %s", snapshot.ErrHashMismatch, s.ContentHash, hash)
	}
	return nil
}

// Archive copies a committed snapshot to the archive. Failures are logged, never returned.
func (s *Store) Archive(ctx context.Context, snap *snapshot.Snapshot) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.Archive(ctx, snap); err != nil {
		s.logger.Warn("Snapshot archive failed", "snapshot_id", snap.ID.String(), "error", err)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
