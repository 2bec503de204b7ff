package snapshot

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrHashMismatch = errors.New("snapshot content does not match its hash")

// Repository is the append-only snapshot log. There is no update or delete.
type Repository interface {
	Create(ctx context.Context, s *Snapshot) error
	GetByID(ctx context.Context, id uuid.UUID) (*Snapshot, error)
	// GetCurrent follows the twin's current pointer, falling back to the latest row
	GetCurrent(ctx context.Context, twinID uuid.UUID) (*Snapshot, error)
	// ListByTwin returns snapshots newest first
	ListByTwin(ctx context.Context, twinID uuid.UUID, limit int) ([]*Snapshot, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrSnapshotNotFound indicates the twin has no matching snapshot
type ErrSnapshotNotFound struct {
	TwinID     uuid.UUID
	SnapshotID uuid.UUID
}

func (e ErrSnapshotNotFound) Error() string {
	if e.SnapshotID != uuid.Nil {
		return "snapshot not found: " + e.SnapshotID.String()
	}
	return "no snapshot for twin: " + e.TwinID.String()
}

// Is implements the errors.Is interface for ErrSnapshotNotFound
func (e ErrSnapshotNotFound) Is(target error) bool {
	t, ok := target.(ErrSnapshotNotFound)
	if !ok {
		return false
	}
	if t.TwinID == uuid.Nil && t.SnapshotID == uuid.Nil {
		return true
	}
	return e.TwinID == t.TwinID && e.SnapshotID == t.SnapshotID
}
