package verification

import (
	"context"

	"github.com/google/uuid"
)

// Repository manages verification record persistence
type Repository interface {
	// Upsert writes the record keyed by snapshot id
	Upsert(ctx context.Context, record *Record) error
	GetBySnapshotID(ctx context.Context, snapshotID uuid.UUID) (*Record, error)
	GetByContentHash(ctx context.Context, contentHash string) (*Record, error)
	ListByTwin(ctx context.Context, twinID uuid.UUID, limit, offset int) ([]*Record, error)
}

// ErrRecordNotFound indicates missing verification record
type ErrRecordNotFound struct {
	SnapshotID  uuid.UUID
	ContentHash string
}

func (e ErrRecordNotFound) Error() string {
	if e.ContentHash != "" {
		return "verification record not found for hash: " + e.ContentHash
	}
	return "verification record not found: " + e.SnapshotID.String()
}

// Is implements the errors.Is interface for ErrRecordNotFound
func (e ErrRecordNotFound) Is(target error) bool {
	t, ok := target.(ErrRecordNotFound)
	if !ok {
		return false
	}
	// An empty target matches any ErrRecordNotFound
	if t.SnapshotID == uuid.Nil && t.ContentHash == "" {
		return true
	}
	return e.SnapshotID == t.SnapshotID && e.ContentHash == t.ContentHash
}
