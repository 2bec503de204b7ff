package twin

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Twin is the profile root: it links the aggregator item and points at the current snapshot
type Twin struct {
	ID                uuid.UUID  `json:"id"`
	ItemID            string     `json:"item_id"`
	AccessToken       string     `json:"-"`
	LastSyncedAt      *time.Time `json:"last_synced_at,omitempty"`
	CurrentSnapshotID *uuid.UUID `json:"current_snapshot_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Since returns the delta fetch horizon: the last successful sync or the initial lookback
func (t *Twin) Since(now time.Time, initialLookback time.Duration) time.Time {
	if t.LastSyncedAt != nil {
		return *t.LastSyncedAt
	}
	return now.Add(-initialLookback)
}

// Repository persists twins
type Repository interface {
	Create(ctx context.Context, t *Twin) error
	GetByID(ctx context.Context, id uuid.UUID) (*Twin, error)
	GetByItemID(ctx context.Context, itemID string) (*Twin, error)
	// LockForUpdate takes a row lock for the duration of the caller's transaction
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Twin, error)
	// AdvanceSync moves the current snapshot pointer and the sync horizon together
	AdvanceSync(ctx context.Context, id uuid.UUID, snapshotID uuid.UUID, syncedAt time.Time) error
	WithTx(tx pgx.Tx) Repository
}

// ErrTwinNotFound indicates missing twin
type ErrTwinNotFound struct {
	TwinID uuid.UUID
	ItemID string
}

func (e ErrTwinNotFound) Error() string {
	if e.ItemID != "" {
		return "twin not found for item: " + e.ItemID
	}
	return "twin not found: " + e.TwinID.String()
}

// Is implements the errors.Is interface for ErrTwinNotFound
func (e ErrTwinNotFound) Is(target error) bool {
	t, ok := target.(ErrTwinNotFound)
	if !ok {
		return false
	}
	if t.TwinID == uuid.Nil && t.ItemID == "" {
		return true
	}
	return e.TwinID == t.TwinID && e.ItemID == t.ItemID
}

// ErrDuplicateItem indicates an aggregator item already linked to a twin
type ErrDuplicateItem struct {
	ItemID string
}

func (e ErrDuplicateItem) Error() string {
	return "item already linked to a twin: " + e.ItemID
}
