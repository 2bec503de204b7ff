package outbox

import (
	"context"
	"strconv"

	"github.com/financial-twin-engine/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository manages anchor outbox persistence
type Repository interface {
	Create(ctx context.Context, message *Message) error
	GetPending(ctx context.Context, limit int) ([]*Message, error)
	UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error
	IncrementAttempts(ctx context.Context, id int64) error
	GetBySnapshotID(ctx context.Context, snapshotID uuid.UUID) (*Message, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrMessageNotFound indicates missing outbox message
type ErrMessageNotFound struct {
	ID         int64
	SnapshotID uuid.UUID
}

func (e ErrMessageNotFound) Error() string {
	if e.SnapshotID != uuid.Nil {
		return "outbox message not found for snapshot: " + e.SnapshotID.String()
	}
	return "outbox message not found: " + strconv.FormatInt(e.ID, 10)
}

// ErrDuplicateMessage indicates a snapshot already has an anchor message
type ErrDuplicateMessage struct {
	SnapshotID uuid.UUID
}

func (e ErrDuplicateMessage) Error() string {
	return "duplicate outbox message: " + e.SnapshotID.String()
}
