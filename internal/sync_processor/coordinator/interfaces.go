package coordinator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/financial-twin-engine/internal/domain/shared"
	"github.com/financial-twin-engine/internal/domain/snapshot"
	"github.com/financial-twin-engine/internal/domain/syncrun"
	"github.com/financial-twin-engine/internal/domain/transaction"
	"github.com/financial-twin-engine/internal/scoring"
)

// SyncService accepts change events and turns them into sync runs
type SyncService interface {
	Enqueue(ctx context.Context, event *shared.ChangeEvent) (*syncrun.Run, error)
}

// Categorizer resolves categories of new and changed transactions
type Categorizer interface {
	Categorize(txs []transaction.Transaction) []transaction.Transaction
}

// Scorer scores a twin's full transaction set
type Scorer interface {
	Score(in scoring.Input) (*scoring.Result, error)
}

// SnapshotCommitter appends snapshots inside the run's database transaction
type SnapshotCommitter interface {
	CommitTx(ctx context.Context, tx pgx.Tx, twinID uuid.UUID, draft snapshot.Draft, syncedAt time.Time) (*snapshot.Snapshot, error)
	Archive(ctx context.Context, s *snapshot.Snapshot)
}

// Nudger wakes the anchor poller after a commit
type Nudger interface {
	Nudge()
}
