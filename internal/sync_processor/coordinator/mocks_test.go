package coordinator

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"

	"github.com/financial-twin-engine/internal/domain/outbox"
	"github.com/financial-twin-engine/internal/domain/shared"
	"github.com/financial-twin-engine/internal/domain/snapshot"
	"github.com/financial-twin-engine/internal/domain/syncrun"
	"github.com/financial-twin-engine/internal/domain/transaction"
	"github.com/financial-twin-engine/internal/domain/twin"
	"github.com/financial-twin-engine/internal/platform/aggregator"
	"github.com/financial-twin-engine/internal/scoring"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type MockRunRepo struct {
	mock.Mock
}

func (m *MockRunRepo) CreateIfAbsent(ctx context.Context, run *syncrun.Run) (bool, error) {
	args := m.Called(ctx, run)
	return args.Bool(0), args.Error(1)
}

func (m *MockRunRepo) GetByID(ctx context.Context, id uuid.UUID) (*syncrun.Run, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*syncrun.Run), args.Error(1)
}

func (m *MockRunRepo) MarkProcessing(ctx context.Context, run *syncrun.Run) error {
	args := m.Called(ctx, run)
	if args.Error(0) == nil {
		run.Status = syncrun.StatusProcessing
	}
	return args.Error(0)
}

func (m *MockRunRepo) MarkCompleted(ctx context.Context, run *syncrun.Run, snapshotID uuid.UUID, counts syncrun.Counts) error {
	args := m.Called(ctx, run, snapshotID, counts)
	if args.Error(0) == nil {
		run.Status = syncrun.StatusCompleted
		run.SnapshotID = &snapshotID
		run.NewTransactionCount = counts.New
		run.UpdatedTransactionCount = counts.Updated
		run.RemovedTransactionCount = counts.Removed
	}
	return args.Error(0)
}

func (m *MockRunRepo) MarkFailed(ctx context.Context, run *syncrun.Run, reason string) error {
	args := m.Called(ctx, run, reason)
	return args.Error(0)
}

func (m *MockRunRepo) LatestByTwin(ctx context.Context, twinID uuid.UUID) (*syncrun.Run, error) {
	args := m.Called(ctx, twinID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*syncrun.Run), args.Error(1)
}

func (m *MockRunRepo) ListByStatus(ctx context.Context, status syncrun.Status, limit int) ([]*syncrun.Run, error) {
	args := m.Called(ctx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*syncrun.Run), args.Error(1)
}

func (m *MockRunRepo) FailStale(ctx context.Context, startedBefore time.Time, reason string) (int64, error) {
	args := m.Called(ctx, startedBefore, reason)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRunRepo) WithTx(tx pgx.Tx) syncrun.Repository {
	args := m.Called(tx)
	return args.Get(0).(syncrun.Repository)
}

type MockTwinRepo struct {
	mock.Mock
}

func (m *MockTwinRepo) Create(ctx context.Context, t *twin.Twin) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTwinRepo) GetByID(ctx context.Context, id uuid.UUID) (*twin.Twin, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*twin.Twin), args.Error(1)
}

func (m *MockTwinRepo) GetByItemID(ctx context.Context, itemID string) (*twin.Twin, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*twin.Twin), args.Error(1)
}

func (m *MockTwinRepo) LockForUpdate(ctx context.Context, id uuid.UUID) (*twin.Twin, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*twin.Twin), args.Error(1)
}

func (m *MockTwinRepo) AdvanceSync(ctx context.Context, id uuid.UUID, snapshotID uuid.UUID, syncedAt time.Time) error {
	args := m.Called(ctx, id, snapshotID, syncedAt)
	return args.Error(0)
}

func (m *MockTwinRepo) WithTx(tx pgx.Tx) twin.Repository {
	args := m.Called(tx)
	return args.Get(0).(twin.Repository)
}

type MockTransactionRepo struct {
	mock.Mock
}

func (m *MockTransactionRepo) Upsert(ctx context.Context, txs []transaction.Transaction) error {
	args := m.Called(ctx, txs)
	return args.Error(0)
}

func (m *MockTransactionRepo) Delete(ctx context.Context, twinID uuid.UUID, ids []string) error {
	args := m.Called(ctx, twinID, ids)
	return args.Error(0)
}

func (m *MockTransactionRepo) ListByTwin(ctx context.Context, twinID uuid.UUID) ([]transaction.Transaction, error) {
	args := m.Called(ctx, twinID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepo) ReplaceAccounts(ctx context.Context, twinID uuid.UUID, accounts []transaction.Account) error {
	args := m.Called(ctx, twinID, accounts)
	return args.Error(0)
}

func (m *MockTransactionRepo) ListAccounts(ctx context.Context, twinID uuid.UUID) ([]transaction.Account, error) {
	args := m.Called(ctx, twinID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]transaction.Account), args.Error(1)
}

func (m *MockTransactionRepo) WithTx(tx pgx.Tx) transaction.Repository {
	args := m.Called(tx)
	return args.Get(0).(transaction.Repository)
}

type MockOutboxRepo struct {
	mock.Mock
}

func (m *MockOutboxRepo) Create(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockOutboxRepo) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockOutboxRepo) IncrementAttempts(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepo) GetBySnapshotID(ctx context.Context, snapshotID uuid.UUID) (*outbox.Message, error) {
	args := m.Called(ctx, snapshotID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) WithTx(tx pgx.Tx) outbox.Repository {
	args := m.Called(tx)
	return args.Get(0).(outbox.Repository)
}

type MockSnapshots struct {
	mock.Mock
}

func (m *MockSnapshots) CommitTx(ctx context.Context, tx pgx.Tx, twinID uuid.UUID, draft snapshot.Draft, syncedAt time.Time) (*snapshot.Snapshot, error) {
	args := m.Called(ctx, tx, twinID, draft, syncedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*snapshot.Snapshot), args.Error(1)
}

func (m *MockSnapshots) Archive(ctx context.Context, s *snapshot.Snapshot) {
	m.Called(ctx, s)
}

type MockAggregator struct {
	mock.Mock
}

func (m *MockAggregator) FetchTransactions(ctx context.Context, accessToken string, since time.Time) (*aggregator.Delta, error) {
	args := m.Called(ctx, accessToken, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*aggregator.Delta), args.Error(1)
}

func (m *MockAggregator) FetchAccounts(ctx context.Context, accessToken string) ([]transaction.Account, error) {
	args := m.Called(ctx, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]transaction.Account), args.Error(1)
}

type MockScorer struct {
	mock.Mock
}

func (m *MockScorer) Score(in scoring.Input) (*scoring.Result, error) {
	args := m.Called(in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*scoring.Result), args.Error(1)
}

// fixedCategorizer labels every transaction with one category
type fixedCategorizer struct {
	category transaction.Category
}

func (f fixedCategorizer) Categorize(txs []transaction.Transaction) []transaction.Transaction {
	out := make([]transaction.Transaction, len(txs))
	for i, tx := range txs {
		out[i] = tx.WithCategory(f.category, 0.75)
	}
	return out
}

// fakeTxRunner runs fn with a nil transaction
type fakeTxRunner struct {
	calls int
}

func (f *fakeTxRunner) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	f.calls++
	return fn(nil)
}

type countingNudger struct {
	mu    sync.Mutex
	count int
}

func (n *countingNudger) Nudge() {
	n.mu.Lock()
	n.count++
	n.mu.Unlock()
}

func (n *countingNudger) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.count
}
