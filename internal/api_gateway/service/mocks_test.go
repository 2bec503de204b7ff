package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/financial-twin-engine/internal/anchor"
	"github.com/financial-twin-engine/internal/domain/shared"
	"github.com/financial-twin-engine/internal/domain/snapshot"
	"github.com/financial-twin-engine/internal/domain/syncrun"
	"github.com/financial-twin-engine/internal/domain/transaction"
	"github.com/financial-twin-engine/internal/domain/twin"
	"github.com/financial-twin-engine/internal/domain/verification"
	"github.com/financial-twin-engine/internal/platform/narrative"
	"github.com/financial-twin-engine/internal/snapshotstore"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type MockTwinRepo struct {
	mock.Mock
}

func (m *MockTwinRepo) Create(ctx context.Context, t *twin.Twin) error {
	return m.Called(ctx, t).Error(0)
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
	return m.Called(ctx, id, snapshotID, syncedAt).Error(0)
}

func (m *MockTwinRepo) WithTx(tx pgx.Tx) twin.Repository {
	return m
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
	return m.Called(ctx, run).Error(0)
}

func (m *MockRunRepo) MarkCompleted(ctx context.Context, run *syncrun.Run, snapshotID uuid.UUID, counts syncrun.Counts) error {
	return m.Called(ctx, run, snapshotID, counts).Error(0)
}

func (m *MockRunRepo) MarkFailed(ctx context.Context, run *syncrun.Run, reason string) error {
	return m.Called(ctx, run, reason).Error(0)
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
	return m
}

type MockTransactionRepo struct {
	mock.Mock
}

func (m *MockTransactionRepo) Upsert(ctx context.Context, txs []transaction.Transaction) error {
	return m.Called(ctx, txs).Error(0)
}

func (m *MockTransactionRepo) Delete(ctx context.Context, twinID uuid.UUID, ids []string) error {
	return m.Called(ctx, twinID, ids).Error(0)
}

func (m *MockTransactionRepo) ListByTwin(ctx context.Context, twinID uuid.UUID) ([]transaction.Transaction, error) {
	args := m.Called(ctx, twinID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepo) ReplaceAccounts(ctx context.Context, twinID uuid.UUID, accounts []transaction.Account) error {
	return m.Called(ctx, twinID, accounts).Error(0)
}

func (m *MockTransactionRepo) ListAccounts(ctx context.Context, twinID uuid.UUID) ([]transaction.Account, error) {
	args := m.Called(ctx, twinID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]transaction.Account), args.Error(1)
}

func (m *MockTransactionRepo) WithTx(tx pgx.Tx) transaction.Repository {
	return m
}

type MockSnapshotReader struct {
	mock.Mock
}

func (m *MockSnapshotReader) Current(ctx context.Context, twinID uuid.UUID) (*snapshot.Snapshot, error) {
	args := m.Called(ctx, twinID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*snapshot.Snapshot), args.Error(1)
}

func (m *MockSnapshotReader) GetByID(ctx context.Context, snapshotID uuid.UUID) (*snapshot.Snapshot, error) {
	args := m.Called(ctx, snapshotID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*snapshot.Snapshot), args.Error(1)
}

func (m *MockSnapshotReader) History(ctx context.Context, twinID uuid.UUID, limit int) ([]*snapshot.Snapshot, error) {
	args := m.Called(ctx, twinID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*snapshot.Snapshot), args.Error(1)
}

func (m *MockSnapshotReader) Ghost(ctx context.Context, twinID uuid.UUID) (*snapshotstore.Ghost, error) {
	args := m.Called(ctx, twinID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*snapshotstore.Ghost), args.Error(1)
}

type MockVerificationReader struct {
	mock.Mock
}

func (m *MockVerificationReader) Verify(ctx context.Context, contentHash string) (*anchor.VerifyResult, error) {
	args := m.Called(ctx, contentHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anchor.VerifyResult), args.Error(1)
}

func (m *MockVerificationReader) Status(ctx context.Context, snapshotID uuid.UUID) (*verification.Record, error) {
	args := m.Called(ctx, snapshotID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*verification.Record), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishChangeEvent(ctx context.Context, event *shared.ChangeEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockPublisher) Close() error {
	return m.Called().Error(0)
}

type MockNarrator struct {
	mock.Mock
}

func (m *MockNarrator) GenerateNarrative(ctx context.Context, summary narrative.ScoreSummary) (string, error) {
	args := m.Called(ctx, summary)
	return args.String(0), args.Error(1)
}
