package mongo

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/financial-twin-engine/internal/domain/shared"
	"github.com/financial-twin-engine/internal/domain/verification"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func recordDoc(t *testing.T, rec *verification.Record) bson.D {
	t.Helper()
	raw, err := bson.Marshal(rec)
	require.NoError(t, err)
	var doc bson.D
	require.NoError(t, bson.Unmarshal(raw, &doc))
	return doc
}

func TestVerificationRepository_Upsert(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("success", func(mt *mtest.T) {
		repo := NewVerificationRepository(testLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 0},
			bson.E{Key: "upserted", Value: bson.A{bson.D{{Key: "index", Value: 0}, {Key: "_id", Value: "x"}}}},
		))

		rec := verification.NewPendingRecord(uuid.New(), uuid.New(), "abc")
		assert.NoError(t, repo.Upsert(context.Background(), rec))
	})

	mt.Run("write error", func(mt *mtest.T) {
		repo := NewVerificationRepository(testLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key"}))

		rec := verification.NewPendingRecord(uuid.New(), uuid.New(), "abc")
		err := repo.Upsert(context.Background(), rec)
		assert.ErrorContains(t, err, "failed to upsert verification record")
	})
}

func TestVerificationRepository_GetBySnapshotID(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ns := "test." + VerificationCollectionName

	mt.Run("found", func(mt *mtest.T) {
		repo := NewVerificationRepository(testLogger(), mt.DB)
		rec := verification.NewPendingRecord(uuid.New(), uuid.New(), "deadbeef")
		rec.MarkVerified("ledger-tx-1", time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

		mt.AddMockResponses(mtest.CreateCursorResponse(1, ns, mtest.FirstBatch, recordDoc(t, rec)))

		got, err := repo.GetBySnapshotID(context.Background(), rec.SnapshotID)
		require.NoError(t, err)
		assert.Equal(t, rec.SnapshotID, got.SnapshotID)
		assert.Equal(t, shared.VerificationStatusVerified, got.Status)
		assert.True(t, got.Verified)
		assert.Equal(t, "ledger-tx-1", got.LedgerTransactionID)
	})

	mt.Run("not found", func(mt *mtest.T) {
		repo := NewVerificationRepository(testLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		id := uuid.New()
		_, err := repo.GetBySnapshotID(context.Background(), id)
		assert.ErrorIs(t, err, verification.ErrRecordNotFound{SnapshotID: id})
	})
}

func TestVerificationRepository_GetByContentHash(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ns := "test." + VerificationCollectionName

	mt.Run("failed record", func(mt *mtest.T) {
		repo := NewVerificationRepository(testLogger(), mt.DB)
		rec := verification.NewPendingRecord(uuid.New(), uuid.New(), "cafe")
		rec.MarkFailed("ledger unavailable")

		mt.AddMockResponses(mtest.CreateCursorResponse(1, ns, mtest.FirstBatch, recordDoc(t, rec)))

		got, err := repo.GetByContentHash(context.Background(), "cafe")
		require.NoError(t, err)
		assert.Equal(t, shared.VerificationStatusFailed, got.Status)
		assert.Equal(t, "ledger unavailable", got.ErrorReason)
	})

	mt.Run("unknown hash", func(mt *mtest.T) {
		repo := NewVerificationRepository(testLogger(), mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := repo.GetByContentHash(context.Background(), "0000")
		assert.ErrorIs(t, err, verification.ErrRecordNotFound{})
	})
}

func TestVerificationRepository_ListByTwin(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ns := "test." + VerificationCollectionName

	mt.Run("returns page", func(mt *mtest.T) {
		repo := NewVerificationRepository(testLogger(), mt.DB)
		twinID := uuid.New()
		first := verification.NewPendingRecord(uuid.New(), twinID, "a1")
		second := verification.NewPendingRecord(uuid.New(), twinID, "b2")

		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, ns, mtest.FirstBatch, recordDoc(t, first)),
			mtest.CreateCursorResponse(0, ns, mtest.NextBatch, recordDoc(t, second)),
		)

		records, err := repo.ListByTwin(context.Background(), twinID, 10, 0)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "a1", records[0].ContentHash)
		assert.Equal(t, "b2", records[1].ContentHash)
	})
}
