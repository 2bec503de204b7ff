package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/financial-twin-engine/internal/domain/verification"
)

const (
	// VerificationCollectionName is the name of the verification record collection in MongoDB
	VerificationCollectionName = "verification_records"
)

// VerificationRepository implements the verification.Repository interface for MongoDB
type VerificationRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewVerificationRepository creates a new MongoDB verification record repository
func NewVerificationRepository(logger *slog.Logger, db *mongo.Database) *VerificationRepository {
	return &VerificationRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureIndexes creates the lookup indexes. Safe to call on every start.
func (r *VerificationRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(VerificationCollectionName)

	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "snapshot_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("snapshot_id_unique"),
		},
		{
			Keys:    bson.D{{Key: "content_hash", Value: 1}},
			Options: options.Index().SetName("content_hash"),
		},
		{
			Keys:    bson.D{{Key: "twin_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("twin_created_at"),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, models); err != nil {
		r.logger.Error("Failed to create verification indexes", "error", err)
		return fmt.Errorf("failed to create verification indexes: %w", err)
	}
	return nil
}

// Upsert writes the record keyed by snapshot id, replacing any previous state
func (r *VerificationRepository) Upsert(ctx context.Context, record *verification.Record) error {
	collection := r.db.Collection(VerificationCollectionName)

	filter := bson.M{"snapshot_id": record.SnapshotID}
	opts := options.Replace().SetUpsert(true)

	if _, err := collection.ReplaceOne(ctx, filter, record, opts); err != nil {
		r.logger.Error("Failed to upsert verification record",
			"snapshot_id", record.SnapshotID.String(),
			"status", string(record.Status),
			"error", err)
		return fmt.Errorf("failed to upsert verification record: %w", err)
	}

	return nil
}

func (r *VerificationRepository) GetBySnapshotID(ctx context.Context, snapshotID uuid.UUID) (*verification.Record, error) {
	collection := r.db.Collection(VerificationCollectionName)

	var record verification.Record
	err := collection.FindOne(ctx, bson.M{"snapshot_id": snapshotID}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, verification.ErrRecordNotFound{SnapshotID: snapshotID}
		}
		r.logger.Error("Failed to get verification record",
			"snapshot_id", snapshotID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get verification record: %w", err)
	}

	return &record, nil
}

// GetByContentHash returns the most recently updated record carrying the hash
func (r *VerificationRepository) GetByContentHash(ctx context.Context, contentHash string) (*verification.Record, error) {
	collection := r.db.Collection(VerificationCollectionName)

	opts := options.FindOne().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	var record verification.Record
	err := collection.FindOne(ctx, bson.M{"content_hash": contentHash}, opts).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, verification.ErrRecordNotFound{ContentHash: contentHash}
		}
		r.logger.Error("Failed to get verification record by hash",
			"content_hash", contentHash,
			"error", err)
		return nil, fmt.Errorf("failed to get verification record by hash: %w", err)
	}

	return &record, nil
}

// ListByTwin returns paginated records for a twin, newest first
func (r *VerificationRepository) ListByTwin(ctx context.Context, twinID uuid.UUID, limit, offset int) ([]*verification.Record, error) {
	collection := r.db.Collection(VerificationCollectionName)

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, bson.M{"twin_id": twinID}, opts)
	if err != nil {
		r.logger.Error("Failed to list verification records",
			"twin_id", twinID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to list verification records: %w", err)
	}
	defer cursor.Close(ctx)

	records := make([]*verification.Record, 0)
	if err := cursor.All(ctx, &records); err != nil {
		r.logger.Error("Failed to decode verification records",
			"twin_id", twinID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode verification records: %w", err)
	}

	return records, nil
}
