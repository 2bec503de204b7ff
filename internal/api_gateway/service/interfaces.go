package service

import (
	"context"

	"github.com/financial-twin-engine/internal/analytics"
	"github.com/financial-twin-engine/internal/anchor"
	"github.com/financial-twin-engine/internal/domain/cohort"
	"github.com/financial-twin-engine/internal/domain/snapshot"
	"github.com/financial-twin-engine/internal/domain/twin"
	"github.com/financial-twin-engine/internal/domain/verification"
	"github.com/financial-twin-engine/internal/snapshotstore"
	"github.com/google/uuid"
)

// TwinService exposes a twin's profile and its snapshot history
type TwinService interface {
	// RegisterTwin links an aggregator item and requests the initial sync.
	// Returns twin.ErrDuplicateItem when the item is already linked.
	RegisterTwin(ctx context.Context, itemID, accessToken string) (*twin.Twin, error)

	// GetProfile returns the current snapshot with its verification and sync status.
	// Returns snapshot.ErrSnapshotNotFound when the twin never produced one.
	GetProfile(ctx context.Context, twinID uuid.UUID) (*Profile, error)

	// Regenerate queues a synthetic change event; the key deduplicates retries
	Regenerate(ctx context.Context, twinID uuid.UUID, idempotencyKey string) (eventID string, err error)

	History(ctx context.Context, twinID uuid.UUID, limit int) ([]*snapshot.Snapshot, error)

	// Snapshot returns one historical snapshot of the twin with its integrity re-checked
	Snapshot(ctx context.Context, twinID, snapshotID uuid.UUID) (*SnapshotDetail, error)

	Ghost(ctx context.Context, twinID uuid.UUID) (*snapshotstore.Ghost, error)
}

// VerificationService answers public hash lookups
type VerificationService interface {
	Verify(ctx context.Context, contentHash string) (*anchor.VerifyResult, error)
}

// AnalyticsService derives read-only views from the current snapshot
type AnalyticsService interface {
	StressTest(ctx context.Context, twinID uuid.UUID, params analytics.StressParams) (*analytics.StressResult, error)
	Anomalies(ctx context.Context, twinID uuid.UUID) (*AnomalyReport, error)
	Benchmark(ctx context.Context, twinID uuid.UUID, key cohort.Key) (*analytics.Benchmark, error)
	Explain(ctx context.Context, twinID uuid.UUID, pillar snapshot.PillarName, limit int) (*analytics.Explanation, error)
	Narrative(ctx context.Context, twinID uuid.UUID) (*Narrative, error)
}

// WebhookService turns aggregator notifications into change events
type WebhookService interface {
	HandleAggregatorWebhook(ctx context.Context, webhook AggregatorWebhook) (eventID string, err error)
}

// SnapshotReader is the read side of the snapshot store
type SnapshotReader interface {
	Current(ctx context.Context, twinID uuid.UUID) (*snapshot.Snapshot, error)
	GetByID(ctx context.Context, snapshotID uuid.UUID) (*snapshot.Snapshot, error)
	History(ctx context.Context, twinID uuid.UUID, limit int) ([]*snapshot.Snapshot, error)
	Ghost(ctx context.Context, twinID uuid.UUID) (*snapshotstore.Ghost, error)
}

// VerificationReader is the read side of the verification anchor
type VerificationReader interface {
	Verify(ctx context.Context, contentHash string) (*anchor.VerifyResult, error)
	Status(ctx context.Context, snapshotID uuid.UUID) (*verification.Record, error)
}
