package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/financial-twin-engine/internal/api_gateway/middleware"
	"github.com/financial-twin-engine/internal/domain/shared"
	"github.com/financial-twin-engine/internal/domain/snapshot"
	"github.com/financial-twin-engine/internal/domain/syncrun"
	"github.com/financial-twin-engine/internal/domain/twin"
	"github.com/financial-twin-engine/internal/domain/verification"
	"github.com/financial-twin-engine/internal/platform/messaging/producers"
	"github.com/financial-twin-engine/internal/snapshotstore"
	"github.com/google/uuid"
)

// StaleProfileMessage accompanies a profile whose latest refresh failed
const StaleProfileMessage = "refresh failed, showing last known profile"

// Profile is the twin's current snapshot with the state around it
type Profile struct {
	TwinID       uuid.UUID            `json:"twin_id"`
	Snapshot     *snapshot.Snapshot   `json:"snapshot"`
	Verification *verification.Record `json:"verification"`
	LastSync     *syncrun.Run         `json:"last_sync,omitempty"`
	LastSyncedAt *time.Time           `json:"last_synced_at,omitempty"`
	Message      string               `json:"message,omitempty"`
}

// SnapshotDetail is a stored snapshot with its anchoring state. IntegrityOK is
// false when the stored scores no longer reproduce the stored content hash.
type SnapshotDetail struct {
	Snapshot     *snapshot.Snapshot
	Verification *verification.Record
	IntegrityOK  bool
}

// TwinServiceImpl implements the TwinService interface
type TwinServiceImpl struct {
	twins     twin.Repository
	runs      syncrun.Repository
	snapshots SnapshotReader
	verifier  VerificationReader
	producer  producers.ChangeEventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewTwinService(
	logger *slog.Logger,
	twins twin.Repository,
	runs syncrun.Repository,
	snapshots SnapshotReader,
	verifier VerificationReader,
	producer producers.ChangeEventPublisher,
) *TwinServiceImpl {
	return &TwinServiceImpl{
		twins:     twins,
		runs:      runs,
		snapshots: snapshots,
		verifier:  verifier,
		producer:  producer,
		logger:    logger.With("component", "twin_service"),
		now:       time.Now,
	}
}

func (s *TwinServiceImpl) RegisterTwin(ctx context.Context, itemID, accessToken string) (*twin.Twin, error) {
	now := s.now().UTC()
	t := &twin.Twin{
		ID:          uuid.New(),
		ItemID:      itemID,
		AccessToken: accessToken,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.twins.Create(ctx, t); err != nil {
		return nil, err
	}

	event := &shared.ChangeEvent{
		EventID:       "register-" + t.ID.String(),
		Source:        shared.EventSourceAggregator,
		Type:          shared.EventTypeInitialUpdate,
		ItemID:        t.ItemID,
		TwinID:        t.ID,
		CorrelationID: middleware.CorrelationIDFrom(ctx),
		Timestamp:     now,
	}
	if err := s.producer.PublishChangeEvent(ctx, event); err != nil {
		// The twin exists; the aggregator's own INITIAL_UPDATE webhook will still trigger the sync
		s.logger.Warn("Failed to request initial sync", "twin_id", t.ID.String(), "error", err)
	}

	s.logger.Info("Twin registered", "twin_id", t.ID.String(), "item_id", itemID)
	return t, nil
}

func (s *TwinServiceImpl) GetProfile(ctx context.Context, twinID uuid.UUID) (*Profile, error) {
	t, err := s.twins.GetByID(ctx, twinID)
	if err != nil {
		return nil, err
	}

	current, err := s.snapshots.Current(ctx, twinID)
	if err != nil {
		return nil, err
	}

	record, err := s.verifier.Status(ctx, current.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load verification status: %w", err)
	}

	profile := &Profile{
		TwinID:       twinID,
		Snapshot:     current,
		Verification: record,
		LastSyncedAt: t.LastSyncedAt,
	}

	run, err := s.runs.LatestByTwin(ctx, twinID)
	switch {
	case errors.Is(err, syncrun.ErrRunNotFound{}):
	case err != nil:
		return nil, fmt.Errorf("failed to load last sync run: %w", err)
	default:
		profile.LastSync = run
		if run.Status == syncrun.StatusFailed {
			profile.Message = StaleProfileMessage
		}
	}

	return profile, nil
}

func (s *TwinServiceImpl) Regenerate(ctx context.Context, twinID uuid.UUID, idempotencyKey string) (string, error) {
	if _, err := s.twins.GetByID(ctx, twinID); err != nil {
		return "", err
	}

	eventID := idempotencyKey
	if eventID == "" {
		eventID = uuid.New().String()
	}

	event := &shared.ChangeEvent{
		EventID:       eventID,
		Source:        shared.EventSourceRegenerate,
		Type:          shared.EventTypeRegenerate,
		TwinID:        twinID,
		CorrelationID: middleware.CorrelationIDFrom(ctx),
		Timestamp:     s.now().UTC(),
	}
	if err := s.producer.PublishChangeEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish regenerate event", "twin_id", twinID.String(), "event_id", eventID, "error", err)
		return "", err
	}

	s.logger.Info("Regenerate requested", "twin_id", twinID.String(), "event_id", eventID)
	return eventID, nil
}

func (s *TwinServiceImpl) History(ctx context.Context, twinID uuid.UUID, limit int) ([]*snapshot.Snapshot, error) {
	if _, err := s.twins.GetByID(ctx, twinID); err != nil {
		return nil, err
	}
	return s.snapshots.History(ctx, twinID, limit)
}

func (s *TwinServiceImpl) Snapshot(ctx context.Context, twinID, snapshotID uuid.UUID) (*SnapshotDetail, error) {
	snap, err := s.snapshots.GetByID(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	// Another twin's snapshot is reported as missing
	if snap.TwinID != twinID {
		return nil, snapshot.ErrSnapshotNotFound{TwinID: twinID, SnapshotID: snapshotID}
	}

	record, err := s.verifier.Status(ctx, snap.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load verification status: %w", err)
	}

	detail := &SnapshotDetail{Snapshot: snap, Verification: record, IntegrityOK: true}
	if err := snapshotstore.VerifyIntegrity(snap); err != nil {
		s.logger.Error("Stored snapshot fails integrity check",
			"twin_id", twinID.String(), "snapshot_id", snapshotID.String(), "error", err,
		)
		detail.IntegrityOK = false
	}
	return detail, nil
}

func (s *TwinServiceImpl) Ghost(ctx context.Context, twinID uuid.UUID) (*snapshotstore.Ghost, error) {
	if _, err := s.twins.GetByID(ctx, twinID); err != nil {
		return nil, err
	}
	return s.snapshots.Ghost(ctx, twinID)
}
