package anchor_poller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/financial-twin-engine/internal/domain/outbox"
	"github.com/financial-twin-engine/internal/domain/verification"
)

// Anchorer submits one anchor request to the verification ledger
type Anchorer interface {
	Anchor(ctx context.Context, req outbox.AnchorRequest) (*verification.Record, error)
}

// AnchorPublisher hands outbox messages to the verification anchor
type AnchorPublisher interface {
	PublishAnchor(ctx context.Context, message *outbox.Message) error
}

// AnchorPublisherImpl implements AnchorPublisher
type AnchorPublisherImpl struct {
	outboxRepo outbox.Repository
	anchorer   Anchorer
	logger     *slog.Logger
}

func NewAnchorPublisher(
	outboxRepo outbox.Repository,
	anchorer Anchorer,
	logger *slog.Logger,
) AnchorPublisher {
	return &AnchorPublisherImpl{
		outboxRepo: outboxRepo,
		anchorer:   anchorer,
		logger:     logger,
	}
}

// PublishAnchor anchors the message's snapshot and marks the message PROCESSED.
// A ledger outage still ends PROCESSED: the outcome lives in the verification record.
func (p *AnchorPublisherImpl) PublishAnchor(ctx context.Context, message *outbox.Message) error {
	req, err := message.AnchorRequest()
	if err != nil {
		p.logger.Error("Failed to decode anchor request from outbox payload",
			"outbox_id", message.ID, "snapshot_id", message.SnapshotID.String(), "error", err,
		)
		message.MarkAsFailed()
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, message.Status); updateErr != nil {
			p.logger.Error("Also failed to mark outbox message FAILED_TO_PUBLISH after decode error", "outbox_id", message.ID, "update_error", updateErr)
		}
		return fmt.Errorf("decode payload for outbox %d failed: %w", message.ID, err)
	}

	logger := p.logger
	if req.CorrelationID != "" {
		logger = p.logger.With("correlation_id", req.CorrelationID)
	}

	record, err := p.anchorer.Anchor(ctx, *req)
	if err != nil {
		logger.Error("Anchoring did not complete", "outbox_id", message.ID, "snapshot_id", req.SnapshotID.String(), "error", err)
		return fmt.Errorf("failed to anchor snapshot %s: %w", req.SnapshotID, err)
	}

	message.MarkAsProcessed()
	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, message.Status); err != nil {
		logger.Error("Failed to mark outbox message PROCESSED",
			"outbox_id", message.ID, "snapshot_id", req.SnapshotID.String(), "error", err,
		)
		return fmt.Errorf("anchor for %s recorded, but failed to mark outbox %d as PROCESSED: %w", req.SnapshotID, message.ID, err)
	}

	logger.Info("Anchor message processed",
		"outbox_id", message.ID, "snapshot_id", req.SnapshotID.String(), "verification_status", record.Status,
	)
	return nil
}
