// Package anchor_poller drains the anchor outbox written by sync commits and hands
// each snapshot to the verification anchor, on a ticker and whenever nudged.
package anchor_poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/financial-twin-engine/internal/config"
	"github.com/financial-twin-engine/internal/domain/outbox"
)

// Poller processes pending anchor outbox messages
type Poller struct {
	outboxRepo       outbox.Repository
	anchorPublisher  AnchorPublisher
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	maxRetryAttempts int
	nudge            chan struct{}
}

func NewPoller(
	cfg *config.OutboxConfig,
	outboxRepo outbox.Repository,
	anchorPublisher AnchorPublisher,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		outboxRepo:       outboxRepo,
		anchorPublisher:  anchorPublisher,
		logger:           logger.With("component", "anchor_poller"),
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		maxRetryAttempts: cfg.MaxRetryAttempts,
		nudge:            make(chan struct{}, 1),
	}
}

// Nudge asks for an immediate poll; it never blocks
func (p *Poller) Nudge() {
	select {
	case p.nudge <- struct{}{}:
	default:
	}
}

// Start begins polling until context is canceled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting Anchor Poller",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
		"max_retry_attempts", p.maxRetryAttempts,
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Anchor Poller stopping due to context cancellation.")
			return
		case <-ticker.C:
			p.logger.Debug("Anchor Poller tick: processing pending messages")
		case <-p.nudge:
			p.logger.Debug("Anchor Poller nudged: processing pending messages")
		}
		if err := p.processPendingMessages(ctx); err != nil {
			p.logger.Error("Error during batch processing of pending anchor messages", "error", err)
		}
	}
}

func (p *Poller) processPendingMessages(ctx context.Context) error {
	messages, err := p.outboxRepo.GetPending(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending anchor messages: %w", err)
	}

	if len(messages) == 0 {
		p.logger.Debug("No pending anchor messages found.")
		return nil
	}

	p.logger.Info("Fetched pending anchor messages", "count", len(messages))

	for _, msg := range messages {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger := p.logger.With("outbox_id", msg.ID, "snapshot_id", msg.SnapshotID.String())

		if err := p.anchorPublisher.PublishAnchor(ctx, msg); err != nil {
			logger.Error("Failed to process anchor message", "current_attempts", msg.Attempts, "error", err)

			if errInc := p.outboxRepo.IncrementAttempts(ctx, msg.ID); errInc != nil {
				logger.Error("Failed to increment attempts for anchor message", "error", errInc)
				continue
			}

			msg.IncrementAttempts()
			if msg.Attempts >= p.maxRetryAttempts {
				logger.Warn("Max retry attempts reached for anchor message, marking as FAILED_TO_PUBLISH",
					"attempts_made", msg.Attempts,
				)
				msg.MarkAsFailed()
				if errUpdate := p.outboxRepo.UpdateStatus(ctx, msg.ID, msg.Status); errUpdate != nil {
					logger.Error("Failed to mark anchor message FAILED_TO_PUBLISH after max retries", "error", errUpdate)
				}
			}
			continue
		}
		logger.Debug("Anchor message done")
	}
	return nil
}
