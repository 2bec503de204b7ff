// Package consumer turns change events read from Kafka into sync runs.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/financial-twin-engine/internal/domain/shared"
	"github.com/financial-twin-engine/internal/domain/twin"
	"github.com/financial-twin-engine/internal/platform/messaging/producers"
	"github.com/financial-twin-engine/internal/platform/retry"
	"github.com/financial-twin-engine/internal/sync_processor/coordinator"
)

var enqueuePolicy = retry.Policy{
	MaxAttempts:    3,
	InitialBackoff: 200 * time.Millisecond,
	MaxBackoff:     time.Second,
}

// ChangeEventHandler handles change event messages from Kafka
type ChangeEventHandler struct {
	syncService coordinator.SyncService
	producer    producers.DeadLetterPublisher
	logger      *slog.Logger
	policy      retry.Policy
}

func NewChangeEventHandler(
	logger *slog.Logger,
	syncService coordinator.SyncService,
	producer producers.DeadLetterPublisher,
) *ChangeEventHandler {
	return &ChangeEventHandler{
		syncService: syncService,
		producer:    producer,
		logger:      logger,
		policy:      enqueuePolicy,
	}
}

// HandleMessage records a sync run for the event. Messages that can never
// succeed go to the DLQ and are acknowledged; transient failures are retried
// a few times and returned so the consumer redelivers the message.
func (h *ChangeEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var event shared.ChangeEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return h.deadLetter(ctx, key, value, "Failed to unmarshal change event from Kafka message", err)
	}
	if err := event.Validate(); err != nil {
		return h.deadLetter(ctx, key, value, "Invalid change event", err)
	}

	logger := h.logger
	if event.CorrelationID != "" {
		logger = h.logger.With("correlation_id", event.CorrelationID)
	}

	logger.Info("Received change event",
		"event_id", event.EventID,
		"type", event.Type,
		"item_id", event.ItemID,
		"twin_id", event.TwinID.String(),
	)

	err := retry.Do(ctx, h.policy, func(ctx context.Context, attempt int) error {
		_, err := h.syncService.Enqueue(ctx, &event)
		if errors.Is(err, twin.ErrTwinNotFound{}) || errors.Is(err, shared.ErrMissingTarget) {
			return retry.Permanent(err)
		}
		if err != nil {
			logger.Warn("Enqueue failed", "event_id", event.EventID, "attempt", attempt, "error", err)
		}
		return err
	})
	if errors.Is(err, twin.ErrTwinNotFound{}) {
		return h.deadLetter(ctx, key, value, "Change event for unknown twin", err)
	}
	if err != nil {
		logger.Error("Failed to enqueue sync run", "event_id", event.EventID, "error", err)
		return fmt.Errorf("enqueue for event %s failed: %w", event.EventID, err)
	}

	return nil
}

// deadLetter parks a message that can never succeed. Without a DLQ it is dropped,
// since returning an error would block its partition.
func (h *ChangeEventHandler) deadLetter(ctx context.Context, key, value []byte, reason string, cause error) error {
	h.logger.Error(reason, "error", cause, "message_key", string(key))

	if h.producer == nil {
		h.logger.Warn("DLQ disabled, dropping unprocessable message", "message_key", string(key))
		return nil
	}

	dlqReason := fmt.Sprintf("%s: %s", reason, cause.Error())
	if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, dlqReason); dlqErr != nil {
		h.logger.Error("Failed to publish message to DLQ",
			"dlq_error", dlqErr,
			"original_error", cause,
			"message_key", string(key),
		)
		return fmt.Errorf("%s: %w", reason, cause)
	}
	h.logger.Info("Published unprocessable message to DLQ", "message_key", string(key), "reason", dlqReason)
	return nil
}
