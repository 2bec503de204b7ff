package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/financial-twin-engine/internal/api_gateway/middleware"
	"github.com/financial-twin-engine/internal/domain/shared"
	"github.com/financial-twin-engine/internal/platform/messaging/producers"
)

var ErrUnsupportedWebhook = errors.New("unsupported webhook type")

// AggregatorWebhook is the notification body the aggregator posts
type AggregatorWebhook struct {
	WebhookID   string
	WebhookType string
	ItemID      string
}

// WebhookServiceImpl implements the WebhookService interface
type WebhookServiceImpl struct {
	producer producers.ChangeEventPublisher
	logger   *slog.Logger
	now      func() time.Time
}

func NewWebhookService(logger *slog.Logger, producer producers.ChangeEventPublisher) *WebhookServiceImpl {
	return &WebhookServiceImpl{
		producer: producer,
		logger:   logger.With("component", "webhook_service"),
		now:      time.Now,
	}
}

// HandleAggregatorWebhook publishes the notification keyed by its webhook id, so
// aggregator redeliveries collapse into one sync run downstream
func (s *WebhookServiceImpl) HandleAggregatorWebhook(ctx context.Context, webhook AggregatorWebhook) (string, error) {
	eventType := shared.EventType(strings.ToUpper(strings.TrimSpace(webhook.WebhookType)))
	if !eventType.IsValid() || eventType == shared.EventTypeRegenerate {
		return "", ErrUnsupportedWebhook
	}

	event := &shared.ChangeEvent{
		EventID:       webhook.WebhookID,
		Source:        shared.EventSourceAggregator,
		Type:          eventType,
		ItemID:        webhook.ItemID,
		CorrelationID: middleware.CorrelationIDFrom(ctx),
		Timestamp:     s.now().UTC(),
	}
	if err := s.producer.PublishChangeEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish aggregator webhook",
			"webhook_id", webhook.WebhookID,
			"item_id", webhook.ItemID,
			"error", err,
		)
		return "", err
	}

	s.logger.Info("Aggregator webhook accepted",
		"webhook_id", webhook.WebhookID,
		"webhook_type", string(eventType),
		"item_id", webhook.ItemID,
	)
	return event.EventID, nil
}
