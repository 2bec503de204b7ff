package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/financial-twin-engine/internal/config"
	"github.com/financial-twin-engine/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const headerCorrelationID = "correlation-id"

type ChangeEventProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewChangeEventProducer creates the sync topic producer and ensures the topic exists
func NewChangeEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*ChangeEventProducer, error) {
	if cfg.SyncEventTopic == "" {
		return nil, fmt.Errorf("kafka sync event topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for change event producer: %w", err)
	}
	defer conn.Close()

	err = ensureTopic(ctx, conn, cfg.SyncEventTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure sync topic %s exists: %w", cfg.SyncEventTopic, err)
	}

	// Keyed by twin so one twin's events land on one partition in order
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.SyncEventTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: cfg.MaxWait,
	}

	return &ChangeEventProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.SyncEventTopic,
	}, nil
}

// MessageKey is the partition key of an event: the twin id, or the item id before the twin is resolved
func MessageKey(event *shared.ChangeEvent) string {
	if event.TwinID != uuid.Nil {
		return event.TwinID.String()
	}
	return event.ItemID
}

func (p *ChangeEventProducer) PublishChangeEvent(ctx context.Context, event *shared.ChangeEvent) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid change event: %w", err)
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	key := MessageKey(event)
	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: headerCorrelationID, Value: []byte(event.CorrelationID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish change event",
			"topic", p.topic,
			"key", key,
			"event_id", event.EventID,
			"error", err,
		)
		return fmt.Errorf("failed to publish change event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published change event",
		"topic", p.topic,
		"key", key,
		"event_id", event.EventID,
		"type", string(event.Type),
	)
	return nil
}

func (p *ChangeEventProducer) Close() error {
	p.logger.Info("Closing change event producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
