package producers

import (
	"context"

	"github.com/financial-twin-engine/internal/domain/shared"
	"github.com/segmentio/kafka-go"
)

// ChangeEventPublisher publishes twin change events to the sync topic
type ChangeEventPublisher interface {
	PublishChangeEvent(ctx context.Context, event *shared.ChangeEvent) error
	Close() error
}

// DeadLetterPublisher handles publishing messages to a Dead Letter Queue
type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string) error
	Close() error
}

// KafkaWriter wraps kafka.Writer methods for testing
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
