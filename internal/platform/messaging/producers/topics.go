package producers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/financial-twin-engine/internal/platform/retry"
)

// topicAdmin is the part of *kafka.Conn used to provision topics
type topicAdmin interface {
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	CreateTopics(topics ...kafka.TopicConfig) error
}

var topicReadPolicy = retry.Policy{
	MaxAttempts:    5,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     2 * time.Second,
}

// ensureTopic creates topic unless the broker already reports partitions for it.
// Partition counts below one fall back to a single partition and replica.
func ensureTopic(ctx context.Context, admin topicAdmin, topic string, partitions, replication int, log *slog.Logger) error {
	var found []kafka.Partition
	readErr := retry.Do(ctx, topicReadPolicy, func(_ context.Context, attempt int) error {
		var err error
		found, err = admin.ReadPartitions(topic)
		if err != nil {
			log.Debug("Topic partitions not readable yet", "topic", topic, "attempt", attempt, "error", err)
		}
		return err
	})
	if readErr == nil && len(found) > 0 {
		log.Info("Kafka topic present", "topic", topic, "partitions", len(found))
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	cfg := kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     max(partitions, 1),
		ReplicationFactor: max(replication, 1),
	}
	if err := admin.CreateTopics(cfg); err != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", topic, err)
	}
	log.Info("Created Kafka topic", "topic", topic,
		"partitions", cfg.NumPartitions,
		"replication_factor", cfg.ReplicationFactor,
	)
	return nil
}
