package producers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/financial-twin-engine/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockKafkaWriter mocks KafkaWriter interface
type MockKafkaWriter struct {
	mock.Mock
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockKafkaWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func TestChangeEventProducer_PublishChangeEvent(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	topic := "test-sync-events"
	ctx := context.Background()

	t.Run("keyed by twin", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &ChangeEventProducer{logger: logger, writer: mockWriter, topic: topic}

		event := &shared.ChangeEvent{
			EventID:       "regen-1",
			Source:        shared.EventSourceRegenerate,
			Type:          shared.EventTypeRegenerate,
			TwinID:        uuid.New(),
			CorrelationID: "corr-1",
			Timestamp:     time.Now().UTC(),
		}

		mockWriter.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafka.Message) bool {
			if len(msgs) != 1 {
				return false
			}
			var decoded shared.ChangeEvent
			if err := json.Unmarshal(msgs[0].Value, &decoded); err != nil {
				return false
			}
			return string(msgs[0].Key) == event.TwinID.String() &&
				decoded.EventID == "regen-1" &&
				string(msgs[0].Headers[0].Value) == "corr-1"
		})).Return(nil).Once()

		require.NoError(t, producer.PublishChangeEvent(ctx, event))
		mockWriter.AssertExpectations(t)
	})

	t.Run("keyed by item before twin is known", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &ChangeEventProducer{logger: logger, writer: mockWriter, topic: topic}

		event := &shared.ChangeEvent{EventID: "wh-1", Type: shared.EventTypeDefaultUpdate, ItemID: "item-7"}

		mockWriter.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafka.Message) bool {
			return len(msgs) == 1 && string(msgs[0].Key) == "item-7"
		})).Return(nil).Once()

		require.NoError(t, producer.PublishChangeEvent(ctx, event))
		mockWriter.AssertExpectations(t)
	})

	t.Run("rejects invalid events", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &ChangeEventProducer{logger: logger, writer: mockWriter, topic: topic}

		err := producer.PublishChangeEvent(ctx, &shared.ChangeEvent{EventID: "x", Type: shared.EventTypeDefaultUpdate})
		assert.ErrorIs(t, err, shared.ErrMissingTarget)
		mockWriter.AssertNotCalled(t, "WriteMessages", mock.Anything, mock.Anything)
	})

	t.Run("writer error", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &ChangeEventProducer{logger: logger, writer: mockWriter, topic: topic}
		writerError := errors.New("kafka write error")

		mockWriter.On("WriteMessages", ctx, mock.AnythingOfType("[]kafka.Message")).Return(writerError).Once()

		err := producer.PublishChangeEvent(ctx, &shared.ChangeEvent{EventID: "e", Type: shared.EventTypeRegenerate, TwinID: uuid.New()})
		assert.ErrorIs(t, err, writerError)
		mockWriter.AssertExpectations(t)
	})
}

func TestChangeEventProducer_Close(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	mockWriter := new(MockKafkaWriter)
	producer := &ChangeEventProducer{logger: logger, writer: mockWriter, topic: "t"}
	closeError := errors.New("kafka close error")
	mockWriter.On("Close").Return(closeError).Once()

	err := producer.Close()
	assert.ErrorIs(t, err, closeError)
	mockWriter.AssertExpectations(t)
}

// Verify interface implementation
var _ KafkaWriter = (*MockKafkaWriter)(nil)
var _ ChangeEventPublisher = (*ChangeEventProducer)(nil)
