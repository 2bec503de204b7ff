package outbox

import (
	"testing"
	"time"

	"github.com/financial-twin-engine/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage(t *testing.T) {
	req := AnchorRequest{
		SnapshotID:    uuid.New(),
		TwinID:        uuid.New(),
		ContentHash:   "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
		CorrelationID: "corr-1",
	}

	before := time.Now()
	msg, err := NewMessage(req)
	require.NoError(t, err)

	assert.Equal(t, req.SnapshotID, msg.SnapshotID)
	assert.Equal(t, req.TwinID, msg.TwinID)
	assert.Equal(t, shared.OutboxStatusPending, msg.Status)
	assert.Equal(t, 0, msg.Attempts)
	assert.Nil(t, msg.LastAttemptAt)
	assert.False(t, msg.CreatedAt.Before(before))

	decoded, err := msg.AnchorRequest()
	require.NoError(t, err)
	assert.Equal(t, req, *decoded)
}

func TestMessage_StateChanges(t *testing.T) {
	msg := &Message{Status: shared.OutboxStatusPending}

	msg.IncrementAttempts()
	msg.IncrementAttempts()
	assert.Equal(t, 2, msg.Attempts)
	require.NotNil(t, msg.LastAttemptAt)

	msg.MarkAsProcessed()
	assert.Equal(t, shared.OutboxStatusProcessed, msg.Status)

	msg.MarkAsFailed()
	assert.Equal(t, shared.OutboxStatusFailedToPublish, msg.Status)
}

func TestMessage_AnchorRequestInvalidPayload(t *testing.T) {
	msg := &Message{Payload: []byte("{not json")}
	_, err := msg.AnchorRequest()
	assert.Error(t, err)
}
