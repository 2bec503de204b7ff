package outbox

import (
	"encoding/json"
	"time"

	"github.com/financial-twin-engine/internal/domain/shared"
	"github.com/google/uuid"
)

// AnchorRequest is the work item the anchor poller hands to the verification anchor
type AnchorRequest struct {
	SnapshotID    uuid.UUID `json:"snapshot_id"`
	TwinID        uuid.UUID `json:"twin_id"`
	ContentHash   string    `json:"content_hash"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// Message is an anchor request written in the same database transaction as its snapshot
type Message struct {
	ID            int64               `json:"id"`
	SnapshotID    uuid.UUID           `json:"snapshot_id"`
	TwinID        uuid.UUID           `json:"twin_id"`
	Payload       json.RawMessage     `json:"payload"`
	Status        shared.OutboxStatus `json:"status"`
	Attempts      int                 `json:"attempts"`
	CreatedAt     time.Time           `json:"created_at"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

func NewMessage(req AnchorRequest) (*Message, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	return &Message{
		SnapshotID: req.SnapshotID,
		TwinID:     req.TwinID,
		Payload:    payload,
		Status:     shared.OutboxStatusPending,
		CreatedAt:  time.Now(),
	}, nil
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed() {
	m.Status = shared.OutboxStatusProcessed
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = shared.OutboxStatusFailedToPublish
	now := time.Now()
	m.LastAttemptAt = &now
}

// AnchorRequest decodes the payload
func (m *Message) AnchorRequest() (*AnchorRequest, error) {
	var req AnchorRequest
	if err := json.Unmarshal(m.Payload, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
