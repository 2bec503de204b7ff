package syncrun

import (
	"time"

	"github.com/google/uuid"
)

// Status is a sync run state
type Status string

const (
	StatusReceived   Status = "RECEIVED"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// IsTerminal reports whether no further transition is possible
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition enforces RECEIVED -> PROCESSING -> {COMPLETED | FAILED}.
// A RECEIVED run may also fail directly when it cannot be started.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusReceived:
		return to == StatusProcessing || to == StatusFailed
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	}
	return false
}

// Run is one inbound change event's journey through the pipeline
type Run struct {
	ID                      uuid.UUID  `json:"id"`
	TwinID                  uuid.UUID  `json:"twin_id"`
	TriggerEventID          string     `json:"trigger_event_id"`
	Status                  Status     `json:"status"`
	NewTransactionCount     int        `json:"new_transaction_count"`
	UpdatedTransactionCount int        `json:"updated_transaction_count"`
	RemovedTransactionCount int        `json:"removed_transaction_count"`
	SnapshotID              *uuid.UUID `json:"snapshot_id,omitempty"`
	ErrorMessage            string     `json:"error_message,omitempty"`
	CorrelationID           string     `json:"correlation_id,omitempty"`
	CreatedAt               time.Time  `json:"created_at"`
	StartedAt               *time.Time `json:"started_at,omitempty"`
	ProcessedAt             *time.Time `json:"processed_at,omitempty"`
}

// NewRun creates a RECEIVED run for the given idempotency key
func NewRun(twinID uuid.UUID, triggerEventID, correlationID string) *Run {
	return &Run{
		ID:             uuid.New(),
		TwinID:         twinID,
		TriggerEventID: triggerEventID,
		Status:         StatusReceived,
		CorrelationID:  correlationID,
		CreatedAt:      time.Now().UTC(),
	}
}

// Counts summarizes how a run changed the transaction set
type Counts struct {
	New     int
	Updated int
	Removed int
}
