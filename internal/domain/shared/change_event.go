package shared

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidEventType = errors.New("invalid change event type")
	ErrMissingEventID   = errors.New("change event id is required")
	ErrMissingTarget    = errors.New("change event needs a twin id or an item id")
)

// EventSource identifies who emitted a change event
type EventSource string

const (
	EventSourceAggregator EventSource = "aggregator"
	EventSourceRegenerate EventSource = "regenerate"
)

// ChangeEvent is the Kafka message announcing that a twin's upstream data changed
type ChangeEvent struct {
	EventID       string      `json:"event_id"`
	Source        EventSource `json:"source"`
	Type          EventType   `json:"type"`
	ItemID        string      `json:"item_id,omitempty"`
	TwinID        uuid.UUID   `json:"twin_id,omitempty"`
	CorrelationID string      `json:"correlation_id"`
	Timestamp     time.Time   `json:"timestamp"`
}

// IdempotencyKey derives the deduplication key from the event's own identifier.
// Regenerate ids come from callers, so they are scoped to the target twin.
func (e ChangeEvent) IdempotencyKey() string {
	source := e.Source
	if source == "" {
		source = EventSourceAggregator
	}
	if source == EventSourceRegenerate {
		return string(source) + ":" + e.target() + ":" + e.EventID
	}
	return string(source) + ":" + e.EventID
}

func (e ChangeEvent) target() string {
	if e.TwinID != uuid.Nil {
		return e.TwinID.String()
	}
	return e.ItemID
}

// Validate checks the event carries enough to locate a twin
func (e ChangeEvent) Validate() error {
	if e.EventID == "" {
		return ErrMissingEventID
	}
	if !e.Type.IsValid() {
		return ErrInvalidEventType
	}
	if e.TwinID == uuid.Nil && e.ItemID == "" {
		return ErrMissingTarget
	}
	return nil
}
