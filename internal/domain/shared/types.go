package shared

// EventType defines the kinds of change notification that trigger a sync
type EventType string

const (
	EventTypeInitialUpdate       EventType = "INITIAL_UPDATE"
	EventTypeHistoricalUpdate    EventType = "HISTORICAL_UPDATE"
	EventTypeDefaultUpdate       EventType = "DEFAULT_UPDATE"
	EventTypeTransactionsRemoved EventType = "TRANSACTIONS_REMOVED"
	EventTypeSyncUpdatesAvail    EventType = "SYNC_UPDATES_AVAILABLE"
	EventTypeRegenerate          EventType = "REGENERATE"
)

func (t EventType) IsValid() bool {
	switch t {
	case EventTypeInitialUpdate, EventTypeHistoricalUpdate, EventTypeDefaultUpdate,
		EventTypeTransactionsRemoved, EventTypeSyncUpdatesAvail, EventTypeRegenerate:
		return true
	}
	return false
}

// OutboxStatus defines anchor message publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)

// VerificationStatus defines the anchoring state of a snapshot
type VerificationStatus string

const (
	VerificationStatusPending  VerificationStatus = "PENDING"
	VerificationStatusVerified VerificationStatus = "VERIFIED"
	VerificationStatusFailed   VerificationStatus = "FAILED"
)
