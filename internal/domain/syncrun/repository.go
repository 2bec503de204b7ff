package syncrun

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository persists the sync run log
type Repository interface {
	// CreateIfAbsent inserts the run unless its trigger event id already exists.
	// created is false for a duplicate delivery.
	CreateIfAbsent(ctx context.Context, run *Run) (created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*Run, error)
	// MarkProcessing claims the run; ErrConcurrentRun when the twin already has one PROCESSING.
	// The transition methods update run in place on success.
	MarkProcessing(ctx context.Context, run *Run) error
	MarkCompleted(ctx context.Context, run *Run, snapshotID uuid.UUID, counts Counts) error
	MarkFailed(ctx context.Context, run *Run, reason string) error
	LatestByTwin(ctx context.Context, twinID uuid.UUID) (*Run, error)
	ListByStatus(ctx context.Context, status Status, limit int) ([]*Run, error)
	// FailStale fails PROCESSING runs started before the cutoff, returning how many
	FailStale(ctx context.Context, startedBefore time.Time, reason string) (int64, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrRunNotFound indicates missing sync run
type ErrRunNotFound struct {
	ID     uuid.UUID
	TwinID uuid.UUID
}

func (e ErrRunNotFound) Error() string {
	if e.TwinID != uuid.Nil {
		return "no sync run for twin: " + e.TwinID.String()
	}
	return "sync run not found: " + e.ID.String()
}

// Is implements the errors.Is interface for ErrRunNotFound
func (e ErrRunNotFound) Is(target error) bool {
	t, ok := target.(ErrRunNotFound)
	if !ok {
		return false
	}
	if t.ID == uuid.Nil && t.TwinID == uuid.Nil {
		return true
	}
	return e.ID == t.ID && e.TwinID == t.TwinID
}

// ErrConcurrentRun indicates another run for the twin is already PROCESSING
type ErrConcurrentRun struct {
	TwinID uuid.UUID
}

func (e ErrConcurrentRun) Error() string {
	return "another sync run is processing for twin: " + e.TwinID.String()
}

// Is implements the errors.Is interface for ErrConcurrentRun
func (e ErrConcurrentRun) Is(target error) bool {
	t, ok := target.(ErrConcurrentRun)
	if !ok {
		return false
	}
	return t.TwinID == uuid.Nil || e.TwinID == t.TwinID
}

// ErrInvalidTransition indicates a state machine violation
type ErrInvalidTransition struct {
	RunID uuid.UUID
	From  Status
	To    Status
}

func (e ErrInvalidTransition) Error() string {
	return "invalid sync run transition " + string(e.From) + " -> " + string(e.To) + " for run " + e.RunID.String()
}

// Is implements the errors.Is interface for ErrInvalidTransition
func (e ErrInvalidTransition) Is(target error) bool {
	_, ok := target.(ErrInvalidTransition)
	return ok
}
