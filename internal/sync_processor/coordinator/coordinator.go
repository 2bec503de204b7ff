// Package coordinator runs the sync pipeline of a twin: fetch the aggregator delta,
// merge, categorize, score and commit a snapshot in one database transaction.
// Runs of the same twin are serialized; different twins run concurrently.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/financial-twin-engine/internal/config"
	"github.com/financial-twin-engine/internal/domain/outbox"
	"github.com/financial-twin-engine/internal/domain/shared"
	"github.com/financial-twin-engine/internal/domain/snapshot"
	"github.com/financial-twin-engine/internal/domain/syncrun"
	"github.com/financial-twin-engine/internal/domain/transaction"
	"github.com/financial-twin-engine/internal/domain/twin"
	"github.com/financial-twin-engine/internal/platform/aggregator"
	"github.com/financial-twin-engine/internal/platform/persistence"
	"github.com/financial-twin-engine/internal/scoring"
)

const (
	recoverBatchSize   = 500
	failureWriteBudget = 10 * time.Second
	interruptedReason  = "interrupted"
	timedOutReason     = "run timed out"
)

// Deps are the collaborators of a Coordinator
type Deps struct {
	DB           persistence.TxRunner
	Runs         syncrun.Repository
	Twins        twin.Repository
	Transactions transaction.Repository
	Outbox       outbox.Repository
	Snapshots    SnapshotCommitter
	Aggregator   aggregator.Client
	Categorizer  Categorizer
	Scorer       Scorer
	Nudger       Nudger
}

type Coordinator struct {
	Deps
	cfg       config.SyncConfig
	scheduler *Scheduler
	logger    *slog.Logger
	now       func() time.Time
	requeue   func(d time.Duration, f func())
}

func NewCoordinator(deps Deps, cfg config.SyncConfig, poolSize int, logger *slog.Logger) (*Coordinator, error) {
	c := &Coordinator{
		Deps:   deps,
		cfg:    cfg,
		logger: logger.With("component", "sync_coordinator"),
		now:    time.Now,
		requeue: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}

	scheduler, err := NewScheduler(poolSize, c.process, c.logger.With("component", "sync_scheduler"))
	if err != nil {
		return nil, fmt.Errorf("failed to create sync scheduler: %w", err)
	}
	c.scheduler = scheduler
	return c, nil
}

// Enqueue records a RECEIVED run for the event and schedules it. A duplicate
// delivery of the same event creates nothing and returns a nil run.
func (c *Coordinator) Enqueue(ctx context.Context, event *shared.ChangeEvent) (*syncrun.Run, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}

	logger := c.logger
	if event.CorrelationID != "" {
		logger = logger.With("correlation_id", event.CorrelationID)
	}

	tw, err := c.resolveTwin(ctx, event)
	if err != nil {
		return nil, err
	}

	run := syncrun.NewRun(tw.ID, event.IdempotencyKey(), event.CorrelationID)
	created, err := c.Runs.CreateIfAbsent(ctx, run)
	if err != nil {
		return nil, err
	}
	if !created {
		logger.Info("Duplicate change event ignored", "trigger_event_id", run.TriggerEventID, "twin_id", tw.ID.String())
		return nil, nil
	}

	logger.Info("Sync run received",
		"sync_run_id", run.ID.String(),
		"twin_id", tw.ID.String(),
		"event_type", event.Type,
	)

	if err := c.scheduler.Submit(Job{RunID: run.ID, TwinID: tw.ID, CorrelationID: run.CorrelationID}); err != nil {
		// The run stays RECEIVED; Recover picks it up on the next start
		logger.Error("Failed to schedule sync run", "sync_run_id", run.ID.String(), "error", err)
	}
	return run, nil
}

func (c *Coordinator) resolveTwin(ctx context.Context, event *shared.ChangeEvent) (*twin.Twin, error) {
	if event.TwinID != uuid.Nil {
		return c.Twins.GetByID(ctx, event.TwinID)
	}
	return c.Twins.GetByItemID(ctx, event.ItemID)
}

// Recover fails PROCESSING runs older than the run timeout, which no live worker
// can still own, and reschedules RECEIVED runs whose events were already acknowledged.
func (c *Coordinator) Recover(ctx context.Context) error {
	failed, err := c.Runs.FailStale(ctx, c.staleCutoff(), interruptedReason)
	if err != nil {
		return fmt.Errorf("failed to fail interrupted runs: %w", err)
	}

	pending, err := c.Runs.ListByStatus(ctx, syncrun.StatusReceived, recoverBatchSize)
	if err != nil {
		return fmt.Errorf("failed to list received runs: %w", err)
	}
	for _, run := range pending {
		if err := c.scheduler.Submit(Job{RunID: run.ID, TwinID: run.TwinID, CorrelationID: run.CorrelationID}); err != nil {
			return fmt.Errorf("failed to reschedule run %s: %w", run.ID, err)
		}
	}

	c.logger.Info("Sync runs recovered", "interrupted_failed", failed, "rescheduled", len(pending))
	return nil
}

// staleCutoff is the start time before which a PROCESSING run can have no live owner
func (c *Coordinator) staleCutoff() time.Time {
	return c.now().UTC().Add(-c.cfg.RunTimeout)
}

// claim marks the run PROCESSING. When the twin is held by a run older than the run
// timeout, that run is failed and the claim is tried once more.
func (c *Coordinator) claim(ctx context.Context, run *syncrun.Run, logger *slog.Logger) error {
	err := c.Runs.MarkProcessing(ctx, run)
	if !errors.Is(err, syncrun.ErrConcurrentRun{}) {
		return err
	}

	failed, staleErr := c.Runs.FailStale(ctx, c.staleCutoff(), timedOutReason)
	if staleErr != nil {
		logger.Warn("Failed to fail timed out sync runs", "error", staleErr)
		return err
	}
	if failed == 0 {
		return err
	}
	logger.Warn("Timed out sync runs failed", "count", failed)
	return c.Runs.MarkProcessing(ctx, run)
}

// Shutdown waits for in-flight runs and releases the pool
func (c *Coordinator) Shutdown(ctx context.Context) error {
	return c.scheduler.Shutdown(ctx)
}

// process executes one scheduled run under the run timeout
func (c *Coordinator) process(_ context.Context, job Job) {
	logger := c.logger.With("sync_run_id", job.RunID.String(), "twin_id", job.TwinID.String())
	if job.CorrelationID != "" {
		logger = logger.With("correlation_id", job.CorrelationID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.RunTimeout)
	defer cancel()

	run, err := c.Runs.GetByID(ctx, job.RunID)
	if err != nil {
		logger.Error("Failed to load sync run", "error", err)
		return
	}
	if run.Status != syncrun.StatusReceived {
		logger.Debug("Sync run already handled", "status", run.Status)
		return
	}

	if err := c.claim(ctx, run, logger); err != nil {
		switch {
		case errors.Is(err, syncrun.ErrConcurrentRun{}):
			logger.Info("Twin is processing elsewhere, run requeued", "requeue_delay", c.cfg.RequeueDelay.String())
			c.requeue(c.cfg.RequeueDelay, func() {
				if err := c.scheduler.Submit(job); err != nil {
					logger.Warn("Failed to requeue sync run", "error", err)
				}
			})
		case errors.Is(err, syncrun.ErrInvalidTransition{}):
			logger.Debug("Sync run claimed by another worker")
		default:
			logger.Error("Failed to claim sync run", "error", err)
		}
		return
	}

	started := c.now()
	snap, err := c.execute(ctx, run, logger)
	if err != nil {
		c.fail(run, err, logger)
		return
	}

	logger.Info("Sync run completed",
		"snapshot_id", snap.ID.String(),
		"overall", snap.Overall,
		"low_confidence", snap.LowConfidence,
		"new", run.NewTransactionCount,
		"updated", run.UpdatedTransactionCount,
		"removed", run.RemovedTransactionCount,
		"duration", c.now().Sub(started).String(),
	)

	if c.Nudger != nil {
		c.Nudger.Nudge()
	}
	c.Snapshots.Archive(ctx, snap)
}

// execute runs the pipeline; nothing is visible until the final transaction commits
func (c *Coordinator) execute(ctx context.Context, run *syncrun.Run, logger *slog.Logger) (*snapshot.Snapshot, error) {
	tw, err := c.Twins.GetByID(ctx, run.TwinID)
	if err != nil {
		return nil, err
	}

	fetchedAt := c.now().UTC()
	since := tw.Since(fetchedAt, c.cfg.InitialLookback)

	var (
		delta    *aggregator.Delta
		accounts []transaction.Account
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		delta, err = c.Aggregator.FetchTransactions(gctx, tw.AccessToken, since)
		return err
	})
	g.Go(func() error {
		var err error
		accounts, err = c.Aggregator.FetchAccounts(gctx, tw.AccessToken)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("aggregator fetch failed: %w", err)
	}
	for i := range accounts {
		accounts[i].TwinID = tw.ID
	}

	stored, err := c.Transactions.ListByTwin(ctx, tw.ID)
	if err != nil {
		return nil, err
	}
	merged := mergeDelta(stored, delta, tw.ID, c.Categorizer)

	logger.Debug("Delta merged",
		"since", since,
		"stored", len(stored),
		"total", len(merged.All),
		"new", merged.Counts.New,
		"updated", merged.Counts.Updated,
		"removed", merged.Counts.Removed,
	)

	result, err := c.Scorer.Score(scoring.Input{
		Transactions: merged.All,
		Accounts:     accounts,
		WindowMonths: c.cfg.AnalysisWindowMonths,
		AsOf:         fetchedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("scoring failed: %w", err)
	}

	var snap *snapshot.Snapshot
	completed := *run
	err = c.DB.ExecuteTx(ctx, func(tx pgx.Tx) error {
		txRepo := c.Transactions.WithTx(tx)
		if len(merged.Upserts) > 0 {
			if err := txRepo.Upsert(ctx, merged.Upserts); err != nil {
				return err
			}
		}
		if err := txRepo.Delete(ctx, tw.ID, merged.Removed); err != nil {
			return err
		}
		if err := txRepo.ReplaceAccounts(ctx, tw.ID, accounts); err != nil {
			return err
		}

		var err error
		snap, err = c.Snapshots.CommitTx(ctx, tx, tw.ID, result.Draft(run.ID), fetchedAt)
		if err != nil {
			return err
		}

		msg, err := outbox.NewMessage(outbox.AnchorRequest{
			SnapshotID:    snap.ID,
			TwinID:        tw.ID,
			ContentHash:   snap.ContentHash,
			CorrelationID: run.CorrelationID,
		})
		if err != nil {
			return fmt.Errorf("failed to build anchor message: %w", err)
		}
		if err := c.Outbox.WithTx(tx).Create(ctx, msg); err != nil {
			return err
		}

		return c.Runs.WithTx(tx).MarkCompleted(ctx, &completed, snap.ID, merged.Counts)
	})
	if err != nil {
		return nil, fmt.Errorf("commit failed: %w", err)
	}

	*run = completed
	return snap, nil
}

// fail records the failure with its own budget so an expired run context can still be written
func (c *Coordinator) fail(run *syncrun.Run, cause error, logger *slog.Logger) {
	reason := cause.Error()
	if errors.Is(cause, context.DeadlineExceeded) {
		reason = "run timed out: " + reason
	}
	logger.Error("Sync run failed", "error", cause)

	ctx, cancel := context.WithTimeout(context.Background(), failureWriteBudget)
	defer cancel()
	if err := c.Runs.MarkFailed(ctx, run, reason); err != nil {
		logger.Error("Failed to mark sync run failed", "error", err)
	}
}
