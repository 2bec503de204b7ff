package coordinator

import (
	"log/slog"

	"github.com/financial-twin-engine/internal/categorizer"
	"github.com/financial-twin-engine/internal/config"
	"github.com/financial-twin-engine/internal/domain/outbox"
	"github.com/financial-twin-engine/internal/domain/syncrun"
	"github.com/financial-twin-engine/internal/domain/transaction"
	"github.com/financial-twin-engine/internal/domain/twin"
	"github.com/financial-twin-engine/internal/platform/aggregator"
	"github.com/financial-twin-engine/internal/platform/persistence"
	"github.com/financial-twin-engine/internal/scoring"
)

// CreateCoordinator builds the categorizer and scoring engine from configuration
// and wires them with the repositories into a Coordinator.
func CreateCoordinator(
	pgDB persistence.TxRunner,
	runRepo syncrun.Repository,
	twinRepo twin.Repository,
	txRepo transaction.Repository,
	outboxRepo outbox.Repository,
	snapshots SnapshotCommitter,
	aggregatorClient aggregator.Client,
	nudger Nudger,
	logger *slog.Logger,
	cfg *config.Config,
) (*Coordinator, error) {
	resolver, err := categorizer.NewResolverFromConfig(&cfg.Scoring)
	if err != nil {
		return nil, err
	}
	engine, err := scoring.NewEngineFromConfig(&cfg.Scoring)
	if err != nil {
		return nil, err
	}

	coordinator, err := NewCoordinator(Deps{
		DB:           pgDB,
		Runs:         runRepo,
		Twins:        twinRepo,
		Transactions: txRepo,
		Outbox:       outboxRepo,
		Snapshots:    snapshots,
		Aggregator:   aggregatorClient,
		Categorizer:  resolver,
		Scorer:       engine,
		Nudger:       nudger,
	}, cfg.Sync, cfg.WorkerPool.Size, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("Created sync coordinator",
		"pool_size", cfg.WorkerPool.Size,
		"weights_version", engine.Weights().Version,
		"analysis_window_months", cfg.Sync.AnalysisWindowMonths,
	)
	return coordinator, nil
}
