package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/financial-twin-engine/internal/analytics"
	"github.com/financial-twin-engine/internal/anchor"
	"github.com/financial-twin-engine/internal/api_gateway"
	"github.com/financial-twin-engine/internal/api_gateway/service"
	"github.com/financial-twin-engine/internal/config"
	"github.com/financial-twin-engine/internal/data/bigquery"
	"github.com/financial-twin-engine/internal/data/gcs"
	"github.com/financial-twin-engine/internal/data/mongo"
	"github.com/financial-twin-engine/internal/data/postgres"
	"github.com/financial-twin-engine/internal/domain/cohort"
	"github.com/financial-twin-engine/internal/logger"
	"github.com/financial-twin-engine/internal/platform/ledger"
	"github.com/financial-twin-engine/internal/platform/messaging/producers"
	"github.com/financial-twin-engine/internal/platform/narrative"
	"github.com/financial-twin-engine/internal/platform/persistence"
	"github.com/financial-twin-engine/internal/scoring"
	"github.com/financial-twin-engine/internal/snapshotstore"
)

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Change events for registration, regeneration and aggregator webhooks
	kafkaProducer, err := producers.NewChangeEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize change event producer", "error", err)
		os.Exit(1)
	}

	twinRepo := postgres.NewTwinRepository(log, postgresDB)
	runRepo := postgres.NewSyncRunRepository(log, postgresDB)
	txRepo := postgres.NewTransactionRepository(log, postgresDB)
	snapshotRepo := postgres.NewSnapshotRepository(log, postgresDB)
	verificationRepo := mongo.NewVerificationRepository(log, mongoDB.Database())
	if err := verificationRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to ensure verification indexes", "error", err)
		os.Exit(1)
	}

	engine, err := scoring.NewEngineFromConfig(&cfg.Scoring)
	if err != nil {
		log.Error("Failed to load scoring weights", "error", err)
		os.Exit(1)
	}

	var archive *gcs.SnapshotArchive
	var archiver snapshotstore.Archiver
	if cfg.Archive.Enabled {
		archive, err = gcs.NewSnapshotArchive(appCtx, log, &cfg.Archive)
		if err != nil {
			log.Error("Failed to initialize snapshot archive", "error", err)
			os.Exit(1)
		}
		archiver = archive
	}
	store := snapshotstore.NewStore(log, postgresDB, snapshotRepo, twinRepo, archiver)

	verifier := anchor.NewAnchor(log, verificationRepo, ledger.NewHTTPClient(log, &cfg.Ledger), &cfg.Ledger)

	cohorts, closeCohorts := cohortSource(appCtx, log, cfg)
	narrator := newNarrator(appCtx, log, cfg)

	services := api_gateway.Services{
		Twins:        service.NewTwinService(log, twinRepo, runRepo, store, verifier, kafkaProducer),
		Verification: service.NewVerificationService(verifier),
		Webhooks:     service.NewWebhookService(log, kafkaProducer),
		Analytics: service.NewAnalyticsService(
			log, store, txRepo, engine, cohorts, narrator,
			analytics.AnomalyConfigFrom(cfg.Analytics),
			cfg.Sync.AnalysisWindowMonths,
		),
		Readiness: []api_gateway.ReadinessCheck{
			{Name: "postgres", Ping: postgresDB.Ping},
			{Name: "mongodb", Ping: mongoDB.Ping},
		},
	}

	server := api_gateway.NewServer(log, cfg, services)
	log.Info("REST server initialized", "weights_version", engine.Weights().Version)

	errChan := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	// Drain in-flight requests before their dependencies go away
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err = kafkaProducer.Close(); err != nil {
		log.Error("Error closing Kafka producer", "error", err)
	}

	if archive != nil {
		if err = archive.Close(); err != nil {
			log.Error("Error closing snapshot archive", "error", err)
		}
	}

	if err = closeCohorts(); err != nil {
		log.Error("Error closing cohort source", "error", err)
	}

	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
		os.Exit(1)
	}
	log.Info("Server shutdown completed")
}

// cohortSource prefers BigQuery and falls back to an empty in-memory source,
// under which every benchmark request reports an unknown cohort.
func cohortSource(ctx context.Context, log *slog.Logger, cfg *config.Config) (cohort.Source, func() error) {
	if !cfg.Cohort.Enabled {
		log.Info("Cohort statistics disabled")
		return cohort.NewStaticSource(), func() error { return nil }
	}

	source, err := bigquery.NewCohortSource(ctx, log, &cfg.Cohort)
	if err != nil {
		log.Error("Failed to initialize cohort source", "error", err)
		os.Exit(1)
	}
	return source, source.Close
}

func newNarrator(ctx context.Context, log *slog.Logger, cfg *config.Config) narrative.Generator {
	if !cfg.Narrative.Enabled {
		return narrative.TemplateGenerator{}
	}

	generator, err := narrative.NewGenAIGenerator(ctx, log, &cfg.Narrative)
	if err != nil {
		log.Warn("Narrative model unavailable, using templates", "error", err)
		return narrative.TemplateGenerator{}
	}
	return generator
}
