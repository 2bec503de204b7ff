package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/financial-twin-engine/internal/anchor"
	"github.com/financial-twin-engine/internal/config"
	"github.com/financial-twin-engine/internal/data/gcs"
	"github.com/financial-twin-engine/internal/data/mongo"
	"github.com/financial-twin-engine/internal/data/postgres"
	"github.com/financial-twin-engine/internal/logger"
	"github.com/financial-twin-engine/internal/platform/aggregator"
	"github.com/financial-twin-engine/internal/platform/ledger"
	"github.com/financial-twin-engine/internal/platform/messaging/consumers"
	"github.com/financial-twin-engine/internal/platform/messaging/producers"
	"github.com/financial-twin-engine/internal/platform/persistence"
	"github.com/financial-twin-engine/internal/snapshotstore"
	"github.com/financial-twin-engine/internal/sync_processor/anchor_poller"
	"github.com/financial-twin-engine/internal/sync_processor/consumer"
	"github.com/financial-twin-engine/internal/sync_processor/coordinator"
)

const shutdownTimeout = 30 * time.Second

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("sync_processor")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Sync Processor",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

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

	twinRepo := postgres.NewTwinRepository(log, postgresDB)
	runRepo := postgres.NewSyncRunRepository(log, postgresDB)
	txRepo := postgres.NewTransactionRepository(log, postgresDB)
	snapshotRepo := postgres.NewSnapshotRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	verificationRepo := mongo.NewVerificationRepository(log, mongoDB.Database())
	if err := verificationRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to ensure verification indexes", "error", err)
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

	// Anchoring runs off the outbox so a ledger outage never blocks a sync run
	anchorer := anchor.NewAnchor(log, verificationRepo, ledger.NewHTTPClient(log, &cfg.Ledger), &cfg.Ledger)
	poller := anchor_poller.NewPoller(
		&cfg.Outbox,
		outboxRepo,
		anchor_poller.NewAnchorPublisher(outboxRepo, anchorer, log),
		log,
	)

	syncCoordinator, err := coordinator.CreateCoordinator(
		postgresDB,
		runRepo,
		twinRepo,
		txRepo,
		outboxRepo,
		store,
		aggregator.NewHTTPClient(log, &cfg.Aggregator),
		poller,
		log,
		cfg,
	)
	if err != nil {
		log.Error("Failed to create sync coordinator", "error", err)
		os.Exit(1)
	}

	if err := syncCoordinator.Recover(appCtx); err != nil {
		log.Error("Failed to recover sync runs", "error", err)
		os.Exit(1)
	}

	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	var deadLetters producers.DeadLetterPublisher
	if dlqProducer != nil {
		deadLetters = dlqProducer
	}

	changeEventHandler := consumer.NewChangeEventHandler(log, syncCoordinator, deadLetters)
	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	errChan := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.SyncEventTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Subscribe(appCtx, changeEventHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
			return
		}
		<-kafkaConsumer.Done()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting anchor poller",
			"interval", cfg.Outbox.PollingInterval.String(),
			"batch_size", cfg.Outbox.BatchSize,
		)
		poller.Start(appCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Stop intake first; queued runs stay RECEIVED and are resumed by Recover
	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("Consumer and poller stopped")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	if err = syncCoordinator.Shutdown(shutdownCtx); err != nil {
		log.Error("Error waiting for in-flight sync runs", "error", err)
	}

	if err = dlqProducer.Close(); err != nil {
		log.Error("Error closing DLQ Kafka producer", "error", err)
	}

	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	if archive != nil {
		if err = archive.Close(); err != nil {
			log.Error("Error closing snapshot archive", "error", err)
		}
	}

	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serviceErr != nil {
		log.Error("Sync Processor shutdown with errors", "error", serviceErr)
		os.Exit(1)
	}
	log.Info("Sync Processor shutdown completed")
}
