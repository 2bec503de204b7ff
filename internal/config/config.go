// Package config provides configuration structures and validation for the application.
// It handles environment-based configuration for the API gateway, the sync processor and
// the collaborators they talk to (bank aggregator, verification ledger, cloud services).
package config

import (
	"errors"
	"strings"
	"time"
)

// Config holds the complete application configuration with settings for all components.
// Each field represents a major subsystem's configuration and is validated during
// application startup.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Kafka       KafkaConfig
	Postgres    PostgresConfig
	MongoDB     MongoDBConfig
	Outbox      OutboxConfig
	WorkerPool  WorkerPoolConfig
	Sync        SyncConfig
	Aggregator  AggregatorConfig
	Ledger      LedgerConfig
	Scoring     ScoringConfig
	Analytics   AnalyticsConfig
	Archive     ArchiveConfig
	Cohort      CohortConfig
	Narrative   NarrativeConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
	RequestTimeout  time.Duration // Deadline applied to each request context, zero disables
}

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Brokers           string
	SyncEventTopic    string // Topic carrying twin change notifications
	NumPartitions     int
	ReplicationFactor int
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	StartOffset       int64
	DLQTopic          string // Topic for Dead Letter Queue
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string        // Database connection string
	MaxConns        int32         // Maximum number of open connections
	MinConns        int32         // Minimum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of a connection
	ConnMaxIdleTime time.Duration // Maximum idle time of a connection
	MigrationsPath  string        // Path to migration files
}

// MongoDBConfig contains MongoDB configuration
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// OutboxConfig controls the anchor outbox poller
type OutboxConfig struct {
	PollingInterval  time.Duration
	BatchSize        int
	MaxRetryAttempts int // Poll cycles before an anchor message is given up on
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size int // Maximum number of twins synced concurrently
}

// SyncConfig controls sync run execution
type SyncConfig struct {
	RunTimeout           time.Duration // Upper bound for one sync run end to end
	RequeueDelay         time.Duration // Delay before retrying a run that lost the per-twin claim
	AnalysisWindowMonths int           // Months of history fed to the scoring engine
	InitialLookback      time.Duration // Fetch horizon for a twin that never synced
}

// AggregatorConfig contains the bank aggregator client configuration
type AggregatorConfig struct {
	BaseURL        string
	ClientID       string
	Secret         string
	Timeout        time.Duration // Per-call timeout
	MaxAttempts    int
	InitialBackoff time.Duration
}

// LedgerConfig contains the verification ledger client configuration
type LedgerConfig struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration // Per-call timeout
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// ScoringConfig points at the process-wide scoring inputs
type ScoringConfig struct {
	RulesPath           string  // YAML category rule set, empty for built-in rules
	WeightsPath         string  // YAML versioned weights, empty for built-in weights
	HintConfidenceFloor float64 // Classifier hints at or below this confidence fall back to rules
	MinMonths           int     // Below this many months a snapshot is flagged low-confidence
}

// AnalyticsConfig contains anomaly detection thresholds
type AnalyticsConfig struct {
	AnomalyRecentMonths   int
	AnomalyBaselineMonths int
	AnomalyInfo           float64
	AnomalyWarning        float64
	AnomalyAlert          float64
	AnomalyMinAmount      int64 // Minor units
}

// ArchiveConfig contains the snapshot archive (GCS) configuration
type ArchiveConfig struct {
	Enabled bool
	Bucket  string
	Prefix  string
}

// CohortConfig contains the BigQuery cohort statistics configuration
type CohortConfig struct {
	Enabled   bool
	ProjectID string
	Dataset   string
	Table     string
}

// NarrativeConfig contains the text generation collaborator configuration
type NarrativeConfig struct {
	Enabled bool
	Model   string
}

// validate performs comprehensive validation of all configuration values,
// ensuring they meet minimum requirements and logical constraints
func (c *Config) validate() error {
	var validationErrors []string

	// Validate Server config
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	// Validate Kafka config
	if len(c.Kafka.Brokers) == 0 {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.SyncEventTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_SYNC_EVENT_TOPIC is required")
	}
	if c.Kafka.ConsumerGroup == "" {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_GROUP is required")
	}
	if c.Kafka.MinBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
	}
	if c.Kafka.MaxBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_BYTES must be greater than 0")
	}
	if c.Kafka.MaxWait <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")
	}
	if c.Kafka.DLQTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_DLQ_TOPIC is required")
	}

	// Validate PostgreSQL config
	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate MongoDB config
	if c.MongoDB.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.MongoDB.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.MongoDB.Timeout <= 0 {
		validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
	}
	if c.MongoDB.MaxPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MinPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MIN_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MaxConnIdleTime <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate Outbox config
	if c.Outbox.PollingInterval <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_POLLING_INTERVAL must be greater than 0")
	}
	if c.Outbox.BatchSize <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_BATCH_SIZE must be greater than 0")
	}
	if c.Outbox.MaxRetryAttempts <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_MAX_RETRY_ATTEMPTS must be greater than 0")
	}

	// Validate WorkerPool config
	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	// Validate Sync config
	if c.Sync.RunTimeout <= 0 {
		validationErrors = append(validationErrors, "SYNC_RUN_TIMEOUT must be greater than 0")
	}
	if c.Sync.RequeueDelay <= 0 {
		validationErrors = append(validationErrors, "SYNC_REQUEUE_DELAY must be greater than 0")
	}
	if c.Sync.AnalysisWindowMonths <= 0 {
		validationErrors = append(validationErrors, "SYNC_ANALYSIS_WINDOW_MONTHS must be greater than 0")
	}
	if c.Sync.InitialLookback <= 0 {
		validationErrors = append(validationErrors, "SYNC_INITIAL_LOOKBACK must be greater than 0")
	}

	// Validate Aggregator config
	if c.Aggregator.BaseURL == "" {
		validationErrors = append(validationErrors, "AGGREGATOR_BASE_URL is required")
	}
	if c.Aggregator.Timeout <= 0 {
		validationErrors = append(validationErrors, "AGGREGATOR_TIMEOUT must be greater than 0")
	}
	if c.Aggregator.MaxAttempts <= 0 {
		validationErrors = append(validationErrors, "AGGREGATOR_MAX_ATTEMPTS must be greater than 0")
	}

	// Validate Ledger config
	if c.Ledger.BaseURL == "" {
		validationErrors = append(validationErrors, "LEDGER_BASE_URL is required")
	}
	if c.Ledger.Timeout <= 0 {
		validationErrors = append(validationErrors, "LEDGER_TIMEOUT must be greater than 0")
	}
	if c.Ledger.MaxAttempts <= 0 {
		validationErrors = append(validationErrors, "LEDGER_MAX_ATTEMPTS must be greater than 0")
	}
	if c.Ledger.InitialBackoff <= 0 {
		validationErrors = append(validationErrors, "LEDGER_INITIAL_BACKOFF must be greater than 0")
	}

	// Validate Scoring config
	if c.Scoring.HintConfidenceFloor < 0 || c.Scoring.HintConfidenceFloor > 1 {
		validationErrors = append(validationErrors, "SCORING_HINT_CONFIDENCE_FLOOR must be between 0 and 1")
	}
	if c.Scoring.MinMonths <= 0 {
		validationErrors = append(validationErrors, "SCORING_MIN_MONTHS must be greater than 0")
	}

	// Validate Analytics config
	if c.Analytics.AnomalyRecentMonths <= 0 || c.Analytics.AnomalyBaselineMonths <= 0 {
		validationErrors = append(validationErrors, "ANALYTICS_ANOMALY_RECENT_MONTHS and ANALYTICS_ANOMALY_BASELINE_MONTHS must be greater than 0")
	}
	if !(c.Analytics.AnomalyInfo > 0 && c.Analytics.AnomalyInfo <= c.Analytics.AnomalyWarning && c.Analytics.AnomalyWarning <= c.Analytics.AnomalyAlert) {
		validationErrors = append(validationErrors, "ANALYTICS_ANOMALY thresholds must satisfy 0 < INFO <= WARNING <= ALERT")
	}

	// Optional integrations
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		validationErrors = append(validationErrors, "ARCHIVE_BUCKET is required when ARCHIVE_ENABLED is set")
	}
	if c.Cohort.Enabled && (c.Cohort.ProjectID == "" || c.Cohort.Dataset == "" || c.Cohort.Table == "") {
		validationErrors = append(validationErrors, "COHORT_PROJECT_ID, COHORT_DATASET and COHORT_TABLE are required when COHORT_ENABLED is set")
	}
	if c.Narrative.Enabled && c.Narrative.Model == "" {
		validationErrors = append(validationErrors, "NARRATIVE_MODEL is required when NARRATIVE_ENABLED is set")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
