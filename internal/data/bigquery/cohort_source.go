// Package bigquery reads precomputed cohort statistics for percentile benchmarking.
package bigquery

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/financial-twin-engine/internal/config"
	"github.com/financial-twin-engine/internal/domain/cohort"
)

// CohortRow is one metric distribution of one cohort
type CohortRow struct {
	AgeBand    string  `bigquery:"age_band"`
	IncomeBand string  `bigquery:"income_band"`
	Region     string  `bigquery:"region"`
	Metric     string  `bigquery:"metric"`
	Mean       float64 `bigquery:"mean"`
	StdDev     float64 `bigquery:"stddev"`
	SampleSize int64   `bigquery:"sample_size"`
}

// rowReader runs the cohort query; the BigQuery client is the production implementation
type rowReader interface {
	readCohortRows(ctx context.Context, key cohort.Key) ([]CohortRow, error)
}

// CohortSource implements cohort.Source over a BigQuery table
type CohortSource struct {
	client *bigquery.Client
	reader rowReader
	logger *slog.Logger
}

// NewCohortSource creates a BigQuery client for the configured project
func NewCohortSource(ctx context.Context, logger *slog.Logger, cfg *config.CohortConfig) (*CohortSource, error) {
	client, err := bigquery.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create bigquery client: %w", err)
	}

	return &CohortSource{
		client: client,
		reader: &queryReader{client: client, dataset: cfg.Dataset, table: cfg.Table},
		logger: logger,
	}, nil
}

func (s *CohortSource) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *CohortSource) Stats(ctx context.Context, key cohort.Key) (*cohort.Stats, error) {
	key = key.Normalize()
	if err := key.Validate(); err != nil {
		return nil, err
	}

	rows, err := s.reader.readCohortRows(ctx, key)
	if err != nil {
		s.logger.Error("Failed to read cohort statistics", "cohort", key.String(), "error", err)
		return nil, fmt.Errorf("failed to read cohort statistics: %w", err)
	}
	if len(rows) == 0 {
		return nil, cohort.ErrCohortNotFound{Key: key}
	}

	return statsFromRows(key, rows), nil
}

// statsFromRows folds metric rows into one Stats; the sample size is the smallest reported
func statsFromRows(key cohort.Key, rows []CohortRow) *cohort.Stats {
	stats := &cohort.Stats{
		Key:     key,
		Metrics: make(map[string]cohort.MetricStats, len(rows)),
	}
	for i, r := range rows {
		stats.Metrics[r.Metric] = cohort.MetricStats{Mean: r.Mean, StdDev: r.StdDev}
		if i == 0 || r.SampleSize < stats.SampleSize {
			stats.SampleSize = r.SampleSize
		}
	}
	return stats
}

type queryReader struct {
	client  *bigquery.Client
	dataset string
	table   string
}

func (q *queryReader) readCohortRows(ctx context.Context, key cohort.Key) ([]CohortRow, error) {
	query := q.client.Query(fmt.Sprintf(`
		SELECT age_band, income_band, region, metric, mean, stddev, sample_size
		FROM %s.%s
		WHERE LOWER(age_band) = @age_band
		  AND LOWER(income_band) = @income_band
		  AND LOWER(region) = @region
	`, q.dataset, q.table))
	query.Parameters = []bigquery.QueryParameter{
		{Name: "age_band", Value: key.AgeBand},
		{Name: "income_band", Value: key.IncomeBand},
		{Name: "region", Value: key.Region},
	}

	it, err := query.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}

	var rows []CohortRow
	for {
		var r CohortRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		rows = append(rows, r)
	}
	return rows, nil
}
