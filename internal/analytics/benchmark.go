package analytics

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/financial-twin-engine/internal/domain/cohort"
	"github.com/financial-twin-engine/internal/domain/snapshot"
)

var ErrNoComparableMetrics = errors.New("cohort has no statistics for the snapshot's scores")

// MetricPercentile places one score within its cohort distribution
type MetricPercentile struct {
	Value      float64 `json:"value"`
	CohortMean float64 `json:"cohort_mean"`
	Percentile float64 `json:"percentile"`
}

// Benchmark is a snapshot compared with its peer group
type Benchmark struct {
	Cohort     cohort.Key                  `json:"cohort"`
	SampleSize int64                       `json:"sample_size"`
	SnapshotID string                      `json:"snapshot_id"`
	Metrics    map[string]MetricPercentile `json:"metrics"`
}

// Percentile returns 100*Phi((x-mean)/stddev). A degenerate distribution yields
// 50 at the mean and 100 or 0 either side of it.
func Percentile(x, mean, stddev float64) float64 {
	if stddev <= 0 {
		switch {
		case x > mean:
			return 100
		case x < mean:
			return 0
		default:
			return 50
		}
	}
	z := (x - mean) / stddev
	return round2(50 * (1 + math.Erf(z/math.Sqrt2)))
}

// BenchmarkSnapshot compares the overall score and every pillar the cohort carries
func BenchmarkSnapshot(ctx context.Context, source cohort.Source, key cohort.Key, snap *snapshot.Snapshot) (*Benchmark, error) {
	key = key.Normalize()
	if err := key.Validate(); err != nil {
		return nil, err
	}

	stats, err := source.Stats(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load cohort %s: %w", key, err)
	}

	values := map[string]float64{cohort.MetricOverall: snap.Overall}
	for _, p := range snapshot.AllPillars {
		values[string(p)] = snap.Pillars.Get(p)
	}

	out := &Benchmark{
		Cohort:     key,
		SampleSize: stats.SampleSize,
		SnapshotID: snap.ID.String(),
		Metrics:    make(map[string]MetricPercentile, len(values)),
	}
	for name, v := range values {
		ms, ok := stats.Metrics[name]
		if !ok {
			continue
		}
		out.Metrics[name] = MetricPercentile{
			Value:      v,
			CohortMean: ms.Mean,
			Percentile: Percentile(v, ms.Mean, ms.StdDev),
		}
	}
	if len(out.Metrics) == 0 {
		return nil, ErrNoComparableMetrics
	}
	return out, nil
}
