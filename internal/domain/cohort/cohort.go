package cohort

import (
	"context"
	"errors"
	"strings"
)

// MetricOverall is the stats key of the overall score; pillars use their pillar names
const MetricOverall = "overall"

var ErrInvalidKey = errors.New("age_band, income_band and region are required")

// Key identifies a peer group
type Key struct {
	AgeBand    string `json:"age_band"`
	IncomeBand string `json:"income_band"`
	Region     string `json:"region"`
}

// Normalize trims and lower-cases every component
func (k Key) Normalize() Key {
	return Key{
		AgeBand:    strings.ToLower(strings.TrimSpace(k.AgeBand)),
		IncomeBand: strings.ToLower(strings.TrimSpace(k.IncomeBand)),
		Region:     strings.ToLower(strings.TrimSpace(k.Region)),
	}
}

func (k Key) Validate() error {
	if k.AgeBand == "" || k.IncomeBand == "" || k.Region == "" {
		return ErrInvalidKey
	}
	return nil
}

func (k Key) String() string {
	return k.AgeBand + "/" + k.IncomeBand + "/" + k.Region
}

// MetricStats is the precomputed distribution of one metric in a cohort
type MetricStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
}

// Stats are the summary statistics of a cohort
type Stats struct {
	Key        Key                    `json:"cohort"`
	SampleSize int64                  `json:"sample_size"`
	Metrics    map[string]MetricStats `json:"metrics"`
}

// Source provides cohort statistics
type Source interface {
	Stats(ctx context.Context, key Key) (*Stats, error)
}

// ErrCohortNotFound indicates no statistics exist for the key
type ErrCohortNotFound struct {
	Key Key
}

func (e ErrCohortNotFound) Error() string {
	return "cohort not found: " + e.Key.String()
}

// Is implements the errors.Is interface for ErrCohortNotFound
func (e ErrCohortNotFound) Is(target error) bool {
	t, ok := target.(ErrCohortNotFound)
	if !ok {
		return false
	}
	if t.Key == (Key{}) {
		return true
	}
	return e.Key == t.Key
}

// StaticSource serves cohorts from an in-memory map
type StaticSource struct {
	cohorts map[Key]*Stats
}

func NewStaticSource(stats ...*Stats) *StaticSource {
	s := &StaticSource{cohorts: make(map[Key]*Stats, len(stats))}
	for _, st := range stats {
		key := st.Key.Normalize()
		st.Key = key
		s.cohorts[key] = st
	}
	return s
}

func (s *StaticSource) Stats(_ context.Context, key Key) (*Stats, error) {
	key = key.Normalize()
	if err := key.Validate(); err != nil {
		return nil, err
	}
	st, ok := s.cohorts[key]
	if !ok {
		return nil, ErrCohortNotFound{Key: key}
	}
	return st, nil
}
