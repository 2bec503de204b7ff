package scoring

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/financial-twin-engine/internal/config"
	"github.com/financial-twin-engine/internal/domain/snapshot"
	"gopkg.in/yaml.v3"
)

//go:embed default_weights.yaml
var defaultWeightsYAML []byte

const weightTolerance = 1e-6

var ErrInvalidWeights = errors.New("invalid weights")

// PillarWeights is one weight per pillar; a valid vector is non-negative and sums to 1
type PillarWeights struct {
	IncomeStability     float64 `yaml:"income_stability" json:"income_stability"`
	SpendingDiscipline  float64 `yaml:"spending_discipline" json:"spending_discipline"`
	DebtTrajectory      float64 `yaml:"debt_trajectory" json:"debt_trajectory"`
	FinancialResilience float64 `yaml:"financial_resilience" json:"financial_resilience"`
	GrowthMomentum      float64 `yaml:"growth_momentum" json:"growth_momentum"`
}

func (w PillarWeights) values() []float64 {
	return []float64{w.IncomeStability, w.SpendingDiscipline, w.DebtTrajectory, w.FinancialResilience, w.GrowthMomentum}
}

// Apply returns the weighted sum of the pillars
func (w PillarWeights) Apply(p snapshot.Pillars) float64 {
	return w.IncomeStability*p.IncomeStability +
		w.SpendingDiscipline*p.SpendingDiscipline +
		w.DebtTrajectory*p.DebtTrajectory +
		w.FinancialResilience*p.FinancialResilience +
		w.GrowthMomentum*p.GrowthMomentum
}

func (w PillarWeights) validate(name string) error {
	var sum float64
	for _, v := range w.values() {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: %s has a negative weight", ErrInvalidWeights, name)
		}
		sum += v
	}
	if math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("%w: %s sums to %.6f, want 1", ErrInvalidWeights, name, sum)
	}
	return nil
}

// ProductWeights recombines the pillars for one lending product
type ProductWeights struct {
	Pillars          PillarWeights `yaml:"pillars" json:"pillars"`
	Adjustment       float64       `yaml:"adjustment" json:"adjustment"`
	MinHistoryMonths int           `yaml:"min_history_months" json:"min_history_months"`
	HistoryPenalty   float64       `yaml:"history_penalty" json:"history_penalty"`
}

// Weights is the versioned scoring configuration
type Weights struct {
	Version   string                              `yaml:"version" json:"version"`
	Overall   PillarWeights                       `yaml:"overall" json:"overall"`
	Readiness map[snapshot.Product]ProductWeights `yaml:"readiness" json:"readiness"`
}

// Validate checks the version and every weight vector
func (w *Weights) Validate() error {
	if w.Version == "" {
		return fmt.Errorf("%w: version is required", ErrInvalidWeights)
	}
	if err := w.Overall.validate("overall"); err != nil {
		return err
	}
	for _, p := range snapshot.AllProducts {
		pw, ok := w.Readiness[p]
		if !ok {
			return fmt.Errorf("%w: readiness weights for %s are missing", ErrInvalidWeights, p)
		}
		if err := pw.Pillars.validate(string(p)); err != nil {
			return err
		}
		if pw.MinHistoryMonths < 0 || pw.HistoryPenalty < 0 {
			return fmt.Errorf("%w: %s history settings must be non-negative", ErrInvalidWeights, p)
		}
	}
	return nil
}

// ParseWeights decodes and validates a YAML weights document
func ParseWeights(data []byte) (*Weights, error) {
	var w Weights
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to parse weights: %w", err)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &w, nil
}

// LoadWeights reads a weights file, or the built-in weights when path is empty
func LoadWeights(path string) (*Weights, error) {
	if path == "" {
		return DefaultWeights()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read weights file %s: %w", path, err)
	}
	return ParseWeights(data)
}

// DefaultWeights returns the built-in weights
func DefaultWeights() (*Weights, error) {
	return ParseWeights(defaultWeightsYAML)
}

// NewEngineFromConfig loads the configured weights and builds an engine
func NewEngineFromConfig(cfg *config.ScoringConfig) (*Engine, error) {
	weights, err := LoadWeights(cfg.WeightsPath)
	if err != nil {
		return nil, err
	}
	return NewEngine(weights, Options{MinMonths: cfg.MinMonths})
}
