package snapshot

import "errors"

var ErrUnknownPillar = errors.New("unknown pillar")

// PillarName names one of the five sub-scores
type PillarName string

const (
	PillarIncomeStability     PillarName = "income_stability"
	PillarSpendingDiscipline  PillarName = "spending_discipline"
	PillarDebtTrajectory      PillarName = "debt_trajectory"
	PillarFinancialResilience PillarName = "financial_resilience"
	PillarGrowthMomentum      PillarName = "growth_momentum"
)

// AllPillars lists the pillars in presentation order
var AllPillars = []PillarName{
	PillarIncomeStability,
	PillarSpendingDiscipline,
	PillarDebtTrajectory,
	PillarFinancialResilience,
	PillarGrowthMomentum,
}

// ParsePillar validates a pillar name from user input
func ParsePillar(s string) (PillarName, error) {
	for _, p := range AllPillars {
		if string(p) == s {
			return p, nil
		}
	}
	return "", ErrUnknownPillar
}

// Pillars holds the five pillar scores, each in [0,100]
type Pillars struct {
	IncomeStability     float64 `json:"income_stability"`
	SpendingDiscipline  float64 `json:"spending_discipline"`
	DebtTrajectory      float64 `json:"debt_trajectory"`
	FinancialResilience float64 `json:"financial_resilience"`
	GrowthMomentum      float64 `json:"growth_momentum"`
}

// Get returns the score of the named pillar
func (p Pillars) Get(name PillarName) float64 {
	switch name {
	case PillarIncomeStability:
		return p.IncomeStability
	case PillarSpendingDiscipline:
		return p.SpendingDiscipline
	case PillarDebtTrajectory:
		return p.DebtTrajectory
	case PillarFinancialResilience:
		return p.FinancialResilience
	case PillarGrowthMomentum:
		return p.GrowthMomentum
	}
	return 0
}

// Sub returns the per-pillar difference p - o
func (p Pillars) Sub(o Pillars) Pillars {
	return Pillars{
		IncomeStability:     p.IncomeStability - o.IncomeStability,
		SpendingDiscipline:  p.SpendingDiscipline - o.SpendingDiscipline,
		DebtTrajectory:      p.DebtTrajectory - o.DebtTrajectory,
		FinancialResilience: p.FinancialResilience - o.FinancialResilience,
		GrowthMomentum:      p.GrowthMomentum - o.GrowthMomentum,
	}
}

// Product names a lending product with its own readiness score
type Product string

const (
	ProductPersonal      Product = "personal"
	ProductAuto          Product = "auto"
	ProductMortgage      Product = "mortgage"
	ProductSmallBusiness Product = "small_business"
)

var AllProducts = []Product{ProductPersonal, ProductAuto, ProductMortgage, ProductSmallBusiness}

// Readiness holds the four lending-readiness scores, each in [0,100]
type Readiness struct {
	Personal      float64 `json:"personal"`
	Auto          float64 `json:"auto"`
	Mortgage      float64 `json:"mortgage"`
	SmallBusiness float64 `json:"small_business"`
}

func (r Readiness) Get(p Product) float64 {
	switch p {
	case ProductPersonal:
		return r.Personal
	case ProductAuto:
		return r.Auto
	case ProductMortgage:
		return r.Mortgage
	case ProductSmallBusiness:
		return r.SmallBusiness
	}
	return 0
}

// Set stores the score for a product
func (r *Readiness) Set(p Product, v float64) {
	switch p {
	case ProductPersonal:
		r.Personal = v
	case ProductAuto:
		r.Auto = v
	case ProductMortgage:
		r.Mortgage = v
	case ProductSmallBusiness:
		r.SmallBusiness = v
	}
}

func (r Readiness) Sub(o Readiness) Readiness {
	return Readiness{
		Personal:      r.Personal - o.Personal,
		Auto:          r.Auto - o.Auto,
		Mortgage:      r.Mortgage - o.Mortgage,
		SmallBusiness: r.SmallBusiness - o.SmallBusiness,
	}
}
