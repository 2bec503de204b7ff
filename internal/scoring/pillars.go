package scoring

import "math"

const (
	neutralScore       = 50.0
	debtRatioCeiling   = 0.5
	disciplineTrendCap = 10.0
	debtTrendCap       = 15.0
)

// Metrics are the intermediate figures behind the pillars, in major currency units
type Metrics struct {
	MonthsOfData            int     `json:"months_of_data"`
	AvgMonthlyIncome        float64 `json:"avg_monthly_income"`
	AvgMonthlyOutflow       float64 `json:"avg_monthly_outflow"`
	AvgMonthlyDiscretionary float64 `json:"avg_monthly_discretionary"`
	AvgMonthlyDebt          float64 `json:"avg_monthly_debt"`
	IncomeCV                float64 `json:"income_cv"`
	IncomeSlope             float64 `json:"income_slope"`
	DiscretionaryRatio      float64 `json:"discretionary_ratio"`
	DiscretionaryRatioSlope float64 `json:"discretionary_ratio_slope"`
	DebtToIncome            float64 `json:"debt_to_income"`
	DebtSlope               float64 `json:"debt_slope"`
	LiquidBalance           float64 `json:"liquid_balance"`
	NetMonthlyBurn          float64 `json:"net_monthly_burn"`
	RunwayMonths            float64 `json:"runway_months"`
	NetSlope                float64 `json:"net_slope"`
}

// incomeStability rewards low month-to-month variation and a rising income trend
func incomeStability(s monthlySeries, m *Metrics) float64 {
	mu := mean(s.income)
	if mu <= 0 {
		return 0
	}
	cv := stddev(s.income) / mu
	b := slope(s.income)
	m.IncomeCV = cv
	m.IncomeSlope = b

	trend := clamp(0.5+5*b/mu, 0, 1)
	return bounded(80*(1-math.Min(cv, 1)) + 20*trend)
}

// spendingDiscipline scores discretionary spend against income, nudged by its trend
func spendingDiscipline(s monthlySeries, m *Metrics) float64 {
	income := sum(s.income)
	disc := sum(s.discretionary)
	if income <= 0 {
		if disc <= 0 {
			return neutralScore
		}
		return 0
	}

	ratio := disc / income
	m.DiscretionaryRatio = ratio

	var ratios []float64
	for i := range s.months {
		if s.income[i] > 0 {
			ratios = append(ratios, s.discretionary[i]/s.income[i])
		}
	}
	rs := slope(ratios)
	m.DiscretionaryRatioSlope = rs

	base := 100 * (1 - math.Min(ratio, 1))
	adj := clamp(-100*rs, -disciplineTrendCap, disciplineTrendCap)
	return bounded(base + adj)
}

// debtTrajectory scores debt payments relative to income; a falling trend helps
func debtTrajectory(s monthlySeries, m *Metrics) float64 {
	debt := sum(s.debt)
	if debt <= 0 {
		return 100
	}
	income := sum(s.income)
	if income <= 0 {
		return 0
	}

	ratio := debt / income
	m.DebtToIncome = ratio

	var rel float64
	if mu := mean(s.debt); mu > 0 {
		rel = slope(s.debt) / mu
	}
	m.DebtSlope = rel

	base := 100 * (1 - math.Min(ratio/debtRatioCeiling, 1))
	adj := clamp(-50*rel, -debtTrendCap, debtTrendCap)
	return bounded(base + adj)
}

// financialResilience maps runway months onto [0,100] against runwayCap
func financialResilience(s monthlySeries, liquid float64, runwayCap float64, m *Metrics) float64 {
	m.LiquidBalance = liquid
	if s.len() == 0 {
		return 0
	}

	burn := mean(s.outflow) - mean(s.income)
	m.NetMonthlyBurn = burn

	runway := runwayCap
	if burn > 0 {
		runway = liquid / burn
	}
	m.RunwayMonths = round2(runway)
	return bounded(100 * math.Min(runway/runwayCap, 1))
}

// growthMomentum scores the trend of monthly net cash flow
func growthMomentum(s monthlySeries, m *Metrics) float64 {
	if s.len() < 2 {
		return neutralScore
	}
	base := mean(s.income)
	if base <= 0 {
		base = mean(s.outflow)
	}
	if base <= 0 {
		return neutralScore
	}
	rel := slope(s.net()) / base
	m.NetSlope = rel
	return bounded(neutralScore + 250*rel)
}
