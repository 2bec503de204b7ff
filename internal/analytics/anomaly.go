package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/financial-twin-engine/internal/config"
	"github.com/financial-twin-engine/internal/domain/transaction"
)

// Severity grades how far recent spend strays from the baseline
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityAlert   Severity = "alert"
)

func (s Severity) rank() int {
	switch s {
	case SeverityAlert:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	}
	return 0
}

// AnomalyConfig holds the detector thresholds; deviations are relative (0.5 = +50%)
type AnomalyConfig struct {
	RecentMonths   int
	BaselineMonths int
	Info           float64
	Warning        float64
	Alert          float64
	MinAmount      int64
}

// DefaultAnomalyConfig compares last month against the three before it
func DefaultAnomalyConfig() AnomalyConfig {
	return AnomalyConfig{
		RecentMonths:   1,
		BaselineMonths: 3,
		Info:           0.25,
		Warning:        0.5,
		Alert:          1.0,
		MinAmount:      5000,
	}
}

// AnomalyConfigFrom fills unset fields from the defaults
func AnomalyConfigFrom(cfg config.AnalyticsConfig) AnomalyConfig {
	out := DefaultAnomalyConfig()
	if cfg.AnomalyRecentMonths > 0 {
		out.RecentMonths = cfg.AnomalyRecentMonths
	}
	if cfg.AnomalyBaselineMonths > 0 {
		out.BaselineMonths = cfg.AnomalyBaselineMonths
	}
	if cfg.AnomalyInfo > 0 {
		out.Info = cfg.AnomalyInfo
	}
	if cfg.AnomalyWarning > 0 {
		out.Warning = cfg.AnomalyWarning
	}
	if cfg.AnomalyAlert > 0 {
		out.Alert = cfg.AnomalyAlert
	}
	if cfg.AnomalyMinAmount > 0 {
		out.MinAmount = cfg.AnomalyMinAmount
	}
	return out
}

// Anomaly is one category whose recent spend departs from its baseline.
// Averages are monthly, in minor units.
type Anomaly struct {
	Category        transaction.Category `json:"category"`
	Severity        Severity             `json:"severity"`
	RecentAverage   int64                `json:"recent_average"`
	BaselineAverage int64                `json:"baseline_average"`
	// Deviation is (recent-baseline)/baseline; nil when there is no baseline
	Deviation *float64 `json:"deviation"`
}

func (a Anomaly) magnitude() float64 {
	if a.Deviation == nil {
		return math.Inf(1)
	}
	return math.Abs(*a.Deviation)
}

// DetectAnomalies flags outflow categories whose recent monthly average deviates
// from the trailing baseline. Only complete calendar months are compared: the recent
// window is the RecentMonths months before asOf's month and the baseline is the
// BaselineMonths before that. Spend in asOf's own month is ignored. Months without
// spend count as zero.
func DetectAnomalies(txs []transaction.Transaction, asOf time.Time, cfg AnomalyConfig) []Anomaly {
	if cfg.RecentMonths <= 0 || cfg.BaselineMonths <= 0 {
		cfg = DefaultAnomalyConfig()
	}

	end := monthStart(asOf)
	recentStart := end.AddDate(0, -cfg.RecentMonths, 0)
	baselineStart := recentStart.AddDate(0, -cfg.BaselineMonths, 0)

	recent := make(map[transaction.Category]int64)
	baseline := make(map[transaction.Category]int64)
	for _, tx := range txs {
		out := tx.Outflow()
		if out <= 0 || !trackedCategory(tx.ResolvedCategory) {
			continue
		}
		m := tx.MonthKey()
		switch {
		case !m.Before(recentStart) && m.Before(end):
			recent[tx.ResolvedCategory] += out
		case !m.Before(baselineStart) && m.Before(recentStart):
			baseline[tx.ResolvedCategory] += out
		}
	}

	var anomalies []Anomaly
	for cat, total := range recent {
		recentAvg := total / int64(cfg.RecentMonths)
		baseTotal, ok := baseline[cat]
		if !ok || baseTotal == 0 {
			if recentAvg >= cfg.MinAmount {
				anomalies = append(anomalies, Anomaly{
					Category:      cat,
					Severity:      SeverityWarning,
					RecentAverage: recentAvg,
				})
			}
			continue
		}

		baseAvg := baseTotal / int64(cfg.BaselineMonths)
		if baseAvg == 0 {
			continue
		}
		dev := float64(recentAvg-baseAvg) / float64(baseAvg)
		if sev, ok := grade(dev, cfg); ok {
			d := round2(dev)
			anomalies = append(anomalies, Anomaly{
				Category:        cat,
				Severity:        sev,
				RecentAverage:   recentAvg,
				BaselineAverage: baseAvg,
				Deviation:       &d,
			})
		}
	}

	// Categories that went quiet are reported as drops
	for cat, baseTotal := range baseline {
		if _, ok := recent[cat]; ok {
			continue
		}
		baseAvg := baseTotal / int64(cfg.BaselineMonths)
		if baseAvg < cfg.MinAmount {
			continue
		}
		d := -1.0
		if sev, ok := grade(d, cfg); ok {
			anomalies = append(anomalies, Anomaly{
				Category:        cat,
				Severity:        sev,
				BaselineAverage: baseAvg,
				Deviation:       &d,
			})
		}
	}

	sort.Slice(anomalies, func(i, j int) bool {
		a, b := anomalies[i], anomalies[j]
		if a.Severity.rank() != b.Severity.rank() {
			return a.Severity.rank() > b.Severity.rank()
		}
		if a.magnitude() != b.magnitude() {
			return a.magnitude() > b.magnitude()
		}
		return a.Category < b.Category
	})
	return anomalies
}

func grade(dev float64, cfg AnomalyConfig) (Severity, bool) {
	abs := math.Abs(dev)
	switch {
	case abs >= cfg.Alert:
		return SeverityAlert, true
	case abs >= cfg.Warning:
		return SeverityWarning, true
	case abs >= cfg.Info:
		return SeverityInfo, true
	}
	return "", false
}

func trackedCategory(c transaction.Category) bool {
	return c != "" && c != transaction.CategoryIncome && c != transaction.CategoryTransfer
}

func monthStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}
