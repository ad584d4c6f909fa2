package regression

import (
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/quantlab/stratbench/internal/backtest"
	"github.com/quantlab/stratbench/internal/telemetry"
)

// Verdict is the outcome of a baseline comparison. "No baseline" is a
// distinct verdict, never conflated with a regression.
type Verdict string

const (
	VerdictNoRegression Verdict = "no_regression"
	VerdictRegression   Verdict = "regression"
	VerdictNoBaseline   Verdict = "no_baseline"
)

// MetricDelta is the per-metric comparison between baseline and current
type MetricDelta struct {
	Name      string          `json:"name"`
	Baseline  decimal.Decimal `json:"baseline"`
	Current   decimal.Decimal `json:"current"`
	ChangePct decimal.Decimal `json:"change_pct"` // signed percent change from baseline
	Degraded  bool            `json:"degraded"`
}

// Report holds the full diagnostic output of a comparison, never just a
// boolean.
type Report struct {
	Symbol          string          `json:"symbol"`
	Verdict         Verdict         `json:"verdict"`
	TolerancePct    decimal.Decimal `json:"tolerance_pct"`
	Deltas          []MetricDelta   `json:"deltas"`
	DegradedMetrics []string        `json:"degraded_metrics"`
}

// trackedMetric describes one compared metric and its favorable direction
type trackedMetric struct {
	name           string
	higherIsBetter bool
	value          func(backtest.Metrics) decimal.Decimal
	infinite       func(backtest.Metrics) bool
}

var trackedMetrics = []trackedMetric{
	{"win_rate", true, func(m backtest.Metrics) decimal.Decimal { return m.WinRate }, nil},
	{"average_r_multiple", true, func(m backtest.Metrics) decimal.Decimal { return m.AverageRMultiple }, nil},
	{"profit_factor", true, func(m backtest.Metrics) decimal.Decimal { return m.ProfitFactor },
		func(m backtest.Metrics) bool { return m.ProfitFactorInfinite }},
	{"max_drawdown", false, func(m backtest.Metrics) decimal.Decimal { return m.MaxDrawdown }, nil},
	{"sharpe_ratio", true, func(m backtest.Metrics) decimal.Decimal { return m.SharpeRatio }, nil},
}

// Detect compares a fresh metrics snapshot against a persisted baseline. A
// nil baseline yields VerdictNoBaseline. A metric is degraded when its change
// is unfavorable beyond the baseline's tolerance; identical snapshots always
// yield no regression.
func Detect(symbol string, current backtest.Metrics, baseline *Baseline) Report {
	if baseline == nil {
		telemetry.RegressionChecks.WithLabelValues(string(VerdictNoBaseline)).Inc()
		return Report{Symbol: symbol, Verdict: VerdictNoBaseline}
	}

	report := Report{
		Symbol:       symbol,
		Verdict:      VerdictNoRegression,
		TolerancePct: baseline.TolerancePct,
	}

	for _, tm := range trackedMetrics {
		delta := compareMetric(tm, baseline.Metrics, current, baseline.TolerancePct)
		report.Deltas = append(report.Deltas, delta)
		if delta.Degraded {
			report.DegradedMetrics = append(report.DegradedMetrics, delta.Name)
		}
	}

	if len(report.DegradedMetrics) > 0 {
		report.Verdict = VerdictRegression
		log.Warn().
			Str("symbol", symbol).
			Strs("degraded_metrics", report.DegradedMetrics).
			Msg("regression detected against baseline")
	}

	telemetry.RegressionChecks.WithLabelValues(string(report.Verdict)).Inc()
	return report
}

func compareMetric(tm trackedMetric, base, cur backtest.Metrics, tolerancePct decimal.Decimal) MetricDelta {
	baseVal := tm.value(base)
	curVal := tm.value(cur)
	delta := MetricDelta{Name: tm.name, Baseline: baseVal, Current: curVal}

	baseInf := tm.infinite != nil && tm.infinite(base)
	curInf := tm.infinite != nil && tm.infinite(cur)

	hundred := decimal.NewFromInt(100)

	switch {
	case baseInf && curInf:
		// Both infinite: unchanged.
		delta.ChangePct = decimal.Zero
	case baseInf && !curInf:
		// Fell from infinite to finite: maximal unfavorable change.
		delta.ChangePct = hundred.Neg()
		delta.Degraded = tm.higherIsBetter
	case !baseInf && curInf:
		delta.ChangePct = hundred
		delta.Degraded = !tm.higherIsBetter
	case baseVal.IsZero():
		if curVal.IsZero() {
			delta.ChangePct = decimal.Zero
		} else {
			// Percent change from zero is undefined; any movement away from
			// a zero baseline in the unfavorable direction is degraded.
			delta.ChangePct = hundred
			if curVal.GreaterThan(decimal.Zero) {
				delta.Degraded = !tm.higherIsBetter
			} else {
				delta.ChangePct = hundred.Neg()
				delta.Degraded = tm.higherIsBetter
			}
		}
	default:
		delta.ChangePct = curVal.Sub(baseVal).Div(baseVal.Abs()).Mul(hundred)
		if tm.higherIsBetter {
			delta.Degraded = delta.ChangePct.LessThan(tolerancePct.Neg())
		} else {
			delta.Degraded = delta.ChangePct.GreaterThan(tolerancePct)
		}
	}

	return delta
}
