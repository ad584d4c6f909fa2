package regression

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/stratbench/internal/backtest"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleMetrics() backtest.Metrics {
	m := backtest.ZeroMetrics()
	m.TotalTrades = 50
	m.WinningTrades = 30
	m.LosingTrades = 20
	m.WinRate = d("0.60")
	m.AverageRMultiple = d("0.45")
	m.ProfitFactor = d("1.80")
	m.MaxDrawdown = d("0.12")
	m.SharpeRatio = d("1.10")
	return m
}

func sampleBaseline() *Baseline {
	return &Baseline{
		Symbol:        "BTC-USD",
		TolerancePct:  d("5.0"),
		EstablishedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		DateRange: DateRange{
			Start: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		Metrics: sampleMetrics(),
	}
}

// Self-comparison identity law: a snapshot never regresses against itself.
func TestSelfComparisonIsNoRegression(t *testing.T) {
	baseline := sampleBaseline()
	report := Detect("BTC-USD", baseline.Metrics, baseline)

	assert.Equal(t, VerdictNoRegression, report.Verdict)
	assert.Empty(t, report.DegradedMetrics)
	for _, delta := range report.Deltas {
		assert.True(t, delta.ChangePct.IsZero(), "%s changed: %s", delta.Name, delta.ChangePct)
		assert.False(t, delta.Degraded)
	}
}

func TestNilBaselineIsDistinctVerdict(t *testing.T) {
	report := Detect("BTC-USD", sampleMetrics(), nil)
	assert.Equal(t, VerdictNoBaseline, report.Verdict)
	assert.Empty(t, report.DegradedMetrics)
}

func TestWinRateDropBeyondToleranceDegrades(t *testing.T) {
	current := sampleMetrics()
	current.WinRate = d("0.55") // 8.3% drop > 5% tolerance

	report := Detect("BTC-USD", current, sampleBaseline())

	assert.Equal(t, VerdictRegression, report.Verdict)
	assert.Contains(t, report.DegradedMetrics, "win_rate")
}

func TestWinRateDropWithinToleranceIsFine(t *testing.T) {
	current := sampleMetrics()
	current.WinRate = d("0.585") // 2.5% drop <= 5% tolerance

	report := Detect("BTC-USD", current, sampleBaseline())

	assert.Equal(t, VerdictNoRegression, report.Verdict)
	assert.Empty(t, report.DegradedMetrics)
}

func TestDrawdownIncreaseDegrades(t *testing.T) {
	current := sampleMetrics()
	current.MaxDrawdown = d("0.15") // +25% > 5% tolerance

	report := Detect("BTC-USD", current, sampleBaseline())

	assert.Equal(t, VerdictRegression, report.Verdict)
	assert.Contains(t, report.DegradedMetrics, "max_drawdown")
}

func TestDrawdownDecreaseIsImprovement(t *testing.T) {
	current := sampleMetrics()
	current.MaxDrawdown = d("0.05")

	report := Detect("BTC-USD", current, sampleBaseline())
	assert.NotContains(t, report.DegradedMetrics, "max_drawdown")
}

func TestMultipleDegradedMetricsAllReported(t *testing.T) {
	current := sampleMetrics()
	current.WinRate = d("0.40")
	current.SharpeRatio = d("0.50")
	current.ProfitFactor = d("1.20")

	report := Detect("BTC-USD", current, sampleBaseline())

	require.Equal(t, VerdictRegression, report.Verdict)
	assert.ElementsMatch(t, []string{"win_rate", "sharpe_ratio", "profit_factor"}, report.DegradedMetrics)
}

func TestProfitFactorInfiniteTransitions(t *testing.T) {
	baseline := sampleBaseline()
	baseline.Metrics.ProfitFactor = decimal.Zero
	baseline.Metrics.ProfitFactorInfinite = true

	// Infinite to finite is a decrease.
	current := sampleMetrics()
	report := Detect("BTC-USD", current, baseline)
	assert.Contains(t, report.DegradedMetrics, "profit_factor")

	// Infinite to infinite is unchanged.
	current.ProfitFactor = decimal.Zero
	current.ProfitFactorInfinite = true
	report = Detect("BTC-USD", current, baseline)
	assert.NotContains(t, report.DegradedMetrics, "profit_factor")
}

func TestZeroBaselineMetricHandled(t *testing.T) {
	baseline := sampleBaseline()
	baseline.Metrics.SharpeRatio = decimal.Zero

	// Zero to zero: unchanged.
	current := sampleMetrics()
	current.SharpeRatio = decimal.Zero
	report := Detect("BTC-USD", current, baseline)
	assert.NotContains(t, report.DegradedMetrics, "sharpe_ratio")

	// Zero to negative: unfavorable movement away from a zero baseline.
	current.SharpeRatio = d("-0.5")
	report = Detect("BTC-USD", current, baseline)
	assert.Contains(t, report.DegradedMetrics, "sharpe_ratio")
}
