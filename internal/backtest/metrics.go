package backtest

import (
	"math"

	"github.com/shopspring/decimal"
)

// ComputeMetrics reduces a list of completed trades plus starting capital
// into a Metrics snapshot and the equity curve used for drawdown. Trades
// must be in non-decreasing exit-time order; an empty list is valid and
// yields a full-zero snapshot.
func ComputeMetrics(trades []Trade, startingCapital decimal.Decimal) (Metrics, []EquityPoint) {
	m := ZeroMetrics()
	m.TotalTrades = len(trades)

	curve := make([]EquityPoint, 0, len(trades)+1)
	curve = append(curve, EquityPoint{Equity: startingCapital})

	if len(trades) == 0 {
		return m, curve
	}

	equity := startingCapital
	peak := startingCapital
	maxDD := decimal.Zero
	sumR := decimal.Zero

	for _, t := range trades {
		if t.RealizedPnL.GreaterThan(decimal.Zero) {
			m.WinningTrades++
			m.GrossProfit = m.GrossProfit.Add(t.RealizedPnL)
		} else {
			m.LosingTrades++
			m.GrossLoss = m.GrossLoss.Add(t.RealizedPnL.Neg())
		}
		m.NetProfit = m.NetProfit.Add(t.RealizedPnL)
		m.TotalCommission = m.TotalCommission.Add(t.Commission)
		m.TotalSlippage = m.TotalSlippage.Add(t.Slippage)
		sumR = sumR.Add(t.RMultiple)

		equity = equity.Add(t.RealizedPnL)
		curve = append(curve, EquityPoint{Time: t.ExitTime, Equity: equity})

		if equity.GreaterThan(peak) {
			peak = equity
		}
		if peak.GreaterThan(decimal.Zero) {
			dd := peak.Sub(equity).Div(peak)
			if dd.GreaterThan(maxDD) {
				maxDD = dd
			}
		}
	}

	total := decimal.NewFromInt(int64(len(trades)))
	m.WinRate = decimal.NewFromInt(int64(m.WinningTrades)).Div(total)
	m.AverageRMultiple = sumR.Div(total)
	m.MaxDrawdown = maxDD

	switch {
	case m.GrossLoss.IsZero() && m.GrossProfit.IsZero():
		m.ProfitFactor = decimal.Zero
	case m.GrossLoss.IsZero():
		// Infinite profit factor: every trade won. Sentinel flag, never NaN.
		m.ProfitFactor = decimal.Zero
		m.ProfitFactorInfinite = true
	default:
		m.ProfitFactor = m.GrossProfit.Div(m.GrossLoss)
	}

	m.SharpeRatio = sharpeRatio(trades, startingCapital)

	return m, curve
}

// sharpeRatio is mean per-trade return over population standard deviation of
// returns, with returns measured against starting capital. Zero when fewer
// than 2 trades or zero variance. The square root goes through float64; the
// conversion is deterministic so the idempotence law holds.
func sharpeRatio(trades []Trade, startingCapital decimal.Decimal) decimal.Decimal {
	if len(trades) < 2 || startingCapital.IsZero() {
		return decimal.Zero
	}

	n := decimal.NewFromInt(int64(len(trades)))
	returns := make([]decimal.Decimal, 0, len(trades))
	sum := decimal.Zero
	for _, t := range trades {
		r := t.RealizedPnL.Div(startingCapital)
		returns = append(returns, r)
		sum = sum.Add(r)
	}
	mean := sum.Div(n)

	sumSq := decimal.Zero
	for _, r := range returns {
		d := r.Sub(mean)
		sumSq = sumSq.Add(d.Mul(d))
	}
	variance := sumSq.Div(n)
	if variance.IsZero() {
		return decimal.Zero
	}

	vf, _ := variance.Float64()
	stddev := decimal.NewFromFloat(math.Sqrt(vf))
	if stddev.IsZero() {
		return decimal.Zero
	}
	return mean.Div(stddev)
}
