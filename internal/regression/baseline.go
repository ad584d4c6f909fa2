package regression

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantlab/stratbench/internal/backtest"
)

// DateRange is the historical window a baseline was established over
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Baseline is a persisted reference metrics snapshot for one symbol. It is
// immutable for the duration of a comparison; the engine never mutates it.
type Baseline struct {
	Symbol        string           `json:"symbol"`
	TolerancePct  decimal.Decimal  `json:"tolerance_pct"`
	EstablishedAt time.Time        `json:"established_at"`
	DateRange     DateRange        `json:"date_range"`
	Metrics       backtest.Metrics `json:"metrics"`
}

// Validate checks the baseline's own invariants
func (b *Baseline) Validate() error {
	if b.Symbol == "" {
		return fmt.Errorf("baseline missing symbol")
	}
	if b.TolerancePct.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("baseline tolerance must be positive, got %s", b.TolerancePct)
	}
	return nil
}

// Encode serializes the baseline as stable JSON. Metric values marshal as
// decimal-precision strings, so snapshots round-trip exactly across runs.
func (b *Baseline) Encode() ([]byte, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return json.MarshalIndent(b, "", "  ")
}

// baselineWire mirrors Baseline with pointer metric fields so a snapshot
// missing a required metric is detected instead of defaulted to zero.
type baselineWire struct {
	Symbol        string     `json:"symbol"`
	TolerancePct  *decimal.Decimal `json:"tolerance_pct"`
	EstablishedAt *time.Time `json:"established_at"`
	DateRange     DateRange  `json:"date_range"`
	Metrics       *struct {
		TotalTrades          *int             `json:"total_trades"`
		WinningTrades        *int             `json:"winning_trades"`
		LosingTrades         *int             `json:"losing_trades"`
		WinRate              *decimal.Decimal `json:"win_rate"`
		AverageRMultiple     *decimal.Decimal `json:"average_r_multiple"`
		ProfitFactor         *decimal.Decimal `json:"profit_factor"`
		ProfitFactorInfinite bool             `json:"profit_factor_infinite"`
		MaxDrawdown          *decimal.Decimal `json:"max_drawdown"`
		SharpeRatio          *decimal.Decimal `json:"sharpe_ratio"`
		GrossProfit          decimal.Decimal  `json:"gross_profit"`
		GrossLoss            decimal.Decimal  `json:"gross_loss"`
		NetProfit            decimal.Decimal  `json:"net_profit"`
		TotalCommission      decimal.Decimal  `json:"total_commission"`
		TotalSlippage        decimal.Decimal  `json:"total_slippage"`
	} `json:"metrics"`
}

// ParseBaseline decodes and validates a baseline snapshot. Malformed JSON or
// a missing required metric field is a load error; no defaults are fabricated.
func ParseBaseline(data []byte) (*Baseline, error) {
	var w baselineWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("malformed baseline JSON: %w", err)
	}

	if w.Symbol == "" {
		return nil, fmt.Errorf("baseline missing symbol")
	}
	if w.TolerancePct == nil {
		return nil, fmt.Errorf("baseline missing tolerance_pct")
	}
	if w.EstablishedAt == nil {
		return nil, fmt.Errorf("baseline missing established_at")
	}
	if w.Metrics == nil {
		return nil, fmt.Errorf("baseline missing metrics")
	}

	required := []struct {
		name string
		ok   bool
	}{
		{"total_trades", w.Metrics.TotalTrades != nil},
		{"winning_trades", w.Metrics.WinningTrades != nil},
		{"losing_trades", w.Metrics.LosingTrades != nil},
		{"win_rate", w.Metrics.WinRate != nil},
		{"average_r_multiple", w.Metrics.AverageRMultiple != nil},
		{"profit_factor", w.Metrics.ProfitFactor != nil},
		{"max_drawdown", w.Metrics.MaxDrawdown != nil},
		{"sharpe_ratio", w.Metrics.SharpeRatio != nil},
	}
	for _, f := range required {
		if !f.ok {
			return nil, fmt.Errorf("baseline missing required metric field %q", f.name)
		}
	}

	b := &Baseline{
		Symbol:        w.Symbol,
		TolerancePct:  *w.TolerancePct,
		EstablishedAt: *w.EstablishedAt,
		DateRange:     w.DateRange,
		Metrics: backtest.Metrics{
			TotalTrades:          *w.Metrics.TotalTrades,
			WinningTrades:        *w.Metrics.WinningTrades,
			LosingTrades:         *w.Metrics.LosingTrades,
			WinRate:              *w.Metrics.WinRate,
			AverageRMultiple:     *w.Metrics.AverageRMultiple,
			ProfitFactor:         *w.Metrics.ProfitFactor,
			ProfitFactorInfinite: w.Metrics.ProfitFactorInfinite,
			MaxDrawdown:          *w.Metrics.MaxDrawdown,
			SharpeRatio:          *w.Metrics.SharpeRatio,
			GrossProfit:          w.Metrics.GrossProfit,
			GrossLoss:            w.Metrics.GrossLoss,
			NetProfit:            w.Metrics.NetProfit,
			TotalCommission:      w.Metrics.TotalCommission,
			TotalSlippage:        w.Metrics.TotalSlippage,
		},
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}
