package backtest

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side identifies the direction of an order or position
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderKind identifies the execution style of an order
type OrderKind string

const (
	OrderMarket OrderKind = "MARKET"
	OrderLimit  OrderKind = "LIMIT"
)

var (
	// ErrInvalidOrder indicates an order that violates its input contract
	// (non-positive quantity, limit order without a limit price)
	ErrInvalidOrder = errors.New("invalid order")

	// ErrUnsupportedOrderKind indicates an order kind the simulator does not know
	ErrUnsupportedOrderKind = errors.New("unsupported order kind")
)

// PriceBar represents one OHLCV observation
type PriceBar struct {
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    int64           `json:"volume"`
}

// Validate checks the OHLC range invariants
func (b PriceBar) Validate() error {
	if b.High.LessThan(b.Open) || b.High.LessThan(b.Close) || b.High.LessThan(b.Low) {
		return fmt.Errorf("bar at %s: high %s below open/close/low", b.Timestamp.Format(time.RFC3339), b.High)
	}
	if b.Low.GreaterThan(b.Open) || b.Low.GreaterThan(b.Close) {
		return fmt.Errorf("bar at %s: low %s above open/close", b.Timestamp.Format(time.RFC3339), b.Low)
	}
	return nil
}

// Order represents a pending buy/sell instruction from the signal source
type Order struct {
	Side     Side            `json:"side"`
	Kind     OrderKind       `json:"kind"`
	Quantity decimal.Decimal `json:"quantity"`

	// LimitPrice is required iff Kind == OrderLimit
	LimitPrice *decimal.Decimal `json:"limit_price,omitempty"`

	// StopPrice, when set, is the risk basis for R-multiple computation
	StopPrice *decimal.Decimal `json:"stop_price,omitempty"`
}

// Fill represents the result of simulating an Order against a PriceBar.
// Filled == false means the order did not trigger and remains pending.
type Fill struct {
	Filled       bool            `json:"filled"`
	FillPrice    decimal.Decimal `json:"fill_price"`
	BasePrice    decimal.Decimal `json:"base_price"`
	SlippagePct  decimal.Decimal `json:"slippage_pct"`
	SlippageCost decimal.Decimal `json:"slippage_cost"`
	Commission   decimal.Decimal `json:"commission"`
}

// Trade represents a closed round-trip position
type Trade struct {
	Symbol      string          `json:"symbol"`
	Side        Side            `json:"side"` // direction of the position (BUY = long)
	EntryTime   time.Time       `json:"entry_time"`
	ExitTime    time.Time       `json:"exit_time"`
	EntryPrice  decimal.Decimal `json:"entry_price"`
	ExitPrice   decimal.Decimal `json:"exit_price"`
	Quantity    decimal.Decimal `json:"quantity"`
	Commission  decimal.Decimal `json:"commission"`    // both legs
	Slippage    decimal.Decimal `json:"slippage"`      // both legs, informational
	RealizedPnL decimal.Decimal `json:"realized_pnl"`  // price move * quantity - commission
	RMultiple   decimal.Decimal `json:"r_multiple"`    // RealizedPnL / initial risk
}

// EquityPoint is one sample of the running equity curve
type EquityPoint struct {
	Time   time.Time       `json:"time"`
	Equity decimal.Decimal `json:"equity"`
}

// Metrics represents an aggregate performance snapshot for one run
type Metrics struct {
	TotalTrades          int             `json:"total_trades"`
	WinningTrades        int             `json:"winning_trades"`
	LosingTrades         int             `json:"losing_trades"`
	WinRate              decimal.Decimal `json:"win_rate"`
	AverageRMultiple     decimal.Decimal `json:"average_r_multiple"`
	ProfitFactor         decimal.Decimal `json:"profit_factor"`
	ProfitFactorInfinite bool            `json:"profit_factor_infinite"`
	MaxDrawdown          decimal.Decimal `json:"max_drawdown"`
	SharpeRatio          decimal.Decimal `json:"sharpe_ratio"`
	GrossProfit          decimal.Decimal `json:"gross_profit"`
	GrossLoss            decimal.Decimal `json:"gross_loss"`
	NetProfit            decimal.Decimal `json:"net_profit"`
	TotalCommission      decimal.Decimal `json:"total_commission"`
	TotalSlippage        decimal.Decimal `json:"total_slippage"`
}

// ZeroMetrics returns the snapshot for a run that produced no trades
func ZeroMetrics() Metrics {
	z := decimal.Zero
	return Metrics{
		WinRate:          z,
		AverageRMultiple: z,
		ProfitFactor:     z,
		MaxDrawdown:      z,
		SharpeRatio:      z,
		GrossProfit:      z,
		GrossLoss:        z,
		NetProfit:        z,
		TotalCommission:  z,
		TotalSlippage:    z,
	}
}
