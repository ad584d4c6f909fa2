package backtest

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SlippageConfig parameterizes the liquidity-aware slippage model.
// BasePct is a fraction (0.0005 = 5 bps). When a bar's volume is below
// LowVolumeThreshold the percentage is scaled by LowVolumeMultiplier.
type SlippageConfig struct {
	BasePct             decimal.Decimal
	LowVolumeThreshold  int64
	LowVolumeMultiplier decimal.Decimal
}

// CommissionConfig parameterizes the commission schedule: per-share rate
// plus a percentage of notional, floored at Minimum per order.
type CommissionConfig struct {
	PerShare decimal.Decimal
	Pct      decimal.Decimal
	Minimum  decimal.Decimal
}

// FillSimulator turns one pending order plus the next price bar into an
// executed fill or an explicit "not filled" result.
type FillSimulator struct {
	slippage   SlippageConfig
	commission CommissionConfig
}

// NewFillSimulator creates a fill simulator with the given cost models
func NewFillSimulator(slippage SlippageConfig, commission CommissionConfig) *FillSimulator {
	return &FillSimulator{slippage: slippage, commission: commission}
}

// Simulate executes order against next, the bar immediately following signal
// generation. Market orders always fill at the open adjusted for slippage.
// Limit orders use conservative semantics: a triggered BUY fills at the bar
// high, a triggered SELL at the bar low, so simulated performance is never
// overstated.
func (s *FillSimulator) Simulate(order Order, next PriceBar) (Fill, error) {
	if order.Quantity.LessThanOrEqual(decimal.Zero) {
		return Fill{}, fmt.Errorf("%w: quantity %s must be positive", ErrInvalidOrder, order.Quantity)
	}
	if order.Side != SideBuy && order.Side != SideSell {
		return Fill{}, fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, order.Side)
	}

	switch order.Kind {
	case OrderMarket:
		return s.fillMarket(order, next), nil
	case OrderLimit:
		return s.fillLimit(order, next)
	default:
		return Fill{}, fmt.Errorf("%w: %q", ErrUnsupportedOrderKind, order.Kind)
	}
}

func (s *FillSimulator) fillMarket(order Order, next PriceBar) Fill {
	base := next.Open
	pct := s.slippage.BasePct
	if next.Volume < s.slippage.LowVolumeThreshold {
		pct = pct.Mul(s.slippage.LowVolumeMultiplier)
	}

	var price decimal.Decimal
	if order.Side == SideBuy {
		price = base.Mul(decimal.NewFromInt(1).Add(pct))
	} else {
		price = base.Mul(decimal.NewFromInt(1).Sub(pct))
	}

	return Fill{
		Filled:       true,
		FillPrice:    price,
		BasePrice:    base,
		SlippagePct:  pct,
		SlippageCost: price.Sub(base).Abs().Mul(order.Quantity),
		Commission:   s.commissionFor(price, order.Quantity),
	}
}

func (s *FillSimulator) fillLimit(order Order, next PriceBar) (Fill, error) {
	if order.LimitPrice == nil {
		return Fill{}, fmt.Errorf("%w: limit order missing limit price", ErrInvalidOrder)
	}
	limit := *order.LimitPrice

	var triggered bool
	var price decimal.Decimal
	if order.Side == SideBuy {
		// Bar touched the limit; assume the worst fill for the buyer.
		triggered = next.Low.LessThanOrEqual(limit)
		price = next.High
	} else {
		triggered = next.High.GreaterThanOrEqual(limit)
		price = next.Low
	}

	if !triggered {
		return Fill{Filled: false}, nil
	}

	return Fill{
		Filled:       true,
		FillPrice:    price,
		BasePrice:    limit,
		SlippagePct:  decimal.Zero,
		SlippageCost: decimal.Zero,
		Commission:   s.commissionFor(price, order.Quantity),
	}, nil
}

func (s *FillSimulator) commissionFor(price, quantity decimal.Decimal) decimal.Decimal {
	c := s.commission.PerShare.Mul(quantity).Add(s.commission.Pct.Mul(price).Mul(quantity))
	if c.LessThan(s.commission.Minimum) {
		return s.commission.Minimum
	}
	return c
}
