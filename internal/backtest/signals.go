package backtest

import (
	"github.com/shopspring/decimal"
)

// CrossoverSource is a deterministic moving-average crossover signal source
// used for demo runs and tests. A fast-over-slow cross emits a market BUY,
// the opposite cross a market SELL. Production callers supply their own
// SignalSource; the run driver makes no assumptions beyond the interface.
type CrossoverSource struct {
	fast, slow int
	quantity   decimal.Decimal

	closes []decimal.Decimal
	long   bool
}

// NewCrossoverSource creates a crossover source with the given SMA periods
func NewCrossoverSource(fast, slow int, quantity decimal.Decimal) *CrossoverSource {
	if fast < 1 {
		fast = 1
	}
	if slow <= fast {
		slow = fast + 1
	}
	return &CrossoverSource{fast: fast, slow: slow, quantity: quantity}
}

// Orders implements SignalSource
func (c *CrossoverSource) Orders(i int, bar PriceBar) []Order {
	c.closes = append(c.closes, bar.Close)
	if len(c.closes) < c.slow+1 {
		return nil
	}

	fastNow := sma(c.closes, c.fast, 0)
	slowNow := sma(c.closes, c.slow, 0)
	fastPrev := sma(c.closes, c.fast, 1)
	slowPrev := sma(c.closes, c.slow, 1)

	crossedUp := fastPrev.LessThanOrEqual(slowPrev) && fastNow.GreaterThan(slowNow)
	crossedDown := fastPrev.GreaterThanOrEqual(slowPrev) && fastNow.LessThan(slowNow)

	switch {
	case crossedUp && !c.long:
		c.long = true
		return []Order{{Side: SideBuy, Kind: OrderMarket, Quantity: c.quantity}}
	case crossedDown && c.long:
		c.long = false
		return []Order{{Side: SideSell, Kind: OrderMarket, Quantity: c.quantity}}
	}
	return nil
}

// sma computes the simple moving average of the last n closes, offset bars
// back from the most recent one.
func sma(closes []decimal.Decimal, n, offset int) decimal.Decimal {
	end := len(closes) - offset
	sum := decimal.Zero
	for _, c := range closes[end-n : end] {
		sum = sum.Add(c)
	}
	return sum.Div(decimal.NewFromInt(int64(n)))
}
