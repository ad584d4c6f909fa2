package backtest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedSource struct {
	orders map[int][]Order
}

func (s scriptedSource) Orders(i int, _ PriceBar) []Order {
	return s.orders[i]
}

func barAt(ts time.Time, open, high, low, close string) PriceBar {
	return PriceBar{
		Timestamp: ts,
		Open:      d(open), High: d(high), Low: d(low), Close: d(close),
		Volume: 500000,
	}
}

func frictionlessSimulator() *FillSimulator {
	return NewFillSimulator(
		SlippageConfig{BasePct: decimal.Zero, LowVolumeThreshold: 0, LowVolumeMultiplier: decimal.NewFromInt(1)},
		CommissionConfig{},
	)
}

func testBars(n int) []PriceBar {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	prices := []struct{ o, h, l, c string }{
		{"100", "101", "99", "100"},
		{"100", "102", "99", "101"},
		{"101", "103", "100", "102"},
		{"110", "111", "109", "110"},
		{"110", "112", "108", "111"},
		{"111", "113", "110", "112"},
	}
	bars := make([]PriceBar, 0, n)
	for i := 0; i < n; i++ {
		p := prices[i%len(prices)]
		bars = append(bars, barAt(base.AddDate(0, 0, i), p.o, p.h, p.l, p.c))
	}
	return bars
}

func runConfig() RunConfig {
	return RunConfig{
		Symbol:          "BTC-USD",
		StartingCapital: d("100000"),
		DefaultRiskPct:  d("0.01"),
	}
}

func TestRunRoundTripTrade(t *testing.T) {
	signals := scriptedSource{orders: map[int][]Order{
		0: {{Side: SideBuy, Kind: OrderMarket, Quantity: d("10")}},
		2: {{Side: SideSell, Kind: OrderMarket, Quantity: d("10")}},
	}}
	runner := NewRunner(runConfig(), frictionlessSimulator(), signals)

	result, err := runner.Run(testBars(6))
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	// Entry at bar 1 open (100), exit at bar 3 open (110), no costs.
	assert.True(t, trade.EntryPrice.Equal(d("100")), "got %s", trade.EntryPrice)
	assert.True(t, trade.ExitPrice.Equal(d("110")), "got %s", trade.ExitPrice)
	assert.True(t, trade.RealizedPnL.Equal(d("100")), "got %s", trade.RealizedPnL)
	// Risk basis 1% of entry: 1.00 per unit over 10 units; R = 100 / 10.
	assert.True(t, trade.RMultiple.Equal(d("10")), "got %s", trade.RMultiple)
	assert.Equal(t, 1, result.Metrics.TotalTrades)
}

func TestRunIsDeterministic(t *testing.T) {
	bars := testBars(6)
	script := map[int][]Order{
		0: {{Side: SideBuy, Kind: OrderMarket, Quantity: d("10")}},
		3: {{Side: SideSell, Kind: OrderMarket, Quantity: d("10")}},
	}

	first, err := NewRunner(runConfig(), testSimulator(), scriptedSource{orders: script}).Run(bars)
	require.NoError(t, err)
	second, err := NewRunner(runConfig(), testSimulator(), scriptedSource{orders: script}).Run(bars)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRunZeroTradesIsValid(t *testing.T) {
	runner := NewRunner(runConfig(), testSimulator(), scriptedSource{})

	result, err := runner.Run(testBars(4))
	require.NoError(t, err)

	assert.Empty(t, result.Trades)
	assert.Equal(t, 0, result.Metrics.TotalTrades)
	assert.True(t, result.Metrics.WinRate.IsZero())
}

func TestRunLimitOrderStaysPendingUntilTouched(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := []PriceBar{
		barAt(base, "100", "101", "99", "100"),
		barAt(base.AddDate(0, 0, 1), "100", "102", "98", "101"), // low above limit
		barAt(base.AddDate(0, 0, 2), "101", "103", "97", "102"), // low above limit
		barAt(base.AddDate(0, 0, 3), "96", "99", "94", "98"),    // touched
	}
	signals := scriptedSource{orders: map[int][]Order{
		0: {{Side: SideBuy, Kind: OrderLimit, Quantity: d("10"), LimitPrice: dp("95")}},
	}}
	runner := NewRunner(runConfig(), frictionlessSimulator(), signals)

	result, err := runner.Run(bars)
	require.NoError(t, err)

	// Position opened on bar 3 and liquidated at its close.
	require.Len(t, result.Trades, 1)
	assert.True(t, result.Trades[0].EntryPrice.Equal(d("99")), "conservative fill at bar high, got %s", result.Trades[0].EntryPrice)
	assert.True(t, result.Trades[0].ExitPrice.Equal(d("98")))
}

func TestRunStopPriceDrivesRMultiple(t *testing.T) {
	stop := d("95")
	signals := scriptedSource{orders: map[int][]Order{
		0: {{Side: SideBuy, Kind: OrderMarket, Quantity: d("10"), StopPrice: &stop}},
		2: {{Side: SideSell, Kind: OrderMarket, Quantity: d("10")}},
	}}
	runner := NewRunner(runConfig(), frictionlessSimulator(), signals)

	result, err := runner.Run(testBars(6))
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	// Entry 100, stop 95: risk 5 per unit over 10 units = 50; pnl 100, R = 2.
	assert.True(t, result.Trades[0].RMultiple.Equal(d("2")), "got %s", result.Trades[0].RMultiple)
}

func TestRunTradesOrderedByExitTime(t *testing.T) {
	signals := scriptedSource{orders: map[int][]Order{
		0: {{Side: SideBuy, Kind: OrderMarket, Quantity: d("10")}},
		1: {{Side: SideSell, Kind: OrderMarket, Quantity: d("10")}},
		2: {{Side: SideBuy, Kind: OrderMarket, Quantity: d("10")}},
		3: {{Side: SideSell, Kind: OrderMarket, Quantity: d("10")}},
	}}
	runner := NewRunner(runConfig(), frictionlessSimulator(), signals)

	result, err := runner.Run(testBars(6))
	require.NoError(t, err)

	require.Len(t, result.Trades, 2)
	for i := 1; i < len(result.Trades); i++ {
		assert.False(t, result.Trades[i].ExitTime.Before(result.Trades[i-1].ExitTime))
	}
}

func TestRunOpenPositionLiquidatedAtFinalClose(t *testing.T) {
	signals := scriptedSource{orders: map[int][]Order{
		0: {{Side: SideBuy, Kind: OrderMarket, Quantity: d("10")}},
	}}
	runner := NewRunner(runConfig(), frictionlessSimulator(), signals)

	bars := testBars(4)
	result, err := runner.Run(bars)
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	assert.True(t, result.Trades[0].ExitPrice.Equal(bars[3].Close))
	assert.Equal(t, bars[3].Timestamp, result.Trades[0].ExitTime)
}

func TestRunRangeFiltersInclusive(t *testing.T) {
	bars := testBars(6)
	runner := NewRunner(runConfig(), frictionlessSimulator(), scriptedSource{})

	result, err := runner.RunRange(bars, bars[1].Timestamp, bars[4].Timestamp)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 0, result.Metrics.TotalTrades)
}

func TestRunRejectsInvalidBar(t *testing.T) {
	bars := testBars(2)
	bars[1].High = d("1") // below open/close/low
	runner := NewRunner(runConfig(), frictionlessSimulator(), scriptedSource{})

	_, err := runner.Run(bars)
	assert.Error(t, err)
}
