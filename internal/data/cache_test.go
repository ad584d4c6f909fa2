package data

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/stratbench/internal/backtest"
)

// countingLoader records how many times the source was read
type countingLoader struct {
	bars  []backtest.PriceBar
	calls int
}

func (l *countingLoader) Bars(_ context.Context, _ string, _, _ time.Time) ([]backtest.PriceBar, error) {
	l.calls++
	return l.bars, nil
}

func testCacheBars() []backtest.PriceBar {
	return []backtest.PriceBar{{
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Open:      decimal.RequireFromString("100"),
		High:      decimal.RequireFromString("105"),
		Low:       decimal.RequireFromString("99"),
		Close:     decimal.RequireFromString("104"),
		Volume:    150000,
	}}
}

func TestCachedLoaderMissReadsSourceAndPopulates(t *testing.T) {
	client, mock := redismock.NewClientMock()
	inner := &countingLoader{bars: testCacheBars()}
	loader := NewCachedLoader(inner, client, time.Hour)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	key := seriesKey("BTC-USD", start, end)

	payload, err := json.Marshal(inner.bars)
	require.NoError(t, err)

	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, payload, time.Hour).SetVal("OK")

	bars, err := loader.Bars(context.Background(), "BTC-USD", start, end)
	require.NoError(t, err)
	assert.Len(t, bars, 1)
	assert.Equal(t, 1, inner.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedLoaderHitSkipsSource(t *testing.T) {
	client, mock := redismock.NewClientMock()
	inner := &countingLoader{bars: testCacheBars()}
	loader := NewCachedLoader(inner, client, time.Hour)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	key := seriesKey("BTC-USD", start, end)

	payload, err := json.Marshal(testCacheBars())
	require.NoError(t, err)
	mock.ExpectGet(key).SetVal(string(payload))

	bars, err := loader.Bars(context.Background(), "BTC-USD", start, end)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.True(t, bars[0].Close.Equal(decimal.RequireFromString("104")))
	assert.Equal(t, 0, inner.calls, "cache hit must not touch the source")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedLoaderFallsThroughOnRedisError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	inner := &countingLoader{bars: testCacheBars()}
	loader := NewCachedLoader(inner, client, time.Hour)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	key := seriesKey("BTC-USD", start, end)

	payload, err := json.Marshal(inner.bars)
	require.NoError(t, err)

	mock.ExpectGet(key).SetErr(assert.AnError)
	mock.ExpectSet(key, payload, time.Hour).SetErr(assert.AnError)

	bars, err := loader.Bars(context.Background(), "BTC-USD", start, end)
	require.NoError(t, err)
	assert.Len(t, bars, 1)
	assert.Equal(t, 1, inner.calls)
}
