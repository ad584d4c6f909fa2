package data

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/quantlab/stratbench/internal/backtest"
)

// CachedLoader wraps a Loader with a Redis series cache so repeated
// walk-forward windows over the same symbol do not re-read source data.
// Cache misses and Redis failures fall through to the inner loader.
type CachedLoader struct {
	inner  Loader
	client *redis.Client
	ttl    time.Duration
}

// NewCachedLoader creates a caching loader
func NewCachedLoader(inner Loader, client *redis.Client, ttl time.Duration) *CachedLoader {
	return &CachedLoader{inner: inner, client: client, ttl: ttl}
}

// Bars implements Loader
func (c *CachedLoader) Bars(ctx context.Context, symbol string, start, end time.Time) ([]backtest.PriceBar, error) {
	key := seriesKey(symbol, start, end)

	cached, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var bars []backtest.PriceBar
		if err := json.Unmarshal(cached, &bars); err == nil {
			return bars, nil
		}
		log.Warn().Str("key", key).Msg("discarding malformed cached bar series")
	} else if err != redis.Nil {
		log.Warn().Err(err).Str("key", key).Msg("bar cache unavailable, reading source")
	}

	bars, err := c.inner.Bars(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(bars); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to populate bar cache")
		}
	}

	return bars, nil
}

func seriesKey(symbol string, start, end time.Time) string {
	return fmt.Sprintf("stratbench:bars:%s:%d:%d", symbol, start.Unix(), end.Unix())
}
