// Package store persists baseline snapshots and walk-forward results behind
// narrow interfaces. Handles are acquired per call with context timeouts and
// never held across a backtest computation.
package store

import (
	"context"
	"errors"

	"github.com/quantlab/stratbench/internal/regression"
	"github.com/quantlab/stratbench/internal/walkforward"
)

// ErrNotFound indicates a missing baseline or result, distinct from a load
// failure.
var ErrNotFound = errors.New("not found")

// BaselineStore persists reference metric snapshots per symbol
type BaselineStore interface {
	// Load returns the baseline for symbol, or ErrNotFound
	Load(ctx context.Context, symbol string) (*regression.Baseline, error)

	// Save writes or replaces the baseline for its symbol
	Save(ctx context.Context, baseline *regression.Baseline) error
}

// WalkForwardStore persists walk-forward run results
type WalkForwardStore interface {
	// Save writes a result and returns its generated id
	Save(ctx context.Context, result *walkforward.Result) (string, error)

	// Load returns the result with the given id, or ErrNotFound
	Load(ctx context.Context, id string) (*walkforward.Result, error)
}
