package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/quantlab/stratbench/internal/backtest"
	"github.com/quantlab/stratbench/internal/config"
	"github.com/quantlab/stratbench/internal/data"
	"github.com/quantlab/stratbench/internal/store"
	"github.com/quantlab/stratbench/internal/telemetry"
)

// Reference crossover parameters for demo runs; production strategies plug in
// their own SignalSource behind the Backtester interface.
const (
	crossoverFast = 10
	crossoverSlow = 30
)

var crossoverQuantity = decimal.NewFromInt(100)

// seriesBacktester glues the bar loader, fill simulator and run driver into
// the walkforward.Backtester shape.
type seriesBacktester struct {
	loader data.Loader
	cfg    *config.Config
}

func (b *seriesBacktester) Run(ctx context.Context, symbol string, start, end time.Time) (backtest.Metrics, error) {
	result, err := b.run(ctx, symbol, start, end)
	if err != nil {
		return backtest.Metrics{}, err
	}
	return result.Metrics, nil
}

func (b *seriesBacktester) run(ctx context.Context, symbol string, start, end time.Time) (*backtest.RunResult, error) {
	bars, err := b.loader.Bars(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	sim := backtest.NewFillSimulator(b.cfg.Slippage.Model(), b.cfg.Commission.Schedule())
	signals := backtest.NewCrossoverSource(crossoverFast, crossoverSlow, crossoverQuantity)
	runner := backtest.NewRunner(b.cfg.Backtest.RunConfig(symbol), sim, signals)

	result, err := runner.Run(bars)
	if err != nil {
		return nil, err
	}
	telemetry.BacktestRuns.Inc()
	return result, nil
}

// setup loads the configuration and wires the loader and file store from the
// persistent flags.
func setup(cmd *cobra.Command) (*config.Config, *seriesBacktester, *store.FileStore, error) {
	configPath, _ := cmd.Flags().GetString("config")
	dataDir, _ := cmd.Flags().GetString("data")
	storeDir, _ := cmd.Flags().GetString("store")
	redisAddr, _ := cmd.Flags().GetString("redis")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	var loader data.Loader = data.NewCSVLoader(dataDir)
	if redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		loader = data.NewCachedLoader(loader, client, time.Hour)
	}

	fileStore, err := store.NewFileStore(storeDir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open store: %w", err)
	}

	return cfg, &seriesBacktester{loader: loader, cfg: cfg}, fileStore, nil
}
