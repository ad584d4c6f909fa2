package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quantlab/stratbench/internal/walkforward"
)

func newWalkForwardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "walkforward",
		Short: "Run walk-forward validation for every configured symbol",
		Long: `Partitions the configured date range into rolling train/validate window
pairs, backtests each side, and flags windows where out-of-sample
performance degrades below the configured threshold. Exits 1 when
degradation or statistically significant overfitting is detected.`,
		RunE: runWalkForward,
	}
}

func runWalkForward(cmd *cobra.Command, _ []string) error {
	cfg, backtester, fileStore, err := setup(cmd)
	if err != nil {
		return err
	}

	engine, err := walkforward.NewEngine(cfg.WalkForward.EngineConfig(), backtester)
	if err != nil {
		return err
	}

	start, end, err := cfg.DateRange.Range()
	if err != nil {
		return err
	}

	ctx := context.Background()
	degraded := false

	for _, symbol := range cfg.Symbols {
		result, err := engine.Run(ctx, symbol, start, end)
		if err != nil {
			return fmt.Errorf("walk-forward run for %s: %w", symbol, err)
		}

		id, err := fileStore.SaveResult(ctx, result)
		if err != nil {
			return err
		}

		printWalkForwardSummary(result, id)
		if len(result.DegradedWindows) > 0 || result.SignificantOverfit {
			degraded = true
		}
	}

	if degraded {
		return fmt.Errorf("%w: validate performance below threshold", errDegradation)
	}
	return nil
}

func printWalkForwardSummary(result *walkforward.Result, id string) {
	fmt.Printf("%s: %d windows, %d degraded, stability %s, p=%.4f\n",
		result.Symbol, len(result.Windows), len(result.DegradedWindows),
		result.StabilityScore.StringFixed(4), result.PValue)

	for _, w := range result.Windows {
		flag := ""
		if w.Degraded {
			flag = "  DEGRADED"
		}
		fmt.Printf("  window %d  train %s..%s  validate %s..%s  ratio %s%s\n",
			w.Number,
			w.TrainStart.Format("2006-01-02"), w.TrainEnd.Format("2006-01-02"),
			w.ValidateStart.Format("2006-01-02"), w.ValidateEnd.Format("2006-01-02"),
			w.PerformanceRatio.StringFixed(3), flag)
	}

	if result.SignificantOverfit {
		fmt.Printf("  systematic overfitting: train consistently exceeds validate (p=%.4f)\n", result.PValue)
	}
	log.Info().Str("symbol", result.Symbol).Str("result_id", id).Msg("walk-forward result persisted")
}
