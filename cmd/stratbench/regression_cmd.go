package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantlab/stratbench/internal/regression"
	"github.com/quantlab/stratbench/internal/store"
)

func newRegressionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regression",
		Short: "Compare current backtest metrics against stored baselines",
		Long: `Runs one backtest per configured symbol over the configured date range and
compares the resulting metrics against that symbol's persisted baseline.
Exits 0 on pass, 1 on regression, 2 when a baseline is missing.`,
		RunE: runRegression,
	}
}

func runRegression(cmd *cobra.Command, _ []string) error {
	cfg, backtester, fileStore, err := setup(cmd)
	if err != nil {
		return err
	}

	start, end, err := cfg.DateRange.Range()
	if err != nil {
		return err
	}

	ctx := context.Background()
	regressed := false
	missing := false

	for _, symbol := range cfg.Symbols {
		metrics, err := backtester.Run(ctx, symbol, start, end)
		if err != nil {
			return fmt.Errorf("backtest for %s: %w", symbol, err)
		}

		baseline, err := fileStore.Load(ctx, symbol)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("baseline for %s: %w", symbol, err)
		}

		report := regression.Detect(symbol, metrics, baseline)
		printReport(report)

		switch report.Verdict {
		case regression.VerdictRegression:
			regressed = true
		case regression.VerdictNoBaseline:
			missing = true
		}
	}

	if regressed {
		return fmt.Errorf("%w: metrics outside tolerance", errDegradation)
	}
	if missing {
		return fmt.Errorf("%w: run 'stratbench baseline set' first", errNoBaseline)
	}
	return nil
}

func printReport(report regression.Report) {
	switch report.Verdict {
	case regression.VerdictNoBaseline:
		fmt.Printf("%s: no baseline\n", report.Symbol)
		return
	case regression.VerdictRegression:
		fmt.Printf("%s: REGRESSION (tolerance %s%%)\n", report.Symbol, report.TolerancePct)
	default:
		fmt.Printf("%s: pass (tolerance %s%%)\n", report.Symbol, report.TolerancePct)
	}

	for _, d := range report.Deltas {
		flag := ""
		if d.Degraded {
			flag = "  DEGRADED"
		}
		fmt.Printf("  %-20s %s -> %s (%s%%)%s\n",
			d.Name, d.Baseline.StringFixed(4), d.Current.StringFixed(4),
			d.ChangePct.StringFixed(2), flag)
	}
}

func newBaselineCmd() *cobra.Command {
	baselineCmd := &cobra.Command{
		Use:   "baseline",
		Short: "Manage baseline snapshots",
	}
	baselineCmd.AddCommand(&cobra.Command{
		Use:   "set",
		Short: "Establish baselines from a fresh backtest of every configured symbol",
		RunE:  runBaselineSet,
	})
	return baselineCmd
}

func runBaselineSet(cmd *cobra.Command, _ []string) error {
	cfg, backtester, fileStore, err := setup(cmd)
	if err != nil {
		return err
	}

	start, end, err := cfg.DateRange.Range()
	if err != nil {
		return err
	}

	ctx := context.Background()
	for _, symbol := range cfg.Symbols {
		metrics, err := backtester.Run(ctx, symbol, start, end)
		if err != nil {
			return fmt.Errorf("backtest for %s: %w", symbol, err)
		}

		baseline := &regression.Baseline{
			Symbol:        symbol,
			TolerancePct:  cfg.Regression.Tolerance(),
			EstablishedAt: time.Now().UTC(),
			DateRange:     regression.DateRange{Start: start, End: end},
			Metrics:       metrics,
		}
		if err := fileStore.Save(ctx, baseline); err != nil {
			return err
		}
		fmt.Printf("%s: baseline established (%d trades, win rate %s)\n",
			symbol, metrics.TotalTrades, metrics.WinRate.StringFixed(4))
	}
	return nil
}
