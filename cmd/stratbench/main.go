package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Exit codes reported to CI callers
const (
	exitPass       = 0
	exitRegression = 1
	exitNoBaseline = 2
	exitError      = 3
)

// Sentinel errors mapped to exit codes by main
var (
	errDegradation = errors.New("degradation detected")
	errNoBaseline  = errors.New("no baseline available")
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	rootCmd := &cobra.Command{
		Use:   "stratbench",
		Short: "Backtest simulation and regression-validation engine",
		Long: `stratbench evaluates the historical performance of a rule-based trading
strategy against recorded market data and guards against silent quality
regressions: walk-forward validation detects overfitting, baseline
comparison detects regressions after code or rule changes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "config.yaml", "Path to YAML configuration")
	rootCmd.PersistentFlags().String("data", "./data", "Directory with <symbol>.csv bar files")
	rootCmd.PersistentFlags().String("store", "./artifacts", "Directory for baseline and result snapshots")
	rootCmd.PersistentFlags().String("redis", "", "Optional Redis address for the bar series cache")

	rootCmd.AddCommand(newWalkForwardCmd())
	rootCmd.AddCommand(newRegressionCmd())
	rootCmd.AddCommand(newBaselineCmd())

	if err := rootCmd.Execute(); err != nil {
		switch {
		case errors.Is(err, errDegradation):
			fmt.Fprintln(os.Stderr, "FAIL:", err)
			os.Exit(exitRegression)
		case errors.Is(err, errNoBaseline):
			fmt.Fprintln(os.Stderr, "NO BASELINE:", err)
			os.Exit(exitNoBaseline)
		default:
			log.Error().Err(err).Msg("execution failed")
			os.Exit(exitError)
		}
	}
	os.Exit(exitPass)
}
