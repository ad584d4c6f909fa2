// Package telemetry exposes Prometheus counters for the engine's main
// operations so long-running callers can scrape run volume and verdicts.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BacktestRuns counts completed backtest runs
	BacktestRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stratbench_backtest_runs_total",
		Help: "Total completed backtest runs",
	})

	// WalkForwardWindows counts processed walk-forward windows
	WalkForwardWindows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stratbench_walkforward_windows_total",
		Help: "Total walk-forward train/validate windows processed",
	})

	// RegressionChecks counts baseline comparisons by verdict
	RegressionChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stratbench_regression_checks_total",
		Help: "Total baseline regression checks by verdict",
	}, []string{"verdict"})
)
