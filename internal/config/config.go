// Package config loads the engine configuration consumed by the CLI: the
// symbol universe, date range, walk-forward periods, regression tolerance and
// the cost models for fill simulation. No hidden global state; the loaded
// struct is constructed once and passed by reference into every component.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"

	"github.com/quantlab/stratbench/internal/backtest"
	"github.com/quantlab/stratbench/internal/walkforward"
)

const dateLayout = "2006-01-02"

// Config is the full engine configuration
type Config struct {
	Symbols     []string          `yaml:"symbols" validate:"min=1,dive,required"`
	DateRange   DateRangeConfig   `yaml:"date_range"`
	WalkForward WalkForwardConfig `yaml:"walk_forward"`
	Regression  RegressionConfig  `yaml:"regression"`
	Backtest    BacktestConfig    `yaml:"backtest"`
	Commission  CommissionConfig  `yaml:"commission"`
	Slippage    SlippageConfig    `yaml:"slippage"`
}

// DateRangeConfig bounds the historical window of a run
type DateRangeConfig struct {
	Start string `yaml:"start" validate:"required,datetime=2006-01-02"`
	End   string `yaml:"end" validate:"required,datetime=2006-01-02"`
}

// Range parses the configured dates
func (d DateRangeConfig) Range() (start, end time.Time, err error) {
	start, err = time.Parse(dateLayout, d.Start)
	if err != nil {
		return start, end, fmt.Errorf("invalid start date: %w", err)
	}
	end, err = time.Parse(dateLayout, d.End)
	if err != nil {
		return start, end, fmt.Errorf("invalid end date: %w", err)
	}
	if end.Before(start) {
		return start, end, fmt.Errorf("end date %s before start date %s", d.End, d.Start)
	}
	return start, end, nil
}

// WalkForwardConfig parameterizes window generation and degradation flagging
type WalkForwardConfig struct {
	TrainMonths          int     `yaml:"train_months" default:"6" validate:"gte=1"`
	ValidateMonths       int     `yaml:"validate_months" default:"3" validate:"gte=1"`
	PrimaryMetric        string  `yaml:"primary_metric" default:"win_rate" validate:"oneof=win_rate average_r_multiple profit_factor sharpe_ratio"`
	DegradationThreshold float64 `yaml:"degradation_threshold" default:"0.80" validate:"gt=0"`
}

// EngineConfig converts to the walk-forward engine configuration
func (w WalkForwardConfig) EngineConfig() walkforward.Config {
	return walkforward.Config{
		TrainMonths:          w.TrainMonths,
		ValidateMonths:       w.ValidateMonths,
		PrimaryMetric:        w.PrimaryMetric,
		DegradationThreshold: decimal.NewFromFloat(w.DegradationThreshold),
	}
}

// RegressionConfig parameterizes baseline comparison
type RegressionConfig struct {
	TolerancePct float64 `yaml:"tolerance_pct" default:"5.0" validate:"gt=0"`
}

// Tolerance returns the tolerance as a decimal percentage
func (r RegressionConfig) Tolerance() decimal.Decimal {
	return decimal.NewFromFloat(r.TolerancePct)
}

// BacktestConfig parameterizes individual runs
type BacktestConfig struct {
	StartingCapital float64 `yaml:"starting_capital" default:"100000" validate:"gt=0"`
	DefaultRiskPct  float64 `yaml:"default_risk_pct" default:"0.01" validate:"gt=0"`
}

// RunConfig converts to a backtest run configuration for one symbol
func (b BacktestConfig) RunConfig(symbol string) backtest.RunConfig {
	return backtest.RunConfig{
		Symbol:          symbol,
		StartingCapital: decimal.NewFromFloat(b.StartingCapital),
		DefaultRiskPct:  decimal.NewFromFloat(b.DefaultRiskPct),
	}
}

// CommissionConfig is the commission schedule
type CommissionConfig struct {
	PerShare float64 `yaml:"per_share" default:"0.005" validate:"gte=0"`
	Pct      float64 `yaml:"pct" validate:"gte=0"`
	Minimum  float64 `yaml:"minimum" default:"1.0" validate:"gte=0"`
}

// Schedule converts to the fill simulator's commission model
func (c CommissionConfig) Schedule() backtest.CommissionConfig {
	return backtest.CommissionConfig{
		PerShare: decimal.NewFromFloat(c.PerShare),
		Pct:      decimal.NewFromFloat(c.Pct),
		Minimum:  decimal.NewFromFloat(c.Minimum),
	}
}

// SlippageConfig is the liquidity-aware slippage model
type SlippageConfig struct {
	BasePct             float64 `yaml:"base_pct" default:"0.0005" validate:"gte=0"`
	LowVolumeThreshold  int64   `yaml:"low_volume_threshold" default:"100000" validate:"gte=0"`
	LowVolumeMultiplier float64 `yaml:"low_volume_multiplier" default:"2.0" validate:"gte=1"`
}

// Model converts to the fill simulator's slippage model
func (s SlippageConfig) Model() backtest.SlippageConfig {
	return backtest.SlippageConfig{
		BasePct:             decimal.NewFromFloat(s.BasePct),
		LowVolumeThreshold:  s.LowVolumeThreshold,
		LowVolumeMultiplier: decimal.NewFromFloat(s.LowVolumeMultiplier),
	}
}

// Load reads, defaults and validates a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if _, _, err := cfg.DateRange.Range(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
