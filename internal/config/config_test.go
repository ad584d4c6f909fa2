package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
symbols:
  - BTC-USD
  - ETH-USD
date_range:
  start: "2023-01-01"
  end: "2024-12-31"
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, []string{"BTC-USD", "ETH-USD"}, cfg.Symbols)
	assert.Equal(t, 6, cfg.WalkForward.TrainMonths)
	assert.Equal(t, 3, cfg.WalkForward.ValidateMonths)
	assert.Equal(t, "win_rate", cfg.WalkForward.PrimaryMetric)
	assert.Equal(t, 0.80, cfg.WalkForward.DegradationThreshold)
	assert.Equal(t, 5.0, cfg.Regression.TolerancePct)
	assert.Equal(t, 100000.0, cfg.Backtest.StartingCapital)
	assert.Equal(t, 0.005, cfg.Commission.PerShare)
	assert.Equal(t, 1.0, cfg.Commission.Minimum)
	assert.Equal(t, 0.0005, cfg.Slippage.BasePct)
	assert.Equal(t, int64(100000), cfg.Slippage.LowVolumeThreshold)
	assert.Equal(t, 2.0, cfg.Slippage.LowVolumeMultiplier)
}

func TestLoadOverridesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
walk_forward:
  train_months: 12
  validate_months: 6
  primary_metric: sharpe_ratio
  degradation_threshold: 0.9
regression:
  tolerance_pct: 10
`))
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.WalkForward.TrainMonths)
	assert.Equal(t, 6, cfg.WalkForward.ValidateMonths)
	assert.Equal(t, "sharpe_ratio", cfg.WalkForward.PrimaryMetric)
	assert.Equal(t, 10.0, cfg.Regression.TolerancePct)
}

func TestLoadRejectsEmptySymbols(t *testing.T) {
	_, err := Load(writeConfig(t, `
symbols: []
date_range:
  start: "2023-01-01"
  end: "2024-12-31"
`))
	assert.Error(t, err)
}

func TestLoadRejectsUnknownPrimaryMetric(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
walk_forward:
  primary_metric: sortino
`))
	assert.Error(t, err)
}

func TestLoadRejectsInvertedDateRange(t *testing.T) {
	_, err := Load(writeConfig(t, `
symbols:
  - BTC-USD
date_range:
  start: "2024-12-31"
  end: "2023-01-01"
`))
	assert.Error(t, err)
}

func TestLoadRejectsMalformedDate(t *testing.T) {
	_, err := Load(writeConfig(t, `
symbols:
  - BTC-USD
date_range:
  start: "not-a-date"
  end: "2024-12-31"
`))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestConvertersProduceDecimalConfigs(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	ec := cfg.WalkForward.EngineConfig()
	assert.Equal(t, 6, ec.TrainMonths)
	assert.Equal(t, "0.8", ec.DegradationThreshold.String())

	rc := cfg.Backtest.RunConfig("BTC-USD")
	assert.Equal(t, "BTC-USD", rc.Symbol)
	assert.Equal(t, "100000", rc.StartingCapital.String())

	assert.Equal(t, "5", cfg.Regression.Tolerance().String())
	assert.Equal(t, "0.0005", cfg.Slippage.Model().BasePct.String())
	assert.Equal(t, "1", cfg.Commission.Schedule().Minimum.String())
}
