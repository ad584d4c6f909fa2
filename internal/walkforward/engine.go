package walkforward

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/quantlab/stratbench/internal/backtest"
	"github.com/quantlab/stratbench/internal/telemetry"
)

// Primary metric names accepted by Config.PrimaryMetric
const (
	MetricWinRate          = "win_rate"
	MetricAverageRMultiple = "average_r_multiple"
	MetricProfitFactor     = "profit_factor"
	MetricSharpeRatio      = "sharpe_ratio"
)

// significanceLevel is the p-value below which a consistent train>validate
// gap is treated as systematic overfitting rather than noise.
const significanceLevel = 0.05

// Backtester runs one backtest over a date range and returns its metrics.
// The engine treats it as opaque; implementations wire bar data and a signal
// source behind it.
type Backtester interface {
	Run(ctx context.Context, symbol string, start, end time.Time) (backtest.Metrics, error)
}

// Config parameterizes a walk-forward run
type Config struct {
	TrainMonths          int
	ValidateMonths       int
	PrimaryMetric        string
	DegradationThreshold decimal.Decimal
}

// Validate checks the configuration before a run starts
func (c Config) Validate() error {
	if c.TrainMonths <= 0 {
		return fmt.Errorf("train period must be positive, got %d months", c.TrainMonths)
	}
	if c.ValidateMonths <= 0 {
		return fmt.Errorf("validate period must be positive, got %d months", c.ValidateMonths)
	}
	switch c.PrimaryMetric {
	case MetricWinRate, MetricAverageRMultiple, MetricProfitFactor, MetricSharpeRatio:
	default:
		return fmt.Errorf("unknown primary metric %q", c.PrimaryMetric)
	}
	if c.DegradationThreshold.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("degradation threshold must be positive, got %s", c.DegradationThreshold)
	}
	return nil
}

// WindowResult is the outcome of one train/validate window
type WindowResult struct {
	Window
	TrainMetrics     backtest.Metrics `json:"train_metrics"`
	ValidateMetrics  backtest.Metrics `json:"validate_metrics"`
	PerformanceRatio decimal.Decimal  `json:"performance_ratio"`
	Degraded         bool             `json:"degraded"`
}

// Result is the full output of a walk-forward run
type Result struct {
	Symbol          string         `json:"symbol"`
	PrimaryMetric   string         `json:"primary_metric"`
	Start           time.Time      `json:"start"`
	End             time.Time      `json:"end"`
	Windows         []WindowResult `json:"windows"`
	DegradedWindows []int          `json:"degraded_windows"`

	AvgValidateWinRate      decimal.Decimal `json:"avg_validate_win_rate"`
	AvgValidateRMultiple    decimal.Decimal `json:"avg_validate_r_multiple"`
	AvgValidateProfitFactor decimal.Decimal `json:"avg_validate_profit_factor"`

	// StabilityScore is the population standard deviation of the per-window
	// validate primary metric; lower is more stable.
	StabilityScore decimal.Decimal `json:"stability_score"`

	// PValue is the paired t-test p-value across windows; 1.0 when fewer
	// than 3 windows exist.
	PValue             float64 `json:"p_value"`
	SignificantOverfit bool    `json:"significant_overfit"`

	GeneratedAt time.Time `json:"generated_at"`
}

// Engine orchestrates backtest runs over rolling train/validate window pairs
// and aggregates a cross-window degradation verdict.
type Engine struct {
	cfg        Config
	backtester Backtester
}

// NewEngine creates a walk-forward engine
func NewEngine(cfg Config, backtester Backtester) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid walk-forward config: %w", err)
	}
	return &Engine{cfg: cfg, backtester: backtester}, nil
}

// Run executes the walk-forward procedure for one symbol over [start, end].
// Fewer than one complete window yields a result with zero windows, not an
// error.
func (e *Engine) Run(ctx context.Context, symbol string, start, end time.Time) (*Result, error) {
	windows, err := GenerateWindows(start, end, e.cfg.TrainMonths, e.cfg.ValidateMonths)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("symbol", symbol).
		Int("windows", len(windows)).
		Str("primary_metric", e.cfg.PrimaryMetric).
		Msg("starting walk-forward run")

	result := &Result{
		Symbol:        symbol,
		PrimaryMetric: e.cfg.PrimaryMetric,
		Start:         start,
		End:           end,
		PValue:        1.0,
		GeneratedAt:   time.Now().UTC(),
	}
	result.AvgValidateWinRate = decimal.Zero
	result.AvgValidateRMultiple = decimal.Zero
	result.AvgValidateProfitFactor = decimal.Zero
	result.StabilityScore = decimal.Zero

	var trainVals, validateVals []float64

	for _, w := range windows {
		trainMetrics, err := e.backtester.Run(ctx, symbol, w.TrainStart, w.TrainEnd)
		if err != nil {
			return nil, fmt.Errorf("window %d train backtest: %w", w.Number, err)
		}
		validateMetrics, err := e.backtester.Run(ctx, symbol, w.ValidateStart, w.ValidateEnd)
		if err != nil {
			return nil, fmt.Errorf("window %d validate backtest: %w", w.Number, err)
		}

		trainVal := primaryMetric(trainMetrics, e.cfg.PrimaryMetric)
		validateVal := primaryMetric(validateMetrics, e.cfg.PrimaryMetric)

		// Division by a zero train metric means maximal degradation, not an
		// error; the ratio collapses to 0.
		ratio := decimal.Zero
		if !trainVal.IsZero() {
			ratio = validateVal.Div(trainVal)
		}

		wr := WindowResult{
			Window:           w,
			TrainMetrics:     trainMetrics,
			ValidateMetrics:  validateMetrics,
			PerformanceRatio: ratio,
			Degraded:         ratio.LessThan(e.cfg.DegradationThreshold),
		}
		result.Windows = append(result.Windows, wr)
		if wr.Degraded {
			result.DegradedWindows = append(result.DegradedWindows, w.Number)
		}

		tf, _ := trainVal.Float64()
		vf, _ := validateVal.Float64()
		trainVals = append(trainVals, tf)
		validateVals = append(validateVals, vf)

		telemetry.WalkForwardWindows.Inc()
	}

	e.aggregate(result, trainVals, validateVals)

	log.Info().
		Str("symbol", symbol).
		Int("windows", len(result.Windows)).
		Int("degraded", len(result.DegradedWindows)).
		Float64("p_value", result.PValue).
		Bool("significant_overfit", result.SignificantOverfit).
		Msg("walk-forward run complete")

	return result, nil
}

func (e *Engine) aggregate(result *Result, trainVals, validateVals []float64) {
	if len(result.Windows) == 0 {
		return
	}

	n := decimal.NewFromInt(int64(len(result.Windows)))
	sumWin := decimal.Zero
	sumR := decimal.Zero
	sumPF := decimal.Zero
	finitePF := 0

	for _, w := range result.Windows {
		sumWin = sumWin.Add(w.ValidateMetrics.WinRate)
		sumR = sumR.Add(w.ValidateMetrics.AverageRMultiple)
		if !w.ValidateMetrics.ProfitFactorInfinite {
			sumPF = sumPF.Add(w.ValidateMetrics.ProfitFactor)
			finitePF++
		}
	}

	result.AvgValidateWinRate = sumWin.Div(n)
	result.AvgValidateRMultiple = sumR.Div(n)
	if finitePF > 0 {
		result.AvgValidateProfitFactor = sumPF.Div(decimal.NewFromInt(int64(finitePF)))
	}

	result.StabilityScore = populationStdDev(validateVals)
	result.PValue = pairedTTest(trainVals, validateVals)

	trainMean := mean(trainVals)
	validateMean := mean(validateVals)
	result.SignificantOverfit = result.PValue < significanceLevel && trainMean > validateMean
}

// primaryMetric extracts the configured primary metric from a snapshot. An
// infinite profit factor compares as a very large finite value so ratios stay
// defined.
func primaryMetric(m backtest.Metrics, name string) decimal.Decimal {
	switch name {
	case MetricAverageRMultiple:
		return m.AverageRMultiple
	case MetricProfitFactor:
		if m.ProfitFactorInfinite {
			return decimal.NewFromInt(1_000_000)
		}
		return m.ProfitFactor
	case MetricSharpeRatio:
		return m.SharpeRatio
	default:
		return m.WinRate
	}
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func populationStdDev(vals []float64) decimal.Decimal {
	if len(vals) < 2 {
		return decimal.Zero
	}
	m := mean(vals)
	sumSq := 0.0
	for _, v := range vals {
		sumSq += (v - m) * (v - m)
	}
	return decimal.NewFromFloat(math.Sqrt(sumSq / float64(len(vals))))
}
