package backtest

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// SignalSource supplies, for each bar index, zero or more orders representing
// desired entries or exits. The run driver treats it as opaque; orders
// generated at bar i are simulated against bar i+1.
type SignalSource interface {
	Orders(i int, bar PriceBar) []Order
}

// RunConfig parameterizes one backtest run
type RunConfig struct {
	Symbol          string
	StartingCapital decimal.Decimal

	// DefaultRiskPct is the fraction of the entry price used as the per-unit
	// risk basis for R-multiples when the entry order carries no stop price.
	DefaultRiskPct decimal.Decimal
}

// RunResult is the output of one full pass over a bar sequence
type RunResult struct {
	Symbol      string        `json:"symbol"`
	Metrics     Metrics       `json:"metrics"`
	Trades      []Trade       `json:"trades"`
	EquityCurve []EquityPoint `json:"equity_curve"`
}

// Runner drives an ordered bar sequence through signal generation and the
// fill simulator, producing exit-time-ordered trades and a metrics snapshot.
// Given the same bars, configuration and signal source, two runs produce
// identical output.
type Runner struct {
	cfg     RunConfig
	fills   *FillSimulator
	signals SignalSource
}

// NewRunner creates a backtest runner
func NewRunner(cfg RunConfig, fills *FillSimulator, signals SignalSource) *Runner {
	return &Runner{cfg: cfg, fills: fills, signals: signals}
}

type position struct {
	side        Side
	entryTime   time.Time
	entryPrice  decimal.Decimal
	quantity    decimal.Decimal
	commission  decimal.Decimal
	slippage    decimal.Decimal
	riskPerUnit decimal.Decimal
}

// Run executes one pass over bars. A run that produces zero trades is valid.
// A position still open after the final bar is liquidated at the final close
// so its result is not silently dropped.
func (r *Runner) Run(bars []PriceBar) (*RunResult, error) {
	for _, b := range bars {
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("invalid bar sequence: %w", err)
		}
	}

	var (
		trades  []Trade
		pending []Order
		pos     *position
	)

	for i, bar := range bars {
		// Orders carried from earlier bars fill (or not) against this bar.
		remaining := pending[:0]
		for _, order := range pending {
			fill, err := r.fills.Simulate(order, bar)
			if err != nil {
				// A malformed order aborts that order, not the whole run.
				if errors.Is(err, ErrInvalidOrder) || errors.Is(err, ErrUnsupportedOrderKind) {
					log.Warn().Str("symbol", r.cfg.Symbol).Err(err).Msg("dropping rejected order")
					continue
				}
				return nil, err
			}
			if !fill.Filled {
				remaining = append(remaining, order)
				continue
			}
			pos, trades = r.applyFill(pos, trades, order, fill, bar.Timestamp)
		}
		pending = remaining

		if r.signals != nil {
			pending = append(pending, r.signals.Orders(i, bar)...)
		}
	}

	if pos != nil && len(bars) > 0 {
		last := bars[len(bars)-1]
		exit := Fill{
			Filled:    true,
			FillPrice: last.Close,
			BasePrice: last.Close,
		}
		trades = append(trades, closeTrade(r.cfg.Symbol, *pos, exit, last.Timestamp))
	}

	metrics, curve := ComputeMetrics(trades, r.cfg.StartingCapital)
	return &RunResult{
		Symbol:      r.cfg.Symbol,
		Metrics:     metrics,
		Trades:      trades,
		EquityCurve: curve,
	}, nil
}

// RunRange executes a run over the bars whose timestamps fall in
// [start, end], inclusive on both sides.
func (r *Runner) RunRange(bars []PriceBar, start, end time.Time) (*RunResult, error) {
	var slice []PriceBar
	for _, b := range bars {
		if b.Timestamp.Before(start) || b.Timestamp.After(end) {
			continue
		}
		slice = append(slice, b)
	}
	return r.Run(slice)
}

// applyFill opens a position on the first fill and closes it on an
// opposite-side fill. A same-side fill while a position is open is dropped;
// the run simulates a single position at a time.
func (r *Runner) applyFill(pos *position, trades []Trade, order Order, fill Fill, ts time.Time) (*position, []Trade) {
	if pos == nil {
		risk := fill.FillPrice.Mul(r.cfg.DefaultRiskPct)
		if order.StopPrice != nil {
			risk = fill.FillPrice.Sub(*order.StopPrice).Abs()
		}
		return &position{
			side:        order.Side,
			entryTime:   ts,
			entryPrice:  fill.FillPrice,
			quantity:    order.Quantity,
			commission:  fill.Commission,
			slippage:    fill.SlippageCost,
			riskPerUnit: risk,
		}, trades
	}

	if order.Side == pos.side {
		log.Debug().Str("symbol", r.cfg.Symbol).Str("side", string(order.Side)).
			Msg("ignoring same-side order while position open")
		return pos, trades
	}

	return nil, append(trades, closeTrade(r.cfg.Symbol, *pos, fill, ts))
}

func closeTrade(symbol string, pos position, exit Fill, ts time.Time) Trade {
	move := exit.FillPrice.Sub(pos.entryPrice)
	if pos.side == SideSell {
		move = move.Neg()
	}

	commission := pos.commission.Add(exit.Commission)
	pnl := move.Mul(pos.quantity).Sub(commission)

	risk := pos.riskPerUnit.Mul(pos.quantity)
	rMultiple := decimal.Zero
	if !risk.IsZero() {
		rMultiple = pnl.Div(risk)
	}

	return Trade{
		Symbol:      symbol,
		Side:        pos.side,
		EntryTime:   pos.entryTime,
		ExitTime:    ts,
		EntryPrice:  pos.entryPrice,
		ExitPrice:   exit.FillPrice,
		Quantity:    pos.quantity,
		Commission:  commission,
		Slippage:    pos.slippage.Add(exit.SlippageCost),
		RealizedPnL: pnl,
		RMultiple:   rMultiple,
	}
}
