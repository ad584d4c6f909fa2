// Package data loads historical bar sequences for the engine. Bars are
// read-only input owned by the caller for the lifetime of one run.
package data

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantlab/stratbench/internal/backtest"
)

// Loader supplies the bar sequence for one symbol over a date range
type Loader interface {
	Bars(ctx context.Context, symbol string, start, end time.Time) ([]backtest.PriceBar, error)
}

// CSVLoader reads bars from <dir>/<symbol>.csv with the header
// timestamp,open,high,low,close,volume and RFC3339 or date-only timestamps.
type CSVLoader struct {
	dir string
}

// NewCSVLoader creates a loader rooted at dir
func NewCSVLoader(dir string) *CSVLoader {
	return &CSVLoader{dir: dir}
}

// Bars implements Loader. Rows outside [start, end] are skipped; timestamps
// must be non-decreasing, and each bar must satisfy its OHLC invariants.
func (l *CSVLoader) Bars(_ context.Context, symbol string, start, end time.Time) ([]backtest.PriceBar, error) {
	path := filepath.Join(l.dir, symbol+".csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bar data for %s: %w", symbol, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 6

	// Header row.
	if _, err := r.Read(); err != nil {
		return nil, fmt.Errorf("failed to read bar data header for %s: %w", symbol, err)
	}

	var bars []backtest.PriceBar
	var prev time.Time
	for line := 2; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}

		bar, err := parseBar(record)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		if err := bar.Validate(); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		if !prev.IsZero() && bar.Timestamp.Before(prev) {
			return nil, fmt.Errorf("%s line %d: timestamps out of order", path, line)
		}
		prev = bar.Timestamp

		if bar.Timestamp.Before(start) || bar.Timestamp.After(end) {
			continue
		}
		bars = append(bars, bar)
	}

	return bars, nil
}

func parseBar(record []string) (backtest.PriceBar, error) {
	ts, err := parseTimestamp(record[0])
	if err != nil {
		return backtest.PriceBar{}, err
	}

	prices := make([]decimal.Decimal, 4)
	for i, field := range record[1:5] {
		prices[i], err = decimal.NewFromString(field)
		if err != nil {
			return backtest.PriceBar{}, fmt.Errorf("invalid price %q: %w", field, err)
		}
	}

	volume, err := strconv.ParseInt(record[5], 10, 64)
	if err != nil {
		return backtest.PriceBar{}, fmt.Errorf("invalid volume %q: %w", record[5], err)
	}

	return backtest.PriceBar{
		Timestamp: ts,
		Open:      prices[0],
		High:      prices[1],
		Low:       prices[2],
		Close:     prices[3],
		Volume:    volume,
	}, nil
}

func parseTimestamp(field string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, field); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", field)
}
