package ingest

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"etfAnalyzer/internal/finance"
)

var required = []string{"time", "open", "high", "low", "close", "volume"}

// ReadCSV parses price bars with a header row of
// time,open,high,low,close,volume[,daily_returns] (any column order).
// Without a daily_returns column the returns are computed from the closes.
// The series is validated before it is returned.
func ReadCSV(r io.Reader, sym finance.Symbol) (*finance.AssetSeries, error) {
	return readCSV(r, sym, nil)
}

// readCSV is ReadCSV for bars that continue prev. The first return is then
// taken against the last stored close.
func readCSV(r io.Reader, sym finance.Symbol, prev *finance.PriceBar) (*finance.AssetSeries, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s csv is empty", finance.ErrInvalidSeries, sym)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, name := range required {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("%w: csv has no %q column", finance.ErrInvalidSeries, name)
		}
	}
	retCol, hasReturns := col[string(finance.FieldDailyReturns)]

	series := &finance.AssetSeries{Symbol: sym}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}
		bar, err := parseBar(rec, col)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if hasReturns {
			if bar.DailyReturns, err = parseNullable(rec[retCol]); err != nil {
				return nil, fmt.Errorf("line %d: daily_returns: %w", line, err)
			}
		}
		series.Bars = append(series.Bars, bar)
	}

	if !hasReturns {
		closes := make([]float64, 0, len(series.Bars)+1)
		if prev != nil {
			closes = append(closes, prev.Close)
		}
		for _, b := range series.Bars {
			closes = append(closes, b.Close)
		}
		rets := finance.DailyReturnsFromCloses(closes)
		if prev != nil {
			rets = rets[1:]
		}
		for i, r := range rets {
			series.Bars[i].DailyReturns = r
		}
	} else if prev != nil && len(series.Bars) > 0 && !series.Bars[0].DailyReturns.Valid {
		first := &series.Bars[0]
		first.DailyReturns = finance.DailyReturnsFromCloses([]float64{prev.Close, first.Close})[1]
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}
	return series, nil
}

// Store reads and appends price bars.
type Store interface {
	LoadSeries(ctx context.Context, sym finance.Symbol) (*finance.AssetSeries, error)
	InsertBars(ctx context.Context, sym finance.Symbol, bars []finance.PriceBar) error
}

// Import reads a CSV and appends its bars to the stored series of sym. The
// bars must start after the last stored day, and the stored series must stay
// valid once they are appended. It returns the number of bars stored.
func Import(ctx context.Context, dst Store, r io.Reader, sym finance.Symbol) (int, error) {
	stored, err := dst.LoadSeries(ctx, sym)
	switch {
	case errors.Is(err, finance.ErrMissingAsset):
		stored = &finance.AssetSeries{Symbol: sym}
	case err != nil:
		return 0, err
	}

	var prev *finance.PriceBar
	if n := stored.Len(); n > 0 {
		prev = &stored.Bars[n-1]
	}
	series, err := readCSV(r, sym, prev)
	if err != nil {
		return 0, err
	}
	if prev != nil && series.Len() > 0 && !series.First().After(prev.Time) {
		return 0, fmt.Errorf("%w: %s csv starts at %s, stored bars end at %s", finance.ErrInvalidSeries,
			sym, series.First().Format(finance.DateFormat), prev.Time.Format(finance.DateFormat))
	}

	merged := &finance.AssetSeries{Symbol: sym, Bars: append(append([]finance.PriceBar{}, stored.Bars...), series.Bars...)}
	if err := merged.Validate(); err != nil {
		return 0, fmt.Errorf("stored %s: %w", sym, err)
	}
	if err := dst.InsertBars(ctx, sym, series.Bars); err != nil {
		return 0, err
	}
	return series.Len(), nil
}

func parseBar(rec []string, col map[string]int) (finance.PriceBar, error) {
	var (
		bar finance.PriceBar
		err error
	)
	if bar.Time, err = finance.ParseDate(rec[col["time"]]); err != nil {
		return bar, err
	}
	prices := []struct {
		name string
		dst  *float64
	}{
		{"open", &bar.Open},
		{"high", &bar.High},
		{"low", &bar.Low},
		{"close", &bar.Close},
	}
	for _, p := range prices {
		if *p.dst, err = strconv.ParseFloat(strings.TrimSpace(rec[col[p.name]]), 64); err != nil {
			return bar, fmt.Errorf("%w: %s: %v", finance.ErrInvalidSeries, p.name, err)
		}
	}
	v := strings.TrimSpace(rec[col["volume"]])
	if bar.Volume, err = strconv.ParseInt(v, 10, 64); err != nil {
		// some exports write volumes as floats
		f, ferr := strconv.ParseFloat(v, 64)
		if ferr != nil || f != float64(int64(f)) {
			return bar, fmt.Errorf("%w: volume: %v", finance.ErrInvalidSeries, err)
		}
		bar.Volume = int64(f)
	}
	return bar, nil
}

func parseNullable(s string) (sql.NullFloat64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "null", "none":
		return sql.NullFloat64{}, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return sql.NullFloat64{}, fmt.Errorf("%w: %v", finance.ErrInvalidSeries, err)
	}
	return sql.NullFloat64{Float64: f, Valid: true}, nil
}
