package finance

import (
	"fmt"
	"math"
	"time"
)

// Validate checks the invariants the join and cumulative product rely on:
// strictly increasing dates without intraday component, positive finite
// prices and non-negative volume.
func (s *AssetSeries) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil series", ErrInvalidSeries)
	}
	if s.Symbol == "" {
		return fmt.Errorf("%w: series has no symbol", ErrInvalidSeries)
	}
	for i, bar := range s.Bars {
		if bar.Time.IsZero() {
			return fmt.Errorf("%w: %s row %d has no time", ErrInvalidSeries, s.Symbol, i)
		}
		if !IsDate(bar.Time) {
			return fmt.Errorf("%w: %s row %d time %s has an intraday component", ErrInvalidSeries, s.Symbol, i, bar.Time.Format(time.RFC3339))
		}
		if i > 0 {
			prev := s.Bars[i-1].Time
			if bar.Time.Equal(prev) {
				return fmt.Errorf("%w: %s has duplicate time %s", ErrInvalidSeries, s.Symbol, bar.Time.Format(DateFormat))
			}
			if bar.Time.Before(prev) {
				return fmt.Errorf("%w: %s time %s follows %s", ErrInvalidSeries, s.Symbol, bar.Time.Format(DateFormat), prev.Format(DateFormat))
			}
		}
		for _, p := range [...]struct {
			name string
			v    float64
		}{{"open", bar.Open}, {"high", bar.High}, {"low", bar.Low}, {"close", bar.Close}} {
			if math.IsNaN(p.v) || math.IsInf(p.v, 0) || p.v <= 0 {
				return fmt.Errorf("%w: %s %s on %s is %f", ErrInvalidSeries, s.Symbol, p.name, bar.Time.Format(DateFormat), p.v)
			}
		}
		if bar.Volume < 0 {
			return fmt.Errorf("%w: %s volume on %s is negative", ErrInvalidSeries, s.Symbol, bar.Time.Format(DateFormat))
		}
		if r := bar.DailyReturns; r.Valid && (math.IsNaN(r.Float64) || math.IsInf(r.Float64, 0)) {
			return fmt.Errorf("%w: %s daily return on %s is %f", ErrInvalidSeries, s.Symbol, bar.Time.Format(DateFormat), r.Float64)
		}
	}
	return nil
}
