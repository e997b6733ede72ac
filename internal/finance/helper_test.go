package finance

import (
	"database/sql"
	"time"
)

var d0 = NewDate(2020, time.January, 6)

func day(i int) time.Time { return d0.AddDate(0, 0, i) }

func ret(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }

// newSeries builds a series on consecutive days starting at day(offset)
// with the given closes and returns.
func newSeries(sym Symbol, offset int, closes []float64, returns []sql.NullFloat64) *AssetSeries {
	s := &AssetSeries{Symbol: sym}
	for i, c := range closes {
		bar := PriceBar{
			Time:   day(offset + i),
			Open:   c,
			High:   c + 1,
			Low:    c - 0.5,
			Close:  c,
			Volume: int64(1000 * (i + 1)),
		}
		if i < len(returns) {
			bar.DailyReturns = returns[i]
		}
		s.Bars = append(s.Bars, bar)
	}
	return s
}

// returnSeries builds a series whose closes follow the given returns.
func returnSeries(sym Symbol, offset int, rs ...float64) *AssetSeries {
	closes := make([]float64, len(rs))
	nulls := make([]sql.NullFloat64, len(rs))
	c := 100.0
	for i, r := range rs {
		c *= 1 + r
		closes[i] = c
		nulls[i] = ret(r)
	}
	return newSeries(sym, offset, closes, nulls)
}
