package finance

import (
	"database/sql"
	"time"
)

// TradingDaysPerYear is the annualization factor for daily returns.
const TradingDaysPerYear = 252

// Symbol is an upper-case ticker identifier, e.g. "PYPL".
type Symbol string

// Field names a per-asset column of a price bar.
type Field string

const (
	FieldOpen         Field = "open"
	FieldHigh         Field = "high"
	FieldLow          Field = "low"
	FieldClose        Field = "close"
	FieldVolume       Field = "volume"
	FieldDailyReturns Field = "daily_returns"
)

// Fields lists the per-asset columns in storage order.
var Fields = []Field{FieldOpen, FieldHigh, FieldLow, FieldClose, FieldVolume, FieldDailyReturns}

// ColumnKey addresses one column of a joined frame.
type ColumnKey struct {
	Symbol Symbol
	Field  Field
}

func (k ColumnKey) String() string { return string(k.Symbol) + "." + string(k.Field) }

// PriceBar is one trading day of one asset.
type PriceBar struct {
	Time         time.Time
	Open         float64
	High         float64
	Low          float64
	Close        float64
	Volume       int64
	DailyReturns sql.NullFloat64 // null on the first observation
}

// AssetSeries represents the price bars of a single asset ordered by time
type AssetSeries struct {
	Symbol Symbol
	Bars   []PriceBar
}

// Len returns the number of bars.
func (s *AssetSeries) Len() int { return len(s.Bars) }

// First and Last return the first and last trading day. Both are zero for an empty series.
func (s *AssetSeries) First() time.Time {
	if len(s.Bars) == 0 {
		return time.Time{}
	}
	return s.Bars[0].Time
}

func (s *AssetSeries) Last() time.Time {
	if len(s.Bars) == 0 {
		return time.Time{}
	}
	return s.Bars[len(s.Bars)-1].Time
}

// Point is one (time, value) observation.
type Point struct {
	Time  time.Time
	Value float64
}

// Series is a named, time ordered sequence of values
type Series struct {
	Name   string
	Points []Point
}

// Len returns the number of points.
func (s Series) Len() int { return len(s.Points) }

// Values returns the values without timestamps.
func (s Series) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}

// Scale returns a copy of s with every value multiplied by f.
func (s Series) Scale(name string, f float64) Series {
	out := Series{Name: name, Points: make([]Point, len(s.Points))}
	for i, p := range s.Points {
		out.Points[i] = Point{Time: p.Time, Value: p.Value * f}
	}
	return out
}

// ReturnPoint is a daily return that may be missing.
type ReturnPoint struct {
	Time   time.Time
	Return sql.NullFloat64
}

// ReturnSeries is a named sequence of nullable daily returns.
type ReturnSeries struct {
	Name   string
	Points []ReturnPoint
}

// Len returns the number of points.
func (s ReturnSeries) Len() int { return len(s.Points) }

// Dense drops the null observations, e.g. for plotting.
func (s ReturnSeries) Dense() Series {
	out := Series{Name: s.Name, Points: make([]Point, 0, len(s.Points))}
	for _, p := range s.Points {
		if p.Return.Valid {
			out.Points = append(out.Points, Point{Time: p.Time, Value: p.Return.Float64})
		}
	}
	return out
}

// Annualized is an annualized return in decimal and percentage form.
type Annualized struct {
	Return  float64
	Percent float64
}

// Metrics holds the statistics derived from a portfolio's mean daily returns.
type Metrics struct {
	MeanDailyReturn float64
	Annualized      Annualized
	Cumulative      Series // decimal
	CumulativePct   Series // percentage
	TotalReturn     float64
	TotalReturnPct  float64
	Volatility      float64 // annualized, decimal
	SharpeRatio     float64 // risk-free rate assumed to be 0
	MaxDrawdown     float64 // decimal, positive
	NumDays         int
}
