package finance

import (
	"database/sql"
	"fmt"
)

// DailyReturnsFromCloses computes close_t / close_{t-1} - 1.
// The first value is null because it has no previous close.
func DailyReturnsFromCloses(closes []float64) []sql.NullFloat64 {
	out := make([]sql.NullFloat64, len(closes))
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		out[i] = sql.NullFloat64{Float64: closes[i]/closes[i-1] - 1, Valid: true}
	}
	return out
}

// DailyReturns returns the stored daily returns of the series as-is.
func (s *AssetSeries) DailyReturns() ReturnSeries {
	out := ReturnSeries{Name: string(s.Symbol), Points: make([]ReturnPoint, len(s.Bars))}
	for i, bar := range s.Bars {
		out.Points[i] = ReturnPoint{Time: bar.Time, Return: bar.DailyReturns}
	}
	return out
}

// SingleAssetReturns returns the daily and cumulative returns of one asset.
// Null returns are compounded as zero so the product starts at 1.
func SingleAssetReturns(s *AssetSeries) (ReturnSeries, Series, error) {
	if err := s.Validate(); err != nil {
		return ReturnSeries{}, Series{}, err
	}
	daily := s.DailyReturns()
	cum := compound(string(s.Symbol), daily.Points)
	return daily, cum, nil
}

// Cumulative compounds a return series: prod(1 + r) - 1.
func Cumulative(returns Series) (Series, error) {
	if err := checkOrdered(returns); err != nil {
		return Series{}, err
	}
	points := make([]ReturnPoint, len(returns.Points))
	for i, p := range returns.Points {
		points[i] = ReturnPoint{Time: p.Time, Return: sql.NullFloat64{Float64: p.Value, Valid: true}}
	}
	return compound(returns.Name, points), nil
}

func compound(name string, points []ReturnPoint) Series {
	out := Series{Name: name, Points: make([]Point, len(points))}
	growth := 1.0
	for i, p := range points {
		if p.Return.Valid {
			growth *= 1 + p.Return.Float64
		}
		out.Points[i] = Point{Time: p.Time, Value: growth - 1}
	}
	return out
}

// checkOrdered rejects series whose timestamps are not strictly increasing.
func checkOrdered(s Series) error {
	for i := 1; i < len(s.Points); i++ {
		if !s.Points[i].Time.After(s.Points[i-1].Time) {
			return fmt.Errorf("%w: %s time %s does not follow %s", ErrInvalidSeries, s.Name,
				s.Points[i].Time.Format(DateFormat), s.Points[i-1].Time.Format(DateFormat))
		}
	}
	return nil
}
