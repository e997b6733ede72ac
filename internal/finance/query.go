package finance

import (
	"fmt"
	"math"
	"sort"
)

// FilterAboveThreshold returns the (time, close) pairs with close > threshold
// in their original order.
func FilterAboveThreshold(s *AssetSeries, threshold float64) (Series, error) {
	return filterClose(s, threshold, func(c float64) bool { return c > threshold })
}

// FilterAtOrBelow is the complement of FilterAboveThreshold.
func FilterAtOrBelow(s *AssetSeries, threshold float64) (Series, error) {
	return filterClose(s, threshold, func(c float64) bool { return c <= threshold })
}

func filterClose(s *AssetSeries, threshold float64, keep func(float64) bool) (Series, error) {
	if err := s.Validate(); err != nil {
		return Series{}, err
	}
	if math.IsNaN(threshold) {
		return Series{}, fmt.Errorf("%w: threshold is NaN", ErrInvalidSeries)
	}
	out := Series{Name: string(s.Symbol), Points: []Point{}}
	for _, bar := range s.Bars {
		if keep(bar.Close) {
			out.Points = append(out.Points, Point{Time: bar.Time, Value: bar.Close})
		}
	}
	return out, nil
}

// TopKReturns returns at most k daily returns sorted descending. Ties keep
// time order and nulls sort last, the way SQLite orders DESC.
func TopKReturns(s *AssetSeries, k int) (ReturnSeries, error) {
	if err := s.Validate(); err != nil {
		return ReturnSeries{}, err
	}
	if k < 0 {
		return ReturnSeries{}, fmt.Errorf("%w: k must not be negative, got %d", ErrInvalidSeries, k)
	}
	points := s.DailyReturns().Points
	sort.SliceStable(points, func(i, j int) bool {
		a, b := points[i].Return, points[j].Return
		if !a.Valid || !b.Valid {
			return a.Valid && !b.Valid
		}
		return a.Float64 > b.Float64
	})
	if len(points) > k {
		points = points[:k]
	}
	return ReturnSeries{Name: string(s.Symbol), Points: points}, nil
}
