package finance

import (
	"fmt"
	"math"
)

// PortfolioMeanReturns averages the daily returns of all assets for every
// row of the frame (equal weights). Null returns are left out of the
// denominator; a row where every asset is null is an error.
func PortfolioMeanReturns(f *Frame) (Series, error) {
	if f == nil {
		return Series{}, fmt.Errorf("%w: nil frame", ErrInvalidSeries)
	}
	if err := f.Validate(); err != nil {
		return Series{}, err
	}
	if len(f.Symbols) == 0 {
		return Series{}, fmt.Errorf("%w: frame has no assets", ErrMissingAsset)
	}

	returns, err := f.Returns()
	if err != nil {
		return Series{}, err
	}

	out := Series{Name: "mean_daily_returns", Points: make([]Point, f.Len())}
	for i, t := range f.Times {
		sum, n := 0.0, 0
		for _, rs := range returns {
			if r := rs.Points[i].Return; r.Valid {
				sum += r.Float64
				n++
			}
		}
		if n == 0 {
			return Series{}, fmt.Errorf("%w: no asset has a daily return on %s", ErrNoContributors, t.Format(DateFormat))
		}
		out.Points[i] = Point{Time: t, Value: sum / float64(n)}
	}
	return out, nil
}

// Annualize scales the mean of the daily returns by the number of trading
// days per year.
func Annualize(returns Series, tradingDays int) (Annualized, error) {
	if tradingDays <= 0 {
		return Annualized{}, fmt.Errorf("%w: trading days must be positive, got %d", ErrInvalidSeries, tradingDays)
	}
	if returns.Len() == 0 {
		return Annualized{}, fmt.Errorf("%w: cannot annualize an empty series", ErrNoContributors)
	}
	m := mean(returns.Values())
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return Annualized{}, fmt.Errorf("%w: mean daily return is %f", ErrInvalidSeries, m)
	}
	annual := m * float64(tradingDays)
	return Annualized{Return: annual, Percent: annual * 100}, nil
}

// DeriveMetrics computes the portfolio statistics from mean daily returns.
func DeriveMetrics(returns Series, tradingDays int) (*Metrics, error) {
	ann, err := Annualize(returns, tradingDays)
	if err != nil {
		return nil, err
	}
	cum, err := Cumulative(returns)
	if err != nil {
		return nil, err
	}

	values := returns.Values()
	meanDailyReturn := mean(values)

	// Sample standard deviation (N-1 degrees of freedom), needs 2 observations
	var volatility float64
	if n := float64(len(values)); n >= 2 {
		variance := 0.0
		for _, r := range values {
			diff := r - meanDailyReturn
			variance += diff * diff
		}
		variance /= n - 1
		volatility = math.Sqrt(variance) * math.Sqrt(float64(tradingDays))
	}

	var sharpe float64
	if volatility > 0 {
		sharpe = ann.Return / volatility
	}

	total := cum.Points[cum.Len()-1].Value
	m := &Metrics{
		MeanDailyReturn: meanDailyReturn,
		Annualized:      ann,
		Cumulative:      cum,
		CumulativePct:   cum.Scale(cum.Name+"_pct", 100),
		TotalReturn:     total,
		TotalReturnPct:  total * 100,
		Volatility:      volatility,
		SharpeRatio:     sharpe,
		MaxDrawdown:     maxDrawdown(cum),
		NumDays:         returns.Len(),
	}

	for name, v := range map[string]float64{
		"total return": m.TotalReturn,
		"volatility":   m.Volatility,
		"sharpe ratio": m.SharpeRatio,
		"max drawdown": m.MaxDrawdown,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: invalid %s: %f", ErrInvalidSeries, name, v)
		}
	}
	return m, nil
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// maxDrawdown returns the largest fall of the growth 1+cum below its
// running peak, as a fraction of that peak. Growth starts at 1, so the peak
// is never below 1.
func maxDrawdown(cum Series) float64 {
	peak, worst := 1.0, 0.0
	for _, p := range cum.Points {
		g := 1 + p.Value
		if g > peak {
			peak = g
			continue
		}
		if dd := (peak - g) / peak; dd > worst {
			worst = dd
		}
	}
	return worst
}
