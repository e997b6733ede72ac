package analysis

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"etfAnalyzer/internal/charts"
	"etfAnalyzer/internal/finance"
	"etfAnalyzer/internal/storage"
)

var d0 = finance.NewDate(2019, time.May, 31)

func series(sym finance.Symbol, offset int, closes ...float64) *finance.AssetSeries {
	s := &finance.AssetSeries{Symbol: sym}
	rets := finance.DailyReturnsFromCloses(closes)
	for i, c := range closes {
		s.Bars = append(s.Bars, finance.PriceBar{
			Time: d0.AddDate(0, 0, offset+i), Open: c, High: c + 1, Low: c - 1, Close: c,
			Volume: 1000, DailyReturns: rets[i],
		})
	}
	return s
}

func newStore(t *testing.T, all ...*finance.AssetSeries) *storage.Store {
	t.Helper()
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "etf.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	st := storage.NewStore(db)
	for _, s := range all {
		require.NoError(t, st.InsertBars(context.Background(), s.Symbol, s.Bars))
	}
	return st
}

func newAnalyzer(t *testing.T, st Store, mode string) *Analyzer {
	t.Helper()
	a, err := New(st, charts.NewRenderer(700, 300, time.Minute), zaptest.NewLogger(t), Options{QueryMode: mode})
	require.NoError(t, err)
	return a
}

func fixture() []*finance.AssetSeries {
	return []*finance.AssetSeries{
		series("GDOT", 0, 20, 21, 20.5, 22, 23, 22.5),
		series("GS", 1, 190, 195, 201, 205, 199),
		series("PYPL", 0, 90, 92, 91, 95, 97, 96),
		series("SQ", 2, 60, 62, 61, 64),
	}
}

func TestNew(t *testing.T) {
	a, err := New(nil, nil, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, finance.TradingDaysPerYear, a.TradingDays())
	assert.Equal(t, QuerySQL, a.opts.QueryMode)

	_, err = New(nil, nil, nil, Options{QueryMode: "spark"})
	assert.Error(t, err)
}

func TestAnalyzer_Asset(t *testing.T) {
	ctx := context.Background()
	a := newAnalyzer(t, newStore(t, fixture()...), QuerySQL)

	res, err := a.Asset(ctx, "PYPL")
	require.NoError(t, err)
	assert.Equal(t, 6, res.Series.Len())
	assert.False(t, res.Daily.Points[0].Return.Valid)
	assert.InDelta(t, 96.0/90-1, res.Cumulative.Points[5].Value, 1e-12)

	_, err = a.Asset(ctx, "TSLA")
	assert.ErrorIs(t, err, finance.ErrMissingAsset)
}

func TestAnalyzer_QueryModesAgree(t *testing.T) {
	ctx := context.Background()
	st := newStore(t, fixture()...)
	sqlMode := newAnalyzer(t, st, QuerySQL)
	memMode := newAnalyzer(t, st, QueryMemory)

	x, err := sqlMode.AboveThreshold(ctx, "GS", 200)
	require.NoError(t, err)
	y, err := memMode.AboveThreshold(ctx, "GS", 200)
	require.NoError(t, err)
	assert.Equal(t, x, y)
	assert.Equal(t, []float64{201, 205}, x.Values())

	top1, err := sqlMode.TopReturns(ctx, "GDOT", 3)
	require.NoError(t, err)
	top2, err := memMode.TopReturns(ctx, "GDOT", 3)
	require.NoError(t, err)
	assert.Equal(t, top1, top2)
	require.Len(t, top1.Points, 3)
	assert.Equal(t, d0.AddDate(0, 0, 3), top1.Points[0].Time)

	syms := []finance.Symbol{"GDOT", "GS", "PYPL", "SQ"}
	p1, err := sqlMode.Portfolio(ctx, syms)
	require.NoError(t, err)
	p2, err := memMode.Portfolio(ctx, syms)
	require.NoError(t, err)
	assert.Equal(t, p1.Mean, p2.Mean)
	assert.Equal(t, p1.Metrics, p2.Metrics)
	assert.Equal(t, p1.Frame.Times, p2.Frame.Times)
}

func TestAnalyzer_QueryModesRejectBadRows(t *testing.T) {
	ctx := context.Background()
	gs := series("GS", 0, 190, 205, 210)
	// the last day is stored twice
	gs.Bars = append(gs.Bars, gs.Bars[2])
	st := newStore(t, gs)

	for _, mode := range []string{QuerySQL, QueryMemory} {
		a := newAnalyzer(t, st, mode)

		_, err := a.AboveThreshold(ctx, "GS", 200)
		assert.ErrorIs(t, err, finance.ErrInvalidSeries, mode)

		_, err = a.TopReturns(ctx, "GS", 2)
		assert.ErrorIs(t, err, finance.ErrInvalidSeries, mode)
	}
}

func TestAnalyzer_Portfolio(t *testing.T) {
	ctx := context.Background()
	a := newAnalyzer(t, newStore(t, fixture()...), QuerySQL)

	res, err := a.Portfolio(ctx, []finance.Symbol{"GDOT", "GS", "PYPL", "SQ"})
	require.NoError(t, err)
	// SQ starts at offset 2, everything else covers 2..5
	assert.Equal(t, []time.Time{d0.AddDate(0, 0, 2), d0.AddDate(0, 0, 3), d0.AddDate(0, 0, 4), d0.AddDate(0, 0, 5)}, res.Frame.Times)
	assert.Equal(t, 0, res.Dropped)
	require.Len(t, res.Cumulative, 4)
	require.Len(t, res.Daily, 4)

	// SQ has no return on its first day, the mean uses the other three
	want := ((20.5/21 - 1) + (195.0/190 - 1) + (91.0/92 - 1)) / 3
	assert.InDelta(t, want, res.Mean.Points[0].Value, 1e-12)

	ann, err := finance.Annualize(res.Mean, finance.TradingDaysPerYear)
	require.NoError(t, err)
	assert.Equal(t, ann, res.Metrics.Annualized)
	assert.InDelta(t, res.Mean.Points[0].Value*252*100, res.AnnualizedPct.Points[0].Value, 1e-9)

	_, err = a.Portfolio(ctx, []finance.Symbol{"GDOT", "TSLA"})
	assert.ErrorIs(t, err, finance.ErrMissingAsset)
}

func TestAnalyzer_PortfolioIdenticalAssets(t *testing.T) {
	ctx := context.Background()
	closes := []float64{100, 101, 98.98, 101.9494}
	a := newAnalyzer(t, newStore(t,
		series("A", 0, closes...), series("B", 0, closes...), series("C", 0, closes...),
	), QueryMemory)

	res, err := a.Portfolio(ctx, []finance.Symbol{"A", "B", "C"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Dropped, "first row has no returns")
	single, err := a.Asset(ctx, "A")
	require.NoError(t, err)
	for i, p := range res.Mean.Points {
		assert.InDelta(t, single.Daily.Points[i+1].Return.Float64, p.Value, 1e-15)
	}
	assert.InDelta(t, 0.019494, res.Metrics.TotalReturn, 1e-9)
}

func TestAnalyzer_Charts(t *testing.T) {
	ctx := context.Background()
	a := newAnalyzer(t, newStore(t, fixture()...), QuerySQL)
	png := []byte("\x89PNG")

	for _, kind := range []string{ChartDaily, ChartCumulative} {
		img, err := a.AssetChart(ctx, "PYPL", kind)
		require.NoError(t, err, kind)
		assert.True(t, bytes.HasPrefix(img, png), kind)
	}
	for _, kind := range []string{ChartDaily, ChartCumulative, ChartPortfolio} {
		img, err := a.PortfolioChart(ctx, []finance.Symbol{"GDOT", "PYPL"}, kind)
		require.NoError(t, err, kind)
		assert.True(t, bytes.HasPrefix(img, png), kind)
	}

	_, err := a.AssetChart(ctx, "PYPL", "candles")
	assert.ErrorIs(t, err, finance.ErrInvalidSeries)
	_, err = a.PortfolioChart(ctx, []finance.Symbol{"GDOT"}, "candles")
	assert.ErrorIs(t, err, finance.ErrInvalidSeries)
}
