package finance

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleAssetReturns_CumulativeMatchesProduct(t *testing.T) {
	s := newSeries("PYPL", 0,
		[]float64{100, 102, 99.96, 104.9580, 103.9084},
		[]sql.NullFloat64{{}, ret(0.02), ret(-0.02), ret(0.05), ret(-0.01)})

	daily, cum, err := SingleAssetReturns(s)
	require.NoError(t, err)
	require.Equal(t, s.Len(), daily.Len())
	require.Equal(t, s.Len(), cum.Len())

	assert.False(t, daily.Points[0].Return.Valid, "first return propagates as null")
	assert.Equal(t, 0.0, cum.Points[0].Value)

	for i := range cum.Points {
		want := 1.0
		for j := 0; j <= i; j++ {
			if r := daily.Points[j].Return; r.Valid {
				want *= 1 + r.Float64
			}
		}
		assert.InDelta(t, want-1, cum.Points[i].Value, 1e-12, "row %d", i)
		assert.Equal(t, s.Bars[i].Time, cum.Points[i].Time)
	}
}

func TestSingleAssetReturns_Deterministic(t *testing.T) {
	s := returnSeries("GS", 0, 0.013, -0.007, 0.021, 0.0004)
	_, a, err := SingleAssetReturns(s)
	require.NoError(t, err)
	_, b, err := SingleAssetReturns(s)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSingleAssetReturns_RejectsInvalid(t *testing.T) {
	s := returnSeries("GS", 0, 0.01, 0.02)
	s.Bars[1].Time = s.Bars[0].Time
	_, _, err := SingleAssetReturns(s)
	assert.ErrorIs(t, err, ErrInvalidSeries)
}

func TestCumulative(t *testing.T) {
	in := Series{Name: "etf", Points: []Point{
		{day(0), 0.0}, {day(1), 0.01}, {day(2), -0.02}, {day(3), 0.03},
	}}
	got, err := Cumulative(in)
	require.NoError(t, err)
	want := []float64{0, 0.01, 1.01*0.98 - 1, 1.01*0.98*1.03 - 1}
	for i, w := range want {
		assert.InDelta(t, w, got.Points[i].Value, 1e-12)
	}
	assert.InDelta(t, -0.0102, got.Points[2].Value, 1e-12)
	assert.InDelta(t, 0.019494, got.Points[3].Value, 1e-12)

	_, err = Cumulative(Series{Points: []Point{{day(1), 0}, {day(0), 0}}})
	assert.ErrorIs(t, err, ErrInvalidSeries)
}

func TestDailyReturnsFromCloses(t *testing.T) {
	got := DailyReturnsFromCloses([]float64{100, 110, 99})
	require.Len(t, got, 3)
	assert.False(t, got[0].Valid)
	assert.InDelta(t, 0.1, got[1].Float64, 1e-12)
	assert.InDelta(t, -0.1, got[2].Float64, 1e-12)
}
