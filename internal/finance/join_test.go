package finance

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinPortfolio_MismatchedDomains(t *testing.T) {
	a := returnSeries("A", 1, 0.01, 0.02, 0.03) // d1 d2 d3
	b := returnSeries("B", 2, 0.04, 0.05, 0.06) // d2 d3 d4

	f, err := JoinPortfolio(a, b)
	require.NoError(t, err)
	assert.Equal(t, []Symbol{"A", "B"}, f.Symbols)
	assert.Equal(t, []string{day(2).Format(DateFormat), day(3).Format(DateFormat)}, dates(f))

	ra, ok := f.Column(ColumnKey{"A", FieldDailyReturns})
	require.True(t, ok)
	assert.Equal(t, []sql.NullFloat64{ret(0.02), ret(0.03)}, ra)
	rb, ok := f.Column(ColumnKey{"B", FieldDailyReturns})
	require.True(t, ok)
	assert.Equal(t, []sql.NullFloat64{ret(0.04), ret(0.05)}, rb)
}

func TestJoinPortfolio_Commutative(t *testing.T) {
	a := returnSeries("A", 0, 0.01, 0.02, 0.03, 0.04)
	b := returnSeries("B", 1, 0.05, 0.06, 0.07)
	c := returnSeries("C", 0, 0.08, 0.09)

	abc, err := JoinPortfolio(a, b, c)
	require.NoError(t, err)
	cba, err := JoinPortfolio(c, b, a)
	require.NoError(t, err)

	assert.Equal(t, abc.Times, cba.Times)
	for _, k := range abc.Keys() {
		x, _ := abc.Column(k)
		y, ok := cba.Column(k)
		require.True(t, ok, k.String())
		assert.Equal(t, x, y, k.String())
	}
	assert.Len(t, cba.Keys(), len(abc.Keys()))
}

func TestJoinPortfolio_Idempotent(t *testing.T) {
	a := returnSeries("A", 0, 0.01, 0.02, 0.03, 0.04)
	b := returnSeries("B", 2, 0.05, 0.06, 0.07)

	once, err := JoinPortfolio(a, b)
	require.NoError(t, err)

	ja, err := once.Asset("A")
	require.NoError(t, err)
	jb, err := once.Asset("B")
	require.NoError(t, err)
	twice, err := JoinPortfolio(ja, jb)
	require.NoError(t, err)

	assert.Equal(t, once.Times, twice.Times)
	for _, k := range once.Keys() {
		x, _ := once.Column(k)
		y, _ := twice.Column(k)
		assert.Equal(t, x, y, k.String())
	}
}

func TestJoinPortfolio_ColumnsGrouped(t *testing.T) {
	f, err := JoinPortfolio(returnSeries("GS", 0, 0.01), returnSeries("SQ", 0, 0.02))
	require.NoError(t, err)
	keys := f.Keys()
	require.Len(t, keys, 2*len(Fields))
	assert.Equal(t, ColumnKey{"GS", FieldOpen}, keys[0])
	assert.Equal(t, ColumnKey{"GS", FieldDailyReturns}, keys[len(Fields)-1])
	assert.Equal(t, ColumnKey{"SQ", FieldOpen}, keys[len(Fields)])

	vol, _ := f.Column(ColumnKey{"SQ", FieldVolume})
	assert.Equal(t, 1000.0, vol[0].Float64)
}

func TestJoinPortfolio_Errors(t *testing.T) {
	_, err := JoinPortfolio()
	assert.ErrorIs(t, err, ErrMissingAsset)

	_, err = JoinPortfolio(returnSeries("A", 0, 0.01), returnSeries("A", 0, 0.02))
	assert.ErrorIs(t, err, ErrInvalidSeries)

	bad := returnSeries("B", 0, 0.01, 0.02)
	bad.Bars[1].Time = bad.Bars[0].Time
	_, err = JoinPortfolio(returnSeries("A", 0, 0.01), bad)
	assert.ErrorIs(t, err, ErrInvalidSeries)
}

func TestJoinPortfolio_Disjoint(t *testing.T) {
	f, err := JoinPortfolio(returnSeries("A", 0, 0.01), returnSeries("B", 5, 0.02))
	require.NoError(t, err)
	assert.Equal(t, 0, f.Len())
}

func TestFrame_DropWarmup(t *testing.T) {
	a := newSeries("A", 0, []float64{1, 2, 3}, []sql.NullFloat64{{}, {}, ret(0.5)})
	b := newSeries("B", 0, []float64{1, 2, 3}, []sql.NullFloat64{{}, ret(1), ret(0.5)})
	f, err := JoinPortfolio(a, b)
	require.NoError(t, err)

	trimmed, n := f.DropWarmup()
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, trimmed.Len())
	assert.Equal(t, 3, f.Len(), "source frame untouched")
	assert.NoError(t, trimmed.Validate())

	same, n := trimmed.DropWarmup()
	assert.Equal(t, 0, n)
	assert.Same(t, trimmed, same)
}

func TestFrame_Set(t *testing.T) {
	f := NewFrame([]time.Time{day(0), day(1)}, []Symbol{"A"})
	key := ColumnKey{"A", FieldDailyReturns}

	err := f.Set(key, []sql.NullFloat64{ret(0.1)})
	assert.ErrorIs(t, err, ErrInvalidSeries)

	require.NoError(t, f.Set(key, []sql.NullFloat64{{}, ret(0.1)}))
	_, err = f.Asset("A")
	assert.ErrorIs(t, err, ErrMissingAsset, "price columns are missing")

	rs, err := f.Returns()
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, 0.1, rs[0].Dense().Points[0].Value)
}

func dates(f *Frame) []string {
	out := make([]string, len(f.Times))
	for i, t := range f.Times {
		out[i] = t.Format(DateFormat)
	}
	return out
}
