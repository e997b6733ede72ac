package finance

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_OK(t *testing.T) {
	s := newSeries("PYPL", 0, []float64{100, 101, 99}, []sql.NullFloat64{{}, ret(0.01), ret(-0.0198)})
	assert.NoError(t, s.Validate())
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *AssetSeries)
	}{
		{"duplicate time", func(s *AssetSeries) { s.Bars[2].Time = s.Bars[1].Time }},
		{"unordered time", func(s *AssetSeries) { s.Bars[0].Time, s.Bars[2].Time = s.Bars[2].Time, s.Bars[0].Time }},
		{"intraday time", func(s *AssetSeries) { s.Bars[1].Time = s.Bars[1].Time.Add(9 * time.Hour) }},
		{"zero close", func(s *AssetSeries) { s.Bars[1].Close = 0 }},
		{"negative volume", func(s *AssetSeries) { s.Bars[1].Volume = -1 }},
		{"no symbol", func(s *AssetSeries) { s.Symbol = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSeries("PYPL", 0, []float64{100, 101, 99}, nil)
			tt.mutate(s)
			err := s.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidSeries)
		})
	}
}

func TestParseDate(t *testing.T) {
	for _, in := range []string{"2019-05-31", "2019-05-31 00:00:00", "2019-05-31 00:00:00.000000", "2019-5-31"} {
		got, err := ParseDate(in)
		require.NoError(t, err, in)
		assert.Equal(t, NewDate(2019, time.May, 31), got, in)
	}

	_, err := ParseDate("2019-05-31 15:30:00")
	assert.ErrorIs(t, err, ErrInvalidSeries)
	_, err = ParseDate("yesterday")
	assert.ErrorIs(t, err, ErrInvalidSeries)
}
