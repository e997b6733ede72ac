package finance

import (
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// Frame is the inner join of several asset series on time. Columns are
// addressed by (symbol, field); Times is the single shared index.
type Frame struct {
	Times   []time.Time
	Symbols []Symbol
	columns map[ColumnKey][]sql.NullFloat64
}

// NewFrame returns an empty frame over the given index.
func NewFrame(times []time.Time, symbols []Symbol) *Frame {
	return &Frame{
		Times:   times,
		Symbols: symbols,
		columns: make(map[ColumnKey][]sql.NullFloat64, len(symbols)*len(Fields)),
	}
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.Times) }

// Set stores a column. Its length must match the index.
func (f *Frame) Set(key ColumnKey, values []sql.NullFloat64) error {
	if len(values) != len(f.Times) {
		return fmt.Errorf("%w: column %s has %d rows, expected %d", ErrInvalidSeries, key, len(values), len(f.Times))
	}
	f.columns[key] = values
	return nil
}

// Column returns the column for key.
func (f *Frame) Column(key ColumnKey) ([]sql.NullFloat64, bool) {
	c, ok := f.columns[key]
	return c, ok
}

// Keys lists the columns grouped by symbol then field, in frame order.
func (f *Frame) Keys() []ColumnKey {
	keys := make([]ColumnKey, 0, len(f.columns))
	for _, sym := range f.Symbols {
		for _, field := range Fields {
			k := ColumnKey{Symbol: sym, Field: field}
			if _, ok := f.columns[k]; ok {
				keys = append(keys, k)
			}
		}
	}
	return keys
}

// Asset rebuilds the series of one symbol from the frame's price columns.
func (f *Frame) Asset(sym Symbol) (*AssetSeries, error) {
	cols := make(map[Field][]sql.NullFloat64, len(Fields))
	for _, field := range Fields {
		c, ok := f.columns[ColumnKey{Symbol: sym, Field: field}]
		if !ok {
			return nil, fmt.Errorf("%w: frame has no %s.%s column", ErrMissingAsset, sym, field)
		}
		cols[field] = c
	}
	s := &AssetSeries{Symbol: sym, Bars: make([]PriceBar, len(f.Times))}
	for i, t := range f.Times {
		s.Bars[i] = PriceBar{
			Time:         t,
			Open:         cols[FieldOpen][i].Float64,
			High:         cols[FieldHigh][i].Float64,
			Low:          cols[FieldLow][i].Float64,
			Close:        cols[FieldClose][i].Float64,
			Volume:       int64(cols[FieldVolume][i].Float64),
			DailyReturns: cols[FieldDailyReturns][i],
		}
	}
	return s, nil
}

// Returns returns the daily return column of each symbol.
func (f *Frame) Returns() ([]ReturnSeries, error) {
	out := make([]ReturnSeries, 0, len(f.Symbols))
	for _, sym := range f.Symbols {
		c, ok := f.columns[ColumnKey{Symbol: sym, Field: FieldDailyReturns}]
		if !ok {
			return nil, fmt.Errorf("%w: frame has no %s.%s column", ErrMissingAsset, sym, FieldDailyReturns)
		}
		rs := ReturnSeries{Name: string(sym), Points: make([]ReturnPoint, len(f.Times))}
		for i, t := range f.Times {
			rs.Points[i] = ReturnPoint{Time: t, Return: c[i]}
		}
		out = append(out, rs)
	}
	return out, nil
}

// DropWarmup returns a frame without the leading rows in which no asset has
// a daily return yet. Later rows are left alone.
func (f *Frame) DropWarmup() (*Frame, int) {
	skip := 0
	for ; skip < len(f.Times); skip++ {
		found := false
		for _, sym := range f.Symbols {
			if c := f.columns[ColumnKey{Symbol: sym, Field: FieldDailyReturns}]; skip < len(c) && c[skip].Valid {
				found = true
				break
			}
		}
		if found {
			break
		}
	}
	if skip == 0 {
		return f, 0
	}
	out := NewFrame(f.Times[skip:], f.Symbols)
	for k, c := range f.columns {
		out.columns[k] = c[skip:]
	}
	return out, skip
}

// Validate checks the index is strictly increasing and every column is aligned.
func (f *Frame) Validate() error {
	for i := 1; i < len(f.Times); i++ {
		if !f.Times[i].After(f.Times[i-1]) {
			return fmt.Errorf("%w: frame time %s does not follow %s", ErrInvalidSeries,
				f.Times[i].Format(DateFormat), f.Times[i-1].Format(DateFormat))
		}
	}
	for k, c := range f.columns {
		if len(c) != len(f.Times) {
			return fmt.Errorf("%w: column %s has %d rows, expected %d", ErrInvalidSeries, k, len(c), len(f.Times))
		}
	}
	return nil
}

// JoinPortfolio inner-joins the series on time. Only dates present in every
// series survive; nothing is forward filled.
func JoinPortfolio(series ...*AssetSeries) (*Frame, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: no series to join", ErrMissingAsset)
	}
	seen := make(map[Symbol]bool, len(series))
	symbols := make([]Symbol, 0, len(series))
	for _, s := range series {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if seen[s.Symbol] {
			return nil, fmt.Errorf("%w: duplicate symbol %s", ErrInvalidSeries, s.Symbol)
		}
		seen[s.Symbol] = true
		symbols = append(symbols, s.Symbol)
	}

	// intersect dates across all series
	count := map[int64]int{}
	for _, s := range series {
		for _, bar := range s.Bars {
			count[bar.Time.Unix()]++
		}
	}
	common := make([]int64, 0, len(count))
	for t, c := range count {
		if c == len(series) {
			common = append(common, t)
		}
	}
	sort.Slice(common, func(i, j int) bool { return common[i] < common[j] })

	times := make([]time.Time, len(common))
	row := make(map[int64]int, len(common))
	for i, t := range common {
		times[i] = time.Unix(t, 0).UTC()
		row[t] = i
	}

	f := NewFrame(times, symbols)
	for _, s := range series {
		cols := make(map[Field][]sql.NullFloat64, len(Fields))
		for _, field := range Fields {
			cols[field] = make([]sql.NullFloat64, len(times))
		}
		for _, bar := range s.Bars {
			i, ok := row[bar.Time.Unix()]
			if !ok {
				continue
			}
			cols[FieldOpen][i] = valid(bar.Open)
			cols[FieldHigh][i] = valid(bar.High)
			cols[FieldLow][i] = valid(bar.Low)
			cols[FieldClose][i] = valid(bar.Close)
			cols[FieldVolume][i] = valid(float64(bar.Volume))
			cols[FieldDailyReturns][i] = bar.DailyReturns
		}
		for field, c := range cols {
			f.columns[ColumnKey{Symbol: s.Symbol, Field: field}] = c
		}
	}
	return f, nil
}

func valid(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }
