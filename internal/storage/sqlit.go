package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	// Register sqlite3 driver
	_ "github.com/mattn/go-sqlite3"

	"etfAnalyzer/internal/finance"
)

// DB is the subset of *sqlx.DB the store needs.
type DB interface {
	sqlx.ExtContext
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	Close() error
}

// Store reads and writes one price relation per asset symbol.
type Store struct{ db DB }

func OpenSQLite(dsn string) (*sqlx.DB, error) {
	return sqlx.Open("sqlite3", dsn)
}

func NewStore(db DB) *Store { return &Store{db: db} }

// barRow mirrors a row of an asset relation.
type barRow struct {
	Time         string          `db:"time"`
	Open         float64         `db:"open"`
	High         float64         `db:"high"`
	Low          float64         `db:"low"`
	Close        float64         `db:"close"`
	Volume       int64           `db:"volume"`
	DailyReturns sql.NullFloat64 `db:"daily_returns"`
}

func (r barRow) bar() (finance.PriceBar, error) {
	t, err := finance.ParseDate(r.Time)
	if err != nil {
		return finance.PriceBar{}, err
	}
	return finance.PriceBar{
		Time:         t,
		Open:         r.Open,
		High:         r.High,
		Low:          r.Low,
		Close:        r.Close,
		Volume:       r.Volume,
		DailyReturns: r.DailyReturns,
	}, nil
}

// quote returns the relation name of sym as a quoted identifier.
func quote(sym finance.Symbol) string {
	return `"` + strings.ReplaceAll(sym.Table(), `"`, `""`) + `"`
}

// Tables lists the relations in the database.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	var names []string
	err := sqlx.SelectContext(ctx, s.db, &names,
		`SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return names, nil
}

// Symbols lists the relations that can be read as asset series.
func (s *Store) Symbols(ctx context.Context) ([]finance.Symbol, error) {
	names, err := s.Tables(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]finance.Symbol, 0, len(names))
	for _, n := range names {
		if sym, err := finance.ParseSymbol(n); err == nil {
			out = append(out, sym)
		}
	}
	return out, nil
}

// requireAsset maps an unknown relation to finance.ErrMissingAsset.
func (s *Store) requireAsset(ctx context.Context, sym finance.Symbol) error {
	var n int
	err := sqlx.GetContext(ctx, s.db, &n,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name = ?`, sym.Table())
	if err != nil {
		return fmt.Errorf("failed to look up %s: %w", sym, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: no table for %s", finance.ErrMissingAsset, sym)
	}
	return nil
}

// EnsureAsset creates the relation of sym if needed. Time is not a key so
// that duplicated ingestion stays visible to validation.
func (s *Store) EnsureAsset(ctx context.Context, sym finance.Symbol) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+quote(sym)+`(
		time TEXT, open REAL, high REAL, low REAL, close REAL, volume INTEGER, daily_returns REAL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create table for %s: %w", sym, err)
	}
	return nil
}

// InsertBars appends bars to the relation of sym in one transaction.
func (s *Store) InsertBars(ctx context.Context, sym finance.Symbol, bars []finance.PriceBar) error {
	if err := s.EnsureAsset(ctx, sym); err != nil {
		return err
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin insert for %s: %w", sym, err)
	}
	defer tx.Rollback()

	query := `INSERT INTO ` + quote(sym) + `(time, open, high, low, close, volume, daily_returns)
		VALUES(:time, :open, :high, :low, :close, :volume, :daily_returns)`
	for _, b := range bars {
		row := barRow{
			Time:         b.Time.Format(finance.DateFormat),
			Open:         b.Open,
			High:         b.High,
			Low:          b.Low,
			Close:        b.Close,
			Volume:       b.Volume,
			DailyReturns: b.DailyReturns,
		}
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			return fmt.Errorf("failed to insert %s %s: %w", sym, row.Time, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", sym, err)
	}
	return nil
}

// LoadSeries reads every row of the relation in storage order.
// The result is not validated; callers decide how to treat bad rows.
func (s *Store) LoadSeries(ctx context.Context, sym finance.Symbol) (*finance.AssetSeries, error) {
	if err := s.requireAsset(ctx, sym); err != nil {
		return nil, err
	}
	var rows []barRow
	err := sqlx.SelectContext(ctx, s.db, &rows,
		`SELECT time, open, high, low, close, volume, daily_returns FROM `+quote(sym)+` ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sym, err)
	}
	series := &finance.AssetSeries{Symbol: sym, Bars: make([]finance.PriceBar, 0, len(rows))}
	for _, r := range rows {
		b, err := r.bar()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", sym, err)
		}
		series.Bars = append(series.Bars, b)
	}
	return series, nil
}

// CloseAbove selects (time, close) where close > threshold.
func (s *Store) CloseAbove(ctx context.Context, sym finance.Symbol, threshold float64) (finance.Series, error) {
	if err := s.requireAsset(ctx, sym); err != nil {
		return finance.Series{}, err
	}
	var rows []struct {
		Time  string  `db:"time"`
		Close float64 `db:"close"`
	}
	err := sqlx.SelectContext(ctx, s.db, &rows,
		`SELECT time, close FROM `+quote(sym)+` WHERE close > ? ORDER BY rowid`, threshold)
	if err != nil {
		return finance.Series{}, fmt.Errorf("failed to filter %s: %w", sym, err)
	}
	out := finance.Series{Name: string(sym), Points: make([]finance.Point, 0, len(rows))}
	for _, r := range rows {
		t, err := finance.ParseDate(r.Time)
		if err != nil {
			return finance.Series{}, fmt.Errorf("%s: %w", sym, err)
		}
		out.Points = append(out.Points, finance.Point{Time: t, Value: r.Close})
	}
	return out, nil
}

// TopReturns selects the k largest daily returns, descending.
func (s *Store) TopReturns(ctx context.Context, sym finance.Symbol, k int) (finance.ReturnSeries, error) {
	if k < 0 {
		return finance.ReturnSeries{}, fmt.Errorf("%w: k must not be negative, got %d", finance.ErrInvalidSeries, k)
	}
	if err := s.requireAsset(ctx, sym); err != nil {
		return finance.ReturnSeries{}, err
	}
	var rows []struct {
		Time         string          `db:"time"`
		DailyReturns sql.NullFloat64 `db:"daily_returns"`
	}
	err := sqlx.SelectContext(ctx, s.db, &rows,
		`SELECT time, daily_returns FROM `+quote(sym)+` ORDER BY daily_returns DESC, rowid LIMIT ?`, k)
	if err != nil {
		return finance.ReturnSeries{}, fmt.Errorf("failed to rank %s: %w", sym, err)
	}
	out := finance.ReturnSeries{Name: string(sym), Points: make([]finance.ReturnPoint, 0, len(rows))}
	for _, r := range rows {
		t, err := finance.ParseDate(r.Time)
		if err != nil {
			return finance.ReturnSeries{}, fmt.Errorf("%s: %w", sym, err)
		}
		out.Points = append(out.Points, finance.ReturnPoint{Time: t, Return: r.DailyReturns})
	}
	return out, nil
}

// JoinFrame inner-joins the relations of symbols on time and returns one
// frame keyed by (symbol, field) with a single time column.
func (s *Store) JoinFrame(ctx context.Context, symbols []finance.Symbol) (*finance.Frame, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("%w: no symbols to join", finance.ErrMissingAsset)
	}
	seen := make(map[finance.Symbol]bool, len(symbols))
	for _, sym := range symbols {
		if seen[sym] {
			return nil, fmt.Errorf("%w: duplicate symbol %s", finance.ErrInvalidSeries, sym)
		}
		seen[sym] = true
		if err := s.requireAsset(ctx, sym); err != nil {
			return nil, err
		}
	}

	query := joinQuery(symbols)
	rows, err := s.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to join %v: %w", symbols, err)
	}
	defer rows.Close()

	width := len(symbols) * len(finance.Fields)
	var (
		times []string
		cols  = make([][]sql.NullFloat64, width)
	)
	for rows.Next() {
		var t string
		vals := make([]sql.NullFloat64, width)
		dest := make([]any, 0, width+1)
		dest = append(dest, &t)
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan joined row: %w", err)
		}
		times = append(times, t)
		for i, v := range vals {
			cols[i] = append(cols[i], v)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read joined rows: %w", err)
	}

	index, err := parseDates(times)
	if err != nil {
		return nil, err
	}
	f := finance.NewFrame(index, symbols)
	for i, sym := range symbols {
		for j, field := range finance.Fields {
			c := cols[i*len(finance.Fields)+j]
			if c == nil {
				c = []sql.NullFloat64{}
			}
			if err := f.Set(finance.ColumnKey{Symbol: sym, Field: field}, c); err != nil {
				return nil, err
			}
		}
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// joinQuery builds
//
//	SELECT a.time, a.open, …, b.open, … FROM a
//	INNER JOIN b ON date(a.time) = date(b.time) …
//
// Times are compared as calendar days so that rows written by pandas
// ("2019-05-31 00:00:00.000000") match rows written by InsertBars.
func joinQuery(symbols []finance.Symbol) string {
	base := quote(symbols[0])
	cols := []string{base + ".time"}
	for _, sym := range symbols {
		for _, field := range finance.Fields {
			cols = append(cols, quote(sym)+"."+string(field))
		}
	}
	var b strings.Builder
	b.WriteString("SELECT " + strings.Join(cols, ", ") + " FROM " + base)
	for _, sym := range symbols[1:] {
		b.WriteString(" INNER JOIN " + quote(sym) + " ON date(" + base + ".time) = date(" + quote(sym) + ".time)")
	}
	b.WriteString(" ORDER BY date(" + base + ".time)")
	return b.String()
}

func parseDates(in []string) ([]time.Time, error) {
	out := make([]time.Time, len(in))
	for i, s := range in {
		t, err := finance.ParseDate(s)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// IsMissing reports whether err means the asset has no relation.
func IsMissing(err error) bool { return errors.Is(err, finance.ErrMissingAsset) }
