package report

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"etfAnalyzer/internal/finance"
)

// window returns the row indices to show for n rows: all of them when
// they fit in head+tail, else the first and last `edge` rows. gapAt is the
// position in idx where skipped rows belong, or -1.
func window(n, edge int) (idx []int, gapAt int) {
	gapAt = -1
	if edge <= 0 || n <= 2*edge {
		idx = make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx, gapAt
	}
	for i := 0; i < edge; i++ {
		idx = append(idx, i)
	}
	for i := n - edge; i < n; i++ {
		idx = append(idx, i)
	}
	return idx, edge
}

func nullable(v sql.NullFloat64, format string) string {
	if !v.Valid {
		return "null"
	}
	return fmt.Sprintf(format, v.Float64)
}

// TablesMarkdown lists the relations of the database.
func TablesMarkdown(names []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Tables\n\n")
	if len(names) == 0 {
		fmt.Fprintln(&b, "_no tables_")
		return b.String()
	}
	fmt.Fprintln(&b, "| # | Table |")
	fmt.Fprintln(&b, "|---:|:---|")
	for i, n := range names {
		fmt.Fprintf(&b, "| %d | %s |\n", i+1, n)
	}
	return b.String()
}

// AssetMarkdown shows the head and tail of a series with its daily and
// cumulative returns. cumulative may be shorter than the series.
func AssetMarkdown(s *finance.AssetSeries, cumulative finance.Series, edge int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", s.Symbol)
	if s.Len() == 0 {
		fmt.Fprintln(&b, "_no rows_")
		return b.String()
	}
	fmt.Fprintf(&b, "%s trading days from %s to %s.\n\n",
		humanize.Comma(int64(s.Len())), s.First().Format(finance.DateFormat), s.Last().Format(finance.DateFormat))

	fmt.Fprintln(&b, "| Time | Open | High | Low | Close | Volume | Daily return | Cumulative |")
	fmt.Fprintln(&b, "|:---|---:|---:|---:|---:|---:|---:|---:|")
	idx, gap := window(s.Len(), edge)
	for i, j := range idx {
		if i == gap {
			fmt.Fprintln(&b, "| … | | | | | | | |")
		}
		bar := s.Bars[j]
		cum := ""
		if j < cumulative.Len() {
			cum = fmt.Sprintf("%.4f", cumulative.Points[j].Value)
		}
		fmt.Fprintf(&b, "| %s | %.2f | %.2f | %.2f | %.2f | %s | %s | %s |\n",
			bar.Time.Format(finance.DateFormat),
			bar.Open, bar.High, bar.Low, bar.Close,
			humanize.Comma(bar.Volume),
			nullable(bar.DailyReturns, "%.4f"),
			cum,
		)
	}
	return b.String()
}

// CloseMarkdown lists (time, close) pairs, e.g. the rows above a threshold.
func CloseMarkdown(title string, s finance.Series) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	if s.Len() == 0 {
		fmt.Fprintln(&b, "_no rows_")
		return b.String()
	}
	fmt.Fprintf(&b, "%s rows.\n\n", humanize.Comma(int64(s.Len())))
	fmt.Fprintln(&b, "| Time | Close |")
	fmt.Fprintln(&b, "|:---|---:|")
	for _, p := range s.Points {
		fmt.Fprintf(&b, "| %s | %s |\n", p.Time.Format(finance.DateFormat), humanize.CommafWithDigits(p.Value, 2))
	}
	return b.String()
}

// ReturnsMarkdown lists (time, daily_returns) pairs, e.g. the top-k days.
func ReturnsMarkdown(title string, rs finance.ReturnSeries) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	if rs.Len() == 0 {
		fmt.Fprintln(&b, "_no rows_")
		return b.String()
	}
	fmt.Fprintln(&b, "| # | Time | Daily return | % |")
	fmt.Fprintln(&b, "|---:|:---|---:|---:|")
	for i, p := range rs.Points {
		pct := "null"
		if p.Return.Valid {
			pct = fmt.Sprintf("%.2f%%", p.Return.Float64*100)
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", i+1, p.Time.Format(finance.DateFormat), nullable(p.Return, "%.4f"), pct)
	}
	return b.String()
}

// FrameMarkdown shows the head and tail of the daily return columns of a
// joined frame next to the portfolio mean.
func FrameMarkdown(f *finance.Frame, mean finance.Series, edge int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Portfolio %s\n\n", joinSymbols(f.Symbols))
	if f.Len() == 0 {
		fmt.Fprintln(&b, "_no common trading days_")
		return b.String()
	}
	fmt.Fprintf(&b, "%s common trading days from %s to %s.\n\n",
		humanize.Comma(int64(f.Len())), f.Times[0].Format(finance.DateFormat), f.Times[f.Len()-1].Format(finance.DateFormat))

	header := []string{"Time"}
	align := []string{":---"}
	for _, sym := range f.Symbols {
		header = append(header, string(sym))
		align = append(align, "---:")
	}
	header = append(header, "Mean")
	align = append(align, "---:")
	fmt.Fprintf(&b, "| %s |\n", strings.Join(header, " | "))
	fmt.Fprintf(&b, "|%s|\n", strings.Join(align, "|"))

	cols := make([][]sql.NullFloat64, len(f.Symbols))
	for i, sym := range f.Symbols {
		cols[i], _ = f.Column(finance.ColumnKey{Symbol: sym, Field: finance.FieldDailyReturns})
	}
	idx, gap := window(f.Len(), edge)
	for i, j := range idx {
		if i == gap {
			fmt.Fprintf(&b, "| … |%s\n", strings.Repeat(" |", len(f.Symbols)+1))
		}
		row := []string{f.Times[j].Format(finance.DateFormat)}
		for _, c := range cols {
			v := sql.NullFloat64{}
			if j < len(c) {
				v = c[j]
			}
			row = append(row, nullable(v, "%.4f"))
		}
		m := ""
		if j < mean.Len() {
			m = fmt.Sprintf("%.4f", mean.Points[j].Value)
		}
		row = append(row, m)
		fmt.Fprintf(&b, "| %s |\n", strings.Join(row, " | "))
	}
	return b.String()
}

// MetricsMarkdown renders the portfolio statistics.
func MetricsMarkdown(m *finance.Metrics, tradingDays int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Metrics\n\n")
	fmt.Fprintln(&b, "| Metric | Value |")
	fmt.Fprintln(&b, "|:---|---:|")
	fmt.Fprintf(&b, "| Days | %s |\n", humanize.Comma(int64(m.NumDays)))
	fmt.Fprintf(&b, "| Mean daily return | %.6f |\n", m.MeanDailyReturn)
	fmt.Fprintf(&b, "| Annualized return (%d days) | %.4f |\n", tradingDays, m.Annualized.Return)
	fmt.Fprintf(&b, "| Annualized return %% | %.2f%% |\n", m.Annualized.Percent)
	fmt.Fprintf(&b, "| Cumulative return | %.4f |\n", m.TotalReturn)
	fmt.Fprintf(&b, "| Cumulative return %% | %.2f%% |\n", m.TotalReturnPct)
	fmt.Fprintf(&b, "| Volatility | %.2f%% |\n", m.Volatility*100)
	fmt.Fprintf(&b, "| Sharpe ratio | %.2f |\n", m.SharpeRatio)
	fmt.Fprintf(&b, "| Max drawdown | %.2f%% |\n", m.MaxDrawdown*100)
	return b.String()
}

func joinSymbols(syms []finance.Symbol) string {
	out := make([]string, len(syms))
	for i, s := range syms {
		out[i] = string(s)
	}
	return strings.Join(out, ", ")
}
