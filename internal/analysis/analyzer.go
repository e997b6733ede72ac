package analysis

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"etfAnalyzer/internal/charts"
	"etfAnalyzer/internal/finance"
)

const (
	QuerySQL    = "sql"
	QueryMemory = "memory"
)

// Chart kinds.
const (
	ChartDaily      = "daily"
	ChartCumulative = "cumulative"
	ChartPortfolio  = "portfolio"
)

// Store is the query interface the analyzer reads from.
type Store interface {
	Tables(ctx context.Context) ([]string, error)
	LoadSeries(ctx context.Context, sym finance.Symbol) (*finance.AssetSeries, error)
	CloseAbove(ctx context.Context, sym finance.Symbol, threshold float64) (finance.Series, error)
	TopReturns(ctx context.Context, sym finance.Symbol, k int) (finance.ReturnSeries, error)
	JoinFrame(ctx context.Context, symbols []finance.Symbol) (*finance.Frame, error)
}

type Options struct {
	TradingDays int
	QueryMode   string
	ChartWidth  int
	ChartHeight int
}

// Analyzer runs the single asset and portfolio workflows against a store.
type Analyzer struct {
	store    Store
	renderer *charts.Renderer
	log      *zap.Logger
	opts     Options
}

func New(store Store, renderer *charts.Renderer, log *zap.Logger, opts Options) (*Analyzer, error) {
	if opts.TradingDays <= 0 {
		opts.TradingDays = finance.TradingDaysPerYear
	}
	switch opts.QueryMode {
	case "":
		opts.QueryMode = QuerySQL
	case QuerySQL, QueryMemory:
	default:
		return nil, fmt.Errorf("unknown query mode %q", opts.QueryMode)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyzer{store: store, renderer: renderer, log: log, opts: opts}, nil
}

func (a *Analyzer) TradingDays() int { return a.opts.TradingDays }

// Tables lists the relations of the store.
func (a *Analyzer) Tables(ctx context.Context) ([]string, error) {
	return a.store.Tables(ctx)
}

type AssetResult struct {
	Series     *finance.AssetSeries
	Daily      finance.ReturnSeries
	Cumulative finance.Series
}

// Asset loads one series and derives its daily and cumulative returns.
func (a *Analyzer) Asset(ctx context.Context, sym finance.Symbol) (*AssetResult, error) {
	s, err := a.store.LoadSeries(ctx, sym)
	if err != nil {
		a.log.Warn("failed to load asset", zap.String("symbol", string(sym)), zap.Error(err))
		return nil, err
	}
	daily, cum, err := finance.SingleAssetReturns(s)
	if err != nil {
		a.log.Warn("invalid asset series", zap.String("symbol", string(sym)), zap.Error(err))
		return nil, err
	}
	a.log.Info("loaded asset",
		zap.String("symbol", string(sym)),
		zap.Int("rows", s.Len()),
		zap.String("first", s.First().Format(finance.DateFormat)),
		zap.String("last", s.Last().Format(finance.DateFormat)),
	)
	return &AssetResult{Series: s, Daily: daily, Cumulative: cum}, nil
}

// AboveThreshold returns the closes strictly above threshold.
func (a *Analyzer) AboveThreshold(ctx context.Context, sym finance.Symbol, threshold float64) (finance.Series, error) {
	var (
		out finance.Series
		err error
	)
	if a.opts.QueryMode == QuerySQL {
		if err = a.checkSeries(ctx, sym); err == nil {
			out, err = a.store.CloseAbove(ctx, sym, threshold)
		}
	} else {
		var s *finance.AssetSeries
		if s, err = a.store.LoadSeries(ctx, sym); err == nil {
			out, err = finance.FilterAboveThreshold(s, threshold)
		}
	}
	if err != nil {
		a.log.Warn("threshold query failed", zap.String("symbol", string(sym)), zap.Float64("threshold", threshold), zap.Error(err))
		return finance.Series{}, err
	}
	a.log.Info("threshold query",
		zap.String("symbol", string(sym)),
		zap.String("mode", a.opts.QueryMode),
		zap.Float64("threshold", threshold),
		zap.Int("rows", out.Len()),
	)
	return out, nil
}

// TopReturns returns the k largest daily returns.
func (a *Analyzer) TopReturns(ctx context.Context, sym finance.Symbol, k int) (finance.ReturnSeries, error) {
	var (
		out finance.ReturnSeries
		err error
	)
	if a.opts.QueryMode == QuerySQL {
		if err = a.checkSeries(ctx, sym); err == nil {
			out, err = a.store.TopReturns(ctx, sym, k)
		}
	} else {
		var s *finance.AssetSeries
		if s, err = a.store.LoadSeries(ctx, sym); err == nil {
			out, err = finance.TopKReturns(s, k)
		}
	}
	if err != nil {
		a.log.Warn("top returns query failed", zap.String("symbol", string(sym)), zap.Int("k", k), zap.Error(err))
		return finance.ReturnSeries{}, err
	}
	a.log.Info("top returns query",
		zap.String("symbol", string(sym)),
		zap.String("mode", a.opts.QueryMode),
		zap.Int("k", k),
		zap.Int("rows", out.Len()),
	)
	return out, nil
}

// checkSeries rejects a relation with bad rows before SQL filters or
// ranks it, the same way the in-memory path does.
func (a *Analyzer) checkSeries(ctx context.Context, sym finance.Symbol) error {
	s, err := a.store.LoadSeries(ctx, sym)
	if err != nil {
		return err
	}
	return s.Validate()
}

type PortfolioResult struct {
	Symbols []finance.Symbol
	// Frame is the joined frame without warm-up rows.
	Frame   *finance.Frame
	Dropped int
	Mean    finance.Series
	// AnnualizedPct is the mean daily return of each row scaled to a year, in percent.
	AnnualizedPct finance.Series
	Metrics       *finance.Metrics
	// Daily and Cumulative hold one series per asset, aligned on Frame.
	Daily      []finance.Series
	Cumulative []finance.Series
}

// Portfolio joins the assets, averages their daily returns with equal
// weights and derives the portfolio statistics.
func (a *Analyzer) Portfolio(ctx context.Context, symbols []finance.Symbol) (*PortfolioResult, error) {
	log := a.log.With(zap.String("symbols", joinSymbols(symbols)), zap.String("mode", a.opts.QueryMode))

	frame, err := a.join(ctx, symbols)
	if err != nil {
		log.Warn("failed to join portfolio", zap.Error(err))
		return nil, err
	}
	frame, dropped := frame.DropWarmup()
	if dropped > 0 {
		log.Debug("dropped warm-up rows", zap.Int("rows", dropped))
	}

	mean, err := finance.PortfolioMeanReturns(frame)
	if err != nil {
		log.Warn("failed to average portfolio returns", zap.Error(err))
		return nil, err
	}
	metrics, err := finance.DeriveMetrics(mean, a.opts.TradingDays)
	if err != nil {
		log.Warn("failed to derive portfolio metrics", zap.Error(err))
		return nil, err
	}

	res := &PortfolioResult{
		Symbols:       frame.Symbols,
		Frame:         frame,
		Dropped:       dropped,
		Mean:          mean,
		AnnualizedPct: mean.Scale("ann_mean_daily_returns_pct", float64(a.opts.TradingDays)*100),
		Metrics:       metrics,
	}
	for _, sym := range frame.Symbols {
		s, err := frame.Asset(sym)
		if err != nil {
			return nil, err
		}
		daily, cum, err := finance.SingleAssetReturns(s)
		if err != nil {
			return nil, err
		}
		res.Daily = append(res.Daily, daily.Dense())
		res.Cumulative = append(res.Cumulative, cum)
	}

	log.Info("portfolio computed",
		zap.Int("rows", frame.Len()),
		zap.Float64("annualized_pct", metrics.Annualized.Percent),
		zap.Float64("cumulative", metrics.TotalReturn),
	)
	return res, nil
}

func (a *Analyzer) join(ctx context.Context, symbols []finance.Symbol) (*finance.Frame, error) {
	if a.opts.QueryMode == QuerySQL {
		f, err := a.store.JoinFrame(ctx, symbols)
		if err != nil {
			return nil, err
		}
		// the join only checks the shared index; check each asset's rows too
		for _, sym := range f.Symbols {
			s, err := f.Asset(sym)
			if err != nil {
				return nil, err
			}
			if err := s.Validate(); err != nil {
				return nil, err
			}
		}
		return f, nil
	}

	series := make([]*finance.AssetSeries, 0, len(symbols))
	for _, sym := range symbols {
		s, err := a.store.LoadSeries(ctx, sym)
		if err != nil {
			return nil, err
		}
		series = append(series, s)
	}
	return finance.JoinPortfolio(series...)
}

// AssetChart renders the daily or cumulative returns of one asset as PNG.
func (a *Analyzer) AssetChart(ctx context.Context, sym finance.Symbol, kind string) ([]byte, error) {
	res, err := a.Asset(ctx, sym)
	if err != nil {
		return nil, err
	}
	key := "asset|" + string(sym) + "|" + kind
	opts := charts.Options{XLabel: "Time", Width: a.opts.ChartWidth, Height: a.opts.ChartHeight}
	switch kind {
	case ChartDaily:
		opts.Title = fmt.Sprintf("(%s) Daily Returns", sym)
		opts.YLabel = "Daily Returns"
		opts.YFormat = "%.4f"
		return a.renderer.Line(key, opts, res.Daily.Dense())
	case ChartCumulative:
		opts.Title = fmt.Sprintf("(%s) Cumulative Returns", sym)
		opts.YLabel = "Cumulative Returns"
		opts.YFormat = "%.2f"
		return a.renderer.Line(key, opts, res.Cumulative)
	}
	return nil, fmt.Errorf("%w: unknown asset chart %q", finance.ErrInvalidSeries, kind)
}

// PortfolioChart renders the per-asset daily or cumulative returns, or the
// cumulative return of the portfolio mean, as PNG.
func (a *Analyzer) PortfolioChart(ctx context.Context, symbols []finance.Symbol, kind string) ([]byte, error) {
	if kind != ChartDaily && kind != ChartCumulative && kind != ChartPortfolio {
		return nil, fmt.Errorf("%w: unknown portfolio chart %q", finance.ErrInvalidSeries, kind)
	}
	res, err := a.Portfolio(ctx, symbols)
	if err != nil {
		return nil, err
	}
	names := joinSymbols(res.Symbols)
	key := "portfolio|" + names + "|" + kind
	opts := charts.Options{
		XLabel:  "Time",
		YLabel:  "Cumulative Returns",
		YFormat: "%.2f",
		Width:   a.opts.ChartWidth,
		Height:  a.opts.ChartHeight,
	}
	switch kind {
	case ChartDaily:
		opts.Title = fmt.Sprintf("(%s) Daily Returns", names)
		opts.YLabel = "Daily Returns"
		return a.renderer.Compare(key, opts, res.Daily...)
	case ChartCumulative:
		opts.Title = fmt.Sprintf("(%s) Cumulative Returns", names)
		return a.renderer.Compare(key, opts, res.Cumulative...)
	default:
		opts.Title = "ETF Cumulative Returns"
		return a.renderer.Line(key, opts, res.Metrics.Cumulative)
	}
}

func joinSymbols(syms []finance.Symbol) string {
	out := make([]string, len(syms))
	for i, s := range syms {
		out[i] = string(s)
	}
	return strings.Join(out, ", ")
}
