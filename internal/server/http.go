package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"etfAnalyzer/internal/analysis"
	"etfAnalyzer/internal/finance"
)

// Analyzer is what the dashboard reads from.
type Analyzer interface {
	Tables(ctx context.Context) ([]string, error)
	Asset(ctx context.Context, sym finance.Symbol) (*analysis.AssetResult, error)
	AboveThreshold(ctx context.Context, sym finance.Symbol, threshold float64) (finance.Series, error)
	TopReturns(ctx context.Context, sym finance.Symbol, k int) (finance.ReturnSeries, error)
	Portfolio(ctx context.Context, symbols []finance.Symbol) (*analysis.PortfolioResult, error)
	AssetChart(ctx context.Context, sym finance.Symbol, kind string) ([]byte, error)
	PortfolioChart(ctx context.Context, symbols []finance.Symbol, kind string) ([]byte, error)
}

// Defaults fill in query parameters the client leaves out.
type Defaults struct {
	Symbols   []finance.Symbol
	Threshold float64
	TopK      int
}

type handler struct {
	a        Analyzer
	log      *zap.Logger
	defaults Defaults
}

func NewHTTPMux(a Analyzer, log *zap.Logger, defaults Defaults) *http.ServeMux {
	h := &handler{a: a, log: log, defaults: defaults}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) })
	mux.HandleFunc("GET /api/assets", h.assets)
	mux.HandleFunc("GET /api/assets/{symbol}", h.asset)
	mux.HandleFunc("GET /api/assets/{symbol}/above", h.above)
	mux.HandleFunc("GET /api/assets/{symbol}/top", h.top)
	mux.HandleFunc("GET /api/portfolio", h.portfolio)
	mux.HandleFunc("GET /charts/assets/{symbol}/{kind}", h.assetChart)
	mux.HandleFunc("GET /charts/portfolio/{kind}", h.portfolioChart)
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func ListenAndServe(ctx context.Context, addr string, mux http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           logRequests(mux, log),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler, log *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)),
		)
	})
}

type pointJSON struct {
	Time  string  `json:"time"`
	Value float64 `json:"value"`
}

type returnJSON struct {
	Time  string   `json:"time"`
	Value *float64 `json:"value"`
}

func points(s finance.Series) []pointJSON {
	out := make([]pointJSON, len(s.Points))
	for i, p := range s.Points {
		out[i] = pointJSON{Time: p.Time.Format(finance.DateFormat), Value: p.Value}
	}
	return out
}

func returns(rs finance.ReturnSeries) []returnJSON {
	out := make([]returnJSON, len(rs.Points))
	for i, p := range rs.Points {
		out[i] = returnJSON{Time: p.Time.Format(finance.DateFormat)}
		if p.Return.Valid {
			v := p.Return.Float64
			out[i].Value = &v
		}
	}
	return out
}

func (h *handler) assets(w http.ResponseWriter, r *http.Request) {
	tables, err := h.a.Tables(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

func (h *handler) asset(w http.ResponseWriter, r *http.Request) {
	sym, err := finance.ParseSymbol(r.PathValue("symbol"))
	if err != nil {
		h.fail(w, err)
		return
	}
	res, err := h.a.Asset(r.Context(), sym)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":     sym,
		"rows":       res.Series.Len(),
		"first":      res.Series.First().Format(finance.DateFormat),
		"last":       res.Series.Last().Format(finance.DateFormat),
		"daily":      returns(res.Daily),
		"cumulative": points(res.Cumulative),
	})
}

func (h *handler) above(w http.ResponseWriter, r *http.Request) {
	sym, err := finance.ParseSymbol(r.PathValue("symbol"))
	if err != nil {
		h.fail(w, err)
		return
	}
	threshold := h.defaults.Threshold
	if v := r.URL.Query().Get("threshold"); v != "" {
		if threshold, err = strconv.ParseFloat(v, 64); err != nil {
			h.fail(w, badParam("threshold", err))
			return
		}
	}
	out, err := h.a.AboveThreshold(r.Context(), sym, threshold)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbol": sym, "threshold": threshold, "rows": points(out)})
}

func (h *handler) top(w http.ResponseWriter, r *http.Request) {
	sym, err := finance.ParseSymbol(r.PathValue("symbol"))
	if err != nil {
		h.fail(w, err)
		return
	}
	k := h.defaults.TopK
	if v := r.URL.Query().Get("k"); v != "" {
		if k, err = strconv.Atoi(v); err != nil {
			h.fail(w, badParam("k", err))
			return
		}
	}
	out, err := h.a.TopReturns(r.Context(), sym, k)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"symbol": sym, "k": k, "rows": returns(out)})
}

func (h *handler) symbols(r *http.Request) ([]finance.Symbol, error) {
	if v := r.URL.Query().Get("symbols"); v != "" {
		return finance.ParseSymbols(v)
	}
	return h.defaults.Symbols, nil
}

func (h *handler) portfolio(w http.ResponseWriter, r *http.Request) {
	syms, err := h.symbols(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	res, err := h.a.Portfolio(r.Context(), syms)
	if err != nil {
		h.fail(w, err)
		return
	}
	m := res.Metrics
	writeJSON(w, http.StatusOK, map[string]any{
		"symbols":            res.Symbols,
		"rows":               res.Frame.Len(),
		"dropped":            res.Dropped,
		"mean_daily_returns": points(res.Mean),
		"cumulative_returns": points(m.Cumulative),
		"metrics": map[string]any{
			"mean_daily_return":     m.MeanDailyReturn,
			"annualized_return":     m.Annualized.Return,
			"annualized_return_pct": m.Annualized.Percent,
			"total_return":          m.TotalReturn,
			"total_return_pct":      m.TotalReturnPct,
			"volatility":            m.Volatility,
			"sharpe_ratio":          m.SharpeRatio,
			"max_drawdown":          m.MaxDrawdown,
			"days":                  m.NumDays,
		},
	})
}

func (h *handler) assetChart(w http.ResponseWriter, r *http.Request) {
	sym, err := finance.ParseSymbol(r.PathValue("symbol"))
	if err != nil {
		h.fail(w, err)
		return
	}
	img, err := h.a.AssetChart(r.Context(), sym, r.PathValue("kind"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writePNG(w, img)
}

func (h *handler) portfolioChart(w http.ResponseWriter, r *http.Request) {
	syms, err := h.symbols(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	img, err := h.a.PortfolioChart(r.Context(), syms, r.PathValue("kind"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writePNG(w, img)
}

func badParam(name string, err error) error {
	return fmt.Errorf("%w: bad %s: %v", finance.ErrInvalidSeries, name, err)
}

// statusFor maps the finance error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, finance.ErrMissingAsset):
		return http.StatusNotFound
	case errors.Is(err, finance.ErrNoContributors):
		return http.StatusUnprocessableEntity
	case errors.Is(err, finance.ErrInvalidSeries):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *handler) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writePNG(w http.ResponseWriter, img []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "max-age=60")
	_, _ = w.Write(img)
}
