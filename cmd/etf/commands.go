package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"etfAnalyzer/internal/analysis"
	"etfAnalyzer/internal/finance"
	"etfAnalyzer/internal/ingest"
	"etfAnalyzer/internal/report"
	"etfAnalyzer/internal/server"
)

var (
	rows      int
	noCharts  bool
	threshold float64
	topK      int
)

func init() {
	for _, c := range []*cobra.Command{assetCmd, portfolioCmd} {
		c.Flags().IntVarP(&rows, "rows", "n", 5, "rows shown at the head and at the tail")
		c.Flags().BoolVar(&noCharts, "no-charts", false, "do not write PNG charts")
	}
	aboveCmd.Flags().Float64VarP(&threshold, "threshold", "t", 0, "closing price threshold (default from config)")
	topCmd.Flags().IntVarP(&topK, "k", "k", 0, "number of days (default from config)")
}

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the tables of the database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer a.close()
		names, err := a.analyzer.Tables(cmd.Context())
		if err != nil {
			return err
		}
		return a.printer.Print(report.TablesMarkdown(names))
	},
}

var assetCmd = &cobra.Command{
	Use:   "asset SYMBOL",
	Short: "Show one asset with its daily and cumulative returns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sym, err := finance.ParseSymbol(args[0])
		if err != nil {
			return err
		}
		a, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer a.close()

		res, err := a.analyzer.Asset(cmd.Context(), sym)
		if err != nil {
			return err
		}
		if err := a.printer.Print(report.AssetMarkdown(res.Series, res.Cumulative, rows)); err != nil {
			return err
		}
		if noCharts {
			return nil
		}
		for _, kind := range []string{analysis.ChartDaily, analysis.ChartCumulative} {
			img, err := a.analyzer.AssetChart(cmd.Context(), sym, kind)
			if err != nil {
				return err
			}
			if err := a.writeChart(fmt.Sprintf("%s_%s.png", sym.Table(), kind), img); err != nil {
				return err
			}
		}
		return nil
	},
}

var aboveCmd = &cobra.Command{
	Use:   "above SYMBOL",
	Short: "List the days an asset closed above a threshold",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sym, err := finance.ParseSymbol(args[0])
		if err != nil {
			return err
		}
		a, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer a.close()

		t := a.cfg.CloseThreshold
		if cmd.Flags().Changed("threshold") {
			t = threshold
		}
		out, err := a.analyzer.AboveThreshold(cmd.Context(), sym, t)
		if err != nil {
			return err
		}
		return a.printer.Print(report.CloseMarkdown(fmt.Sprintf("%s close > %g", sym, t), out))
	},
}

var topCmd = &cobra.Command{
	Use:   "top SYMBOL",
	Short: "List the days with the largest daily returns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sym, err := finance.ParseSymbol(args[0])
		if err != nil {
			return err
		}
		a, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer a.close()

		k := a.cfg.TopK
		if cmd.Flags().Changed("k") {
			k = topK
		}
		out, err := a.analyzer.TopReturns(cmd.Context(), sym, k)
		if err != nil {
			return err
		}
		return a.printer.Print(report.ReturnsMarkdown(fmt.Sprintf("%s top %d daily returns", sym, k), out))
	},
}

var portfolioCmd = &cobra.Command{
	Use:   "portfolio [SYMBOL...]",
	Short: "Equal weight portfolio returns over the common trading days",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer a.close()

		var syms []finance.Symbol
		if len(args) > 0 {
			syms, err = finance.ParseSymbols(args...)
		} else {
			syms, err = a.defaultSymbols()
		}
		if err != nil {
			return err
		}

		res, err := a.analyzer.Portfolio(cmd.Context(), syms)
		if err != nil {
			return err
		}
		md := report.FrameMarkdown(res.Frame, res.Mean, rows) + "\n" + report.MetricsMarkdown(res.Metrics, a.analyzer.TradingDays())
		if err := a.printer.Print(md); err != nil {
			return err
		}
		if noCharts {
			return nil
		}
		for _, kind := range []string{analysis.ChartDaily, analysis.ChartCumulative, analysis.ChartPortfolio} {
			img, err := a.analyzer.PortfolioChart(cmd.Context(), syms, kind)
			if err != nil {
				return err
			}
			if err := a.writeChart("portfolio_"+kind+".png", img); err != nil {
				return err
			}
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import SYMBOL FILE.csv",
	Short: "Append the price bars of a CSV file to an asset table",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sym, err := finance.ParseSymbol(args[0])
		if err != nil {
			return err
		}
		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()

		a, err := setup(cmd, true)
		if err != nil {
			return err
		}
		defer a.close()

		n, err := ingest.Import(cmd.Context(), a.store, f, sym)
		if err != nil {
			return fmt.Errorf("%s: %w", args[1], err)
		}
		a.log.Info("imported", zap.String("symbol", string(sym)), zap.String("file", args[1]), zap.Int("rows", n))
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analyses as JSON and PNG over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer a.close()

		syms, err := a.defaultSymbols()
		if err != nil {
			return err
		}
		mux := server.NewHTTPMux(a.analyzer, a.log, server.Defaults{
			Symbols:   syms,
			Threshold: a.cfg.CloseThreshold,
			TopK:      a.cfg.TopK,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		addr := ":" + a.cfg.Port
		a.log.Info("http: listening", zap.String("addr", addr), zap.String("symbols", strings.Join(a.cfg.Symbols, ",")))
		return server.ListenAndServe(ctx, addr, mux, a.log)
	},
}

func (a *app) writeChart(name string, img []byte) error {
	if err := os.MkdirAll(a.cfg.Charts.Dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(a.cfg.Charts.Dir, name)
	if err := os.WriteFile(path, img, 0o644); err != nil {
		return err
	}
	a.log.Info("chart written", zap.String("path", path))
	return nil
}
