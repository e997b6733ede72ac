package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"etfAnalyzer/internal/analysis"
	"etfAnalyzer/internal/charts"
	"etfAnalyzer/internal/config"
	"etfAnalyzer/internal/finance"
	"etfAnalyzer/internal/logging"
	"etfAnalyzer/internal/report"
	"etfAnalyzer/internal/storage"
)

var (
	configFile string
)

var rootCmd = &cobra.Command{
	Use:           "etf",
	Short:         "ETF return analyzer over a SQLite store of daily price bars",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "etf.toml", "config file path")
	rootCmd.AddCommand(tablesCmd, assetCmd, aboveCmd, topCmd, portfolioCmd, importCmd, serveCmd)
}

// app holds what every subcommand needs.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	db       *sqlx.DB
	store    *storage.Store
	analyzer *analysis.Analyzer
	printer  *report.Printer
}

// setup loads the config and opens the database. Only commands that write
// (create) may start a new database file.
func setup(cmd *cobra.Command, create bool) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	if create {
		// Ensure parent directory for the DB exists
		_ = os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755)
	} else if _, err := os.Stat(cfg.DBPath); err != nil {
		return nil, fmt.Errorf("database %s: %w", cfg.DBPath, err)
	}
	db, err := storage.OpenSQLite("file:" + cfg.DBPath + "?_fk=1")
	if err != nil {
		return nil, err
	}
	log.Debug("db: opened sqlite", zap.String("path", cfg.DBPath))

	store := storage.NewStore(db)
	renderer := charts.NewRenderer(cfg.Charts.Width, cfg.Charts.Height, cfg.Charts.GetCacheTTL())
	analyzer, err := analysis.New(store, renderer, log, analysis.Options{
		TradingDays: cfg.TradingDays,
		QueryMode:   cfg.QueryMode,
		ChartWidth:  cfg.Charts.Width,
		ChartHeight: cfg.Charts.Height,
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &app{
		cfg:      cfg,
		log:      log,
		db:       db,
		store:    store,
		analyzer: analyzer,
		printer:  report.NewPrinter(cmd.OutOrStdout(), cfg.Report.Style),
	}, nil
}

func (a *app) close() {
	a.db.Close()
	_ = a.log.Sync()
}

// defaultSymbols parses the configured portfolio.
func (a *app) defaultSymbols() ([]finance.Symbol, error) {
	return finance.ParseSymbols(a.cfg.Symbols...)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log, lerr := logging.New("error", "console")
		if lerr != nil {
			os.Exit(1)
		}
		log.Fatal("etf failed", zap.Error(err))
	}
}
