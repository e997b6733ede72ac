package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	toml "github.com/pelletier/go-toml/v2"
)

type Config struct {
	Port           string   `toml:"port" validate:"required,numeric"`
	DBPath         string   `toml:"db_path" validate:"required"`
	Symbols        []string `toml:"symbols" validate:"required,min=1,dive,required"`
	TradingDays    int      `toml:"trading_days" validate:"gt=0"`
	CloseThreshold float64  `toml:"close_threshold"`
	TopK           int      `toml:"top_k" validate:"gte=0"`
	QueryMode      string   `toml:"query_mode" validate:"oneof=sql memory"`

	Charts  ChartsConfig  `toml:"charts"`
	Logging LoggingConfig `toml:"logging"`
	Report  ReportConfig  `toml:"report"`
}

type ChartsConfig struct {
	Dir      string `toml:"dir" validate:"required"`
	Width    int    `toml:"width" validate:"gte=100"`
	Height   int    `toml:"height" validate:"gte=100"`
	CacheTTL string `toml:"cache_ttl"`
}

// GetCacheTTL parses the chart cache TTL, falling back to one minute.
func (c *ChartsConfig) GetCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil {
		return time.Minute
	}
	return d
}

type LoggingConfig struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=console json"`
}

type ReportConfig struct {
	Style string `toml:"style" validate:"required"` // glamour style: auto, dark, light, notty
}

// Default returns the configuration used when no file or env var is set.
func Default() *Config {
	return &Config{
		Port:           "9095",
		DBPath:         "etf.db",
		Symbols:        []string{"GDOT", "GS", "PYPL", "SQ"},
		TradingDays:    252,
		CloseThreshold: 200,
		TopK:           10,
		QueryMode:      "sql",
		Charts: ChartsConfig{
			Dir:      "charts",
			Width:    700,
			Height:   300,
			CacheTTL: "60s",
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Report:  ReportConfig{Style: "auto"},
	}
}

// Load reads defaults, then the TOML file at path (if it exists), then
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func applyEnvOverrides(c *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("ETF_SYMBOLS"); v != "" {
		c.Symbols = strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
	}
	if v := os.Getenv("ETF_TRADING_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ETF_TRADING_DAYS: %w", err)
		}
		c.TradingDays = n
	}
	if v := os.Getenv("ETF_CLOSE_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("ETF_CLOSE_THRESHOLD: %w", err)
		}
		c.CloseThreshold = f
	}
	if v := os.Getenv("ETF_TOP_K"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ETF_TOP_K: %w", err)
		}
		c.TopK = n
	}
	if v := os.Getenv("ETF_QUERY_MODE"); v != "" {
		c.QueryMode = strings.ToLower(v)
	}
	if v := os.Getenv("ETF_CHART_DIR"); v != "" {
		c.Charts.Dir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = strings.ToLower(v)
	}
	return nil
}
