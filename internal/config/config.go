// Package config defines the typed backtest configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"vwap-backtest/internal/domain"
)

// Config errors
var (
	ErrMissingDataPath = errors.New("data_path is required")
	ErrInvalidConfig   = errors.New("invalid config")
)

const (
	defaultInterval       = 1
	defaultVWAPWindow     = 20
	defaultEstimateWindow = 60 * 24
	defaultNSigma         = 3
	defaultInitialBalance = 10000
	defaultLogDir         = "Logging"
	defaultTradesCSV      = "trades_records.csv"
)

// ClickHouseScheme marks a data_path that reads bars from the ClickHouse bar store.
const ClickHouseScheme = "clickhouse://"

// Config holds every recognized backtest option.
type Config struct {
	DataPath       string  `yaml:"data_path"`
	Symbol         string  `yaml:"symbol"`
	StartDate      string  `yaml:"start_date"` // YYYY-MM-DD HH:MM:SS, UTC, inclusive
	EndDate        string  `yaml:"end_date"`   // YYYY-MM-DD HH:MM:SS, UTC, inclusive
	Interval       int     `yaml:"interval"`   // aggregation width in minutes
	VWAPWindow     int     `yaml:"vwap_window"`
	EstimateWindow int     `yaml:"estimate_window"`
	NSigma         float64 `yaml:"n_sigma"`
	InitialBalance float64 `yaml:"initial_balance"`
	FeeRate        float64 `yaml:"fee_rate"`

	LogFile   string `yaml:"log_file"` // audit log path; generated under LogDir when empty
	LogDir    string `yaml:"log_dir"`
	TradesCSV string `yaml:"trades_csv"`
}

// Default returns the configuration defaults. DataPath is left empty.
func Default() Config {
	return Config{
		Interval:       defaultInterval,
		VWAPWindow:     defaultVWAPWindow,
		EstimateWindow: defaultEstimateWindow,
		NSigma:         defaultNSigma,
		InitialBalance: defaultInitialBalance,
		LogDir:         defaultLogDir,
		TradesCSV:      defaultTradesCSV,
	}
}

// Load reads a YAML or JSON config file over the defaults and validates it.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes config bytes over the defaults and validates the result.
// Keys absent from the document keep their default values.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("decode config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every option once.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DataPath) == "" {
		return ErrMissingDataPath
	}
	if c.Interval < 1 {
		return fmt.Errorf("%w: interval must be >= 1, got %d", ErrInvalidConfig, c.Interval)
	}
	if c.VWAPWindow < 1 {
		return fmt.Errorf("%w: vwap_window must be >= 1, got %d", ErrInvalidConfig, c.VWAPWindow)
	}
	if c.EstimateWindow < 2 {
		return fmt.Errorf("%w: estimate_window must be >= 2, got %d", ErrInvalidConfig, c.EstimateWindow)
	}
	if c.NSigma < 0 || math.IsNaN(c.NSigma) {
		return fmt.Errorf("%w: n_sigma must be >= 0, got %v", ErrInvalidConfig, c.NSigma)
	}
	if !(c.InitialBalance > 0) {
		return fmt.Errorf("%w: initial_balance must be > 0, got %v", ErrInvalidConfig, c.InitialBalance)
	}
	if c.FeeRate < 0 || c.FeeRate >= 1 || math.IsNaN(c.FeeRate) {
		return fmt.Errorf("%w: fee_rate must be in [0, 1), got %v", ErrInvalidConfig, c.FeeRate)
	}
	start, end, err := c.TimeRange()
	if err != nil {
		return err
	}
	if start > end {
		return fmt.Errorf("%w: start_date %q is after end_date %q", ErrInvalidConfig, c.StartDate, c.EndDate)
	}
	return nil
}

// TimeRange returns the inclusive [start, end] filter in Unix ms.
// Unset bounds are open.
func (c Config) TimeRange() (int64, int64, error) {
	start, end := int64(math.MinInt64), int64(math.MaxInt64)
	if c.StartDate != "" {
		t, err := time.ParseInLocation(domain.TimestampLayout, c.StartDate, time.UTC)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: start_date: %v", ErrInvalidConfig, err)
		}
		start = t.UnixMilli()
	}
	if c.EndDate != "" {
		t, err := time.ParseInLocation(domain.TimestampLayout, c.EndDate, time.UTC)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: end_date: %v", ErrInvalidConfig, err)
		}
		end = t.UnixMilli()
	}
	return start, end, nil
}

// FromClickHouse reports whether bars are read from the ClickHouse bar store.
func (c Config) FromClickHouse() bool {
	return strings.HasPrefix(c.DataPath, ClickHouseScheme)
}

// DatasetStem returns the data file name without directory and extension.
func (c Config) DatasetStem() string {
	base := filepath.Base(c.DataPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// AuditLogPath returns LogFile when set, otherwise a timestamped file under LogDir.
func (c Config) AuditLogPath(now time.Time) string {
	if c.LogFile != "" {
		return c.LogFile
	}
	name := fmt.Sprintf("%s_%s.log", now.Format("20060102_150405"), c.DatasetStem())
	return filepath.Join(c.LogDir, name)
}

// Params returns the run parameters recorded with a run.
func (c Config) Params() domain.RunParams {
	start, end, _ := c.TimeRange()
	return domain.RunParams{
		Interval:       c.Interval,
		VWAPWindow:     c.VWAPWindow,
		EstimateWindow: c.EstimateWindow,
		NSigma:         c.NSigma,
		InitialBalance: c.InitialBalance,
		FeeRate:        c.FeeRate,
		StartMs:        start,
		EndMs:          end,
	}
}
