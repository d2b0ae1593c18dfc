package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParse_DefaultsApplied(t *testing.T) {
	cfg, err := Parse([]byte("data_path: data/BTCUSDT.parquet\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Interval != 1 || cfg.VWAPWindow != 20 || cfg.EstimateWindow != 1440 {
		t.Errorf("unexpected window defaults: %+v", cfg)
	}
	if cfg.NSigma != 3 || cfg.InitialBalance != 10000 || cfg.FeeRate != 0 {
		t.Errorf("unexpected numeric defaults: %+v", cfg)
	}
}

func TestParse_OverridesAndJSON(t *testing.T) {
	cfg, err := Parse([]byte(`{"data_path": "x.csv", "interval": 5, "n_sigma": 2.5, "fee_rate": 0.001}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Interval != 5 || cfg.NSigma != 2.5 || cfg.FeeRate != 0.001 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.VWAPWindow != 20 {
		t.Errorf("expected default vwap_window, got %d", cfg.VWAPWindow)
	}
}

func TestParse_UnknownKeyRejected(t *testing.T) {
	_, err := Parse([]byte("data_path: x.csv\nvwap_windw: 3\n"))
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestValidate_MissingDataPath(t *testing.T) {
	err := Default().Validate()
	if !errors.Is(err, ErrMissingDataPath) {
		t.Fatalf("expected ErrMissingDataPath, got %v", err)
	}
}

func TestValidate_Ranges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"interval zero", func(c *Config) { c.Interval = 0 }},
		{"vwap window zero", func(c *Config) { c.VWAPWindow = 0 }},
		{"estimate window one", func(c *Config) { c.EstimateWindow = 1 }},
		{"negative n_sigma", func(c *Config) { c.NSigma = -1 }},
		{"zero balance", func(c *Config) { c.InitialBalance = 0 }},
		{"fee rate one", func(c *Config) { c.FeeRate = 1 }},
		{"negative fee", func(c *Config) { c.FeeRate = -0.01 }},
		{"bad start", func(c *Config) { c.StartDate = "2024/01/01" }},
		{"start after end", func(c *Config) {
			c.StartDate = "2024-01-02 00:00:00"
			c.EndDate = "2024-01-01 00:00:00"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.DataPath = "x.parquet"
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestTimeRange(t *testing.T) {
	cfg := Default()
	cfg.StartDate = "2024-01-01 00:00:00"
	cfg.EndDate = "2024-01-01 00:10:00"

	start, end, err := cfg.TimeRange()
	if err != nil {
		t.Fatalf("TimeRange failed: %v", err)
	}
	if start != 1704067200000 {
		t.Errorf("start = %d", start)
	}
	if end-start != 10*60*1000 {
		t.Errorf("end-start = %d", end-start)
	}
}

func TestAuditLogPath(t *testing.T) {
	cfg := Default()
	cfg.DataPath = "/data/BTCUSDT_1m.parquet"
	now := time.Date(2024, 3, 5, 7, 8, 9, 0, time.UTC)

	got := cfg.AuditLogPath(now)
	want := filepath.Join("Logging", "20240305_070809_BTCUSDT_1m.log")
	if got != want {
		t.Errorf("AuditLogPath = %q, want %q", got, want)
	}

	cfg.LogFile = "run.log"
	if got := cfg.AuditLogPath(now); got != "run.log" {
		t.Errorf("explicit log file ignored: %q", got)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backtest.yaml")
	body := "data_path: clickhouse://BTCUSDT\nsymbol: BTCUSDT\nestimate_window: 30\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.FromClickHouse() {
		t.Error("expected clickhouse data path")
	}
	if cfg.EstimateWindow != 30 {
		t.Errorf("estimate_window = %d", cfg.EstimateWindow)
	}
}
