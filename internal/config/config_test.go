package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xtxerr/hgtload/internal/errors"
	"github.com/xtxerr/hgtload/internal/storage"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
	if cfg.Concurrency != 1 {
		t.Errorf("expected concurrency 1, got %d", cfg.Concurrency)
	}
	if cfg.Storage.Driver != "duckdb" || cfg.Storage.Table != "elevation" {
		t.Errorf("unexpected storage defaults %+v", cfg.Storage)
	}
	if cfg.Import.Raster {
		t.Error("expected value mode by default")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"empty work_dir", func(c *Config) { c.WorkDir = "" }, errors.ErrMissingField},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, errors.ErrInvalidConfig},
		{"negative block", func(c *Config) { c.Import.Raster = true; c.Import.BlockWidth = -1 }, errors.ErrInvalidConfig},
		{"block without raster", func(c *Config) { c.Import.BlockHeight = 50 }, errors.ErrInvalidConfig},
		{"sampling one", func(c *Config) { c.Import.Sampling = 1 }, errors.ErrInvalidConfig},
		{"accuracy", func(c *Config) { c.Import.StatsAccuracy = 1.5 }, errors.ErrInvalidConfig},
		{"driver", func(c *Config) { c.Storage.Driver = "postgres" }, errors.ErrInvalidConfig},
		{"table", func(c *Config) { c.Storage.Table = "drop table;" }, errors.ErrInvalidName},
		{"parquet without dir", func(c *Config) { c.Storage.Driver = "parquet" }, errors.ErrMissingField},
		{"parquet codec", func(c *Config) {
			c.Storage.Driver = "parquet"
			c.Storage.OutputDir = "/tmp"
			c.Storage.Compression = "brotli"
		}, errors.ErrInvalidConfig},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, errors.ErrInvalidConfig},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, errors.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Concurrency = 0
	cfg.Storage.Driver = "postgres"
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"concurrency", "storage", "logging"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("HGT_DSN", "/data/elevation.duckdb")

	path := filepath.Join(t.TempDir(), "hgtload.yaml")
	content := `
work_dir: /data/srtm
dataset: srtm3
concurrency: 4
stages:
  skip_download: true
import:
  raster: true
  block_width: 50
  block_height: 50
storage:
  dsn: ${HGT_DSN}
  table: srtm3
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.WorkDir != "/data/srtm" || cfg.Dataset != "srtm3" || cfg.Concurrency != 4 {
		t.Errorf("top level = %+v", cfg)
	}
	if !cfg.Stages.SkipDownload || cfg.Stages.SkipExtract {
		t.Errorf("stages = %+v", cfg.Stages)
	}
	if !cfg.Import.Raster || cfg.Import.BlockWidth != 50 {
		t.Errorf("import = %+v", cfg.Import)
	}
	if cfg.Storage.DSN != "/data/elevation.duckdb" {
		t.Errorf("dsn not expanded: %q", cfg.Storage.DSN)
	}
	// Unset keys keep their defaults.
	if cfg.Storage.Driver != "duckdb" || cfg.Import.StatsAccuracy != 0.01 {
		t.Errorf("defaults lost: %+v %+v", cfg.Storage, cfg.Import)
	}

	sc := cfg.StorageBackendConfig()
	if sc.Mode != storage.ModeRaster || sc.Table != "srtm3" || sc.MaxOpenConns != 16 {
		t.Errorf("storage config = %+v", sc)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("concurrency: [1"), 0644)
	if _, err := Load(bad); err == nil {
		t.Error("expected parse error")
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	os.WriteFile(invalid, []byte("concurrency: 0\n"), 0644)
	if _, err := Load(invalid); !errors.Is(err, errors.ErrInvalidConfig) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCalculateRequirements(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Concurrency = 4

	r := cfg.CalculateRequirements(3)
	if r.RecordsPerTile != 1201*1201 || r.TotalRecords != 3*1201*1201 {
		t.Errorf("value records = %d/%d", r.RecordsPerTile, r.TotalRecords)
	}
	if r.ExtractedBytes != 3*1201*1201*2 {
		t.Errorf("extracted bytes = %d", r.ExtractedBytes)
	}
	if r.RecommendedConns != 4 {
		t.Errorf("conns = %d", r.RecommendedConns)
	}

	cfg.Import.Raster = true
	cfg.Import.BlockWidth = 50
	cfg.Import.BlockHeight = 50
	r = cfg.CalculateRequirements(1)
	if r.RecordsPerTile != 625 {
		t.Errorf("raster blocks per tile = %d, want 625", r.RecordsPerTile)
	}

	cfg.Import.BlockWidth = 0
	cfg.Import.BlockHeight = 0
	cfg.Import.Sampling = 3601
	if r := cfg.CalculateRequirements(1); r.RecordsPerTile != 1 || r.Sampling != 3601 {
		t.Errorf("whole tile raster = %+v", r)
	}

	out := r.FormatRequirements()
	if !strings.Contains(out, "Import Plan") || !strings.Contains(out, "625") {
		t.Errorf("unexpected report:\n%s", out)
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := formatBytes(1536); got != "1.50 KB" {
		t.Errorf("formatBytes = %q", got)
	}
	if got := formatNumber(1442401); got != "1.4M" {
		t.Errorf("formatNumber = %q", got)
	}
}
