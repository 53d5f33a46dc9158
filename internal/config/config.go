// Package config loads the hgtload configuration file.
//
// Every field has a default (see DefaultConfig and the config package at
// the module root); a file only needs the keys it overrides. Values may
// reference environment variables as $VAR or ${VAR}.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	defaults "github.com/xtxerr/hgtload/config"
	"github.com/xtxerr/hgtload/internal/storage"
)

// Config represents the complete hgtload configuration.
type Config struct {
	// WorkDir receives downloaded archives and extracted tiles.
	WorkDir string `yaml:"work_dir"`

	// Dataset is a manifest path or name.
	Dataset string `yaml:"dataset"`

	// Concurrency is the number of workers in each stage pool.
	Concurrency int `yaml:"concurrency"`

	// Stages selects the pipeline stages to run.
	Stages StagesConfig `yaml:"stages"`

	// Import configures the import stage.
	Import ImportConfig `yaml:"import"`

	// Storage selects and configures the backend.
	Storage StorageConfig `yaml:"storage"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`
}

// StagesConfig selects the pipeline stages to run.
type StagesConfig struct {
	SkipDownload bool `yaml:"skip_download"`
	SkipExtract  bool `yaml:"skip_extract"`
	SkipImport   bool `yaml:"skip_import"`
}

// ImportConfig configures the import stage.
type ImportConfig struct {
	// Raster imports sample blocks instead of single values.
	Raster bool `yaml:"raster"`

	// BlockWidth and BlockHeight size raster blocks. Zero uses the tile side.
	BlockWidth  int `yaml:"block_width"`
	BlockHeight int `yaml:"block_height"`

	// Sampling forces the tile grid side. Zero detects it.
	Sampling int `yaml:"sampling"`

	// StatsAccuracy is the relative accuracy of summary quantiles.
	StatsAccuracy float64 `yaml:"stats_accuracy"`
}

// StorageConfig selects and configures the backend.
type StorageConfig struct {
	// Driver is one of: duckdb, parquet, memory.
	Driver string `yaml:"driver"`

	// DSN is the duckdb database path. Empty opens an in-memory database.
	DSN string `yaml:"dsn"`

	// Table receives the rows (duckdb) or names the output subfolder
	// (parquet).
	Table string `yaml:"table"`

	// OutputDir holds parquet files.
	OutputDir string `yaml:"output_dir"`

	// Compression is the parquet codec: none, snappy, zstd, lz4, gzip.
	Compression string `yaml:"compression"`

	// InstallExtensions lets duckdb download the spatial extension.
	InstallExtensions bool `yaml:"install_extensions"`

	// MaxOpenConns bounds duckdb connections.
	MaxOpenConns int `yaml:"max_open_conns"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is one of: debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is one of: auto, text, json.
	Format string `yaml:"format"`
}

// Load loads configuration from a YAML file over DefaultConfig.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over DefaultConfig and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		WorkDir:     ".",
		Concurrency: defaults.DefaultConcurrency,
		Import: ImportConfig{
			StatsAccuracy: defaults.DefaultStatsAccuracy,
		},
		Storage: StorageConfig{
			Driver:       defaults.DefaultDriver,
			Table:        defaults.DefaultTable,
			Compression:  defaults.DefaultParquetCompression,
			MaxOpenConns: defaults.DefaultMaxOpenConns,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// StorageBackendConfig returns the storage.Config for the configured driver
// and import mode.
func (c *Config) StorageBackendConfig() storage.Config {
	return storage.Config{
		Driver:            c.Storage.Driver,
		Mode:              storage.ModeFor(c.Import.Raster),
		DSN:               c.Storage.DSN,
		Table:             c.Storage.Table,
		OutputDir:         c.Storage.OutputDir,
		Compression:       c.Storage.Compression,
		InstallExtensions: c.Storage.InstallExtensions,
		MaxOpenConns:      max(c.Storage.MaxOpenConns, c.Concurrency),
	}
}
