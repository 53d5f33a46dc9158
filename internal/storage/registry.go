package storage

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/xtxerr/hgtload/config"
	"github.com/xtxerr/hgtload/internal/constants"
	"github.com/xtxerr/hgtload/internal/errors"
)

// =============================================================================
// Configuration
// =============================================================================

// Mode selects what a record holds.
type Mode string

const (
	ModeValue  Mode = constants.ModeValue
	ModeRaster Mode = constants.ModeRaster
)

// ModeFor returns ModeRaster when raster is set, ModeValue otherwise.
func ModeFor(raster bool) Mode {
	if raster {
		return ModeRaster
	}
	return ModeValue
}

// Config carries the settings every driver constructor receives. Drivers
// ignore the fields they do not use.
type Config struct {
	Driver string
	Mode   Mode

	// DSN is the database connection string (duckdb). Empty means in-memory.
	DSN string

	// Table is the destination table, or the sub-directory for file drivers.
	Table string

	// OutputDir is the root directory of file drivers (parquet).
	OutputDir string

	// Compression is the parquet codec name.
	Compression string

	// InstallExtensions lets the duckdb raster driver run INSTALL spatial.
	InstallExtensions bool

	// MaxOpenConns bounds database connections.
	MaxOpenConns int

	Logger *slog.Logger
}

// DefaultConfig returns a Config with defaults from the config package.
func DefaultConfig() Config {
	return Config{
		Driver:       config.DefaultDriver,
		Mode:         ModeValue,
		Table:        config.DefaultTable,
		Compression:  config.DefaultParquetCompression,
		MaxOpenConns: config.DefaultMaxOpenConns,
	}
}

// =============================================================================
// Registry
// =============================================================================

// Constructor builds a Backend from a Config.
type Constructor func(cfg Config) (Backend, error)

type registryKey struct {
	driver string
	mode   Mode
}

var (
	registryMu sync.RWMutex
	registry   = map[registryKey]Constructor{
		{constants.DriverMemory, ModeValue}:  newMemoryBackend,
		{constants.DriverMemory, ModeRaster}: newMemoryBackend,
	}
)

// Register makes a backend constructor available for (driver, mode).
// Registering the same pair twice replaces the earlier constructor.
func Register(driver string, mode Mode, c Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[registryKey{driver, mode}] = c
}

// Open builds the backend registered for cfg.Driver and cfg.Mode.
func Open(cfg Config) (Backend, error) {
	if cfg.Mode == "" {
		cfg.Mode = ModeValue
	}

	registryMu.RLock()
	c, ok := registry[registryKey{cfg.Driver, cfg.Mode}]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("driver %q in %s mode: %w", cfg.Driver, cfg.Mode, errors.ErrUnknownDriver)
	}
	return c(cfg)
}

// Drivers returns the registered (driver/mode) pairs, sorted.
func Drivers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k.driver+"/"+string(k.mode))
	}
	sort.Strings(out)
	return out
}
