// Package config provides configuration defaults and utilities
// for the hgtload application.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via a YAML config file or CLI flags.
package config

import "time"

// =============================================================================
// Worker Pool Defaults
// =============================================================================

const (
	// DefaultConcurrency is the number of workers in each stage pool.
	// Override via config: concurrency, or -c
	DefaultConcurrency = 1

	// DefaultPoolPollInterval is how often a pool re-checks its workers while
	// waiting. The wait is channel driven; this only bounds state logging.
	DefaultPoolPollInterval = 100 * time.Millisecond
)

// =============================================================================
// Tile Defaults
// =============================================================================

const (
	// DefaultSampling is the grid side of a 3 arc-second (SRTM3) tile.
	// Override via dataset manifest: sampling
	DefaultSampling = 1201

	// SRTM1Sampling is the grid side of a 1 arc-second tile.
	SRTM1Sampling = 3601
)

// =============================================================================
// Fetch Defaults
// =============================================================================

const (
	// DefaultDownloadChunkSize is the copy buffer size for tile downloads.
	// The cancellation signal is checked between chunks.
	DefaultDownloadChunkSize = 4096

	// DefaultHTTPTimeout bounds the connection and header phase of a download.
	// The body transfer itself is not bounded.
	DefaultHTTPTimeout = 30 * time.Second
)

// =============================================================================
// Storage Defaults
// =============================================================================

const (
	// DefaultDriver is the storage driver used when none is configured.
	// Override via config: storage.driver, or --driver
	DefaultDriver = "duckdb"

	// DefaultTable is the table that receives elevation rows.
	// Override via config: storage.table, or --table
	DefaultTable = "elevation"

	// DefaultParquetCompression is the codec for the parquet driver.
	// Override via config: storage.compression
	DefaultParquetCompression = "zstd"

	// DefaultMaxOpenConns bounds open database connections. Import workers
	// hold one connection each, so this should be >= concurrency.
	DefaultMaxOpenConns = 16
)

// =============================================================================
// Import Defaults
// =============================================================================

const (
	// DefaultStatsAccuracy is the relative accuracy of per-tile elevation
	// quantiles (0.01 = 1% error).
	// Override via config: import.stats_accuracy
	DefaultStatsAccuracy = 0.01
)
