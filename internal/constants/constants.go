// Package constants provides centralized domain-specific constants
// for the entire hgtload application.
//
// This file consolidates the magic strings accepted in configuration files
// and on the command line.
package constants

import "slices"

// =============================================================================
// Storage Drivers
// =============================================================================

const (
	// DriverDuckDB stores elevation rows in a DuckDB database
	DriverDuckDB = "duckdb"

	// DriverParquet writes one Parquet file per tile
	DriverParquet = "parquet"

	// DriverMemory keeps rows in process memory
	DriverMemory = "memory"
)

// ValidDrivers contains all valid storage driver values
var ValidDrivers = []string{DriverDuckDB, DriverParquet, DriverMemory}

// IsValidDriver checks if a driver name is valid
func IsValidDriver(driver string) bool {
	return slices.Contains(ValidDrivers, driver)
}

// =============================================================================
// Import Modes
// =============================================================================

const (
	// ModeValue stores one row per cell
	ModeValue = "value"

	// ModeRaster stores one row per sample block
	ModeRaster = "raster"
)

// ValidModes contains all valid import mode values
var ValidModes = []string{ModeValue, ModeRaster}

// IsValidMode checks if an import mode is valid
func IsValidMode(mode string) bool {
	return slices.Contains(ValidModes, mode)
}

// =============================================================================
// Parquet Compression
// =============================================================================

const (
	CompressionNone   = "none"
	CompressionSnappy = "snappy"
	CompressionZstd   = "zstd"
	CompressionLZ4    = "lz4"
	CompressionGzip   = "gzip"
)

// ValidCompressions contains all valid parquet codec names
var ValidCompressions = []string{
	CompressionNone, CompressionSnappy, CompressionZstd, CompressionLZ4, CompressionGzip,
}

// IsValidCompression checks if a codec name is valid
func IsValidCompression(c string) bool {
	return slices.Contains(ValidCompressions, c)
}

// =============================================================================
// Logging
// =============================================================================

const (
	LogFormatAuto = "auto"
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// ValidLogFormats contains all valid log format values
var ValidLogFormats = []string{LogFormatAuto, LogFormatText, LogFormatJSON}

// IsValidLogFormat checks if a log format is valid
func IsValidLogFormat(format string) bool {
	return slices.Contains(ValidLogFormats, format)
}

// =============================================================================
// File Extensions
// =============================================================================

const (
	// ExtHGT is the extension of extracted tiles
	ExtHGT = ".hgt"

	// ExtZip is the extension of downloaded archives
	ExtZip = ".zip"
)
