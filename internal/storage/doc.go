// Package storage defines where imported elevation data goes.
//
// Architecture:
//
//	┌─────────────┐     ┌─────────────┐     ┌─────────────────┐
//	│  Importer   │────▶│   Session   │────▶│ duckdb / parquet│
//	│ (per tile)  │     │ (per tile)  │     │ / memory        │
//	└─────────────┘     └─────────────┘     └─────────────────┘
//	                           ▲
//	                    ┌─────────────┐
//	                    │   Backend   │  PrepareEnvironment once per run
//	                    └─────────────┘
//
// A Backend is selected by (driver, mode) through a lookup table filled by
// Register. Drivers live in sub-packages and register themselves from init,
// the same way database/sql drivers do; the in-memory driver is built in.
//
// Records are either one cell (value mode) or one block of samples (raster
// mode). Both are keyed by their geographic footprint; InsertIfAbsent skips
// footprints already stored.
package storage
