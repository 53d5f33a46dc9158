package config

import (
	"fmt"

	defaults "github.com/xtxerr/hgtload/config"
	"github.com/xtxerr/hgtload/internal/constants"
)

// Requirements is an estimate of the work and space an import needs.
type Requirements struct {
	Tiles    int
	Sampling int

	// Records
	RecordsPerTile int64
	TotalRecords   int64

	// Disk
	ExtractedBytes int64
	StorageBytes   int64

	// Connections the duckdb pool should allow.
	RecommendedConns int
}

// Row size estimates, in bytes.
const (
	// four DOUBLE bounds and a SMALLINT
	bytesPerValueRow = 34

	// bounds, geometry, size, scale and nodata around the samples
	bytesPerRasterOverhead = 160

	// Parquet pages compress value rows roughly 3:1 and samples 2:1.
	parquetValueRatio  = 3
	parquetRasterRatio = 2
)

// CalculateRequirements estimates an import of the given number of tiles.
// Without an explicit sampling the SRTM3 grid is assumed.
func (c *Config) CalculateRequirements(tiles int) Requirements {
	sampling := c.Import.Sampling
	if sampling == 0 {
		sampling = defaults.DefaultSampling
	}

	r := Requirements{
		Tiles:            tiles,
		Sampling:         sampling,
		RecommendedConns: c.Concurrency,
	}

	cells := int64(sampling) * int64(sampling)
	r.ExtractedBytes = int64(tiles) * cells * 2

	if c.Import.Raster {
		w := blockSide(c.Import.BlockWidth, sampling)
		h := blockSide(c.Import.BlockHeight, sampling)
		r.RecordsPerTile = ceilDiv(int64(sampling), int64(h)) * ceilDiv(int64(sampling), int64(w))
		r.StorageBytes = int64(tiles) * (r.RecordsPerTile*bytesPerRasterOverhead + cells*2)
		if c.Storage.Driver == constants.DriverParquet {
			r.StorageBytes /= parquetRasterRatio
		}
	} else {
		r.RecordsPerTile = cells
		r.StorageBytes = int64(tiles) * cells * bytesPerValueRow
		if c.Storage.Driver == constants.DriverParquet {
			r.StorageBytes /= parquetValueRatio
		}
	}
	r.TotalRecords = int64(tiles) * r.RecordsPerTile

	return r
}

func blockSide(n, sampling int) int {
	if n <= 0 || n > sampling {
		return sampling
	}
	return n
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}

// FormatRequirements returns a human-readable summary of requirements.
func (r *Requirements) FormatRequirements() string {
	return fmt.Sprintf(`Import Plan
===========

Tiles:
  Count:             %d
  Grid:              %dx%d

Records:
  Per tile:          %s
  Total:             %s (upper bound, void cells are skipped)

Disk:
  Extracted tiles:   %s
  Storage:           %s (estimate)

Connections:
  Recommended:       %d
`,
		r.Tiles,
		r.Sampling, r.Sampling,
		formatNumber(r.RecordsPerTile),
		formatNumber(r.TotalRecords),
		formatBytes(r.ExtractedBytes),
		formatBytes(r.StorageBytes),
		r.RecommendedConns,
	)
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(b int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
		TB = 1024 * GB
	)

	switch {
	case b >= TB:
		return fmt.Sprintf("%.2f TB", float64(b)/float64(TB))
	case b >= GB:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatNumber shortens large counts.
func formatNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	if n < 1000000000 {
		return fmt.Sprintf("%.1fM", float64(n)/1000000)
	}
	return fmt.Sprintf("%.1fB", float64(n)/1000000000)
}
