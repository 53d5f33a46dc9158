package parquet

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/xtxerr/hgtload/internal/storage"
)

// ValueRow is one cell in value mode.
type ValueRow struct {
	LatMin float64 `parquet:"lat_min"`
	LngMin float64 `parquet:"lng_min"`
	LatMax float64 `parquet:"lat_max"`
	LngMax float64 `parquet:"lng_max"`
	Value  int32   `parquet:"value"`
}

// RasterRow is one sample block in raster mode. Samples holds big-endian
// int16 values row by row.
type RasterRow struct {
	LatMin     float64 `parquet:"lat_min"`
	LngMin     float64 `parquet:"lng_min"`
	LatMax     float64 `parquet:"lat_max"`
	LngMax     float64 `parquet:"lng_max"`
	Width      int32   `parquet:"width"`
	Height     int32   `parquet:"height"`
	TopLeftLng float64 `parquet:"top_left_lng"`
	TopLeftLat float64 `parquet:"top_left_lat"`
	ScaleX     float64 `parquet:"scale_x"`
	ScaleY     float64 `parquet:"scale_y"`
	NoData     int32   `parquet:"nodata"`
	Samples    []byte  `parquet:"samples"`
}

func bound(latMin, lngMin, latMax, lngMax float64) orb.Bound {
	return orb.Bound{Min: orb.Point{lngMin, latMin}, Max: orb.Point{lngMax, latMax}}
}

// Footprint returns the cell bounds.
func (r ValueRow) Footprint() orb.Bound { return bound(r.LatMin, r.LngMin, r.LatMax, r.LngMax) }

// Footprint returns the block envelope.
func (r RasterRow) Footprint() orb.Bound { return bound(r.LatMin, r.LngMin, r.LatMax, r.LngMax) }

// RecordToValueRow converts a value record.
func RecordToValueRow(rec storage.Record) (ValueRow, error) {
	b := rec.Footprint
	return ValueRow{
		LatMin: b.Min.Lat(),
		LngMin: b.Min.Lon(),
		LatMax: b.Max.Lat(),
		LngMax: b.Max.Lon(),
		Value:  int32(rec.Value),
	}, nil
}

// RecordToRasterRow converts a raster record.
func RecordToRasterRow(rec storage.Record) (RasterRow, error) {
	r := rec.Raster
	if r == nil {
		return RasterRow{}, fmt.Errorf("raster file needs a raster record")
	}
	b := rec.Footprint
	return RasterRow{
		LatMin:     b.Min.Lat(),
		LngMin:     b.Min.Lon(),
		LatMax:     b.Max.Lat(),
		LngMax:     b.Max.Lon(),
		Width:      int32(r.Width),
		Height:     int32(r.Height),
		TopLeftLng: r.TopLeft.Lon(),
		TopLeftLat: r.TopLeft.Lat(),
		ScaleX:     r.ScaleX,
		ScaleY:     r.ScaleY,
		NoData:     int32(r.NoData),
		Samples:    r.Bytes(),
	}, nil
}

// RasterRowToRecord converts a raster row back to a record.
func RasterRowToRecord(row RasterRow) (storage.Record, error) {
	values, err := storage.DecodeSamples(row.Samples, int(row.Width), int(row.Height))
	if err != nil {
		return storage.Record{}, err
	}
	return storage.Record{
		Footprint: row.Footprint(),
		Raster: &storage.Raster{
			Width:   int(row.Width),
			Height:  int(row.Height),
			TopLeft: orb.Point{row.TopLeftLng, row.TopLeftLat},
			ScaleX:  row.ScaleX,
			ScaleY:  row.ScaleY,
			NoData:  int16(row.NoData),
			Values:  values,
		},
	}, nil
}
