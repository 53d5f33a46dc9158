package parquet

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
	"github.com/paulmach/orb"

	"github.com/xtxerr/hgtload/internal/errors"
	"github.com/xtxerr/hgtload/internal/storage"
)

func cell(lat, lng float64) orb.Bound {
	const side = 1.0 / 1200
	return orb.Bound{Min: orb.Point{lng, lat}, Max: orb.Point{lng + side, lat + side}}
}

func TestCodec(t *testing.T) {
	tests := []struct {
		in   string
		want compress.Codec
	}{
		{"snappy", &parquet.Snappy},
		{"zstd", &parquet.Zstd},
		{"lz4", &parquet.Lz4Raw},
		{"gzip", &parquet.Gzip},
		{"none", &parquet.Uncompressed},
		{"", &parquet.Uncompressed},
		{"brotli", &parquet.Zstd},
	}
	for _, tt := range tests {
		if got := Codec(tt.in); got != tt.want {
			t.Errorf("Codec(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWriterReader(t *testing.T) {
	for _, codec := range []string{"none", "snappy", "zstd", "gzip", "lz4"} {
		t.Run(codec, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "N00E010.parquet")
			opts := DefaultOptions()
			opts.Codec = Codec(codec)

			w, err := NewWriter[ValueRow](path, opts)
			if err != nil {
				t.Fatalf("NewWriter: %v", err)
			}
			rows := []ValueRow{
				{LatMin: 0.5, LngMin: 10.5, LatMax: 0.501, LngMax: 10.501, Value: 318},
				{LatMin: 0.6, LngMin: 10.5, LatMax: 0.601, LngMax: 10.501, Value: -12},
			}
			if err := w.Write(rows); err != nil {
				t.Fatalf("Write: %v", err)
			}
			if w.RowCount() != 2 {
				t.Errorf("RowCount = %d", w.RowCount())
			}
			if err := w.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			if err := w.Write(rows); err != ErrWriterClosed {
				t.Errorf("Write after Close = %v", err)
			}

			got, err := ReadFile[ValueRow](path)
			if err != nil {
				t.Fatalf("ReadFile: %v", err)
			}
			if len(got) != 2 || got[0] != rows[0] || got[1] != rows[1] {
				t.Errorf("read back %+v", got)
			}
		})
	}
}

func TestBackendRequiresOutputDir(t *testing.T) {
	_, err := NewValueBackend(storage.Config{Table: "elevation"})
	if !errors.Is(err, errors.ErrMissingField) {
		t.Errorf("error = %v, want ErrMissingField", err)
	}
}

func TestValueSession(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	be, err := storage.Open(storage.Config{Driver: "parquet", Mode: storage.ModeValue, OutputDir: dir, Table: "elevation"})
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	if err := be.PrepareEnvironment(ctx); err != nil {
		t.Fatalf("PrepareEnvironment: %v", err)
	}

	s, err := be.Open(ctx, "N00E010.hgt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	rec := storage.Record{Footprint: cell(0.5, 10.5), Value: 318}
	if inserted, err := storage.InsertIfAbsent(ctx, s, rec); err != nil || !inserted {
		t.Fatalf("InsertIfAbsent = (%v, %v)", inserted, err)
	}
	if inserted, err := storage.InsertIfAbsent(ctx, s, rec); err != nil || inserted {
		t.Fatalf("duplicate InsertIfAbsent = (%v, %v)", inserted, err)
	}
	if err := s.Insert(ctx, rec); !errors.Is(err, errors.ErrFootprintExists) {
		t.Errorf("duplicate Insert = %v, want ErrFootprintExists", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	path := filepath.Join(dir, "elevation", "N00E010.parquet")
	if _, err := os.Stat(path + tmpExt); !os.IsNotExist(err) {
		t.Error("temporary file should be renamed away")
	}
	rows, err := ReadFile[ValueRow](path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(rows) != 1 || rows[0].Value != 318 {
		t.Fatalf("rows = %+v", rows)
	}

	// A second session keeps earlier rows and skips their footprints.
	s, err = be.Open(ctx, "N00E010.hgt")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	exists, err := s.Exists(ctx, rec.Footprint)
	if err != nil || !exists {
		t.Errorf("Exists after reopen = (%v, %v)", exists, err)
	}
	if err := s.Insert(ctx, storage.Record{Footprint: cell(0.6, 10.5), Value: 1}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	s.Close()

	rows, err = ReadFile[ValueRow](path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("rows after second session = %d, want 2", len(rows))
	}
}

func TestRasterSession(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	be, err := NewRasterBackend(storage.Config{OutputDir: dir, Table: "elevation_raster", Compression: "snappy"})
	if err != nil {
		t.Fatalf("NewRasterBackend: %v", err)
	}
	if err := be.PrepareEnvironment(ctx); err != nil {
		t.Fatalf("PrepareEnvironment: %v", err)
	}

	s, err := be.Open(ctx, "S20W003.hgt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	rec := storage.Record{
		Footprint: orb.Bound{Min: orb.Point{-3, -20}, Max: orb.Point{-2.9, -19.9}},
		Raster: &storage.Raster{
			Width:   3,
			Height:  1,
			TopLeft: orb.Point{-3, -19.9},
			ScaleX:  1.0 / 30,
			ScaleY:  -0.1,
			NoData:  -32768,
			Values:  [][]int16{{7, -32768, 9}},
		},
	}
	if err := s.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Insert(ctx, storage.Record{Footprint: cell(0, 0)}); err == nil {
		t.Error("raster session should reject a value record")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	rows, err := ReadFile[RasterRow](be.(*Backend).Path("S20W003.hgt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}

	back, err := RasterRowToRecord(rows[0])
	if err != nil {
		t.Fatalf("RasterRowToRecord: %v", err)
	}
	if back.Footprint != rec.Footprint {
		t.Errorf("footprint = %v, want %v", back.Footprint, rec.Footprint)
	}
	if back.Raster.Values[0][1] != -32768 || back.Raster.ScaleY != -0.1 {
		t.Errorf("raster = %+v", back.Raster)
	}
}

func TestClosedSession(t *testing.T) {
	ctx := context.Background()
	be, err := NewValueBackend(storage.Config{OutputDir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewValueBackend: %v", err)
	}
	s, err := be.Open(ctx, "N00E010")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.Close()

	if _, err := s.Exists(ctx, cell(0, 0)); !errors.Is(err, errors.ErrSessionClosed) {
		t.Errorf("Exists after Close = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}
