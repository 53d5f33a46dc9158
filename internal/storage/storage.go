package storage

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"github.com/xtxerr/hgtload/internal/errors"
)

// =============================================================================
// Interfaces
// =============================================================================

// Backend is a configured destination for elevation records.
//
// Backend is safe for concurrent use; each worker opens its own Session.
type Backend interface {
	// PrepareEnvironment checks that the store supports the configured mode
	// and creates the target table or location when missing. It returns an
	// error wrapping ErrIncompatibleStore when prerequisites are missing.
	PrepareEnvironment(ctx context.Context) error

	// Open starts a session for importing one tile.
	Open(ctx context.Context, tile string) (Session, error)

	// Close releases the backend.
	Close() error
}

// Session is a single worker's connection to a Backend. A Session is not
// safe for concurrent use.
type Session interface {
	// Exists reports whether a record with this footprint is stored.
	Exists(ctx context.Context, footprint orb.Bound) (bool, error)

	// Insert stores rec. When the store already holds rec.Footprint and
	// enforces unique footprints, Insert returns an error wrapping
	// ErrFootprintExists and stores nothing.
	Insert(ctx context.Context, rec Record) error

	// Close flushes and releases the session.
	Close() error
}

// =============================================================================
// Records
// =============================================================================

// Record is one unit of imported data. Value mode records carry Value;
// raster mode records carry Raster.
type Record struct {
	Footprint orb.Bound
	Value     int16
	Raster    *Raster
}

// IsRaster reports whether the record holds a block of samples.
func (r Record) IsRaster() bool { return r.Raster != nil }

// Raster is a block of raw samples positioned by its top-left corner.
// ScaleY is negative: rows go southwards.
type Raster struct {
	Width   int
	Height  int
	TopLeft orb.Point
	ScaleX  float64
	ScaleY  float64
	NoData  int16
	Values  [][]int16
}

// Bytes encodes the samples row by row as big-endian int16, the layout of
// the source tiles.
func (r *Raster) Bytes() []byte {
	buf := make([]byte, 0, r.Width*r.Height*2)
	for _, row := range r.Values {
		for _, v := range row {
			buf = binary.BigEndian.AppendUint16(buf, uint16(v))
		}
	}
	return buf
}

// DecodeSamples is the inverse of Raster.Bytes.
func DecodeSamples(data []byte, width, height int) ([][]int16, error) {
	if len(data) != width*height*2 {
		return nil, fmt.Errorf("sample blob is %d bytes, want %d for %dx%d", len(data), width*height*2, width, height)
	}

	values := make([][]int16, height)
	for i := range values {
		values[i] = make([]int16, width)
		for j := range values[i] {
			off := (i*width + j) * 2
			values[i][j] = int16(binary.BigEndian.Uint16(data[off:]))
		}
	}
	return values, nil
}

// EnvelopeWKT returns the footprint as a WKT polygon.
func EnvelopeWKT(b orb.Bound) string {
	return wkt.MarshalString(b.ToPolygon())
}

// =============================================================================
// Insert helpers
// =============================================================================

// InsertIfAbsent inserts rec unless a record with the same footprint is
// already stored. It reports whether rec was inserted.
//
// Neighbouring tiles share their edge row or column: the last column of
// N00E010 covers the same cells as the first column of N00E011, and the same
// holds for the last and first rows of vertical neighbours. Two sessions
// importing neighbours at the same time can therefore both see Exists
// return false for an edge footprint. The check and the insert are separate
// statements, so the loser of that race is caught by the store instead: an
// Insert failing with ErrFootprintExists counts as already stored.
func InsertIfAbsent(ctx context.Context, s Session, rec Record) (bool, error) {
	exists, err := s.Exists(ctx, rec.Footprint)
	if err != nil {
		return false, fmt.Errorf("check existing record: %w", err)
	}
	if exists {
		return false, nil
	}

	err = s.Insert(ctx, rec)
	if errors.Is(err, errors.ErrFootprintExists) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert record: %w", err)
	}
	return true, nil
}
