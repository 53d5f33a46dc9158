package duckdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"

	"github.com/xtxerr/hgtload/internal/errors"
	"github.com/xtxerr/hgtload/internal/storage"
)

func cell(lat, lng float64) orb.Bound {
	const side = 1.0 / 1200
	return orb.Bound{Min: orb.Point{lng, lat}, Max: orb.Point{lng + side, lat + side}}
}

func newValueBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := NewValueBackend(storage.Config{
		DSN:   filepath.Join(t.TempDir(), "elevation.duckdb"),
		Table: "elevation",
	})
	if err != nil {
		t.Fatalf("NewValueBackend: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b.(*Backend)
}

func TestRegistered(t *testing.T) {
	b, err := storage.Open(storage.Config{Driver: "duckdb", Mode: storage.ModeValue})
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	defer b.Close()

	if _, ok := b.(*Backend); !ok {
		t.Errorf("storage.Open returned %T", b)
	}
}

func TestInvalidTableName(t *testing.T) {
	_, err := NewValueBackend(storage.Config{Table: "elevation; DROP TABLE x"})
	if !errors.Is(err, errors.ErrInvalidName) {
		t.Errorf("error = %v, want ErrInvalidName", err)
	}
}

func TestPrepareEnvironmentCreatesTable(t *testing.T) {
	ctx := context.Background()
	b := newValueBackend(t)

	exists, err := b.TableExists(ctx)
	if err != nil || exists {
		t.Fatalf("TableExists before prepare = (%v, %v)", exists, err)
	}

	if err := b.PrepareEnvironment(ctx); err != nil {
		t.Fatalf("PrepareEnvironment: %v", err)
	}
	exists, err = b.TableExists(ctx)
	if err != nil || !exists {
		t.Fatalf("TableExists after prepare = (%v, %v)", exists, err)
	}

	// A second run finds the table and leaves it alone.
	if err := b.PrepareEnvironment(ctx); err != nil {
		t.Fatalf("second PrepareEnvironment: %v", err)
	}
}

func TestValueSessionInsertIfAbsent(t *testing.T) {
	ctx := context.Background()
	b := newValueBackend(t)
	if err := b.PrepareEnvironment(ctx); err != nil {
		t.Fatalf("PrepareEnvironment: %v", err)
	}

	s, err := b.Open(ctx, "N00E010.hgt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	records := []storage.Record{
		{Footprint: cell(0.5, 10.5), Value: 318},
		{Footprint: cell(0.6, 10.5), Value: 0},
		{Footprint: cell(0.7, 10.5), Value: -12},
	}
	for _, rec := range records {
		inserted, err := storage.InsertIfAbsent(ctx, s, rec)
		if err != nil || !inserted {
			t.Fatalf("InsertIfAbsent(%v) = (%v, %v)", rec.Footprint, inserted, err)
		}
	}

	inserted, err := storage.InsertIfAbsent(ctx, s, records[0])
	if err != nil || inserted {
		t.Errorf("duplicate InsertIfAbsent = (%v, %v), want (false, nil)", inserted, err)
	}

	exists, err := s.Exists(ctx, cell(0.9, 10.5))
	if err != nil || exists {
		t.Errorf("Exists(unknown) = (%v, %v)", exists, err)
	}

	n, err := b.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Errorf("Count = %d, want 3", n)
	}

	var value int16
	err = b.DB().QueryRowContext(ctx,
		`SELECT value FROM elevation WHERE lat_min = ? AND lng_min = ?`, 0.7, 10.5).Scan(&value)
	if err != nil || value != -12 {
		t.Errorf("stored value = (%d, %v), want -12", value, err)
	}
}

func TestSessionsAcrossConnections(t *testing.T) {
	ctx := context.Background()
	b := newValueBackend(t)
	if err := b.PrepareEnvironment(ctx); err != nil {
		t.Fatalf("PrepareEnvironment: %v", err)
	}

	s1, err := b.Open(ctx, "N00E010.hgt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s2, err := b.Open(ctx, "N00E010.hgt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s2.Close()

	if err := s1.Insert(ctx, storage.Record{Footprint: cell(0.1, 10.1), Value: 5}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	s1.Close()

	exists, err := s2.Exists(ctx, cell(0.1, 10.1))
	if err != nil || !exists {
		t.Errorf("Exists from other session = (%v, %v)", exists, err)
	}

	if err := s1.Insert(ctx, storage.Record{}); !errors.Is(err, errors.ErrSessionClosed) {
		t.Errorf("Insert on closed session = %v", err)
	}
}

// staleSession answers Exists as if no concurrent insert had committed.
type staleSession struct{ storage.Session }

func (staleSession) Exists(context.Context, orb.Bound) (bool, error) { return false, nil }

func TestNeighbourSessionsShareEdge(t *testing.T) {
	ctx := context.Background()
	b := newValueBackend(t)
	if err := b.PrepareEnvironment(ctx); err != nil {
		t.Fatalf("PrepareEnvironment: %v", err)
	}

	west, err := b.Open(ctx, "N00E010.hgt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer west.Close()
	east, err := b.Open(ctx, "N00E011.hgt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer east.Close()

	edge := storage.Record{Footprint: cell(0.5, 11), Value: 40}
	if err := west.Insert(ctx, edge); err != nil {
		t.Fatalf("west Insert: %v", err)
	}

	edge.Value = 41
	if err := east.Insert(ctx, edge); !errors.Is(err, errors.ErrFootprintExists) {
		t.Errorf("east Insert = %v, want ErrFootprintExists", err)
	}
	inserted, err := storage.InsertIfAbsent(ctx, staleSession{east}, edge)
	if err != nil || inserted {
		t.Errorf("east InsertIfAbsent = (%v, %v), want (false, nil)", inserted, err)
	}

	n, err := b.Count(ctx)
	if err != nil || n != 1 {
		t.Errorf("Count = (%d, %v), want 1", n, err)
	}
}

func TestOpenAfterClose(t *testing.T) {
	b := newValueBackend(t)
	b.Close()

	if _, err := b.Open(context.Background(), "N00E010.hgt"); !errors.Is(err, errors.ErrSessionClosed) {
		t.Errorf("Open after Close = %v, want ErrSessionClosed", err)
	}
}

func TestRasterBackend(t *testing.T) {
	ctx := context.Background()
	be, err := NewRasterBackend(storage.Config{
		DSN:   filepath.Join(t.TempDir(), "raster.duckdb"),
		Table: "elevation_raster",
	})
	if err != nil {
		t.Fatalf("NewRasterBackend: %v", err)
	}
	defer be.Close()

	if err := be.PrepareEnvironment(ctx); err != nil {
		if errors.Is(err, errors.ErrIncompatibleStore) {
			t.Skipf("spatial extension unavailable: %v", err)
		}
		t.Fatalf("PrepareEnvironment: %v", err)
	}

	s, err := be.Open(ctx, "N00E010.hgt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	rec := storage.Record{
		Footprint: orb.Bound{Min: orb.Point{10, 0.5}, Max: orb.Point{10.1, 0.6}},
		Raster: &storage.Raster{
			Width:   2,
			Height:  2,
			TopLeft: orb.Point{10, 0.6},
			ScaleX:  0.05,
			ScaleY:  -0.05,
			NoData:  -32768,
			Values:  [][]int16{{1, 2}, {-32768, 4}},
		},
	}

	inserted, err := storage.InsertIfAbsent(ctx, s, rec)
	if err != nil || !inserted {
		t.Fatalf("InsertIfAbsent = (%v, %v)", inserted, err)
	}
	inserted, err = storage.InsertIfAbsent(ctx, s, rec)
	if err != nil || inserted {
		t.Errorf("duplicate InsertIfAbsent = (%v, %v)", inserted, err)
	}

	var blob []byte
	var width, height int
	err = be.(*Backend).DB().QueryRowContext(ctx,
		`SELECT width, height, samples FROM elevation_raster`).Scan(&width, &height, &blob)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	values, err := storage.DecodeSamples(blob, width, height)
	if err != nil {
		t.Fatalf("DecodeSamples: %v", err)
	}
	if values[1][0] != -32768 || values[1][1] != 4 {
		t.Errorf("stored samples = %v", values)
	}

	if err := s.Insert(ctx, storage.Record{Footprint: rec.Footprint}); err == nil {
		t.Error("raster session should reject a value record")
	}
}
