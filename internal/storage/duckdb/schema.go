package duckdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/xtxerr/hgtload/internal/errors"
	"github.com/xtxerr/hgtload/internal/storage"
	"github.com/xtxerr/hgtload/internal/validation"
)

// =============================================================================
// Value schema
// =============================================================================

type valueSchema struct{}

func (valueSchema) compatible(ctx context.Context, db *sql.DB) error { return nil }

func (valueSchema) createTable(table string) []string {
	return []string{fmt.Sprintf(`CREATE TABLE %s (
    lat_min DOUBLE NOT NULL,
    lng_min DOUBLE NOT NULL,
    lat_max DOUBLE NOT NULL,
    lng_max DOUBLE NOT NULL,
    value   SMALLINT NOT NULL,
    PRIMARY KEY (lat_min, lng_min, lat_max, lng_max)
)`, validation.QuoteIdentifier(table))}
}

func (valueSchema) newSession(conn *sql.Conn, table string) *session {
	t := validation.QuoteIdentifier(table)
	return &session{
		conn: conn,
		existsQuery: "SELECT 1 FROM " + t +
			" WHERE lat_min = ? AND lng_min = ? AND lat_max = ? AND lng_max = ? LIMIT 1",
		insertQuery: "INSERT INTO " + t +
			" (lat_min, lng_min, lat_max, lng_max, value) VALUES (?, ?, ?, ?, ?)",
		boundArgs: boundColumns,
		args: func(rec storage.Record) []any {
			return append(boundColumns(rec.Footprint), rec.Value)
		},
	}
}

func boundColumns(b orb.Bound) []any {
	return []any{b.Min.Lat(), b.Min.Lon(), b.Max.Lat(), b.Max.Lon()}
}

// =============================================================================
// Raster schema
// =============================================================================

// spatialExtension provides the GEOMETRY type and ST_ functions.
const spatialExtension = "spatial"

type rasterSchema struct {
	install bool
}

// compatible makes sure the spatial extension is loaded, loading it (and
// installing it when allowed) if needed.
func (s rasterSchema) compatible(ctx context.Context, db *sql.DB) error {
	var loaded, installed bool
	err := db.QueryRowContext(ctx,
		`SELECT loaded, installed FROM duckdb_extensions() WHERE extension_name = ?`,
		spatialExtension).Scan(&loaded, &installed)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("extension %s is unknown to this build: %w", spatialExtension, errors.ErrIncompatibleStore)
	}
	if err != nil {
		return fmt.Errorf("list extensions: %w", err)
	}
	if loaded {
		return nil
	}

	if !installed {
		if !s.install {
			return fmt.Errorf("extension %s is not installed: %w", spatialExtension, errors.ErrIncompatibleStore)
		}
		if _, err := db.ExecContext(ctx, "INSTALL "+spatialExtension); err != nil {
			return fmt.Errorf("install %s: %v: %w", spatialExtension, err, errors.ErrIncompatibleStore)
		}
	}

	if _, err := db.ExecContext(ctx, "LOAD "+spatialExtension); err != nil {
		return fmt.Errorf("load %s: %v: %w", spatialExtension, err, errors.ErrIncompatibleStore)
	}
	return nil
}

func (rasterSchema) createTable(table string) []string {
	seq := validation.QuoteIdentifier(table + "_rid_seq")
	return []string{
		"CREATE SEQUENCE IF NOT EXISTS " + seq,
		fmt.Sprintf(`CREATE TABLE %s (
    rid          BIGINT PRIMARY KEY DEFAULT nextval('%s'),
    envelope     GEOMETRY NOT NULL,
    width        INTEGER NOT NULL,
    height       INTEGER NOT NULL,
    top_left_lng DOUBLE NOT NULL,
    top_left_lat DOUBLE NOT NULL,
    scale_x      DOUBLE NOT NULL,
    scale_y      DOUBLE NOT NULL,
    nodata       SMALLINT NOT NULL,
    samples      BLOB NOT NULL
)`, validation.QuoteIdentifier(table), table+"_rid_seq"),
	}
}

func (rasterSchema) newSession(conn *sql.Conn, table string) *session {
	t := validation.QuoteIdentifier(table)
	return &session{
		conn: conn,
		existsQuery: "SELECT 1 FROM " + t +
			" WHERE ST_Equals(envelope, ST_GeomFromText(?)) LIMIT 1",
		insertQuery: "INSERT INTO " + t +
			" (envelope, width, height, top_left_lng, top_left_lat, scale_x, scale_y, nodata, samples)" +
			" VALUES (ST_GeomFromText(?), ?, ?, ?, ?, ?, ?, ?, ?)",
		boundArgs: func(b orb.Bound) []any {
			return []any{storage.EnvelopeWKT(b)}
		},
		args:   rasterColumns,
		raster: true,
	}
}

func rasterColumns(rec storage.Record) []any {
	r := rec.Raster
	return []any{
		storage.EnvelopeWKT(rec.Footprint),
		r.Width,
		r.Height,
		r.TopLeft.Lon(),
		r.TopLeft.Lat(),
		r.ScaleX,
		r.ScaleY,
		r.NoData,
		r.Bytes(),
	}
}
