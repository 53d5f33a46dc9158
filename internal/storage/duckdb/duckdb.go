// Package duckdb stores elevation records in a DuckDB database.
//
// Value mode keeps one row per cell with the cell bounds as primary key.
// Raster mode keeps one row per sample block with a GEOMETRY envelope and
// needs the spatial extension.
//
// Importing the package registers both modes under the "duckdb" driver.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	goduckdb "github.com/marcboeker/go-duckdb"
	"github.com/paulmach/orb"

	"github.com/xtxerr/hgtload/config"
	"github.com/xtxerr/hgtload/internal/constants"
	"github.com/xtxerr/hgtload/internal/errors"
	"github.com/xtxerr/hgtload/internal/logging"
	"github.com/xtxerr/hgtload/internal/storage"
	"github.com/xtxerr/hgtload/internal/validation"
)

func init() {
	storage.Register(constants.DriverDuckDB, storage.ModeValue, NewValueBackend)
	storage.Register(constants.DriverDuckDB, storage.ModeRaster, NewRasterBackend)
}

// pingTimeout bounds the connection check in open.
const pingTimeout = 5 * time.Second

// =============================================================================
// Backend
// =============================================================================

// schema is the mode specific part of a backend.
type schema interface {
	// compatible checks the database supports the mode.
	compatible(ctx context.Context, db *sql.DB) error

	// createTable returns the DDL statements for the table.
	createTable(table string) []string

	// newSession wraps a dedicated connection.
	newSession(conn *sql.Conn, table string) *session
}

// Backend is a DuckDB database holding one elevation table.
//
// Backend is safe for concurrent use.
type Backend struct {
	db     *sql.DB
	table  string
	schema schema
	log    *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewValueBackend opens a backend storing one row per cell.
func NewValueBackend(cfg storage.Config) (storage.Backend, error) {
	return open(cfg, valueSchema{})
}

// NewRasterBackend opens a backend storing one row per sample block.
func NewRasterBackend(cfg storage.Config) (storage.Backend, error) {
	return open(cfg, rasterSchema{install: cfg.InstallExtensions})
}

func open(cfg storage.Config, s schema) (*Backend, error) {
	if cfg.Table == "" {
		cfg.Table = config.DefaultTable
	}
	if err := validation.ValidateIdentifier(cfg.Table); err != nil {
		return nil, fmt.Errorf("table name: %w", err)
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = config.DefaultMaxOpenConns
	}

	db, err := sql.Open("duckdb", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log := cfg.Logger
	if log == nil {
		log = logging.Component("duckdb")
	}

	return &Backend{
		db:     db,
		table:  cfg.Table,
		schema: s,
		log:    log,
	}, nil
}

// PrepareEnvironment checks compatibility, then creates the table when it
// does not exist yet.
func (b *Backend) PrepareEnvironment(ctx context.Context) error {
	if err := b.schema.compatible(ctx, b.db); err != nil {
		return err
	}
	b.log.Debug("database compatible with provided settings")

	exists, err := b.TableExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		b.log.Debug("table exists, nothing to create", "table", b.table)
		return nil
	}

	b.log.Debug("table not found, creating", "table", b.table)
	if err := b.transaction(ctx, func(tx *sql.Tx) error {
		for _, stmt := range b.schema.createTable(b.table) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("create table %s: %w", b.table, err)
			}
		}
		return nil
	}); err != nil {
		return err
	}
	b.log.Info("table created", "table", b.table)
	return nil
}

// TableExists reports whether the elevation table exists.
func (b *Backend) TableExists(ctx context.Context) (bool, error) {
	var n int
	err := b.db.QueryRowContext(ctx,
		`SELECT count(*) FROM information_schema.tables WHERE table_name = ?`,
		b.table).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", b.table, err)
	}
	return n > 0, nil
}

// Open returns a session bound to a dedicated connection.
func (b *Backend) Open(ctx context.Context, tile string) (storage.Session, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, errors.ErrSessionClosed
	}

	conn, err := b.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("session for %s: %w", tile, err)
	}
	s := b.schema.newSession(conn, b.table)
	s.log = b.log.With("tile", tile)
	return s, nil
}

// Count returns the number of rows in the elevation table.
func (b *Backend) Count(ctx context.Context) (int64, error) {
	var n int64
	err := b.db.QueryRowContext(ctx, "SELECT count(*) FROM "+validation.QuoteIdentifier(b.table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", b.table, err)
	}
	return n, nil
}

// DB returns the underlying database handle.
func (b *Backend) DB() *sql.DB { return b.db }

// Close closes the database.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

// transaction executes fn within a transaction, rolling back on error.
func (b *Backend) transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// =============================================================================
// Session
// =============================================================================

// session holds one connection. Statements are built once per session.
type session struct {
	conn        *sql.Conn
	existsQuery string
	insertQuery string
	args        func(storage.Record) []any
	boundArgs   func(orb.Bound) []any
	raster      bool
	closed      bool
	log         *slog.Logger
}

func (s *session) Exists(ctx context.Context, footprint orb.Bound) (bool, error) {
	if s.closed {
		return false, errors.ErrSessionClosed
	}

	var one int
	err := s.conn.QueryRowContext(ctx, s.existsQuery, s.boundArgs(footprint)...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *session) Insert(ctx context.Context, rec storage.Record) error {
	if s.closed {
		return errors.ErrSessionClosed
	}
	if s.raster && rec.Raster == nil {
		return fmt.Errorf("raster table needs a raster record")
	}
	_, err := s.conn.ExecContext(ctx, s.insertQuery, s.args(rec)...)
	if err != nil && s.lostRace(ctx, rec.Footprint, err) {
		s.log.Debug("footprint stored by a concurrent session", "footprint", rec.Footprint)
		return fmt.Errorf("%v: %w", err, errors.ErrFootprintExists)
	}
	return err
}

// lostRace reports whether a failed insert collided with a row another
// session stored after this one checked Exists. Only primary key and
// write-write conflicts qualify, and the footprint must now be present.
func (s *session) lostRace(ctx context.Context, footprint orb.Bound, err error) bool {
	var dbErr *goduckdb.Error
	if !errors.As(err, &dbErr) {
		return false
	}
	switch dbErr.Type {
	case goduckdb.ErrorTypeConstraint, goduckdb.ErrorTypeTransaction:
	default:
		return false
	}
	exists, err := s.Exists(ctx, footprint)
	return err == nil && exists
}

func (s *session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}
