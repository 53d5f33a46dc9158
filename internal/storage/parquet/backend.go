package parquet

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"

	"github.com/xtxerr/hgtload/config"
	"github.com/xtxerr/hgtload/internal/constants"
	"github.com/xtxerr/hgtload/internal/errors"
	"github.com/xtxerr/hgtload/internal/logging"
	"github.com/xtxerr/hgtload/internal/storage"
	"github.com/xtxerr/hgtload/internal/validation"
)

func init() {
	storage.Register(constants.DriverParquet, storage.ModeValue, NewValueBackend)
	storage.Register(constants.DriverParquet, storage.ModeRaster, NewRasterBackend)
}

// FileExt is the extension of the per-tile files.
const FileExt = ".parquet"

// tmpExt marks a file being written by an open session.
const tmpExt = ".tmp"

// Backend writes one Parquet file per tile.
type Backend struct {
	dir  string
	mode storage.Mode
	opts Options
	log  *slog.Logger
}

// NewValueBackend returns a backend writing ValueRow files.
func NewValueBackend(cfg storage.Config) (storage.Backend, error) {
	return newBackend(cfg, storage.ModeValue)
}

// NewRasterBackend returns a backend writing RasterRow files.
func NewRasterBackend(cfg storage.Config) (storage.Backend, error) {
	return newBackend(cfg, storage.ModeRaster)
}

func newBackend(cfg storage.Config, mode storage.Mode) (*Backend, error) {
	if cfg.Table == "" {
		cfg.Table = config.DefaultTable
	}
	if err := validation.ValidateIdentifier(cfg.Table); err != nil {
		return nil, fmt.Errorf("table name: %w", err)
	}
	if cfg.OutputDir == "" {
		return nil, errors.NewMissingField("storage.output_dir")
	}

	opts := DefaultOptions()
	if cfg.Compression != "" {
		opts.Codec = Codec(cfg.Compression)
	}

	log := cfg.Logger
	if log == nil {
		log = logging.Component("parquet")
	}

	return &Backend{
		dir:  filepath.Join(cfg.OutputDir, cfg.Table),
		mode: mode,
		opts: opts,
		log:  log,
	}, nil
}

// Dir returns the directory holding the tile files.
func (b *Backend) Dir() string { return b.dir }

// PrepareEnvironment creates the output directory and checks it is writable.
func (b *Backend) PrepareEnvironment(ctx context.Context) error {
	if err := os.MkdirAll(b.dir, 0755); err != nil {
		return fmt.Errorf("create %s: %v: %w", b.dir, err, errors.ErrIncompatibleStore)
	}

	probe, err := os.CreateTemp(b.dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("%s is not writable: %v: %w", b.dir, err, errors.ErrIncompatibleStore)
	}
	probe.Close()
	os.Remove(probe.Name())

	b.log.Debug("output directory ready", "dir", b.dir, "mode", b.mode)
	return nil
}

// Path returns the file a tile is written to.
func (b *Backend) Path(tile string) string {
	stem := strings.TrimSuffix(filepath.Base(tile), filepath.Ext(tile))
	return filepath.Join(b.dir, stem+FileExt)
}

// Open starts a session rewriting the tile file.
func (b *Backend) Open(ctx context.Context, tile string) (storage.Session, error) {
	path := b.Path(tile)
	if b.mode == storage.ModeRaster {
		s, err := openSession(path, b.opts, RecordToRasterRow, RasterRow.Footprint)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	s, err := openSession(path, b.opts, RecordToValueRow, ValueRow.Footprint)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Close is a no-op; sessions own their files.
func (b *Backend) Close() error { return nil }

// =============================================================================
// Session
// =============================================================================

type session[R any] struct {
	path   string
	writer *Writer[R]
	seen   map[orb.Bound]struct{}
	toRow  func(storage.Record) (R, error)
	closed bool
}

func openSession[R any](path string, opts Options, toRow func(storage.Record) (R, error), footprint func(R) orb.Bound) (*session[R], error) {
	seen := make(map[orb.Bound]struct{})

	var existing []R
	if _, err := os.Stat(path); err == nil {
		existing, err = ReadFile[R](path)
		if err != nil {
			return nil, fmt.Errorf("read existing %s: %w", path, err)
		}
		for _, row := range existing {
			seen[footprint(row)] = struct{}{}
		}
	}

	w, err := NewWriter[R](path+tmpExt, opts)
	if err != nil {
		return nil, err
	}
	if err := w.Write(existing); err != nil {
		w.Close()
		os.Remove(w.Path())
		return nil, fmt.Errorf("copy existing rows: %w", err)
	}

	return &session[R]{
		path:   path,
		writer: w,
		seen:   seen,
		toRow:  toRow,
	}, nil
}

func (s *session[R]) Exists(ctx context.Context, footprint orb.Bound) (bool, error) {
	if s.closed {
		return false, errors.ErrSessionClosed
	}
	_, ok := s.seen[footprint]
	return ok, nil
}

func (s *session[R]) Insert(ctx context.Context, rec storage.Record) error {
	if s.closed {
		return errors.ErrSessionClosed
	}
	if _, ok := s.seen[rec.Footprint]; ok {
		return errors.ErrFootprintExists
	}

	row, err := s.toRow(rec)
	if err != nil {
		return err
	}
	if err := s.writer.Write([]R{row}); err != nil {
		return err
	}
	s.seen[rec.Footprint] = struct{}{}
	return nil
}

// Close finishes the file and moves it over the previous version.
func (s *session[R]) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.writer.Close(); err != nil {
		os.Remove(s.writer.Path())
		return err
	}
	if err := os.Rename(s.writer.Path(), s.path); err != nil {
		return fmt.Errorf("publish %s: %w", s.path, err)
	}
	return nil
}
