// Package lookup answers elevation queries from a folder of HGT tiles.
//
// Tiles are opened on first use and kept open until Close. Concurrent
// queries for the same missing tile share a single open.
package lookup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/xtxerr/hgtload/internal/constants"
	"github.com/xtxerr/hgtload/internal/errors"
	"github.com/xtxerr/hgtload/internal/hgt"
	"github.com/xtxerr/hgtload/internal/logging"
)

// Result is the elevation found for one point.
type Result struct {
	Point orb.Point
	Tile  string
	hgt.Elevation
}

// Service resolves points against the tiles of a folder.
// It is safe for concurrent use.
type Service struct {
	dir      string
	sampling int
	log      *slog.Logger

	mu     sync.RWMutex
	tiles  map[string]*hgt.Tile
	closed bool

	group singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithSampling forces the grid side of every tile.
func WithSampling(n int) Option {
	return func(s *Service) { s.sampling = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// New returns a Service reading tiles from dir.
func New(dir string, opts ...Option) *Service {
	s := &Service{
		dir:   dir,
		tiles: make(map[string]*hgt.Tile),
		log:   logging.Component("lookup"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the file expected to hold the tile named name.
func (s *Service) Path(name string) string {
	return filepath.Join(s.dir, name+constants.ExtHGT)
}

// Tile returns the open tile named name, such as "N00E010".
func (s *Service) Tile(name string) (*hgt.Tile, error) {
	s.mu.RLock()
	t, ok := s.tiles[name]
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("lookup service is closed")
	}
	if ok {
		return t, nil
	}

	v, err, _ := s.group.Do(name, func() (any, error) {
		return s.open(name)
	})
	if err != nil {
		return nil, err
	}
	return v.(*hgt.Tile), nil
}

func (s *Service) open(name string) (*hgt.Tile, error) {
	s.mu.RLock()
	t, ok := s.tiles[name]
	s.mu.RUnlock()
	if ok {
		return t, nil
	}

	path := s.Path(name)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%s: %w", path, errors.ErrTileNotFound)
	}

	var opts []hgt.Option
	if s.sampling > 0 {
		opts = append(opts, hgt.WithSampling(s.sampling, s.sampling))
	}
	t, err := hgt.Open(path, opts...)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		t.Close()
		return nil, fmt.Errorf("lookup service is closed")
	}
	s.tiles[name] = t
	s.log.Debug("tile opened", "file", path, "sampling", t.SampleLat())
	return t, nil
}

// Elevation returns the elevation at (lat, lng).
func (s *Service) Elevation(lat, lng float64) (Result, error) {
	name := hgt.TileName(lat, lng)
	res := Result{Point: orb.Point{lng, lat}, Tile: name}

	t, err := s.Tile(name)
	if err != nil {
		return res, err
	}

	e, err := t.ElevationAt(lat, lng)
	if err != nil {
		return res, err
	}
	res.Elevation = e
	return res, nil
}

// ElevationBatch resolves points concurrently with at most limit lookups in
// flight. Results keep the order of points. The first error cancels the
// remaining lookups and is returned.
func (s *Service) ElevationBatch(ctx context.Context, points []orb.Point, limit int) ([]Result, error) {
	results := make([]Result, len(points))

	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, p := range points {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := s.Elevation(p.Lat(), p.Lon())
			if err != nil {
				return fmt.Errorf("point %d (%g, %g): %w", i, p.Lat(), p.Lon(), err)
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Open returns the number of tiles currently open.
func (s *Service) Open() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tiles)
}

// Close closes every open tile.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	var errs []error
	for name, t := range s.tiles {
		if err := t.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
		delete(s.tiles, name)
	}
	return errors.Join(errs...)
}
