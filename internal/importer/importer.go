// Package importer streams the cells of HGT tiles into a storage backend.
//
// An Importer is a worker.Processor[string]: the pool hands it tile paths
// and it writes one record per non-void cell (value mode) or one record per
// sample block (raster mode). A record whose footprint is already stored is
// left untouched, so re-running an import only fills the gaps.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/xtxerr/hgtload/internal/errors"
	"github.com/xtxerr/hgtload/internal/hgt"
	"github.com/xtxerr/hgtload/internal/logging"
	"github.com/xtxerr/hgtload/internal/stats"
	"github.com/xtxerr/hgtload/internal/storage"
	"github.com/xtxerr/hgtload/internal/worker"
)

// Options configures an Importer.
type Options struct {
	// Backend receives the records. Its environment must already be
	// prepared.
	Backend storage.Backend

	// Raster imports sample blocks instead of single values.
	Raster bool

	// BlockWidth and BlockHeight size the raster blocks. Zero uses the
	// whole tile side.
	BlockWidth  int
	BlockHeight int

	// Sampling forces the grid side. Zero detects it from the file size.
	Sampling int

	// StatsAccuracy is the relative accuracy of the summary quantiles.
	StatsAccuracy float64

	Logger *slog.Logger
}

// Importer imports HGT files into a storage backend.
type Importer struct {
	opts Options
	log  *slog.Logger

	mu        sync.Mutex
	summaries []stats.Result
	total     *stats.Summary
}

// New creates an Importer.
func New(opts Options) (*Importer, error) {
	if opts.Backend == nil {
		return nil, errors.NewMissingField("backend")
	}
	if opts.BlockWidth < 0 || opts.BlockHeight < 0 {
		return nil, errors.NewValidation("block size", "must not be negative")
	}

	log := opts.Logger
	if log == nil {
		log = logging.Component("import")
	}

	return &Importer{
		opts:  opts,
		log:   log,
		total: stats.New("total", opts.StatsAccuracy),
	}, nil
}

// Mode returns the storage mode the importer writes.
func (im *Importer) Mode() storage.Mode {
	return storage.ModeFor(im.opts.Raster)
}

// Process imports the tile at job.Item.
func (im *Importer) Process(ctx context.Context, job worker.Job[string]) error {
	im.log.Info(fmt.Sprintf("Importing file %d/%d", job.Current, job.Total), "file", job.Item)

	_, err := im.ImportFile(ctx, job.Item, job.Cancelled)
	return err
}

// ImportFile imports one tile. cancelled is polled before every record; once
// it reports true the rest of the file is left unimported and the partial
// summary is returned without error. A nil cancelled never stops.
func (im *Importer) ImportFile(ctx context.Context, path string, cancelled func() bool) (res stats.Result, err error) {
	if cancelled == nil {
		cancelled = func() bool { return false }
	}

	var opts []hgt.Option
	if im.opts.Sampling > 0 {
		opts = append(opts, hgt.WithSampling(im.opts.Sampling, im.opts.Sampling))
	}

	tile, err := hgt.Open(path, opts...)
	if err != nil {
		return res, err
	}
	defer tile.Close()

	session, err := im.opts.Backend.Open(ctx, tile.Name())
	if err != nil {
		return res, fmt.Errorf("open session for %s: %w", tile.Name(), err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close session for %s: %w", tile.Name(), cerr)
		}
	}()

	summary := stats.New(tile.Name(), im.opts.StatsAccuracy)
	log := im.log.With("file", tile.Name())

	if im.opts.Raster {
		err = im.importBlocks(ctx, tile, session, summary, cancelled, log)
	} else {
		err = im.importValues(ctx, tile, session, summary, cancelled, log)
	}

	res = summary.Result()
	im.record(summary, res)
	if err != nil {
		return res, err
	}

	log.Debug("import summary", res.LogAttrs()...)
	return res, nil
}

func (im *Importer) importValues(ctx context.Context, tile *hgt.Tile, s storage.Session, summary *stats.Summary, cancelled func() bool, log *slog.Logger) error {
	it := tile.Values()
	p := newProgress(it.Len(), log)

	for it.Next() {
		if cancelled() {
			log.Debug("import interrupted", "processed", p.processed, "total", p.total)
			return nil
		}

		cell := it.Cell()
		if cell.Void {
			summary.AddVoid()
		} else if _, err := insert(ctx, s, ValueRecord(cell), summary); err != nil {
			return err
		}
		p.advance()
	}
	return it.Err()
}

func (im *Importer) importBlocks(ctx context.Context, tile *hgt.Tile, s storage.Session, summary *stats.Summary, cancelled func() bool, log *slog.Logger) error {
	it := tile.Samples(im.opts.BlockWidth, im.opts.BlockHeight)
	p := newProgress(it.Len(), log)

	for it.Next() {
		if cancelled() {
			log.Debug("import interrupted", "processed", p.processed, "total", p.total)
			return nil
		}

		block := it.Block()
		inserted, err := insert(ctx, s, RasterRecord(tile, block), summary)
		if err != nil {
			return err
		}
		if inserted && block.Void() {
			summary.AddVoid()
		}
		p.advance()
	}
	return it.Err()
}

// insert stores rec unless its footprint is already present and updates
// the summary. It reports whether rec was written.
func insert(ctx context.Context, s storage.Session, rec storage.Record, summary *stats.Summary) (bool, error) {
	inserted, err := storage.InsertIfAbsent(ctx, s, rec)
	if err != nil {
		return false, err
	}
	switch {
	case !inserted:
		summary.AddExisting()
	case rec.Raster != nil:
		summary.AddBlock(rec.Raster.NoData, rec.Raster.Values)
	default:
		summary.AddWritten(hgt.VoidValue, rec.Value)
	}
	return inserted, nil
}

func (im *Importer) record(summary *stats.Summary, res stats.Result) {
	im.mu.Lock()
	defer im.mu.Unlock()

	im.summaries = append(im.summaries, res)
	if err := im.total.Merge(summary); err != nil {
		im.log.Warn("summary merge failed", "error", err)
	}
}

// Summaries returns the result of every file imported so far.
func (im *Importer) Summaries() []stats.Result {
	im.mu.Lock()
	defer im.mu.Unlock()
	return append([]stats.Result(nil), im.summaries...)
}

// Total returns the statistics merged across every imported file.
func (im *Importer) Total() stats.Result {
	return im.total.Result()
}

// =============================================================================
// Records
// =============================================================================

// ValueRecord builds the value mode record of a cell. The footprint is the
// bounding box of the cell corners.
func ValueRecord(c hgt.Cell) storage.Record {
	return storage.Record{
		Footprint: c.Corners.Bound(),
		Value:     c.Value,
	}
}

// RasterRecord builds the raster mode record of a block. The raster is
// anchored at the block's top-left corner and steps south, so ScaleY is
// negative.
func RasterRecord(t *hgt.Tile, b hgt.Block) storage.Record {
	return storage.Record{
		Footprint: b.Corners.Bound(),
		Raster: &storage.Raster{
			Width:   b.Width(),
			Height:  b.Height(),
			TopLeft: b.Corners.TopLeft(),
			ScaleX:  t.SquareWidth(),
			ScaleY:  -t.SquareHeight(),
			NoData:  hgt.VoidValue,
			Values:  b.Values,
		},
	}
}

// =============================================================================
// Progress
// =============================================================================

// progress logs the share of processed records each time its integer
// percentage changes.
type progress struct {
	processed int
	total     int
	last      int
	log       *slog.Logger
}

func newProgress(total int, log *slog.Logger) *progress {
	return &progress{total: total, log: log}
}

func (p *progress) advance() {
	p.processed++
	if p.total <= 0 {
		return
	}

	percent := float64(p.processed) / float64(p.total) * 100
	if int(percent) != p.last {
		p.last = int(percent)
		p.log.Info(fmt.Sprintf("%.0f%% %d/%d", percent, p.processed, p.total))
	}
}
