// Package pipeline chains the download, extract and import stages over a
// work folder. Each stage runs its own worker pool and must finish before
// the next one starts; the first failing stage ends the run.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/xtxerr/hgtload/internal/constants"
	"github.com/xtxerr/hgtload/internal/dataset"
	"github.com/xtxerr/hgtload/internal/errors"
	"github.com/xtxerr/hgtload/internal/fetch"
	"github.com/xtxerr/hgtload/internal/importer"
	"github.com/xtxerr/hgtload/internal/logging"
	"github.com/xtxerr/hgtload/internal/stats"
	"github.com/xtxerr/hgtload/internal/worker"
)

// Options configures a Pipeline.
type Options struct {
	// WorkDir receives archives and tiles.
	WorkDir string

	// Dataset lists the archives to download. Required unless SkipDownload.
	Dataset *dataset.Dataset

	// Concurrency is the worker count of every stage.
	Concurrency int

	SkipDownload bool
	SkipExtract  bool
	SkipImport   bool

	// Import configures the import stage. Its Backend is required unless
	// SkipImport; Import.Sampling defaults to the dataset sampling.
	Import importer.Options

	// HTTPClient overrides the download client.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Report describes a finished run.
type Report struct {
	Downloaded int
	Extracted  int
	Imported   int

	// Summaries holds one entry per imported tile, Total their merge.
	Summaries []stats.Result
	Total     stats.Result

	Duration time.Duration
}

// Pipeline runs the stages.
type Pipeline struct {
	opts Options
	log  *slog.Logger
}

// New validates opts and returns a Pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.WorkDir == "" {
		return nil, errors.NewMissingField("work_dir")
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if !opts.SkipDownload && opts.Dataset == nil {
		return nil, errors.NewMissingField("dataset")
	}
	if !opts.SkipImport && opts.Import.Backend == nil {
		return nil, errors.NewMissingField("storage backend")
	}
	if opts.Import.Sampling == 0 && opts.Dataset != nil {
		opts.Import.Sampling = opts.Dataset.Sampling
	}

	log := opts.Logger
	if log == nil {
		log = logging.Component("pipeline")
	}
	return &Pipeline{opts: opts, log: log}, nil
}

// Run executes every stage that is not skipped.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	var report Report
	var err error

	report.Downloaded, err = p.Download(ctx)
	if err != nil {
		return report, err
	}

	report.Extracted, err = p.Extract(ctx)
	if err != nil {
		return report, err
	}

	var imp *importer.Importer
	report.Imported, imp, err = p.Import(ctx)
	if imp != nil {
		report.Summaries = imp.Summaries()
		report.Total = imp.Total()
	}
	report.Duration = time.Since(start)
	return report, err
}

// Download fetches every dataset archive into the work folder.
func (p *Pipeline) Download(ctx context.Context) (int, error) {
	if p.opts.SkipDownload {
		p.log.Debug("Download skipped")
		return 0, nil
	}

	files := p.opts.Dataset.Sorted()
	p.log.Info(fmt.Sprintf("Nb of files to download : %d", len(files)))

	opts := []fetch.DownloaderOption{fetch.WithDownloadLogger(p.log.With("stage", "download"))}
	if p.opts.HTTPClient != nil {
		opts = append(opts, fetch.WithHTTPClient(p.opts.HTTPClient))
	}
	d := fetch.NewDownloader(p.opts.WorkDir, opts...)

	return len(files), runStage(ctx, p, "download", d, files)
}

// Extract unpacks every zip archive found in the work folder.
func (p *Pipeline) Extract(ctx context.Context) (int, error) {
	if p.opts.SkipExtract {
		p.log.Debug("Extract skipped")
		return 0, nil
	}

	archives, err := p.glob(constants.ExtZip)
	if err != nil {
		return 0, err
	}
	p.log.Info(fmt.Sprintf("Nb of files to extract : %d", len(archives)))

	e := fetch.NewExtractor(p.opts.WorkDir, p.log.With("stage", "extract"))
	return len(archives), runStage(ctx, p, "extract", e, archives)
}

// Import loads every HGT file found in the work folder into the backend.
// The backend environment is prepared first; an incompatible store aborts
// before any tile is read.
//
// Neighbouring tiles may import at the same time. Their shared edge row or
// column is stored once, by whichever session inserts it first; the other
// counts it as existing.
func (p *Pipeline) Import(ctx context.Context) (int, *importer.Importer, error) {
	if p.opts.SkipImport {
		p.log.Debug("Import skipped")
		return 0, nil, nil
	}

	if err := p.opts.Import.Backend.PrepareEnvironment(ctx); err != nil {
		return 0, nil, fmt.Errorf("prepare storage: %w", err)
	}

	tiles, err := p.glob(constants.ExtHGT)
	if err != nil {
		return 0, nil, err
	}
	p.log.Info(fmt.Sprintf("Nb of files to import : %d", len(tiles)))

	opts := p.opts.Import
	if opts.Logger == nil {
		opts.Logger = p.log.With("stage", "import")
	}
	imp, err := importer.New(opts)
	if err != nil {
		return 0, nil, err
	}

	return len(tiles), imp, runStage(ctx, p, "import", imp, tiles)
}

func (p *Pipeline) glob(ext string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(p.opts.WorkDir, "*"+ext))
	if err != nil {
		return nil, err
	}
	for i, m := range matches {
		if abs, err := filepath.Abs(m); err == nil {
			matches[i] = abs
		}
	}
	return matches, nil
}

func runStage[T any](ctx context.Context, p *Pipeline, name string, proc worker.Processor[T], items []T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.log.Debug(name + " start")

	pool := worker.New(p.opts.Concurrency,
		func(int) worker.Processor[T] { return proc },
		worker.WithName(name),
		worker.WithLogger(p.log.With("stage", name)),
	)
	pool.Fill(items...)

	if err := pool.Start(ctx); err != nil {
		return err
	}
	p.log.Debug(name + " end")
	return nil
}
