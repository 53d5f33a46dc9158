package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"

	"github.com/xtxerr/hgtload/internal/errors"
	"github.com/xtxerr/hgtload/internal/logging"
	"github.com/xtxerr/hgtload/internal/worker"
)

// Extractor unpacks zip archives into Dir.
type Extractor struct {
	dir string
	log *slog.Logger
}

// NewExtractor returns an Extractor writing into dir. A nil logger uses the
// "extract" component logger.
func NewExtractor(dir string, log *slog.Logger) *Extractor {
	if log == nil {
		log = logging.Component("extract")
	}
	return &Extractor{dir: dir, log: log}
}

// Process extracts the archive at job.Item.
func (e *Extractor) Process(ctx context.Context, job worker.Job[string]) error {
	e.log.Info(fmt.Sprintf("Extracting file %d/%d", job.Current, job.Total), "file", filepath.Base(job.Item))

	names, err := e.Extract(job.Item, job.Cancelled)
	if err != nil {
		return err
	}
	e.log.Debug("extracted", "file", job.Item, "entries", len(names))
	return nil
}

// Extract writes every entry of the archive into Dir and returns the paths
// written. Entries escaping Dir are rejected. It stops between entries once
// cancelled reports true.
func (e *Extractor) Extract(archive string, cancelled func() bool) ([]string, error) {
	if cancelled == nil {
		cancelled = func() bool { return false }
	}

	zr, err := zip.OpenReader(archive)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", archive, err)
	}
	defer zr.Close()

	var written []string
	for _, f := range zr.File {
		if cancelled() {
			break
		}
		if !filepath.IsLocal(f.Name) {
			return written, fmt.Errorf("archive %s: entry %q leaves the work folder: %w", archive, f.Name, errors.ErrInvalidName)
		}

		dest := filepath.Join(e.dir, f.Name)
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0755); err != nil {
				return written, err
			}
			continue
		}

		if err := extractFile(f, dest); err != nil {
			return written, fmt.Errorf("archive %s: %w", archive, err)
		}
		written = append(written, dest)
	}
	return written, nil
}

func extractFile(f *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	return out.Close()
}
