// Package fetch downloads HGT archives and extracts them into a work folder.
//
// Downloader and Extractor are worker.Processor implementations; a pool of
// either runs one archive per worker. Both stop between chunks or entries
// once the pool is cancelled.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/xtxerr/hgtload/config"
	"github.com/xtxerr/hgtload/internal/dataset"
	"github.com/xtxerr/hgtload/internal/errors"
	"github.com/xtxerr/hgtload/internal/logging"
	"github.com/xtxerr/hgtload/internal/validation"
	"github.com/xtxerr/hgtload/internal/worker"
)

// partExt marks a download in progress.
const partExt = ".part"

// Downloader fetches dataset files into Dir.
type Downloader struct {
	dir       string
	client    *http.Client
	chunkSize int
	log       *slog.Logger
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) DownloaderOption {
	return func(d *Downloader) { d.client = c }
}

// WithChunkSize sets the copy buffer size. The cancellation signal is checked
// between chunks.
func WithChunkSize(n int) DownloaderOption {
	return func(d *Downloader) {
		if n > 0 {
			d.chunkSize = n
		}
	}
}

// WithDownloadLogger sets the logger.
func WithDownloadLogger(l *slog.Logger) DownloaderOption {
	return func(d *Downloader) { d.log = l }
}

// NewDownloader returns a Downloader writing into dir.
func NewDownloader(dir string, opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		dir: dir,
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: config.DefaultHTTPTimeout,
				TLSHandshakeTimeout:   config.DefaultHTTPTimeout,
			},
		},
		chunkSize: config.DefaultDownloadChunkSize,
		log:       logging.Component("download"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Process downloads job.Item.
func (d *Downloader) Process(ctx context.Context, job worker.Job[dataset.File]) error {
	d.log.Info(fmt.Sprintf("Downloading file %d/%d", job.Current, job.Total), "file", job.Item.Name)
	d.log.Debug("downloading", "url", job.Item.URL)

	complete, err := d.Download(ctx, job.Item, job.Cancelled)
	if err != nil {
		return err
	}
	if complete {
		d.log.Debug("downloaded", "url", job.Item.URL)
	}
	return nil
}

// Download fetches f into Dir/f.Zip. The body is written to a temporary
// file renamed into place once complete; when cancelled reports true the
// partial file is removed and complete is false.
func (d *Downloader) Download(ctx context.Context, f dataset.File, cancelled func() bool) (complete bool, err error) {
	if cancelled == nil {
		cancelled = func() bool { return false }
	}
	if err := validation.ValidateFileName(f.Zip); err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return false, fmt.Errorf("%s: %v: %w", f.URL, err, errors.ErrDownloadFailed)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.log.Error(fmt.Sprintf("Unable to download file %s. Verify your internet connection", f.URL))
		return false, fmt.Errorf("%s: %v: %w", f.URL, err, errors.ErrDownloadFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.log.Error(fmt.Sprintf("Unable to download file %s. Verify the link.", f.URL), "status", resp.StatusCode)
		return false, fmt.Errorf("%s: HTTP %s: %w", f.URL, resp.Status, errors.ErrDownloadFailed)
	}

	dest := filepath.Join(d.dir, f.Zip)
	part := dest + partExt

	out, err := os.Create(part)
	if err != nil {
		return false, fmt.Errorf("create %s: %w", part, err)
	}
	defer func() {
		if !complete {
			os.Remove(part)
		}
	}()

	n, complete, err := copyChunks(out, resp.Body, d.chunkSize, cancelled)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		complete = false
		return false, fmt.Errorf("write %s: %v: %w", dest, err, errors.ErrDownloadFailed)
	}
	if !complete {
		d.log.Debug("download interrupted", "file", f.Zip, "bytes", n)
		return false, nil
	}

	if err := os.Rename(part, dest); err != nil {
		complete = false
		return false, fmt.Errorf("publish %s: %w", dest, err)
	}
	return true, nil
}

// copyChunks copies src into dst chunk by chunk, stopping early when
// cancelled reports true. complete is false on an early stop.
func copyChunks(dst io.Writer, src io.Reader, size int, cancelled func() bool) (written int64, complete bool, err error) {
	buf := make([]byte, size)
	for {
		if cancelled() {
			return written, false, nil
		}

		n, rerr := src.Read(buf)
		if n > 0 {
			w, werr := dst.Write(buf[:n])
			written += int64(w)
			if werr != nil {
				return written, false, werr
			}
		}
		if rerr == io.EOF {
			return written, true, nil
		}
		if rerr != nil {
			return written, false, rerr
		}
	}
}
