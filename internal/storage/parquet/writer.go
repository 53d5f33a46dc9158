package parquet

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/xtxerr/hgtload/config"
	"github.com/xtxerr/hgtload/internal/constants"
)

// Options configures a Writer.
type Options struct {
	// Codec compresses every column; see Codec.
	Codec compress.Codec

	// PageBufferSize is the page buffer size in bytes.
	PageBufferSize int
}

// DefaultOptions returns zstd compression with 1 MiB pages.
func DefaultOptions() Options {
	return Options{
		Codec:          Codec(config.DefaultParquetCompression),
		PageBufferSize: 1 << 20,
	}
}

var codecs = map[string]compress.Codec{
	constants.CompressionNone:   &parquet.Uncompressed,
	"":                          &parquet.Uncompressed,
	constants.CompressionSnappy: &parquet.Snappy,
	constants.CompressionZstd:   &parquet.Zstd,
	constants.CompressionLZ4:    &parquet.Lz4Raw,
	constants.CompressionGzip:   &parquet.Gzip,
}

// Codec returns the codec for a compression name. Unknown names get zstd.
func Codec(name string) compress.Codec {
	if c, ok := codecs[name]; ok {
		return c
	}
	return &parquet.Zstd
}

// =============================================================================
// Writer
// =============================================================================

// Writer writes rows of type R to a Parquet file.
type Writer[R any] struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	writer   *parquet.GenericWriter[R]
	rowCount int64
	closed   bool
}

// NewWriter creates a Parquet writer at path, creating parent directories.
func NewWriter[R any](path string, opts Options) (*Writer[R], error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	writerOpts := []parquet.WriterOption{
		parquet.Compression(opts.Codec),
	}
	if opts.PageBufferSize > 0 {
		writerOpts = append(writerOpts, parquet.PageBufferSize(opts.PageBufferSize))
	}

	return &Writer[R]{
		path:   path,
		file:   f,
		writer: parquet.NewGenericWriter[R](f, writerOpts...),
	}, nil
}

// Write appends rows to the file.
func (w *Writer[R]) Write(rows []R) error {
	if len(rows) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}

	n, err := w.writer.Write(rows)
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}

	w.rowCount += int64(n)
	return nil
}

// Close flushes the footer and closes the file.
func (w *Writer[R]) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("close writer: %w", err)
	}

	return w.file.Close()
}

// RowCount returns the number of rows written.
func (w *Writer[R]) RowCount() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rowCount
}

// Path returns the file path.
func (w *Writer[R]) Path() string {
	return w.path
}

// ErrWriterClosed is returned when writing to a closed writer.
var ErrWriterClosed = fmt.Errorf("parquet writer is closed")
