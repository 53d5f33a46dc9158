package parquet

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
)

// readBufferSize is the read-ahead used when loading a tile file.
const readBufferSize = 1 << 20

// ReadFile returns every row of the Parquet file at path.
func ReadFile[R any](path string) ([]R, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	r := parquet.NewGenericReader[R](f, parquet.ReadBufferSize(readBufferSize))
	defer r.Close()

	rows := make([]R, r.NumRows())
	if len(rows) == 0 {
		return rows, nil
	}

	n, err := r.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows[:n], nil
}
