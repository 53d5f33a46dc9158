package testutil

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
)

// Void is the HGT no-data sample.
const Void int16 = -32768

// Grid returns a side x side grid filled by fn(line, col).
func Grid(side int, fn func(line, col int) int16) [][]int16 {
	g := make([][]int16, side)
	for line := range g {
		g[line] = make([]int16, side)
		for col := range g[line] {
			g[line][col] = fn(line, col)
		}
	}
	return g
}

// Constant returns a fill function always returning v.
func Constant(v int16) func(line, col int) int16 {
	return func(int, int) int16 { return v }
}

// HGTBytes encodes a grid as big-endian int16 samples, row by row.
func HGTBytes(grid [][]int16) []byte {
	var out []byte
	for _, row := range grid {
		for _, v := range row {
			out = binary.BigEndian.AppendUint16(out, uint16(v))
		}
	}
	return out
}

// WriteHGT writes grid as the HGT file dir/name and returns its path.
func WriteHGT(t testing.TB, dir, name string, grid [][]int16) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, HGTBytes(grid), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// ZipBytes builds a zip archive holding files, keyed by entry name.
func ZipBytes(t testing.TB, files map[string][]byte) []byte {
	t.Helper()

	path := WriteZip(t, t.TempDir(), "archive.zip", files)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return data
}

// WriteZip writes files into the zip archive dir/name and returns its path.
func WriteZip(t testing.TB, dir, name string, files map[string][]byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for entry, data := range files {
		w, err := zw.Create(entry)
		if err != nil {
			t.Fatalf("zip entry %s: %v", entry, err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("zip write %s: %v", entry, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return path
}
