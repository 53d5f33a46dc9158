package testutil

import (
	"bytes"
	"io"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
)

func TestGoroutineTest(t *testing.T) {
	var n atomic.Int32
	gt := NewGoroutineTest(t)
	for i := 0; i < 10; i++ {
		gt.Go(func() error {
			n.Add(1)
			return nil
		})
	}
	gt.Wait()

	if n.Load() != 10 {
		t.Errorf("ran %d goroutines, want 10", n.Load())
	}
}

func TestWithTimeout(t *testing.T) {
	if err := WithTimeout(time.Second, func() error { return nil }); err != nil {
		t.Errorf("fast function: %v", err)
	}
	if err := WithTimeout(10*time.Millisecond, func() error {
		time.Sleep(200 * time.Millisecond)
		return nil
	}); err == nil {
		t.Error("slow function should time out")
	}
}

func TestHGTBytes(t *testing.T) {
	grid := Grid(2, func(line, col int) int16 { return int16(line*2+col) - 1 })
	got := HGTBytes(grid)
	want := []byte{0xff, 0xff, 0x00, 0x00, 0x00, 0x01, 0x00, 0x02}
	if !bytes.Equal(got, want) {
		t.Errorf("HGTBytes = %x, want %x", got, want)
	}
	if v := HGTBytes([][]int16{{Void}}); !bytes.Equal(v, []byte{0x80, 0x00}) {
		t.Errorf("void encodes as %x", v)
	}
}

func TestWriteHGT(t *testing.T) {
	path := WriteHGT(t, t.TempDir(), "N00E010.hgt", Grid(3, Constant(7)))
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != 18 {
		t.Errorf("size = %d, want 18", info.Size())
	}
}

func TestWriteZip(t *testing.T) {
	data := ZipBytes(t, map[string][]byte{"N00E010.hgt": {1, 2, 3}})

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if len(zr.File) != 1 || zr.File[0].Name != "N00E010.hgt" {
		t.Fatalf("entries = %v", zr.File)
	}
	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if !bytes.Equal(body, []byte{1, 2, 3}) {
		t.Errorf("body = %v", body)
	}
}
