package hgt

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/paulmach/orb"

	"github.com/xtxerr/hgtload/config"
	"github.com/xtxerr/hgtload/internal/errors"
)

// =============================================================================
// Constants
// =============================================================================

// VoidValue is the raw sample marking a cell without elevation data.
const VoidValue int16 = -32768

// Grid sides of the two SRTM products.
const (
	SRTM3 = config.DefaultSampling
	SRTM1 = config.SRTM1Sampling
)

// sampleSize is the number of bytes per raw sample.
const sampleSize = 2

var filenamePattern = regexp.MustCompile(`^([NS])(\d+)([EW])(\d+)`)

// =============================================================================
// Corners
// =============================================================================

// Corners is a geographic rectangle ordered bottom-left, top-left, top-right,
// bottom-right. Points are orb points, so X is the longitude and Y the latitude.
type Corners [4]orb.Point

// BottomLeft returns the south-west corner.
func (c Corners) BottomLeft() orb.Point { return c[0] }

// TopLeft returns the north-west corner.
func (c Corners) TopLeft() orb.Point { return c[1] }

// TopRight returns the north-east corner.
func (c Corners) TopRight() orb.Point { return c[2] }

// BottomRight returns the south-east corner.
func (c Corners) BottomRight() orb.Point { return c[3] }

// Bound returns the smallest bound containing all four corners.
func (c Corners) Bound() orb.Bound {
	b := orb.Bound{Min: c[0], Max: c[0]}
	for _, p := range c[1:] {
		b = b.Extend(p)
	}
	return b
}

// =============================================================================
// Tile
// =============================================================================

// Tile decodes one HGT file: a square grid of big-endian int16 samples
// stored row by row from the northernmost row down.
//
// A Tile opened with Open owns its file handle; callers must Close it.
// Reads use ReadAt, so a Tile is safe for concurrent reads but is meant to be
// owned by a single worker.
type Tile struct {
	name      string
	r         io.ReaderAt
	closer    io.Closer
	sampleLat int
	sampleLng int

	center  orb.Point // centre of the bottom-left sample
	corners Corners
}

// Option configures a Tile.
type Option func(*Tile)

// WithSampling sets the number of lines and columns of the grid.
// Values below 2 are ignored.
func WithSampling(sampleLat, sampleLng int) Option {
	return func(t *Tile) {
		if sampleLat > 1 {
			t.sampleLat = sampleLat
		}
		if sampleLng > 1 {
			t.sampleLng = sampleLng
		}
	}
}

// Open opens the HGT file at path. Without WithSampling the grid side is
// detected from the file size, falling back to SRTM3.
func Open(path string, opts ...Option) (*Tile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tile: %w", err)
	}

	detected := SRTM3
	if info, err := f.Stat(); err == nil {
		if n, ok := DetectSampling(info.Size()); ok {
			detected = n
		}
	}

	opts = append([]Option{WithSampling(detected, detected)}, opts...)
	t, err := New(filepath.Base(path), f, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	t.closer = f
	return t, nil
}

// New builds a Tile over r. The name must start with the tile coordinates,
// for example "N00E010.hgt".
func New(name string, r io.ReaderAt, opts ...Option) (*Tile, error) {
	t := &Tile{
		name:      name,
		r:         r,
		sampleLat: SRTM3,
		sampleLng: SRTM3,
	}
	for _, opt := range opts {
		opt(t)
	}

	center, err := ParseName(name)
	if err != nil {
		return nil, err
	}
	t.center = center
	t.corners = t.outerCorners()

	return t, nil
}

// Close releases the underlying file, if the Tile owns one.
func (t *Tile) Close() error {
	if t.closer == nil {
		return nil
	}
	err := t.closer.Close()
	t.closer = nil
	return err
}

// ParseName returns the centre of the bottom-left sample encoded in a tile
// filename: N00E010 is (lat 0, lng 10), S20W03 is (lat -20, lng -3).
func ParseName(name string) (orb.Point, error) {
	m := filenamePattern.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return orb.Point{}, fmt.Errorf("%q: %w", name, errors.ErrMalformedFilename)
	}

	lat, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("%q: %w", name, errors.ErrMalformedFilename)
	}
	lng, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("%q: %w", name, errors.ErrMalformedFilename)
	}

	if m[1] == "S" {
		lat = -lat
	}
	if m[3] == "W" {
		lng = -lng
	}
	return orb.Point{lng, lat}, nil
}

// TileName returns the tile stem covering (lat, lng), for example N45E006.
func TileName(lat, lng float64) string {
	baseLat := int(math.Floor(lat))
	baseLng := int(math.Floor(lng))

	ns, ew := 'N', 'E'
	if baseLat < 0 {
		ns = 'S'
		baseLat = -baseLat
	}
	if baseLng < 0 {
		ew = 'W'
		baseLng = -baseLng
	}
	return fmt.Sprintf("%c%02d%c%03d", ns, baseLat, ew, baseLng)
}

// DetectSampling derives the grid side from a file size of n*n samples.
func DetectSampling(size int64) (int, bool) {
	if size <= 0 || size%sampleSize != 0 {
		return 0, false
	}
	samples := size / sampleSize
	n := int64(math.Round(math.Sqrt(float64(samples))))
	if n < 2 || n*n != samples {
		return 0, false
	}
	return int(n), true
}

// =============================================================================
// Geometry
// =============================================================================

// Name returns the file name the tile was built from.
func (t *Tile) Name() string { return t.name }

// SampleLat returns the number of lines.
func (t *Tile) SampleLat() int { return t.sampleLat }

// SampleLng returns the number of columns.
func (t *Tile) SampleLng() int { return t.sampleLng }

// Len returns the number of cells in the grid.
func (t *Tile) Len() int { return t.sampleLat * t.sampleLng }

// BottomLeftCenter returns the centre of the bottom-left sample.
func (t *Tile) BottomLeftCenter() orb.Point { return t.center }

// Corners returns the outer rectangle covered by the tile's cells.
func (t *Tile) Corners() Corners { return t.corners }

// SquareWidth returns the width of one cell in degrees of longitude.
func (t *Tile) SquareWidth() float64 { return 1.0 / float64(t.sampleLng-1) }

// SquareHeight returns the height of one cell in degrees of latitude.
func (t *Tile) SquareHeight() float64 { return 1.0 / float64(t.sampleLat-1) }

// AreaWidth returns the width of the tile including the half cells on each side.
func (t *Tile) AreaWidth() float64 { return 1.0 + t.SquareWidth() }

// AreaHeight returns the height of the tile including the half cells on each side.
func (t *Tile) AreaHeight() float64 { return 1.0 + t.SquareHeight() }

// Samples are cell centred, so the outer rectangle starts half a cell
// outside the nominal 1x1 degree square.
func (t *Tile) outerCorners() Corners {
	bottomLeft := orb.Point{
		t.center.Lon() - t.SquareWidth()/2,
		t.center.Lat() - t.SquareHeight()/2,
	}
	topLeft := orb.Point{bottomLeft.Lon(), bottomLeft.Lat() + t.AreaHeight()}
	topRight := orb.Point{topLeft.Lon() + t.AreaWidth(), topLeft.Lat()}
	bottomRight := orb.Point{bottomLeft.Lon() + t.AreaWidth(), bottomLeft.Lat()}
	return Corners{bottomLeft, topLeft, topRight, bottomRight}
}

// Contains reports whether (lat, lng) lies strictly inside the tile.
func (t *Tile) Contains(lat, lng float64) bool {
	bl, tr := t.corners.BottomLeft(), t.corners.TopRight()
	return bl.Lat() < lat && bl.Lon() < lng && lat < tr.Lat() && lng < tr.Lon()
}

func (t *Tile) checkBounds(line, col int) error {
	if line < 0 || line >= t.sampleLat || col < 0 || col >= t.sampleLng {
		return fmt.Errorf("line %d col %d in %s: %w", line, col, t.name, errors.ErrOutOfBounds)
	}
	return nil
}

// Index returns the flat index of the cell at (line, col).
func (t *Tile) Index(line, col int) (int, error) {
	if err := t.checkBounds(line, col); err != nil {
		return 0, err
	}
	return line*t.sampleLng + col, nil
}

// CellCorners returns the rectangle of the cell at (line, col).
func (t *Tile) CellCorners(line, col int) (Corners, error) {
	if err := t.checkBounds(line, col); err != nil {
		return Corners{}, err
	}
	return t.shiftedSquare(line, col, 1, 1), nil
}

// shiftedSquare returns the rectangle spanning height lines and width cols
// starting at (line, col). Bounds are not checked.
//
// Edges are computed on the global grid of the sampling, as a half-integer
// count of cells from the origin divided by the cells per degree. The edge
// row or column two neighbouring tiles share then yields bit-identical
// footprints in both tiles.
func (t *Tile) shiftedSquare(line, col, width, height int) Corners {
	perLat := float64(t.sampleLat - 1)
	perLng := float64(t.sampleLng - 1)

	// cells from the origin to the top and left edges of (line, col)
	topCells := t.center.Lat()*perLat + float64(t.sampleLat-1-line) + 0.5
	leftCells := t.center.Lon()*perLng + float64(col) - 0.5

	top := topCells / perLat
	bottom := (topCells - float64(height)) / perLat
	left := leftCells / perLng
	right := (leftCells + float64(width)) / perLng

	return Corners{
		{left, bottom},
		{left, top},
		{right, top},
		{right, bottom},
	}
}

// =============================================================================
// Values
// =============================================================================

// ReadValue reads the sample at a flat index. ok is false when the sample is
// the void marker; 0 is sea level and is reported as present.
func (t *Tile) ReadValue(index int) (value int16, ok bool, err error) {
	if index < 0 || index >= t.Len() {
		return 0, false, fmt.Errorf("index %d in %s: %w", index, t.name, errors.ErrOutOfBounds)
	}

	var buf [sampleSize]byte
	if _, err := t.r.ReadAt(buf[:], int64(index)*sampleSize); err != nil {
		return 0, false, fmt.Errorf("read %s at index %d: %w", t.name, index, err)
	}

	value = int16(binary.BigEndian.Uint16(buf[:]))
	if value == VoidValue {
		return 0, false, nil
	}
	return value, true, nil
}

// readRow reads count consecutive samples starting at (line, col) into dst.
func (t *Tile) readRow(line, col, count int, buf []byte, dst []int16) error {
	buf = buf[:count*sampleSize]
	off := int64(line*t.sampleLng+col) * sampleSize
	if _, err := t.r.ReadAt(buf, off); err != nil {
		return fmt.Errorf("read %s line %d: %w", t.name, line, err)
	}
	for i := 0; i < count; i++ {
		dst[i] = int16(binary.BigEndian.Uint16(buf[i*sampleSize:]))
	}
	return nil
}

// Locate returns the cell containing (lat, lng). Line 0 is the northernmost
// row, so higher latitudes map to lower lines.
func (t *Tile) Locate(lat, lng float64) (line, col, index int, err error) {
	if !t.Contains(lat, lng) {
		return 0, 0, 0, fmt.Errorf("point (%v, %v) is not inside HGT file %s: %w",
			lat, lng, t.name, errors.ErrPointOutsideTile)
	}

	line = (t.sampleLat - 1) - int(math.Round((lat-t.center.Lat())/t.SquareHeight()))
	col = int(math.Round((lng - t.center.Lon()) / t.SquareWidth()))

	index, err = t.Index(line, col)
	if err != nil {
		return 0, 0, 0, err
	}
	return line, col, index, nil
}

// Elevation is the result of a point lookup.
type Elevation struct {
	Line  int
	Col   int
	Index int
	Value int16
	Void  bool
}

// ElevationAt locates (lat, lng) and reads its sample.
func (t *Tile) ElevationAt(lat, lng float64) (Elevation, error) {
	line, col, index, err := t.Locate(lat, lng)
	if err != nil {
		return Elevation{}, err
	}

	value, ok, err := t.ReadValue(index)
	if err != nil {
		return Elevation{}, err
	}
	return Elevation{Line: line, Col: col, Index: index, Value: value, Void: !ok}, nil
}

// Values returns a fresh row-major iterator over every cell.
func (t *Tile) Values() *ValueIterator {
	return newValueIterator(t)
}

// Samples returns a fresh iterator over blocks of width x height cells.
func (t *Tile) Samples(width, height int) *SampleIterator {
	return newSampleIterator(t, width, height)
}
