package hgt

// =============================================================================
// ValueIterator
// =============================================================================

// Cell is one sample emitted by a ValueIterator.
type Cell struct {
	Line    int
	Col     int
	Index   int
	Corners Corners
	Value   int16
	Void    bool // Value holds no data when set
}

// ValueIterator walks every cell of a tile in row-major order: line
// ascending, then col ascending. Void cells are emitted with Void set;
// filtering is left to the consumer.
//
// Usage mirrors bufio.Scanner:
//
//	it := tile.Values()
//	for it.Next() {
//	    c := it.Cell()
//	}
//	if err := it.Err(); err != nil { ... }
//
// Rows are read lazily, one at a time.
type ValueIterator struct {
	tile *Tile

	line int
	col  int
	row  []int16
	buf  []byte

	cur Cell
	err error
}

func newValueIterator(t *Tile) *ValueIterator {
	it := &ValueIterator{
		tile: t,
		row:  make([]int16, t.sampleLng),
		buf:  make([]byte, t.sampleLng*sampleSize),
	}
	it.Reset()
	return it
}

// Len returns the total number of cells the iterator yields.
func (it *ValueIterator) Len() int { return it.tile.Len() }

// Reset rewinds the iterator to the first cell.
func (it *ValueIterator) Reset() {
	it.line = 0
	it.col = -1
	it.cur = Cell{}
	it.err = nil
}

// Next advances to the next cell. It returns false when the grid is
// exhausted or a read failed; check Err afterwards.
func (it *ValueIterator) Next() bool {
	if it.err != nil {
		return false
	}

	it.col++
	if it.col == it.tile.sampleLng {
		it.col = 0
		it.line++
	}
	if it.line >= it.tile.sampleLat {
		return false
	}

	if it.col == 0 {
		if err := it.tile.readRow(it.line, 0, it.tile.sampleLng, it.buf, it.row); err != nil {
			it.err = err
			return false
		}
	}

	value := it.row[it.col]
	it.cur = Cell{
		Line:    it.line,
		Col:     it.col,
		Index:   it.line*it.tile.sampleLng + it.col,
		Corners: it.tile.shiftedSquare(it.line, it.col, 1, 1),
		Value:   value,
		Void:    value == VoidValue,
	}
	if it.cur.Void {
		it.cur.Value = 0
	}
	return true
}

// Cell returns the current cell.
func (it *ValueIterator) Cell() Cell { return it.cur }

// Err returns the first read error, if any.
func (it *ValueIterator) Err() error { return it.err }

// =============================================================================
// SampleIterator
// =============================================================================

// Block is a rectangular sub-grid emitted by a SampleIterator. Values holds
// raw samples, so void cells still carry VoidValue.
type Block struct {
	Line    int // first line of the block
	Col     int // first col of the block
	Index   int // flat index of the first cell
	Corners Corners
	Values  [][]int16 // Height() rows of Width() samples
}

// Width returns the number of columns actually in the block.
func (b Block) Width() int {
	if len(b.Values) == 0 {
		return 0
	}
	return len(b.Values[0])
}

// Height returns the number of lines actually in the block.
func (b Block) Height() int { return len(b.Values) }

// Void reports whether every sample of the block is void.
func (b Block) Void() bool {
	for _, row := range b.Values {
		for _, v := range row {
			if v != VoidValue {
				return false
			}
		}
	}
	return true
}

// SampleIterator walks a tile block by block: left to right within a row of
// blocks, then top to bottom. Blocks on the right and bottom edges are
// truncated when the grid is not a multiple of the block size.
type SampleIterator struct {
	tile   *Tile
	width  int
	height int

	line int
	col  int
	buf  []byte

	cur Block
	err error
}

func newSampleIterator(t *Tile, width, height int) *SampleIterator {
	if width <= 0 || width > t.sampleLng {
		width = t.sampleLng
	}
	if height <= 0 || height > t.sampleLat {
		height = t.sampleLat
	}

	it := &SampleIterator{
		tile:   t,
		width:  width,
		height: height,
		buf:    make([]byte, width*sampleSize),
	}
	it.Reset()
	return it
}

// BlockWidth returns the nominal block width.
func (it *SampleIterator) BlockWidth() int { return it.width }

// BlockHeight returns the nominal block height.
func (it *SampleIterator) BlockHeight() int { return it.height }

// Len returns the total number of blocks the iterator yields.
func (it *SampleIterator) Len() int {
	return ceilDiv(it.tile.sampleLat, it.height) * ceilDiv(it.tile.sampleLng, it.width)
}

// Reset rewinds the iterator to the first block.
func (it *SampleIterator) Reset() {
	it.line = 0
	it.col = -it.width
	it.cur = Block{}
	it.err = nil
}

// Next advances to the next block and reads its samples.
func (it *SampleIterator) Next() bool {
	if it.err != nil {
		return false
	}

	it.col += it.width
	if it.col >= it.tile.sampleLng {
		it.col = 0
		it.line += it.height
	}
	if it.line >= it.tile.sampleLat {
		return false
	}

	w := min(it.width, it.tile.sampleLng-it.col)
	h := min(it.height, it.tile.sampleLat-it.line)

	values := make([][]int16, h)
	for i := range values {
		values[i] = make([]int16, w)
		if err := it.tile.readRow(it.line+i, it.col, w, it.buf, values[i]); err != nil {
			it.err = err
			return false
		}
	}

	it.cur = Block{
		Line:    it.line,
		Col:     it.col,
		Index:   it.line*it.tile.sampleLng + it.col,
		Corners: it.tile.shiftedSquare(it.line, it.col, w, h),
		Values:  values,
	}
	return true
}

// Block returns the current block.
func (it *SampleIterator) Block() Block { return it.cur }

// Err returns the first read error, if any.
func (it *SampleIterator) Err() error { return it.err }

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
