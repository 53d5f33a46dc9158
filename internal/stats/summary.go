// Package stats keeps running elevation statistics for one imported tile.
package stats

import (
	"fmt"
	"math"
	"sync"

	"github.com/DataDog/sketches-go/ddsketch"

	"github.com/xtxerr/hgtload/config"
)

// Summary counts the records of a tile import and sketches the elevation
// distribution of the written samples. It is safe for concurrent use.
type Summary struct {
	mu sync.Mutex

	tile string

	written  int64
	void     int64
	existing int64

	samples int64
	sum     float64
	min     float64
	max     float64

	// nil when the sketch could not be built
	sketch   *ddsketch.DDSketch
	accuracy float64
}

// New returns a Summary for tile with quantiles at the given relative
// accuracy. A non-positive accuracy uses config.DefaultStatsAccuracy.
func New(tile string, accuracy float64) *Summary {
	if accuracy <= 0 || accuracy >= 1 {
		accuracy = config.DefaultStatsAccuracy
	}

	s := &Summary{
		tile:     tile,
		min:      math.MaxFloat64,
		max:      -math.MaxFloat64,
		accuracy: accuracy,
	}

	sketch, err := ddsketch.NewDefaultDDSketch(accuracy)
	if err == nil {
		s.sketch = sketch
	}
	return s
}

// Tile returns the tile name the summary belongs to.
func (s *Summary) Tile() string { return s.tile }

// AddWritten records one written record holding the given samples.
// Samples equal to nodata are excluded from the distribution.
func (s *Summary) AddWritten(nodata int16, values ...int16) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.written++
	s.addSamples(nodata, values)
}

// AddBlock records one written raster block. Every row feeds the
// distribution; the block counts once.
func (s *Summary) AddBlock(nodata int16, rows [][]int16) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.written++
	for _, row := range rows {
		s.addSamples(nodata, row)
	}
}

func (s *Summary) addSamples(nodata int16, values []int16) {
	for _, v := range values {
		if v != nodata {
			s.addSample(float64(v))
		}
	}
}

func (s *Summary) addSample(v float64) {
	s.samples++
	s.sum += v
	if v < s.min {
		s.min = v
	}
	if v > s.max {
		s.max = v
	}
	if s.sketch != nil {
		s.sketch.Add(v)
	}
}

// AddVoid records a void cell that was skipped (value mode) or a stored
// block holding only void samples (raster mode).
func (s *Summary) AddVoid() {
	s.mu.Lock()
	s.void++
	s.mu.Unlock()
}

// AddExisting records a record whose footprint was already stored.
func (s *Summary) AddExisting() {
	s.mu.Lock()
	s.existing++
	s.mu.Unlock()
}

// Result is a point-in-time view of a Summary.
type Result struct {
	Tile    string
	Written int64
	// Void counts skipped void cells in value mode and all-void blocks
	// among Written in raster mode.
	Void     int64
	Existing int64

	// Samples is the number of non-void elevations behind the fields below.
	Samples int64
	Min     float64
	Max     float64
	Mean    float64

	// Quantiles, nil without samples or without a sketch.
	P50 *float64
	P95 *float64
}

// HasQuantiles reports whether P50 and P95 are set.
func (r Result) HasQuantiles() bool {
	return r.P50 != nil && r.P95 != nil
}

// LogAttrs returns the result as slog key/value pairs.
func (r Result) LogAttrs() []any {
	attrs := []any{
		"file", r.Tile,
		"written", r.Written,
		"void", r.Void,
		"existing", r.Existing,
	}
	if r.Samples > 0 {
		attrs = append(attrs, "min", r.Min, "max", r.Max, "mean", fmt.Sprintf("%.1f", r.Mean))
	}
	if r.HasQuantiles() {
		attrs = append(attrs, "p50", fmt.Sprintf("%.1f", *r.P50), "p95", fmt.Sprintf("%.1f", *r.P95))
	}
	return attrs
}

// Result returns the current statistics.
func (s *Summary) Result() Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := Result{
		Tile:     s.tile,
		Written:  s.written,
		Void:     s.void,
		Existing: s.existing,
		Samples:  s.samples,
	}
	if s.samples == 0 {
		return r
	}

	r.Min = s.min
	r.Max = s.max
	r.Mean = s.sum / float64(s.samples)

	if s.sketch != nil {
		p50, err50 := s.sketch.GetValueAtQuantile(0.50)
		p95, err95 := s.sketch.GetValueAtQuantile(0.95)
		if err50 == nil && err95 == nil {
			r.P50 = &p50
			r.P95 = &p95
		}
	}
	return r
}

// Merge adds the counts and distribution of other into s.
func (s *Summary) Merge(other *Summary) error {
	if other == nil || other == s {
		return nil
	}

	other.mu.Lock()
	defer other.mu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.written += other.written
	s.void += other.void
	s.existing += other.existing

	if other.samples == 0 {
		return nil
	}
	s.samples += other.samples
	s.sum += other.sum
	if other.min < s.min {
		s.min = other.min
	}
	if other.max > s.max {
		s.max = other.max
	}

	if s.sketch != nil && other.sketch != nil {
		if err := s.sketch.MergeWith(other.sketch); err != nil {
			return fmt.Errorf("merge %s into %s: %w", other.tile, s.tile, err)
		}
	}
	return nil
}
