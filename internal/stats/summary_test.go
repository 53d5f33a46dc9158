package stats

import (
	"math"
	"sync"
	"testing"
)

const void int16 = -32768

func TestSummary_Counts(t *testing.T) {
	s := New("N00E010.hgt", 0.01)

	s.AddWritten(void, 10)
	s.AddWritten(void, -20)
	s.AddWritten(void, 40)
	s.AddVoid()
	s.AddVoid()
	s.AddExisting()

	r := s.Result()
	if r.Tile != "N00E010.hgt" {
		t.Errorf("Tile = %q", r.Tile)
	}
	if r.Written != 3 || r.Void != 2 || r.Existing != 1 {
		t.Errorf("counts = (%d, %d, %d), want (3, 2, 1)", r.Written, r.Void, r.Existing)
	}
	if r.Samples != 3 {
		t.Errorf("Samples = %d, want 3", r.Samples)
	}
	if r.Min != -20 || r.Max != 40 {
		t.Errorf("min/max = %v/%v, want -20/40", r.Min, r.Max)
	}
	if math.Abs(r.Mean-10) > 1e-9 {
		t.Errorf("Mean = %v, want 10", r.Mean)
	}
}

func TestSummary_Empty(t *testing.T) {
	r := New("N00E010.hgt", 0).Result()

	if r.Samples != 0 || r.Min != 0 || r.Max != 0 {
		t.Errorf("empty result = %+v", r)
	}
	if r.HasQuantiles() {
		t.Error("empty summary should not have quantiles")
	}
	if len(r.LogAttrs()) != 8 {
		t.Errorf("LogAttrs = %v", r.LogAttrs())
	}
}

func TestSummary_Quantiles(t *testing.T) {
	s := New("N00E010.hgt", 0.01)
	for i := 1; i <= 100; i++ {
		s.AddWritten(void, int16(i))
	}

	r := s.Result()
	if !r.HasQuantiles() {
		t.Fatal("should have quantiles")
	}
	if math.Abs(*r.P50-50) > 2 {
		t.Errorf("P50 = %f, want near 50", *r.P50)
	}
	if math.Abs(*r.P95-95) > 2 {
		t.Errorf("P95 = %f, want near 95", *r.P95)
	}
}

func TestSummary_RasterBlockSkipsNoData(t *testing.T) {
	s := New("N00E010.hgt", 0.01)
	s.AddWritten(void, 5, void, 15, void)

	r := s.Result()
	if r.Written != 1 {
		t.Errorf("Written = %d, want 1", r.Written)
	}
	if r.Samples != 2 || r.Min != 5 || r.Max != 15 {
		t.Errorf("samples = %d [%v, %v], want 2 [5, 15]", r.Samples, r.Min, r.Max)
	}
}

func TestSummary_AddBlockCountsOnce(t *testing.T) {
	s := New("N00E010.hgt", 0.01)
	s.AddBlock(void, [][]int16{
		{1, 2, void},
		{4, void, 6},
	})
	s.AddBlock(void, [][]int16{{void}, {void}})

	r := s.Result()
	if r.Written != 2 {
		t.Errorf("Written = %d, want 2 blocks", r.Written)
	}
	if r.Samples != 4 || r.Min != 1 || r.Max != 6 {
		t.Errorf("samples = %d [%v, %v], want 4 [1, 6]", r.Samples, r.Min, r.Max)
	}
}

func TestSummary_Merge(t *testing.T) {
	a := New("all", 0.01)
	b := New("N00E010.hgt", 0.01)
	c := New("N00E011.hgt", 0.01)

	for i := 1; i <= 50; i++ {
		b.AddWritten(void, int16(i))
	}
	for i := 51; i <= 100; i++ {
		c.AddWritten(void, int16(i))
	}
	c.AddVoid()

	if err := a.Merge(b); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if err := a.Merge(c); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if err := a.Merge(nil); err != nil {
		t.Fatalf("Merge(nil): %v", err)
	}

	r := a.Result()
	if r.Written != 100 || r.Void != 1 {
		t.Errorf("counts = (%d, %d), want (100, 1)", r.Written, r.Void)
	}
	if r.Min != 1 || r.Max != 100 {
		t.Errorf("min/max = %v/%v", r.Min, r.Max)
	}
	if !r.HasQuantiles() || math.Abs(*r.P50-50) > 2 {
		t.Errorf("merged P50 = %v", r.P50)
	}
}

func TestSummary_Concurrent(t *testing.T) {
	s := New("N00E010.hgt", 0.01)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				s.AddWritten(void, int16(i))
			}
		}()
	}
	wg.Wait()

	if r := s.Result(); r.Written != 8000 {
		t.Errorf("Written = %d, want 8000", r.Written)
	}
}
