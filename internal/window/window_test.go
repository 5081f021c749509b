package window

import (
	"math"
	"testing"
)

func TestNewRing(t *testing.T) {
	t.Run("with valid size", func(t *testing.T) {
		r := NewRing(10)
		if r.Cap() != 10 {
			t.Errorf("Cap() = %d, want 10", r.Cap())
		}
		if r.Len() != 0 {
			t.Errorf("Len() = %d, want 0", r.Len())
		}
	})

	t.Run("with zero size uses default", func(t *testing.T) {
		r := NewRing(0)
		if r.Cap() != 30 {
			t.Errorf("Cap() = %d, want 30 (default)", r.Cap())
		}
	})

	t.Run("with negative size uses default", func(t *testing.T) {
		r := NewRing(-5)
		if r.Cap() != 30 {
			t.Errorf("Cap() = %d, want 30 (default)", r.Cap())
		}
	})
}

func TestRing_Eviction(t *testing.T) {
	r := NewRing(3)

	for i := 0; i < 5; i++ {
		r.Push(Sample{Tick: i, Value: float64(i)})
	}

	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}
	if !r.IsFull() {
		t.Error("IsFull() = false, want true")
	}

	// Oldest two samples must have been evicted.
	want := []int{2, 3, 4}
	for i, tick := range want {
		if got := r.At(i).Tick; got != tick {
			t.Errorf("At(%d).Tick = %d, want %d", i, got, tick)
		}
	}
}

func TestRing_Last(t *testing.T) {
	r := NewRing(4)

	if _, ok := r.Last(); ok {
		t.Error("Last() ok = true on empty window")
	}

	r.Push(Sample{Tick: 1, Value: 1.0})
	r.Push(Sample{Tick: 2, Value: 1.1})

	s, ok := r.Last()
	if !ok {
		t.Fatal("Last() ok = false, want true")
	}
	if s.Tick != 2 || s.Value != 1.1 {
		t.Errorf("Last() = %+v, want tick 2 value 1.1", s)
	}
}

func TestRing_Tail(t *testing.T) {
	r := NewRing(5)
	for i := 0; i < 8; i++ {
		r.Push(Sample{Tick: i, Value: float64(i)})
	}

	t.Run("partial tail", func(t *testing.T) {
		tail := r.Tail(3)
		if len(tail) != 3 {
			t.Fatalf("len(Tail(3)) = %d, want 3", len(tail))
		}
		for i, tick := range []int{5, 6, 7} {
			if tail[i].Tick != tick {
				t.Errorf("Tail(3)[%d].Tick = %d, want %d", i, tail[i].Tick, tick)
			}
		}
	})

	t.Run("n larger than window", func(t *testing.T) {
		tail := r.Tail(100)
		if len(tail) != 5 {
			t.Errorf("len(Tail(100)) = %d, want 5", len(tail))
		}
	})

	t.Run("non-positive n", func(t *testing.T) {
		if tail := r.Tail(0); tail != nil {
			t.Errorf("Tail(0) = %v, want nil", tail)
		}
	})
}

func TestRing_Reset(t *testing.T) {
	r := NewRing(3)
	r.Push(Sample{Tick: 1, Value: 1})
	r.Push(Sample{Tick: 2, Value: 2})

	r.Reset()

	if r.Len() != 0 {
		t.Errorf("Len() = %d after Reset, want 0", r.Len())
	}
	if _, ok := r.Last(); ok {
		t.Error("Last() ok = true after Reset")
	}
}

func TestCompute(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		stats := Compute(nil)
		if stats.Samples != 0 {
			t.Errorf("Samples = %d, want 0", stats.Samples)
		}
	})

	t.Run("known values", func(t *testing.T) {
		stats := Compute([]float64{2, 4, 4, 4, 5, 5, 7, 9})

		if stats.Mean != 5.0 {
			t.Errorf("Mean = %g, want 5.0", stats.Mean)
		}
		if stats.StdDev != 2.0 {
			t.Errorf("StdDev = %g, want 2.0", stats.StdDev)
		}
		if stats.Min != 2 || stats.Max != 9 {
			t.Errorf("Min/Max = %g/%g, want 2/9", stats.Min, stats.Max)
		}
		if stats.Samples != 8 {
			t.Errorf("Samples = %d, want 8", stats.Samples)
		}
	})

	t.Run("single value", func(t *testing.T) {
		stats := Compute([]float64{1.5})
		if stats.Mean != 1.5 || stats.StdDev != 0 {
			t.Errorf("Mean/StdDev = %g/%g, want 1.5/0", stats.Mean, stats.StdDev)
		}
		if stats.P50 != 1.5 || stats.P95 != 1.5 {
			t.Errorf("P50/P95 = %g/%g, want 1.5/1.5", stats.P50, stats.P95)
		}
	})
}

func TestRing_Slope(t *testing.T) {
	t.Run("perfect line", func(t *testing.T) {
		r := NewRing(10)
		for i := 0; i < 10; i++ {
			r.Push(Sample{Tick: i, Value: 1.0 + 0.01*float64(i)})
		}

		slope, ok := r.Slope(10)
		if !ok {
			t.Fatal("Slope() ok = false, want true")
		}
		if math.Abs(slope-0.01) > 1e-12 {
			t.Errorf("Slope() = %g, want 0.01", slope)
		}
	})

	t.Run("flat series", func(t *testing.T) {
		r := NewRing(10)
		for i := 0; i < 5; i++ {
			r.Push(Sample{Tick: i, Value: 1.0})
		}

		slope, ok := r.Slope(5)
		if !ok {
			t.Fatal("Slope() ok = false, want true")
		}
		if slope != 0 {
			t.Errorf("Slope() = %g, want 0", slope)
		}
	})

	t.Run("too few samples", func(t *testing.T) {
		r := NewRing(10)
		r.Push(Sample{Tick: 0, Value: 1.0})

		if _, ok := r.Slope(5); ok {
			t.Error("Slope() ok = true with one sample")
		}
	})
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}

	tests := []struct {
		p    float64
		want float64
	}{
		{0.0, 1},
		{0.5, 3},
		{1.0, 5},
		{0.25, 2},
	}

	for _, tt := range tests {
		if got := percentile(sorted, tt.p); got != tt.want {
			t.Errorf("percentile(%.2f) = %g, want %g", tt.p, got, tt.want)
		}
	}
}

func BenchmarkRing_Push(b *testing.B) {
	r := NewRing(30)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Push(Sample{Tick: i, Value: float64(i)})
	}
}

func BenchmarkRing_Stats(b *testing.B) {
	r := NewRing(30)
	for i := 0; i < 30; i++ {
		r.Push(Sample{Tick: i, Value: float64(i) * 0.1})
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = r.Stats()
	}
}
