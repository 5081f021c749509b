package window

import (
	"math"
	"sort"
)

// Stats holds computed statistics for a sample window.
type Stats struct {
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std_dev"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	P50     float64 `json:"p50"`
	P95     float64 `json:"p95"`
	Samples int     `json:"samples"`
}

// Compute calculates statistics over the values, which need not be sorted.
// Returns a zero Stats when values is empty.
func Compute(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	stats := Stats{
		P50:     percentile(sorted, 0.50),
		P95:     percentile(sorted, 0.95),
		Min:     sorted[0],
		Max:     sorted[len(sorted)-1],
		Samples: len(sorted),
	}

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	stats.Mean = sum / float64(len(sorted))

	var variance float64
	for _, v := range sorted {
		diff := v - stats.Mean
		variance += diff * diff
	}
	stats.StdDev = math.Sqrt(variance / float64(len(sorted)))

	return stats
}

// Stats computes statistics over the full window.
func (r *Ring) Stats() Stats {
	return Compute(r.Values())
}

// TailStats computes statistics over the n most recent samples.
func (r *Ring) TailStats(n int) Stats {
	tail := r.Tail(n)
	values := make([]float64, len(tail))
	for i, s := range tail {
		values[i] = s.Value
	}
	return Compute(values)
}

// Slope fits a least-squares line through the n most recent samples,
// using tick as the x axis, and returns the per-tick slope. Returns
// false when fewer than two samples are available or all samples share
// a tick.
func (r *Ring) Slope(n int) (float64, bool) {
	tail := r.Tail(n)
	if len(tail) < 2 {
		return 0, false
	}

	var sumX, sumY float64
	for _, s := range tail {
		sumX += float64(s.Tick)
		sumY += s.Value
	}
	meanX := sumX / float64(len(tail))
	meanY := sumY / float64(len(tail))

	var num, den float64
	for _, s := range tail {
		dx := float64(s.Tick) - meanX
		num += dx * (s.Value - meanY)
		den += dx * dx
	}
	if den == 0 {
		return 0, false
	}
	return num / den, true
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	idx := p * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))
	if lower == upper {
		return sorted[lower]
	}
	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
