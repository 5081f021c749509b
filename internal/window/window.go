// Package window provides fixed-capacity sample windows and rolling
// statistics for the detection pipeline.
package window

// Sample is a single observed value pinned to the tick it was taken on.
type Sample struct {
	Tick  int     `json:"tick"`
	Value float64 `json:"value"`
}

// Ring is a fixed-capacity FIFO window of samples. Pushing past capacity
// evicts the oldest sample. It is owned by the simulation loop and is not
// safe for concurrent use; readers see window contents only through
// immutable snapshots taken by the session.
type Ring struct {
	buf   []Sample
	size  int
	head  int
	count int
}

// NewRing creates a Ring with the given capacity.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = 30 // Default window
	}
	return &Ring{
		buf:  make([]Sample, size),
		size: size,
	}
}

// Push appends a sample, evicting the oldest one when the window is full.
func (r *Ring) Push(s Sample) {
	tail := (r.head + r.count) % r.size
	r.buf[tail] = s
	if r.count == r.size {
		r.head = (r.head + 1) % r.size
	} else {
		r.count++
	}
}

// Len returns the current number of samples in the window.
func (r *Ring) Len() int {
	return r.count
}

// Cap returns the capacity of the window.
func (r *Ring) Cap() int {
	return r.size
}

// IsFull returns true once the window has reached capacity.
func (r *Ring) IsFull() bool {
	return r.count == r.size
}

// At returns the i-th sample, oldest first. It panics if i is out of range.
func (r *Ring) At(i int) Sample {
	if i < 0 || i >= r.count {
		panic("window: index out of range")
	}
	return r.buf[(r.head+i)%r.size]
}

// Last returns the most recent sample and false if the window is empty.
func (r *Ring) Last() (Sample, bool) {
	if r.count == 0 {
		return Sample{}, false
	}
	return r.At(r.count - 1), true
}

// Tail returns up to n of the most recent samples, oldest first. The
// returned slice is freshly allocated.
func (r *Ring) Tail(n int) []Sample {
	if n > r.count {
		n = r.count
	}
	if n <= 0 {
		return nil
	}
	out := make([]Sample, n)
	start := r.count - n
	for i := 0; i < n; i++ {
		out[i] = r.At(start + i)
	}
	return out
}

// Values returns all sample values, oldest first.
func (r *Ring) Values() []float64 {
	out := make([]float64, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.At(i).Value
	}
	return out
}

// Reset empties the window without releasing its storage.
func (r *Ring) Reset() {
	r.head = 0
	r.count = 0
}
