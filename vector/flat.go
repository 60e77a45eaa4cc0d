package vector

import (
	"container/heap"
	"math"
	"sync"

	"github.com/liathdb/liath/internal/f16"
)

// Flat is an exact (brute-force) vector index. Every query scans all stored
// vectors, which keeps recall at 100% and suits the per-namespace scale this
// package targets.
//
// Vectors are stored in a flat component slice (float32 or binary16
// depending on the configured scalar kind); distances are always computed in
// float32.
type Flat struct {
	mu     sync.RWMutex
	dim    int
	metric Metric
	scalar Scalar

	ids []uint64
	f32 []float32  // component storage when scalar == ScalarF32
	f16 []f16.Bits // component storage when scalar == ScalarF16
}

var _ Index = (*Flat)(nil)

// NewFlat creates an empty flat index with a fixed dimension, metric and
// scalar kind. These never change for the lifetime of the index.
func NewFlat(dim int, metric Metric, scalar Scalar) (*Flat, error) {
	if dim <= 0 {
		return nil, ErrInvalidDimension
	}
	return &Flat{dim: dim, metric: metric, scalar: scalar}, nil
}

// Add inserts a vector under id.
func (f *Flat) Add(id uint64, vec []float32) error {
	if len(vec) != f.dim {
		return &ErrDimensionMismatch{Expected: f.dim, Actual: len(vec)}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.ids = append(f.ids, id)
	switch f.scalar {
	case ScalarF16:
		off := len(f.f16)
		f.f16 = append(f.f16, make([]f16.Bits, f.dim)...)
		f16.Encode(f.f16[off:], vec)
	default:
		f.f32 = append(f.f32, vec...)
	}
	return nil
}

// Search returns the k nearest vectors to query, ranked by ascending
// distance.
func (f *Flat) Search(query []float32, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if len(query) != f.dim {
		return nil, &ErrDimensionMismatch{Expected: f.dim, Actual: len(query)}
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	// Bounded max-heap: the root is the worst candidate seen so far.
	h := make(resultHeap, 0, k)
	scratch := make([]float32, f.dim)

	for i := range f.ids {
		d := f.distanceAt(i, query, scratch)
		if len(h) < k {
			heap.Push(&h, SearchResult{ID: f.ids[i], Distance: d})
			continue
		}
		if d < h[0].Distance {
			h[0] = SearchResult{ID: f.ids[i], Distance: d}
			heap.Fix(&h, 0)
		}
	}

	// Drain in reverse to produce ascending distance order.
	results := make([]SearchResult, len(h))
	for i := len(results) - 1; i >= 0; i-- {
		results[i] = heap.Pop(&h).(SearchResult)
	}
	return results, nil
}

// Size returns the number of stored vectors.
func (f *Flat) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.ids)
}

// Dimensions returns the fixed vector dimension.
func (f *Flat) Dimensions() int { return f.dim }

// Metric returns the configured distance metric.
func (f *Flat) Metric() Metric { return f.metric }

// Scalar returns the configured storage precision.
func (f *Flat) Scalar() Scalar { return f.scalar }

// distanceAt computes the distance between the i-th stored vector and query.
// scratch must have length dim; it is used to decode f16 storage.
// Caller holds at least the read lock.
func (f *Flat) distanceAt(i int, query, scratch []float32) float32 {
	var vec []float32
	switch f.scalar {
	case ScalarF16:
		f16.Decode(scratch, f.f16[i*f.dim:(i+1)*f.dim])
		vec = scratch
	default:
		vec = f.f32[i*f.dim : (i+1)*f.dim]
	}

	switch f.metric {
	case MetricEuclidean:
		return squaredL2(vec, query)
	default:
		return cosineDistance(vec, query)
	}
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// cosineDistance returns 1 - cosine similarity. Zero-magnitude vectors are
// treated as maximally distant.
func cosineDistance(a, b []float32) float32 {
	magA := float32(math.Sqrt(float64(dot(a, a))))
	magB := float32(math.Sqrt(float64(dot(b, b))))
	if magA == 0 || magB == 0 {
		return 1
	}
	return 1 - dot(a, b)/(magA*magB)
}

// resultHeap is a max-heap over SearchResult distance.
type resultHeap []SearchResult

func (h resultHeap) Len() int            { return len(h) }
func (h resultHeap) Less(i, j int) bool  { return h[i].Distance > h[j].Distance }
func (h resultHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x any)         { *h = append(*h, x.(SearchResult)) }
func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
