// Package vector provides the per-namespace vector index primitive.
//
// An Index pairs fixed-dimension vectors with caller-assigned uint64 ids and
// answers k-nearest-neighbor queries. Indexes are append-only: there is no
// delete or update primitive, and removing vectors requires rebuilding the
// index from source data.
package vector

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrInvalidDimension is returned when an index is created with a
	// non-positive dimension.
	ErrInvalidDimension = errors.New("dimension must be positive")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// SearchResult is a single ranked hit from a similarity search.
type SearchResult struct {
	ID       uint64
	Distance float32
}

// Index is the vector index contract consumed by the namespace layer.
// Implementations must be safe for concurrent use.
type Index interface {
	// Add inserts a vector under id. The vector length must equal the
	// index dimension exactly.
	Add(id uint64, vec []float32) error

	// Search returns the k nearest vectors to query, ranked by ascending
	// distance.
	Search(query []float32, k int) ([]SearchResult, error)

	// Save writes a snapshot of the index to path.
	Save(path string) error

	// Load replaces the index contents with the snapshot at path. The
	// snapshot's shape (dimension, metric, scalar) must match the index.
	Load(path string) error

	// Size returns the number of stored vectors.
	Size() int

	// Dimensions returns the fixed vector dimension.
	Dimensions() int
}
