package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
)

// Static is a deterministic Provider for tests, examples and offline use.
// Texts can be pinned to fixed vectors; unpinned texts hash to a stable
// pseudo-random unit vector. No model inference is involved.
type Static struct {
	dims int

	mu     sync.RWMutex
	pinned map[string][]float32
}

var _ Provider = (*Static)(nil)

// NewStatic creates a Static provider producing dims-dimensional vectors.
func NewStatic(dims int) *Static {
	return &Static{dims: dims, pinned: make(map[string][]float32)}
}

// Pin fixes the vector returned for text. The vector length must equal the
// provider's dimensionality; Pin panics otherwise (test misuse).
func (s *Static) Pin(text string, vec []float32) {
	if len(vec) != s.dims {
		panic("embedding: pinned vector has wrong dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pinned[text] = append([]float32(nil), vec...)
}

// Generate returns one vector per text.
func (s *Static) Generate(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, text := range texts {
		if vec, ok := s.pinned[text]; ok {
			out[i] = append([]float32(nil), vec...)
			continue
		}
		out[i] = s.hashVector(text)
	}
	return out, nil
}

// Dimensions returns the configured dimensionality.
func (s *Static) Dimensions() int { return s.dims }

// hashVector derives a stable unit vector from text.
func (s *Static) hashVector(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	state := h.Sum64()

	vec := make([]float32, s.dims)
	var norm float64
	for i := range vec {
		// xorshift64 keeps the sequence deterministic per text.
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		vec[i] = float32(int64(state%2000)-1000) / 1000
		norm += float64(vec[i]) * float64(vec[i])
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}
