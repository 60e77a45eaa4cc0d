// Package embedding defines the text-embedding contract consumed by the
// database core and the concurrency/rate guardrails around it.
//
// The inference engine itself is an external collaborator; this package only
// wraps it.
package embedding

import "context"

// Provider turns texts into dense float32 vectors.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Generate returns one vector per input text, in order.
	Generate(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of produced vectors.
	Dimensions() int
}
