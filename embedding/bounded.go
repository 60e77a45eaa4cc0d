package embedding

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// BoundedConfig holds the guardrails applied by Bounded.
type BoundedConfig struct {
	// MaxConcurrent is the maximum number of in-flight Generate calls.
	// If 0, defaults to 1.
	MaxConcurrent int64

	// RequestsPerSecond limits the rate of Generate calls.
	// If 0, unlimited.
	RequestsPerSecond float64
}

// Bounded wraps a Provider with a concurrency ceiling and an optional rate
// limit. Embedding is compute-bound and may be invoked both by scripts and
// by direct callers, so the bounds live here rather than in the executor.
type Bounded struct {
	provider Provider
	sem      *semaphore.Weighted
	limiter  *rate.Limiter // nil if unlimited
}

var _ Provider = (*Bounded)(nil)

// NewBounded wraps provider with the given guardrails.
func NewBounded(provider Provider, cfg BoundedConfig) *Bounded {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}

	b := &Bounded{
		provider: provider,
		sem:      semaphore.NewWeighted(cfg.MaxConcurrent),
	}
	if cfg.RequestsPerSecond > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return b
}

// Generate acquires a concurrency slot (and a rate token, if limited), then
// delegates to the wrapped provider.
func (b *Bounded) Generate(ctx context.Context, texts []string) ([][]float32, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("embedding: rate limit wait: %w", err)
		}
	}
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("embedding: acquire slot: %w", err)
	}
	defer b.sem.Release(1)

	return b.provider.Generate(ctx, texts)
}

// Dimensions returns the wrapped provider's dimensionality.
func (b *Bounded) Dimensions() int { return b.provider.Dimensions() }
