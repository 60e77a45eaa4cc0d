package embedding

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic_Deterministic(t *testing.T) {
	ctx := context.Background()
	p := NewStatic(8)

	a, err := p.Generate(ctx, []string{"hello", "world"})
	require.NoError(t, err)
	b, err := p.Generate(ctx, []string{"hello", "world"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 2)
	assert.Len(t, a[0], 8)
	assert.NotEqual(t, a[0], a[1])
}

func TestStatic_Pin(t *testing.T) {
	p := NewStatic(3)
	p.Pin("doc a", []float32{1, 0, 0})

	vecs, err := p.Generate(context.Background(), []string{"doc a"})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, vecs[0])

	assert.Panics(t, func() { p.Pin("bad", []float32{1, 0}) })
}

// blockingProvider parks Generate calls until released.
type blockingProvider struct {
	entered atomic.Int32
	release chan struct{}
}

func (b *blockingProvider) Generate(ctx context.Context, texts []string) ([][]float32, error) {
	b.entered.Add(1)
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return make([][]float32, len(texts)), nil
}

func (b *blockingProvider) Dimensions() int { return 1 }

func TestBounded_ConcurrencyCeiling(t *testing.T) {
	inner := &blockingProvider{release: make(chan struct{})}
	b := NewBounded(inner, BoundedConfig{MaxConcurrent: 2})

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = b.Generate(ctx, []string{"x"})
		}()
	}

	// Only two calls may reach the inner provider while it is blocked.
	assert.Eventually(t, func() bool { return inner.entered.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return inner.entered.Load() > 2 }, 50*time.Millisecond, 5*time.Millisecond)

	close(inner.release)
	wg.Wait()
	assert.EqualValues(t, 4, inner.entered.Load())
}

func TestBounded_ContextCancel(t *testing.T) {
	inner := &blockingProvider{release: make(chan struct{})}
	defer close(inner.release)
	b := NewBounded(inner, BoundedConfig{MaxConcurrent: 1})

	// Occupy the only slot.
	go func() { _, _ = b.Generate(context.Background(), []string{"x"}) }()
	assert.Eventually(t, func() bool { return inner.entered.Load() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := b.Generate(ctx, []string{"y"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
