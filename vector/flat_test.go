package vector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetricScalar(t *testing.T) {
	m, err := ParseMetric("cosine")
	require.NoError(t, err)
	assert.Equal(t, MetricCosine, m)
	assert.Equal(t, "cosine", m.String())

	m, err = ParseMetric("euclidean")
	require.NoError(t, err)
	assert.Equal(t, MetricEuclidean, m)

	_, err = ParseMetric("manhattan")
	assert.Error(t, err)

	s, err := ParseScalar("f16")
	require.NoError(t, err)
	assert.Equal(t, ScalarF16, s)
	assert.Equal(t, "f16", s.String())

	_, err = ParseScalar("f64")
	assert.Error(t, err)
}

func TestFlat_AddAndSearch(t *testing.T) {
	for _, metric := range []Metric{MetricCosine, MetricEuclidean} {
		t.Run(metric.String(), func(t *testing.T) {
			idx, err := NewFlat(3, metric, ScalarF32)
			require.NoError(t, err)

			require.NoError(t, idx.Add(1, []float32{1, 0, 0}))
			require.NoError(t, idx.Add(2, []float32{0, 1, 0}))
			require.NoError(t, idx.Add(3, []float32{0, 0, 1}))
			assert.Equal(t, 3, idx.Size())

			// Exact match must rank first with minimal distance.
			results, err := idx.Search([]float32{1, 0, 0}, 2)
			require.NoError(t, err)
			require.Len(t, results, 2)
			assert.Equal(t, uint64(1), results[0].ID)
			assert.InDelta(t, 0, results[0].Distance, 1e-6)
			assert.Less(t, results[0].Distance, results[1].Distance)
		})
	}
}

func TestFlat_DimensionMismatch(t *testing.T) {
	idx, err := NewFlat(3, MetricCosine, ScalarF32)
	require.NoError(t, err)

	var dm *ErrDimensionMismatch
	err = idx.Add(1, []float32{1, 0})
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 3, dm.Expected)
	assert.Equal(t, 2, dm.Actual)

	_, err = idx.Search([]float32{1, 0, 0, 0}, 1)
	assert.ErrorAs(t, err, &dm)
}

func TestFlat_InvalidArgs(t *testing.T) {
	_, err := NewFlat(0, MetricCosine, ScalarF32)
	assert.ErrorIs(t, err, ErrInvalidDimension)

	idx, err := NewFlat(2, MetricCosine, ScalarF32)
	require.NoError(t, err)
	_, err = idx.Search([]float32{1, 0}, 0)
	assert.ErrorIs(t, err, ErrInvalidK)
}

func TestFlat_KLargerThanSize(t *testing.T) {
	idx, err := NewFlat(2, MetricEuclidean, ScalarF32)
	require.NoError(t, err)
	require.NoError(t, idx.Add(7, []float32{1, 2}))

	results, err := idx.Search([]float32{1, 2}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint64(7), results[0].ID)
}

func TestFlat_F16Storage(t *testing.T) {
	idx, err := NewFlat(3, MetricCosine, ScalarF16)
	require.NoError(t, err)

	require.NoError(t, idx.Add(1, []float32{1, 0, 0}))
	require.NoError(t, idx.Add(2, []float32{0, 1, 0}))

	results, err := idx.Search([]float32{0.9, 0.1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint64(1), results[0].ID)
}

func TestFlat_SnapshotRoundTrip(t *testing.T) {
	for _, scalar := range []Scalar{ScalarF32, ScalarF16} {
		t.Run(scalar.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "vectors.idx")

			idx, err := NewFlat(4, MetricEuclidean, scalar)
			require.NoError(t, err)
			require.NoError(t, idx.Add(10, []float32{1, 2, 3, 4}))
			require.NoError(t, idx.Add(20, []float32{4, 3, 2, 1}))
			require.NoError(t, idx.Save(path))

			loaded, err := NewFlat(4, MetricEuclidean, scalar)
			require.NoError(t, err)
			require.NoError(t, loaded.Load(path))
			assert.Equal(t, 2, loaded.Size())

			results, err := loaded.Search([]float32{1, 2, 3, 4}, 1)
			require.NoError(t, err)
			assert.Equal(t, uint64(10), results[0].ID)
		})
	}
}

func TestFlat_SnapshotShapeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.idx")

	idx, err := NewFlat(4, MetricEuclidean, ScalarF32)
	require.NoError(t, err)
	require.NoError(t, idx.Save(path))

	other, err := NewFlat(8, MetricEuclidean, ScalarF32)
	require.NoError(t, err)
	assert.ErrorIs(t, other.Load(path), ErrSnapshotShapeMismatch)
}

func TestFlat_SnapshotCorrupt(t *testing.T) {
	dir := t.TempDir()

	idx, err := NewFlat(2, MetricCosine, ScalarF32)
	require.NoError(t, err)

	// Missing file surfaces the read error.
	assert.Error(t, idx.Load(filepath.Join(dir, "missing.idx")))

	// Garbage bytes fail the magic check.
	bad := filepath.Join(dir, "bad.idx")
	require.NoError(t, os.WriteFile(bad, []byte("not a snapshot"), 0o644))
	assert.ErrorIs(t, idx.Load(bad), ErrSnapshotCorrupt)
}
