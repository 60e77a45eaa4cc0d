package vector

import "fmt"

// Metric selects the distance function used by an index.
type Metric int

const (
	// MetricCosine ranks by cosine distance (1 - cosine similarity).
	MetricCosine Metric = iota

	// MetricEuclidean ranks by squared L2 distance.
	MetricEuclidean
)

// String returns the canonical persisted form ("cosine" or "euclidean").
func (m Metric) String() string {
	switch m {
	case MetricCosine:
		return "cosine"
	case MetricEuclidean:
		return "euclidean"
	default:
		return fmt.Sprintf("Metric(%d)", int(m))
	}
}

// ParseMetric is the strict inverse of Metric.String.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "cosine":
		return MetricCosine, nil
	case "euclidean":
		return MetricEuclidean, nil
	default:
		return 0, fmt.Errorf("unknown metric kind: %q", s)
	}
}

// Scalar selects the on-disk/in-memory storage precision for vectors.
// Distance computation always happens in float32.
type Scalar int

const (
	// ScalarF32 stores full-precision float32 components.
	ScalarF32 Scalar = iota

	// ScalarF16 stores IEEE-754 binary16 components, halving memory at
	// the cost of precision.
	ScalarF16
)

// String returns the canonical persisted form ("f32" or "f16").
func (s Scalar) String() string {
	switch s {
	case ScalarF32:
		return "f32"
	case ScalarF16:
		return "f16"
	default:
		return fmt.Sprintf("Scalar(%d)", int(s))
	}
}

// ParseScalar is the strict inverse of Scalar.String.
func ParseScalar(s string) (Scalar, error) {
	switch s {
	case "f32":
		return ScalarF32, nil
	case "f16":
		return ScalarF16, nil
	default:
		return 0, fmt.Errorf("unknown scalar kind: %q", s)
	}
}
