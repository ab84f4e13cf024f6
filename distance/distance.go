package distance

import (
	"fmt"
	"math"
	"strings"

	"github.com/viterin/vek/vek32"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	return vek32.Dot(a, b)
}

// Euclidean calculates the L2 distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Euclidean(a, b []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	return vek32.Distance(a, b)
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float32 {
	if len(v) == 0 {
		return 0
	}
	return vek32.Norm(v)
}

// CosineSimilarity returns the cosine of the angle between a and b.
// A zero-norm input has similarity 0 with everything.
func CosineSimilarity(a, b []float32) float32 {
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	// The product of two tiny float32 norms can underflow to zero.
	c := float64(Dot(a, b)) / (float64(na) * float64(nb))
	return float32(max(-1, min(1, c)))
}

// MaxNorm bounds the L2 norm of stored and query vectors. Within it the
// float32 kernels cannot overflow: a squared difference or a dot product
// stays below 4e36.
const MaxNorm = 1e18

// Magnitude returns the L2 norm of v accumulated in float64, so it is
// finite for any finite v.
func Magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Metric represents the distance metric used for vector comparison.
type Metric int

const (
	MetricCosine Metric = iota
	MetricEuclidean
	MetricDot
)

func (m Metric) String() string {
	switch m {
	case MetricCosine:
		return "cosine"
	case MetricEuclidean:
		return "euclidean"
	case MetricDot:
		return "dot"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// Valid reports whether m is one of the supported metrics.
func (m Metric) Valid() bool {
	return m >= MetricCosine && m <= MetricDot
}

// ParseMetric parses a metric name. Matching is case-insensitive and accepts
// the common aliases "l2", "ip" and "inner_product".
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cosine":
		return MetricCosine, nil
	case "euclidean", "l2":
		return MetricEuclidean, nil
	case "dot", "ip", "inner_product":
		return MetricDot, nil
	default:
		return 0, fmt.Errorf("unsupported metric %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Metric) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("unsupported metric %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Metric) UnmarshalText(text []byte) error {
	parsed, err := ParseMetric(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Distance returns the distance between a and b under m. Smaller is closer.
func (m Metric) Distance(a, b []float32) float32 {
	switch m {
	case MetricEuclidean:
		return Euclidean(a, b)
	case MetricDot:
		return -Dot(a, b)
	default:
		return 1 - CosineSimilarity(a, b)
	}
}

// Score converts a distance produced by m back into its similarity form.
func (m Metric) Score(d float32) float32 {
	switch m {
	case MetricEuclidean, MetricDot:
		return -d
	default:
		return 1 - d
	}
}

// Finite reports whether every component of v is a finite number.
func Finite(v []float32) bool {
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
