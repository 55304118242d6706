package retrieval

import "math"

// cosine returns dot/(|a||b|) given the dot product and both squared
// magnitudes. A zero-magnitude side, or any non-finite result, yields 0.
func cosine(dot, na2, nb2 float64) float64 {
	if na2 == 0 || nb2 == 0 {
		return 0
	}
	s := dot / (math.Sqrt(na2) * math.Sqrt(nb2))
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 0
	}
	return s
}

func sumSquares(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return sum
}

func dot(a, b []float64) float64 {
	n := min(len(a), len(b))
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
