package metrics

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

// giniEpsilon keeps zero contributions from collapsing the denominator
const giniEpsilon = 0.0000001

// Gini returns the Gini coefficient of values. Negative inputs shift the
// whole sample so its minimum is zero, and every value is nudged by a tiny
// epsilon so all-zero samples stay defined. An empty sample yields 0.
func Gini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sample := make([]float64, n)
	copy(sample, values)

	if lo := floats.Min(sample); lo < 0 {
		floats.AddConst(-lo, sample)
	}
	floats.AddConst(giniEpsilon, sample)
	sort.Float64s(sample)

	weights := make([]float64, n)
	for i := range weights {
		weights[i] = float64(2*(i+1) - n - 1)
	}

	return floats.Dot(weights, sample) / (float64(n) * floats.Sum(sample))
}

// Normalize divides each contribution by the sum of all contributions
func Normalize(values []int) []float64 {
	out := make([]float64, len(values))
	total := 0
	for _, v := range values {
		total += v
	}
	if total == 0 {
		return out
	}
	for i, v := range values {
		out[i] = float64(v) / float64(total)
	}
	return out
}
