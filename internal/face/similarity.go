package face

import (
	"math"
)

// CosineSimilarity returns dot(a,b)/(|a||b|) clamped to [-1, 1]. Vectors of
// different length or with a zero norm score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Max(-1, math.Min(1, sim))
}

// Normalize returns v divided by its Euclidean norm. A zero norm is treated
// as 1, so the zero vector comes back unchanged.
func Normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}

	norm := math.Sqrt(sum)
	if norm == 0 {
		norm = 1
	}

	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
