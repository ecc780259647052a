// Package vecmath provides small helpers for embedding vectors: L2
// normalization, dot products, and cosine similarity.
package vecmath

import (
	"math"
)

// NormalizeL2 normalizes a vector to unit length in place, to save
// allocations on high-volume paths. A zero vector is left unchanged.
func NormalizeL2(vector []float32) {
	var sumSquares float64

	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}

	if sumSquares == 0 {
		return
	}

	magnitude := math.Sqrt(sumSquares)

	for i := range vector {
		vector[i] = float32(float64(vector[i]) / magnitude)
	}
}

// Normalized returns a unit-length copy of vector, leaving the input intact.
// A zero vector comes back as a zero copy.
func Normalized(vector []float32) []float32 {
	out := make([]float32, len(vector))
	copy(out, vector)
	NormalizeL2(out)

	return out
}

// Dot returns the inner product of a and b. Both slices must have the same
// length; the caller is responsible for dimension checks.
func Dot(a, b []float32) float64 {
	var sum float64

	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}

	return sum
}

// Norm returns the L2 norm of vector.
func Norm(vector []float32) float64 {
	var sumSquares float64

	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}

	return math.Sqrt(sumSquares)
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// either vector has zero norm.
func CosineSimilarity(a, b []float32) float64 {
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}

	return Dot(a, b) / (na * nb)
}

// IsFinite reports whether every component of vector is a finite number.
// Embeddings with NaN or Inf components are unusable for similarity search.
func IsFinite(vector []float32) bool {
	for _, v := range vector {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}

	return true
}
