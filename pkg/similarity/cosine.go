// Package similarity provides vector similarity utilities for retrieval ranking.
package similarity

import "math"

// Cosine returns the cosine similarity between two equal-length vectors.
// A zero vector on either side yields 0 rather than NaN.
func Cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
