package search

import "math"

// CosineSimilarity returns the cosine of the angle between a and b.
// Zero vectors have similarity 0. The vectors must have equal length.
func CosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// CosineDistance is 1 - CosineSimilarity.
func CosineDistance(a, b []float32) float32 {
	return 1 - CosineSimilarity(a, b)
}

// NormalizeVector normalizes a vector to unit length.
// Returns a new vector. If the input is a zero vector, returns a zero vector.
func NormalizeVector(v []float32) []float32 {
	result := make([]float32, len(v))
	var magnitude float64
	for _, val := range v {
		magnitude += float64(val) * float64(val)
	}
	if magnitude == 0 {
		return result
	}
	magnitude = math.Sqrt(magnitude)
	for i, val := range v {
		result[i] = float32(float64(val) / magnitude)
	}
	return result
}
