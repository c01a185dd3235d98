package embedding

import "math"

// Cosine returns the cosine similarity of two vectors. It is total: mismatched
// lengths, empty vectors and zero norms all yield 0 rather than an error or
// NaN. A length mismatch in practice means a vector stored under an older
// model width; a force-mode backfill is the repair path.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		av := float64(a[i])
		bv := float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
