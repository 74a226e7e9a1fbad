// Package embed provides the embedding capability the dialogue tracker
// consumes. Backends are injected at the composition root; the tracker never
// owns a process-wide model.
package embed

import (
	"context"
	"math"
)

// Embedder converts text into a fixed-length vector. Deterministic for
// identical input; dimension fixed for a given instantiation.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Name() string
	Close() error
}

// Cosine computes cosine similarity between two vectors. Mismatched or empty
// vectors score 0, which degrades drift rather than failing it.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
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
