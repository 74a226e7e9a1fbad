package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// MockEmbedder is a deterministic token-hash embedder for dev and tests:
// each token is hashed into a fixed-dimension bag-of-words vector, so
// identical texts embed identically and texts sharing vocabulary score
// higher cosine similarity. It is a crude proxy for semantic closeness but
// behaves the right way around for drift.
type MockEmbedder struct {
	dimensions int
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{dimensions: 256}
}

func (e *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimensions)
	for _, token := range tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		vec[h.Sum32()%uint32(e.dimensions)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func (e *MockEmbedder) Dimensions() int { return e.dimensions }

func (e *MockEmbedder) Name() string { return "mock" }

func (e *MockEmbedder) Close() error { return nil }
