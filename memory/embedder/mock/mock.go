package mock

import (
	"context"
	"hash/fnv"
	"math"
)

// MockEmbedder is a simple mock embedder for testing.
// It generates deterministic embeddings based on text hash.
type MockEmbedder struct {
	dimensions int
}

// New creates a new mock embedder.
func New(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 300
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed creates a deterministic embedding from text.
// Uses hash-based generation for consistent results.
func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	embedding := make([]float32, m.dimensions)
	for i := 0; i < m.dimensions; i++ {
		// Simple LCG keyed on the text hash.
		seed = seed*6364136223846793005 + 1442695040888963407
		embedding[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}

	return normalize(embedding), nil
}

// Dimensions returns the embedding size.
func (m *MockEmbedder) Dimensions() int {
	return m.dimensions
}

// normalize converts embedding to unit vector.
func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}

	norm = float32(math.Sqrt(float64(norm)))
	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = v / norm
	}
	return normalized
}
