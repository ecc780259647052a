package embeddings

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/oppmatch/engine/pkg/vecmath"
)

// MockClient implements Client for tests and local development. It generates
// deterministic unit-length embeddings from the input text hash.
type MockClient struct {
	dimension int
}

var _ Client = (*MockClient)(nil)

// NewMockClient creates a mock client at the given dimension.
func NewMockClient(dimension int) *MockClient {
	if dimension <= 0 {
		dimension = DefaultDimension
	}

	return &MockClient{dimension: dimension}
}

// Dimension returns the dimension D every produced vector has.
func (c *MockClient) Dimension() int { return c.dimension }

// Embed returns a deterministic embedding derived from the text hash.
func (c *MockClient) Embed(_ context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	return c.deterministic(text), nil
}

// EmbedBatch returns deterministic embeddings for multiple texts.
func (c *MockClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("texts cannot be empty")
	}

	out := make([][]float32, len(texts))

	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("text at index %d: %w", i, err)
		}

		out[i] = vec
	}

	return out, nil
}

func (c *MockClient) deterministic(text string) []float32 {
	hash := sha256.Sum256([]byte(text))
	vec := make([]float32, c.dimension)

	for i := range vec {
		// Cycle hash bytes into floats in [-1, 1].
		vec[i] = (float32(hash[i%len(hash)]) / 127.5) - 1.0
	}

	vecmath.NormalizeL2(vec)

	return vec
}
