package embeddings

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/oppmatch/engine/internal/apperrors"
)

// DefaultDimension matches text-embedding-3-small.
const DefaultDimension = 1536

// OpenAIClient implements Client using OpenAI's embedding API.
type OpenAIClient struct {
	client    *openai.Client
	model     openai.EmbeddingModel
	dimension int
	limiter   *rate.Limiter
}

var _ Client = (*OpenAIClient)(nil)

// OpenAIOption configures an OpenAIClient.
type OpenAIOption func(*OpenAIClient)

// WithModel sets the embedding model. The default is text-embedding-3-small.
func WithModel(model openai.EmbeddingModel) OpenAIOption {
	return func(c *OpenAIClient) {
		c.model = model
	}
}

// WithDimension sets the expected embedding dimension.
func WithDimension(dim int) OpenAIOption {
	return func(c *OpenAIClient) {
		c.dimension = dim
	}
}

// WithRateLimit caps API calls at n requests per second.
func WithRateLimit(n float64) OpenAIOption {
	return func(c *OpenAIClient) {
		c.limiter = rate.NewLimiter(rate.Limit(n), 1)
	}
}

// NewOpenAIClient creates an OpenAI embedding client.
func NewOpenAIClient(apiKey string, opts ...OpenAIOption) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embeddings: OpenAI API key cannot be empty")
	}

	c := &OpenAIClient{
		client:    openai.NewClient(apiKey),
		model:     openai.SmallEmbedding3,
		dimension: DefaultDimension,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Dimension returns the dimension D every produced vector has.
func (c *OpenAIClient) Dimension() int { return c.dimension }

// Embed returns the embedding for one text.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	return vecs[0], nil
}

// EmbedBatch returns embeddings for multiple texts in one call. Every
// returned vector is checked against the configured dimension; a provider
// that returns the wrong dimension is a hard error, never silently reshaped.
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("texts cannot be empty")
	}

	for i, t := range texts {
		if t == "" {
			return nil, fmt.Errorf("text at index %d cannot be empty", i)
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("unexpected number of embeddings: got %d, expected %d", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(resp.Data))

	for i, data := range resp.Data {
		if len(data.Embedding) != c.dimension {
			return nil, apperrors.NewDimensionMismatchError(c.dimension, len(data.Embedding))
		}

		out[i] = data.Embedding
	}

	return out, nil
}
