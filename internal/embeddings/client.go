// Package embeddings provides text-to-embedding conversion for items and
// profiles, at the system's fixed dimension D.
package embeddings

import "context"

// Client converts text into embedding vectors of the system dimension.
type Client interface {
	// Embed returns the embedding for one text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns embeddings for multiple texts in one call.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the dimension D every produced vector has.
	Dimension() int
}
